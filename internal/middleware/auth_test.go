package middleware

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dchurch/fridge/internal/auth"
	"github.com/dchurch/fridge/internal/database"
	"github.com/dchurch/fridge/internal/model"
	"github.com/dchurch/fridge/internal/store"
)

func setupAuthTest(t *testing.T) (*sql.DB, *store.SessionStore, *store.UserStore, *model.User) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	users := store.NewUserStore(db)
	sessions := store.NewSessionStore(db)

	user, err := users.Create("alice@example.com", "Alice", "hash")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return db, sessions, users, user
}

func TestRequireAuthValidSession(t *testing.T) {
	_, sessions, users, user := setupAuthTest(t)

	sess, err := sessions.Create(user.ID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	var got auth.AuthContext
	handler := RequireAuth(sessions, users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName(), Value: sess.Token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	if got.UserID != user.ID {
		t.Errorf("AuthContext.UserID = %d, want %d", got.UserID, user.ID)
	}
	if got.Email != "alice@example.com" {
		t.Errorf("AuthContext.Email = %q", got.Email)
	}
	if got.Role != model.RoleAdmin {
		t.Errorf("AuthContext.Role = %q, want admin", got.Role)
	}
}

func TestRequireAuthMissingCookie(t *testing.T) {
	_, sessions, users, _ := setupAuthTest(t)

	handler := RequireAuth(sessions, users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("got status %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Errorf("redirect location = %q, want /login", loc)
	}
}

func TestRequireAuthUnknownToken(t *testing.T) {
	_, sessions, users, _ := setupAuthTest(t)

	handler := RequireAuth(sessions, users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName(), Value: "bogus"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusSeeOther {
		t.Fatalf("got status %d, want 303", rec.Code)
	}
}

func TestRequireAuthHTMXRedirect(t *testing.T) {
	_, sessions, users, _ := setupAuthTest(t)

	handler := RequireAuth(sessions, users)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("HX-Request", "true")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("got status %d, want 200", rec.Code)
	}
	if rec.Header().Get("HX-Redirect") != "/login" {
		t.Errorf("HX-Redirect = %q, want /login", rec.Header().Get("HX-Redirect"))
	}
}

func TestRequireAdmin(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RequireAdmin(next)

	req := httptest.NewRequest(http.MethodPost, "/backup/now", nil)
	ctx := auth.WithAuth(req.Context(), auth.AuthContext{UserID: 1, Role: model.RoleMember})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req.WithContext(ctx))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("member: got status %d, want 403", rec.Code)
	}

	ctx = auth.WithAuth(req.Context(), auth.AuthContext{UserID: 1, Role: model.RoleAdmin})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req.WithContext(ctx))
	if rec.Code != http.StatusOK {
		t.Fatalf("admin: got status %d, want 200", rec.Code)
	}
}
