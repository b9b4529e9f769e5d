package server_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/dchurch/fridge/internal/database"
	"github.com/dchurch/fridge/internal/model"
	"github.com/dchurch/fridge/internal/nutrition"
	"github.com/dchurch/fridge/internal/server"
	"github.com/dchurch/fridge/internal/store"
)

type sentEmail struct {
	To    string
	Token string
}

// stubEmail records outgoing mail instead of sending it.
type stubEmail struct {
	mu            sync.Mutex
	verifications []sentEmail
	invitations   []sentEmail
}

func (s *stubEmail) Configured() bool { return true }

func (s *stubEmail) SendVerification(toEmail, name, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.verifications = append(s.verifications, sentEmail{To: toEmail, Token: token})
	return nil
}

func (s *stubEmail) SendInvitation(toEmail, inviterName, householdName, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invitations = append(s.invitations, sentEmail{To: toEmail, Token: token})
	return nil
}

func (s *stubEmail) lastVerification(to string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.verifications) - 1; i >= 0; i-- {
		if s.verifications[i].To == to {
			return s.verifications[i].Token
		}
	}
	return ""
}

func (s *stubEmail) lastInvitation(to string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.invitations) - 1; i >= 0; i-- {
		if s.invitations[i].To == to {
			return s.invitations[i].Token
		}
	}
	return ""
}

type stubEstimator struct {
	est *nutrition.Estimate
	err error
}

func (s *stubEstimator) Estimate(_ context.Context, _, _ string) (*nutrition.Estimate, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.est, nil
}

type stubBackups struct {
	enabled bool
	runs    int
	err     error
}

func (s *stubBackups) Enabled() bool { return s.enabled }

func (s *stubBackups) RunNow(context.Context) (int64, error) {
	s.runs++
	return int64(s.runs), s.err
}

type testEnv struct {
	router    http.Handler
	db        *sql.DB
	email     *stubEmail
	estimator *stubEstimator
	backups   *stubBackups
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		db:    db,
		email: &stubEmail{},
		estimator: &stubEstimator{
			est: &nutrition.Estimate{Calories: 270, Protein: 6.5, Carbs: 30, Fat: 14},
		},
		backups: &stubBackups{enabled: true},
	}
	srv := server.New(db, env.email, env.estimator, env.backups, slog.Default())
	env.router = srv.Router()
	return env
}

func (e *testEnv) postForm(path string, cookie *http.Cookie, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.RemoteAddr = "127.0.0.1:9999"
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "127.0.0.1:9999"
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// register submits the registration form and returns the verification token
// that was "emailed".
func (e *testEnv) register(t *testing.T, name, email, password string) string {
	t.Helper()
	rec := e.postForm("/register", nil, url.Values{
		"name":     {name},
		"email":    {email},
		"password": {password},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("register %s: status %d", email, rec.Code)
	}
	token := e.email.lastVerification(email)
	if token == "" {
		t.Fatalf("register %s: no verification email sent", email)
	}
	return token
}

func (e *testEnv) verify(t *testing.T, token string) {
	t.Helper()
	rec := e.get("/verify?token="+token, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Email verified") {
		t.Fatalf("verify: status %d body %q", rec.Code, rec.Body.String())
	}
}

func (e *testEnv) login(t *testing.T, email, password string) *http.Cookie {
	t.Helper()
	rec := e.postForm("/login", nil, url.Values{
		"email":    {email},
		"password": {password},
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("login %s: status %d body %q", email, rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == "fridge_session" && c.Value != "" {
			return c
		}
	}
	t.Fatalf("login %s: no session cookie", email)
	return nil
}

// signup registers, verifies, and logs in one user.
func (e *testEnv) signup(t *testing.T, name, email, password string) *http.Cookie {
	t.Helper()
	token := e.register(t, name, email, password)
	e.verify(t, token)
	return e.login(t, email, password)
}

func (e *testEnv) createHousehold(t *testing.T, cookie *http.Cookie, name string) *model.Household {
	t.Helper()
	rec := e.postForm("/create_household", cookie, url.Values{"name": {name}})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("create household: status %d", rec.Code)
	}
	// Resolve the ID through the store on the shared handle.
	var id int64
	err := e.db.QueryRow(`SELECT id FROM households WHERE name = ?`, name).Scan(&id)
	if err != nil {
		t.Fatalf("lookup household: %v", err)
	}
	h, err := store.NewHouseholdStore(e.db).GetByID(id)
	if err != nil || h == nil {
		t.Fatalf("get household: %v", err)
	}
	return h
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.get("/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health: status %d", rec.Code)
	}
}

func TestProtectedRoutesRedirectToLogin(t *testing.T) {
	env := newTestEnv(t)
	for _, path := range []string{"/", "/manage_household", "/view_logs", "/profile"} {
		rec := env.get(path, nil)
		if rec.Code != http.StatusSeeOther {
			t.Errorf("%s: status %d, want 303", path, rec.Code)
		}
		if loc := rec.Header().Get("Location"); loc != "/login" {
			t.Errorf("%s: redirect to %q, want /login", path, loc)
		}
	}
}

func TestFirstUserIsAdmin(t *testing.T) {
	env := newTestEnv(t)
	env.signup(t, "Alice", "alice@example.com", "sufficiently-long")
	env.signup(t, "Bob", "bob@example.com", "sufficiently-long")

	users := store.NewUserStore(env.db)
	alice, _ := users.GetByEmail("alice@example.com")
	bob, _ := users.GetByEmail("bob@example.com")
	if alice.Role != model.RoleAdmin {
		t.Errorf("first user role = %q, want admin", alice.Role)
	}
	if bob.Role != model.RoleMember {
		t.Errorf("second user role = %q, want member", bob.Role)
	}
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	env := newTestEnv(t)
	rec := env.postForm("/register", nil, url.Values{
		"name":     {"Alice"},
		"email":    {"alice@example.com"},
		"password": {"short"},
	})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "at least 8 characters") {
		t.Fatalf("weak password: status %d body %q", rec.Code, rec.Body.String())
	}
	if n, _ := store.NewUserStore(env.db).Count(); n != 0 {
		t.Errorf("user count = %d, want 0", n)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "Alice", "alice@example.com", "sufficiently-long")

	rec := env.postForm("/register", nil, url.Values{
		"name":     {"Other Alice"},
		"email":    {"alice@example.com"},
		"password": {"sufficiently-long"},
	})
	if !strings.Contains(rec.Body.String(), "already exists") {
		t.Fatalf("duplicate email: body %q", rec.Body.String())
	}
}

func TestLoginRequiresVerification(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "Alice", "alice@example.com", "sufficiently-long")

	rec := env.postForm("/login", nil, url.Values{
		"email":    {"alice@example.com"},
		"password": {"sufficiently-long"},
	})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "verify your email") {
		t.Fatalf("unverified login: status %d body %q", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == "fridge_session" && c.Value != "" {
			t.Fatal("unverified login should not issue a session")
		}
	}
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "Alice", "alice@example.com", "sufficiently-long")
	env.verify(t, token)

	rec := env.postForm("/login", nil, url.Values{
		"email":    {"alice@example.com"},
		"password": {"wrong-password"},
	})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Invalid email or password") {
		t.Fatalf("wrong password: status %d body %q", rec.Code, rec.Body.String())
	}
}

func TestVerificationTokenSingleUse(t *testing.T) {
	env := newTestEnv(t)
	token := env.register(t, "Alice", "alice@example.com", "sufficiently-long")
	env.verify(t, token)

	rec := env.get("/verify?token="+token, nil)
	if !strings.Contains(rec.Body.String(), "invalid or has expired") {
		t.Fatalf("second use should fail, body %q", rec.Body.String())
	}
}

func TestResendVerificationIssuesFreshToken(t *testing.T) {
	env := newTestEnv(t)
	first := env.register(t, "Alice", "alice@example.com", "sufficiently-long")

	rec := env.postForm("/resend_verification", nil, url.Values{
		"email": {"alice@example.com"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("resend: status %d", rec.Code)
	}
	second := env.email.lastVerification("alice@example.com")
	if second == "" || second == first {
		t.Fatalf("expected a new token, first %q second %q", first, second)
	}

	rec = env.get("/verify?token="+first, nil)
	if !strings.Contains(rec.Body.String(), "invalid or has expired") {
		t.Fatalf("old token should be invalidated, body %q", rec.Body.String())
	}

	env.verify(t, second)
	rec = env.postForm("/login", nil, url.Values{
		"email":    {"alice@example.com"},
		"password": {"sufficiently-long"},
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("login after resend+verify: status %d", rec.Code)
	}
}

func TestResendVerificationSilentForUnknownEmail(t *testing.T) {
	env := newTestEnv(t)

	rec := env.postForm("/resend_verification", nil, url.Values{
		"email": {"nobody@example.com"},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("resend: status %d", rec.Code)
	}
	if got := env.email.lastVerification("nobody@example.com"); got != "" {
		t.Fatalf("no email should be sent for unknown address, got token %q", got)
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signup(t, "Alice", "alice@example.com", "sufficiently-long")

	rec := env.postForm("/logout", cookie, url.Values{})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("logout: status %d", rec.Code)
	}

	rec = env.get("/", cookie)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("request after logout: status %d, want redirect to login", rec.Code)
	}
}

func TestLogoutAllInvalidatesEverySession(t *testing.T) {
	env := newTestEnv(t)
	first := env.signup(t, "Alice", "alice@example.com", "sufficiently-long")
	second := env.login(t, "alice@example.com", "sufficiently-long")

	rec := env.postForm("/logout_all", first, url.Values{})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("logout_all: status %d", rec.Code)
	}

	for i, cookie := range []*http.Cookie{first, second} {
		rec = env.get("/", cookie)
		if rec.Code != http.StatusSeeOther {
			t.Fatalf("session %d after logout_all: status %d, want redirect", i, rec.Code)
		}
	}
}

func TestInviteFlow(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "Alice", "alice@example.com", "sufficiently-long")
	household := env.createHousehold(t, alice, "The Smiths")

	rec := env.postForm("/add_member", alice, url.Values{
		"household_id": {fmt.Sprint(household.ID)},
		"email":        {"bob@example.com"},
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("invite: status %d", rec.Code)
	}

	inviteToken := env.email.lastInvitation("bob@example.com")
	if inviteToken == "" {
		t.Fatal("no invitation email sent")
	}

	// Bob has no account. The invite link bounces him to registration with
	// the token carried through.
	rec = env.get("/accept_invite?token="+inviteToken, nil)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("accept without account: status %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); !strings.Contains(loc, "/register?invite=") {
		t.Fatalf("accept without account redirected to %q", loc)
	}

	// Registering through the invite skips separate email verification and
	// joins the household immediately.
	rec = env.postForm("/register", nil, url.Values{
		"name":         {"Bob"},
		"email":        {"bob@example.com"},
		"password":     {"sufficiently-long"},
		"invite_token": {inviteToken},
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("register via invite: status %d body %q", rec.Code, rec.Body.String())
	}

	bob := env.login(t, "bob@example.com", "sufficiently-long")

	// Members list in join order, as JSON.
	rec = env.get(fmt.Sprintf("/get_household_members/%d", household.ID), bob)
	if rec.Code != http.StatusOK {
		t.Fatalf("members: status %d", rec.Code)
	}
	var members []model.Member
	if err := json.Unmarshal(rec.Body.Bytes(), &members); err != nil {
		t.Fatalf("decode members: %v", err)
	}
	if len(members) != 2 || members[0].Name != "Alice" || members[1].Name != "Bob" {
		t.Fatalf("members = %+v, want [Alice Bob]", members)
	}
}

func TestInviteRequiresMembership(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "Alice", "alice@example.com", "sufficiently-long")
	household := env.createHousehold(t, alice, "The Smiths")

	mallory := env.signup(t, "Mallory", "mallory@example.com", "sufficiently-long")
	rec := env.postForm("/add_member", mallory, url.Values{
		"household_id": {fmt.Sprint(household.ID)},
		"email":        {"friend@example.com"},
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-member invite: status %d, want 403", rec.Code)
	}
	if env.email.lastInvitation("friend@example.com") != "" {
		t.Fatal("no invitation email should be sent")
	}
}

func TestLeaveHousehold(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "Alice", "alice@example.com", "sufficiently-long")
	household := env.createHousehold(t, alice, "The Smiths")

	rec := env.postForm("/leave_household", alice, url.Values{
		"household_id": {fmt.Sprint(household.ID)},
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("leave: status %d", rec.Code)
	}

	rec = env.get(fmt.Sprintf("/get_household_members/%d", household.ID), alice)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("members after leaving: status %d, want 403", rec.Code)
	}
}

func TestExpiredInvitationGrantsNothing(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "Alice", "alice@example.com", "sufficiently-long")
	household := env.createHousehold(t, alice, "The Smiths")

	env.postForm("/add_member", alice, url.Values{
		"household_id": {fmt.Sprint(household.ID)},
		"email":        {"bob@example.com"},
	})
	inviteToken := env.email.lastInvitation("bob@example.com")

	if _, err := env.db.Exec(`UPDATE invitations SET expires_at = datetime('now', '-1 day')`); err != nil {
		t.Fatalf("backdate invitation: %v", err)
	}

	bob := env.signup(t, "Bob", "bob@example.com", "sufficiently-long")
	rec := env.get("/accept_invite?token="+inviteToken, bob)
	if !strings.Contains(rec.Body.String(), "invalid, expired") {
		t.Fatalf("expired invite body %q", rec.Body.String())
	}

	users := store.NewUserStore(env.db)
	bobUser, _ := users.GetByEmail("bob@example.com")
	member, err := store.NewHouseholdStore(env.db).GetMember(household.ID, bobUser.ID)
	if err != nil {
		t.Fatalf("membership check: %v", err)
	}
	if member != nil {
		t.Fatal("expired invitation must not grant membership")
	}
}

func TestSignedInAcceptJoinsDirectly(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "Alice", "alice@example.com", "sufficiently-long")
	household := env.createHousehold(t, alice, "The Smiths")

	bob := env.signup(t, "Bob", "bob@example.com", "sufficiently-long")

	env.postForm("/add_member", alice, url.Values{
		"household_id": {fmt.Sprint(household.ID)},
		"email":        {"bob@example.com"},
	})
	inviteToken := env.email.lastInvitation("bob@example.com")

	rec := env.get("/accept_invite?token="+inviteToken, bob)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "The Smiths") {
		t.Fatalf("accept: status %d body %q", rec.Code, rec.Body.String())
	}

	users := store.NewUserStore(env.db)
	bobUser, _ := users.GetByEmail("bob@example.com")
	member, _ := store.NewHouseholdStore(env.db).GetMember(household.ID, bobUser.ID)
	if member == nil {
		t.Fatal("bob should be a member after accepting")
	}

	// The token is consumed.
	rec = env.get("/accept_invite?token="+inviteToken, bob)
	if !strings.Contains(rec.Body.String(), "invalid, expired") {
		t.Fatalf("reused invite body %q", rec.Body.String())
	}
}

func TestAddFoodWithEstimate(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "Alice", "alice@example.com", "sufficiently-long")
	household := env.createHousehold(t, alice, "The Smiths")

	users := store.NewUserStore(env.db)
	aliceUser, _ := users.GetByEmail("alice@example.com")

	rec := env.postForm("/add_food", alice, url.Values{
		"household_id": {fmt.Sprint(household.ID)},
		"user_id":      {fmt.Sprint(aliceUser.ID)},
		"food_name":    {"french fries"},
		"portion_size": {"1 medium serving"},
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("add food: status %d", rec.Code)
	}

	entries, err := store.NewFoodLogStore(env.db).List(household.ID, store.ListFilter{})
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.FoodName != "french fries" || e.UserName != "Alice" {
		t.Errorf("entry = %+v", e)
	}
	if e.Calories == nil || *e.Calories != 270 {
		t.Errorf("calories = %v, want 270", e.Calories)
	}
	if e.Fat == nil || *e.Fat != 14 {
		t.Errorf("fat = %v, want 14", e.Fat)
	}
}

func TestAddFoodSurvivesEstimationFailure(t *testing.T) {
	env := newTestEnv(t)
	env.estimator.err = nutrition.ErrUnavailable

	alice := env.signup(t, "Alice", "alice@example.com", "sufficiently-long")
	household := env.createHousehold(t, alice, "The Smiths")
	users := store.NewUserStore(env.db)
	aliceUser, _ := users.GetByEmail("alice@example.com")

	rec := env.postForm("/add_food", alice, url.Values{
		"household_id": {fmt.Sprint(household.ID)},
		"user_id":      {fmt.Sprint(aliceUser.ID)},
		"food_name":    {"mystery stew"},
		"portion_size": {"1 bowl"},
	})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("add food: status %d", rec.Code)
	}

	entries, _ := store.NewFoodLogStore(env.db).List(household.ID, store.ListFilter{})
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Calories != nil {
		t.Errorf("calories should stay unset when estimation fails, got %v", *entries[0].Calories)
	}
}

func TestAddFoodForbiddenForNonMember(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "Alice", "alice@example.com", "sufficiently-long")
	household := env.createHousehold(t, alice, "The Joneses")

	bob := env.signup(t, "Bob", "bob@example.com", "sufficiently-long")
	users := store.NewUserStore(env.db)
	bobUser, _ := users.GetByEmail("bob@example.com")

	rec := env.postForm("/add_food", bob, url.Values{
		"household_id": {fmt.Sprint(household.ID)},
		"user_id":      {fmt.Sprint(bobUser.ID)},
		"food_name":    {"stolen cake"},
		"portion_size": {"1 slice"},
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-member add food: status %d, want 403", rec.Code)
	}

	entries, _ := store.NewFoodLogStore(env.db).List(household.ID, store.ListFilter{})
	if len(entries) != 0 {
		t.Fatalf("no entry should be written, got %d", len(entries))
	}
}

func TestMembersForbiddenForNonMember(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "Alice", "alice@example.com", "sufficiently-long")
	household := env.createHousehold(t, alice, "The Joneses")

	bob := env.signup(t, "Bob", "bob@example.com", "sufficiently-long")
	rec := env.get(fmt.Sprintf("/get_household_members/%d", household.ID), bob)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-member members list: status %d, want 403", rec.Code)
	}
}

func TestViewLogsForbiddenForNonMember(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "Alice", "alice@example.com", "sufficiently-long")
	household := env.createHousehold(t, alice, "The Joneses")

	bob := env.signup(t, "Bob", "bob@example.com", "sufficiently-long")
	env.createHousehold(t, bob, "Bob's Place")

	rec := env.get(fmt.Sprintf("/view_logs?household_id=%d", household.ID), bob)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-member view logs: status %d, want 403", rec.Code)
	}
}

func TestBackupNowAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "Alice", "alice@example.com", "sufficiently-long")
	bob := env.signup(t, "Bob", "bob@example.com", "sufficiently-long")

	rec := env.postForm("/backup/now", bob, url.Values{})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("member backup: status %d, want 403", rec.Code)
	}
	if env.backups.runs != 0 {
		t.Fatal("backup should not have run")
	}

	rec = env.postForm("/backup/now", alice, url.Values{})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("admin backup: status %d body %q", rec.Code, rec.Body.String())
	}
	if env.backups.runs != 1 {
		t.Fatalf("backup runs = %d, want 1", env.backups.runs)
	}
}

func TestBackupFailureShowsError(t *testing.T) {
	env := newTestEnv(t)
	env.backups.err = errors.New("bucket unreachable")

	alice := env.signup(t, "Alice", "alice@example.com", "sufficiently-long")
	rec := env.postForm("/backup/now", alice, url.Values{})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Backup failed") {
		t.Fatalf("failed backup: status %d body %q", rec.Code, rec.Body.String())
	}
}

func TestProfileUpdate(t *testing.T) {
	env := newTestEnv(t)
	alice := env.signup(t, "Alice", "alice@example.com", "sufficiently-long")

	rec := env.postForm("/profile", alice, url.Values{"name": {"Alicia"}})
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("profile update: status %d", rec.Code)
	}

	user, _ := store.NewUserStore(env.db).GetByEmail("alice@example.com")
	if user.Name != "Alicia" {
		t.Errorf("name = %q, want Alicia", user.Name)
	}
}

func TestLoginRateLimited(t *testing.T) {
	env := newTestEnv(t)

	var last int
	for i := 0; i < 11; i++ {
		rec := env.postForm("/login", nil, url.Values{
			"email":    {"alice@example.com"},
			"password": {"whatever-password"},
		})
		last = rec.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("11th login attempt: status %d, want 429", last)
	}
}
