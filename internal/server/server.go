package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/dchurch/fridge/internal/handler"
	"github.com/dchurch/fridge/internal/middleware"
	"github.com/dchurch/fridge/internal/store"
	"github.com/dchurch/fridge/web"
)

type Server struct {
	db           *sql.DB
	authH        *handler.AuthHandler
	householdH   *handler.HouseholdHandler
	foodLogH     *handler.FoodLogHandler
	profileH     *handler.ProfileHandler
	sessionStore *store.SessionStore
	userStore    *store.UserStore
	rateLimiter  *middleware.RateLimiter
	logger       *slog.Logger
}

func New(
	db *sql.DB,
	emailClient handler.EmailSender,
	estimator handler.Estimator,
	backups handler.BackupRunner,
	logger *slog.Logger,
) *Server {
	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	verificationStore := store.NewVerificationTokenStore(db)
	invitationStore := store.NewInvitationStore(db)
	householdStore := store.NewHouseholdStore(db)
	foodLogStore := store.NewFoodLogStore(db)
	backupStore := store.NewBackupStore(db)

	return &Server{
		db: db,
		authH: handler.NewAuthHandler(
			userStore, sessionStore, verificationStore, invitationStore,
			householdStore, emailClient, logger.With("component", "auth"),
		),
		householdH: handler.NewHouseholdHandler(
			householdStore, invitationStore, userStore, sessionStore,
			emailClient, logger.With("component", "household"),
		),
		foodLogH: handler.NewFoodLogHandler(
			foodLogStore, householdStore, estimator, logger.With("component", "foodlog"),
		),
		profileH: handler.NewProfileHandler(
			userStore, backupStore, backups, logger.With("component", "profile"),
		),
		sessionStore: sessionStore,
		userStore:    userStore,
		rateLimiter:  middleware.NewRateLimiter(),
		logger:       logger,
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// VerificationStore returns the verification token store for cleanup tasks.
func (s *Server) VerificationStore() *store.VerificationTokenStore {
	return store.NewVerificationTokenStore(s.db)
}

// InvitationStore returns the invitation store for cleanup tasks.
func (s *Server) InvitationStore() *store.InvitationStore {
	return store.NewInvitationStore(s.db)
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes (no auth required)
	outerMux.HandleFunc("GET /login", s.authH.LoginPage)
	outerMux.HandleFunc("POST /login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /register", s.authH.RegisterPage)
	outerMux.HandleFunc("POST /register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("GET /verify", s.authH.Verify)
	outerMux.HandleFunc("POST /resend_verification", s.rateLimitedHandler(s.authH.ResendVerification))
	outerMux.HandleFunc("GET /accept_invite", s.householdH.AcceptInvite)
	outerMux.Handle("GET /static/", http.FileServerFS(web.Static))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Protected routes, wrapped with RequireAuth middleware
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.userStore)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /", s.foodLogH.Home)
	mux.HandleFunc("POST /logout", s.authH.Logout)
	mux.HandleFunc("POST /logout_all", s.authH.LogoutAll)

	mux.HandleFunc("GET /manage_household", s.householdH.ManagePage)
	mux.HandleFunc("POST /create_household", s.householdH.Create)
	mux.HandleFunc("POST /add_member", s.rateLimitedHandler(s.householdH.Invite))
	mux.HandleFunc("GET /get_household_members/{id}", s.householdH.Members)
	mux.HandleFunc("POST /leave_household", s.householdH.Leave)

	mux.HandleFunc("POST /add_food", s.foodLogH.AddFood)
	mux.HandleFunc("GET /view_logs", s.foodLogH.ViewLogs)

	mux.HandleFunc("GET /profile", s.profileH.Page)
	mux.HandleFunc("POST /profile", s.profileH.Update)
	mux.Handle("POST /backup/now", middleware.RequireAdmin(http.HandlerFunc(s.profileH.BackupNow)))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r) + " " + r.URL.Path
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}
