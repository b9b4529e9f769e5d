package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dchurch/fridge/internal/auth"
	"github.com/dchurch/fridge/internal/middleware"
	"github.com/dchurch/fridge/internal/store"
)

type AuthHandler struct {
	userStore         *store.UserStore
	sessionStore      *store.SessionStore
	verificationStore *store.VerificationTokenStore
	invitationStore   *store.InvitationStore
	householdStore    *store.HouseholdStore
	emailClient       EmailSender
	logger            *slog.Logger
}

func NewAuthHandler(
	us *store.UserStore,
	ss *store.SessionStore,
	vs *store.VerificationTokenStore,
	is *store.InvitationStore,
	hs *store.HouseholdStore,
	ec EmailSender,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		userStore:         us,
		sessionStore:      ss,
		verificationStore: vs,
		invitationStore:   is,
		householdStore:    hs,
		emailClient:       ec,
		logger:            logger,
	}
}

func (h *AuthHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	render(w, h.logger, "register.html", map[string]any{
		"InviteToken": r.URL.Query().Get("invite"),
	})
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.FormValue("name"))
	emailAddr := strings.ToLower(strings.TrimSpace(r.FormValue("email")))
	password := r.FormValue("password")
	inviteToken := r.FormValue("invite_token")

	formData := func(errMsg string) map[string]any {
		return map[string]any{
			"Error":       errMsg,
			"Name":        name,
			"Email":       emailAddr,
			"InviteToken": inviteToken,
		}
	}

	if name == "" || emailAddr == "" {
		render(w, h.logger, "register.html", formData("Name and email are required"))
		return
	}
	if err := auth.ValidatePassword(password); err != nil {
		render(w, h.logger, "register.html", formData(err.Error()))
		return
	}

	existing, err := h.userStore.GetByEmail(emailAddr)
	if err != nil {
		h.logger.Error("register lookup", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if existing != nil {
		render(w, h.logger, "register.html", formData("An account with that email already exists"))
		return
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	user, err := h.userStore.Create(emailAddr, name, hash)
	if err != nil {
		h.logger.Error("create user", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	// Registration through an invitation link: the link was delivered to
	// the invitee's mailbox, so a matching email is already proven and the
	// separate verification round trip is skipped.
	if inviteToken != "" {
		if h.acceptDuringRegistration(user.ID, emailAddr, inviteToken) {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
	}

	vt, err := h.verificationStore.Create(user.ID)
	if err != nil {
		h.logger.Error("create verification token", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	if err := h.emailClient.SendVerification(emailAddr, name, vt.Token); err != nil {
		h.logger.Error("send verification email", "error", err)
	}

	render(w, h.logger, "verify_sent.html", map[string]any{"Email": emailAddr})
}

// acceptDuringRegistration consumes the invitation if it is pending and
// addressed to the registering email. Returns true when the user was
// verified and joined in one step.
func (h *AuthHandler) acceptDuringRegistration(userID int64, emailAddr, token string) bool {
	inv, err := h.invitationStore.GetPendingByToken(token)
	if err != nil {
		h.logger.Error("invite lookup", "error", err)
		return false
	}
	if inv == nil || !strings.EqualFold(inv.Email, emailAddr) {
		return false
	}

	if err := h.userStore.SetVerified(userID); err != nil {
		h.logger.Error("set verified", "error", err)
		return false
	}
	if _, err := h.householdStore.AddMember(inv.HouseholdID, userID); err != nil {
		h.logger.Error("add invited member", "error", err)
		return false
	}
	if err := h.invitationStore.MarkAccepted(inv.ID); err != nil {
		h.logger.Error("mark invitation accepted", "error", err)
	}
	return true
}

func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		render(w, h.logger, "verify_result.html", map[string]any{
			"Success": false,
			"Error":   "Missing verification token",
		})
		return
	}

	vt, err := h.verificationStore.GetValidByToken(token)
	if err != nil {
		h.logger.Error("verify lookup", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if vt == nil {
		render(w, h.logger, "verify_result.html", map[string]any{
			"Success": false,
			"Error":   "This verification link is invalid or has expired. Register again to get a new one.",
		})
		return
	}

	if err := h.userStore.SetVerified(vt.UserID); err != nil {
		h.logger.Error("set verified", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if err := h.verificationStore.MarkUsed(vt.ID); err != nil {
		h.logger.Error("mark token used", "error", err)
	}

	render(w, h.logger, "verify_result.html", map[string]any{"Success": true})
}

// ResendVerification issues a fresh verification token for an unverified
// account. The response is the same whether or not the email exists.
func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	emailAddr := strings.ToLower(strings.TrimSpace(r.FormValue("email")))
	if emailAddr == "" {
		http.Redirect(w, r, "/login", http.StatusSeeOther)
		return
	}

	user, err := h.userStore.GetByEmail(emailAddr)
	if err != nil {
		h.logger.Error("resend lookup", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if user != nil && !user.EmailVerified {
		vt, err := h.verificationStore.Create(user.ID)
		if err != nil {
			h.logger.Error("create verification token", "error", err)
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		if err := h.emailClient.SendVerification(emailAddr, user.Name, vt.Token); err != nil {
			h.logger.Error("send verification email", "error", err)
		}
	}

	render(w, h.logger, "verify_sent.html", map[string]any{"Email": emailAddr})
}

func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	render(w, h.logger, "login.html", map[string]any{})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	emailAddr := strings.ToLower(strings.TrimSpace(r.FormValue("email")))
	password := r.FormValue("password")

	fail := func(msg string) {
		render(w, h.logger, "login.html", map[string]any{
			"Error": msg,
			"Email": emailAddr,
		})
	}

	user, err := h.userStore.GetByEmail(emailAddr)
	if err != nil {
		h.logger.Error("login lookup", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if user == nil || !auth.CheckPassword(user.PasswordHash, password) {
		fail("Invalid email or password")
		return
	}
	if !user.EmailVerified {
		render(w, h.logger, "login.html", map[string]any{
			"Error":      "Please verify your email address first. Check your inbox for the verification link.",
			"Email":      emailAddr,
			"Unverified": true,
		})
		return
	}

	sess, err := h.sessionStore.Create(user.ID)
	if err != nil {
		h.logger.Error("create session", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	h.setSessionCookie(w, r, sess.Token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if ac, ok := auth.FromContext(r.Context()); ok {
		if err := h.sessionStore.Delete(ac.SessionID); err != nil {
			h.logger.Error("delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// LogoutAll invalidates every session the user has, on any device.
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	if ac, ok := auth.FromContext(r.Context()); ok {
		if err := h.sessionStore.DeleteByUserID(ac.UserID); err != nil {
			h.logger.Error("delete sessions", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, r *http.Request, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName(),
		Value:    token,
		Path:     "/",
		MaxAge:   90 * 24 * 60 * 60,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}
