package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/dchurch/fridge/internal/auth"
	"github.com/dchurch/fridge/internal/model"
	"github.com/dchurch/fridge/internal/store"
)

// BackupRunner triggers on-demand backups.
type BackupRunner interface {
	Enabled() bool
	RunNow(ctx context.Context) (int64, error)
}

type ProfileHandler struct {
	userStore   *store.UserStore
	backupStore *store.BackupStore
	backups     BackupRunner
	logger      *slog.Logger
}

func NewProfileHandler(us *store.UserStore, bs *store.BackupStore, br BackupRunner, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{
		userStore:   us,
		backupStore: bs,
		backups:     br,
		logger:      logger,
	}
}

func (h *ProfileHandler) Page(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, r, r.URL.Query().Get("msg"), "")
}

func (h *ProfileHandler) renderPage(w http.ResponseWriter, r *http.Request, msg, errMsg string) {
	ac, _ := auth.FromContext(r.Context())

	var backups []model.Backup
	if auth.IsAdmin(r.Context()) {
		var err error
		backups, err = h.backupStore.List(10)
		if err != nil {
			h.logger.Error("list backups", "error", err)
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
	}

	render(w, h.logger, "profile.html", map[string]any{
		"Name":    ac.Name,
		"Email":   ac.Email,
		"Role":    ac.Role,
		"IsAdmin": auth.IsAdmin(r.Context()),
		"Backups": backups,
		"Message": msg,
		"Error":   errMsg,
	})
}

func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		h.renderPage(w, r, "", "Name is required")
		return
	}

	userID := auth.UserID(r.Context())
	if _, err := h.userStore.UpdateName(userID, name); err != nil {
		h.logger.Error("update name", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/profile?msg="+url.QueryEscape("Profile updated"), http.StatusSeeOther)
}

// BackupNow triggers an immediate backup. Admin only, enforced by routing.
func (h *ProfileHandler) BackupNow(w http.ResponseWriter, r *http.Request) {
	if !h.backups.Enabled() {
		h.renderPage(w, r, "", "Backups are not configured")
		return
	}

	if _, err := h.backups.RunNow(r.Context()); err != nil {
		h.logger.Error("run backup", "error", err)
		h.renderPage(w, r, "", "Backup failed: "+err.Error())
		return
	}

	http.Redirect(w, r, "/profile?msg="+url.QueryEscape("Backup completed"), http.StatusSeeOther)
}
