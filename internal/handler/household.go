package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dchurch/fridge/internal/auth"
	"github.com/dchurch/fridge/internal/middleware"
	"github.com/dchurch/fridge/internal/model"
	"github.com/dchurch/fridge/internal/store"
)

type HouseholdHandler struct {
	householdStore  *store.HouseholdStore
	invitationStore *store.InvitationStore
	userStore       *store.UserStore
	sessionStore    *store.SessionStore
	emailClient     EmailSender
	logger          *slog.Logger
}

func NewHouseholdHandler(
	hs *store.HouseholdStore,
	is *store.InvitationStore,
	us *store.UserStore,
	ss *store.SessionStore,
	ec EmailSender,
	logger *slog.Logger,
) *HouseholdHandler {
	return &HouseholdHandler{
		householdStore:  hs,
		invitationStore: is,
		userStore:       us,
		sessionStore:    ss,
		emailClient:     ec,
		logger:          logger,
	}
}

type householdView struct {
	Household model.Household
	Members   []model.Member
	Pending   []model.Invitation
}

func (h *HouseholdHandler) ManagePage(w http.ResponseWriter, r *http.Request) {
	h.renderManage(w, r, r.URL.Query().Get("msg"), "")
}

func (h *HouseholdHandler) renderManage(w http.ResponseWriter, r *http.Request, msg, errMsg string) {
	userID := auth.UserID(r.Context())

	households, err := h.householdStore.ListForUser(userID)
	if err != nil {
		h.logger.Error("list households", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	views := make([]householdView, 0, len(households))
	for _, hh := range households {
		members, err := h.householdStore.ListMembers(hh.ID)
		if err != nil {
			h.logger.Error("list members", "error", err)
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		invitations, err := h.invitationStore.ListByHousehold(hh.ID)
		if err != nil {
			h.logger.Error("list invitations", "error", err)
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		pending := invitations[:0]
		for _, inv := range invitations {
			if inv.Status == model.InvitationPending {
				pending = append(pending, inv)
			}
		}
		views = append(views, householdView{Household: hh, Members: members, Pending: pending})
	}

	render(w, h.logger, "manage_household.html", map[string]any{
		"Households": views,
		"Message":    msg,
		"Error":      errMsg,
	})
}

func (h *HouseholdHandler) Create(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		h.renderManage(w, r, "", "Household name is required")
		return
	}

	userID := auth.UserID(r.Context())
	if _, err := h.householdStore.Create(name, userID); err != nil {
		h.logger.Error("create household", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/manage_household", http.StatusSeeOther)
}

// Invite creates an invitation for the given household and emails the link.
// Only existing members may invite.
func (h *HouseholdHandler) Invite(w http.ResponseWriter, r *http.Request) {
	householdID, err := strconv.ParseInt(r.FormValue("household_id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid household id", http.StatusBadRequest)
		return
	}
	emailAddr := strings.ToLower(strings.TrimSpace(r.FormValue("email")))
	if emailAddr == "" {
		h.renderManage(w, r, "", "Email is required")
		return
	}

	ac, _ := auth.FromContext(r.Context())
	member, err := h.householdStore.GetMember(householdID, ac.UserID)
	if err != nil {
		h.logger.Error("membership check", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if member == nil {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	household, err := h.householdStore.GetByID(householdID)
	if err != nil || household == nil {
		h.logger.Error("household lookup", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	inv, err := h.invitationStore.Create(householdID, emailAddr)
	if err != nil {
		h.logger.Error("create invitation", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	if err := h.emailClient.SendInvitation(emailAddr, ac.Name, household.Name, inv.Token); err != nil {
		h.logger.Error("send invitation email", "error", err)
	}

	http.Redirect(w, r, "/manage_household?msg="+url.QueryEscape("Invitation sent to "+emailAddr), http.StatusSeeOther)
}

// Leave removes the requester from a household.
func (h *HouseholdHandler) Leave(w http.ResponseWriter, r *http.Request) {
	householdID, err := strconv.ParseInt(r.FormValue("household_id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid household id", http.StatusBadRequest)
		return
	}

	userID := auth.UserID(r.Context())
	member, err := h.householdStore.GetMember(householdID, userID)
	if err != nil {
		h.logger.Error("membership check", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if member == nil {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if err := h.householdStore.RemoveMember(householdID, userID); err != nil {
		h.logger.Error("remove member", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/manage_household?msg="+url.QueryEscape("You left the household"), http.StatusSeeOther)
}

// Members returns the household's members as JSON for the member picker.
// Requesting a household you are not in is a 403.
func (h *HouseholdHandler) Members(w http.ResponseWriter, r *http.Request) {
	householdID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid household id", http.StatusBadRequest)
		return
	}

	userID := auth.UserID(r.Context())
	member, err := h.householdStore.GetMember(householdID, userID)
	if err != nil {
		h.logger.Error("membership check", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if member == nil {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	members, err := h.householdStore.ListMembers(householdID)
	if err != nil {
		h.logger.Error("list members", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, members)
}

// AcceptInvite handles the invitation link. A signed-in user joins
// immediately; anyone else is sent to registration with the token carried
// through.
func (h *HouseholdHandler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		render(w, h.logger, "accept_invite.html", map[string]any{
			"Success": false,
			"Error":   "Missing invitation token",
		})
		return
	}

	inv, err := h.invitationStore.GetPendingByToken(token)
	if err != nil {
		h.logger.Error("invite lookup", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if inv == nil {
		render(w, h.logger, "accept_invite.html", map[string]any{
			"Success": false,
			"Error":   "This invitation is invalid, expired, or already used. Ask for a new one.",
		})
		return
	}

	user := h.sessionUser(r)
	if user == nil {
		http.Redirect(w, r, "/register?invite="+url.QueryEscape(token), http.StatusSeeOther)
		return
	}

	existing, err := h.householdStore.GetMember(inv.HouseholdID, user.ID)
	if err != nil {
		h.logger.Error("membership check", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	if existing == nil {
		if _, err := h.householdStore.AddMember(inv.HouseholdID, user.ID); err != nil {
			h.logger.Error("add invited member", "error", err)
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
	}
	if err := h.invitationStore.MarkAccepted(inv.ID); err != nil {
		h.logger.Error("mark invitation accepted", "error", err)
	}

	household, err := h.householdStore.GetByID(inv.HouseholdID)
	if err != nil || household == nil {
		h.logger.Error("household lookup", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	render(w, h.logger, "accept_invite.html", map[string]any{
		"Success":       true,
		"HouseholdName": household.Name,
	})
}

// sessionUser resolves the session cookie on a public route, or nil.
func (h *HouseholdHandler) sessionUser(r *http.Request) *model.User {
	cookie, err := r.Cookie(middleware.SessionCookieName())
	if err != nil || cookie.Value == "" {
		return nil
	}
	sess, err := h.sessionStore.GetByToken(cookie.Value)
	if err != nil || sess == nil {
		return nil
	}
	user, err := h.userStore.GetByID(sess.UserID)
	if err != nil {
		return nil
	}
	return user
}
