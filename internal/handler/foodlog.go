package handler

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dchurch/fridge/internal/auth"
	"github.com/dchurch/fridge/internal/store"
)

type FoodLogHandler struct {
	foodLogStore   *store.FoodLogStore
	householdStore *store.HouseholdStore
	estimator      Estimator
	logger         *slog.Logger
}

func NewFoodLogHandler(
	fs *store.FoodLogStore,
	hs *store.HouseholdStore,
	est Estimator,
	logger *slog.Logger,
) *FoodLogHandler {
	return &FoodLogHandler{
		foodLogStore:   fs,
		householdStore: hs,
		estimator:      est,
		logger:         logger,
	}
}

func (h *FoodLogHandler) Home(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	ac, _ := auth.FromContext(r.Context())
	households, err := h.householdStore.ListForUser(ac.UserID)
	if err != nil {
		h.logger.Error("list households", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	render(w, h.logger, "home.html", map[string]any{
		"Name":       ac.Name,
		"UserID":     ac.UserID,
		"Households": households,
		"Error":      r.URL.Query().Get("err"),
	})
}

// AddFood logs an entry for a household member. The entry is committed
// before estimation runs, so a failed or slow estimate never loses the
// logged food.
func (h *FoodLogHandler) AddFood(w http.ResponseWriter, r *http.Request) {
	householdID, err := strconv.ParseInt(r.FormValue("household_id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid household id", http.StatusBadRequest)
		return
	}
	targetUserID, err := strconv.ParseInt(r.FormValue("user_id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid user id", http.StatusBadRequest)
		return
	}
	foodName := strings.TrimSpace(r.FormValue("food_name"))
	portion := strings.TrimSpace(r.FormValue("portion_size"))
	if foodName == "" || portion == "" {
		http.Redirect(w, r, "/?err="+url.QueryEscape("Food and portion are required"), http.StatusSeeOther)
		return
	}

	// Both the requester and the person being logged for must belong to
	// the household.
	requesterID := auth.UserID(r.Context())
	for _, id := range []int64{requesterID, targetUserID} {
		member, err := h.householdStore.GetMember(householdID, id)
		if err != nil {
			h.logger.Error("membership check", "error", err)
			http.Error(w, "Internal error", http.StatusInternalServerError)
			return
		}
		if member == nil {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	entry, err := h.foodLogStore.Create(householdID, targetUserID, foodName, portion)
	if err != nil {
		h.logger.Error("create food log entry", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	if est, err := h.estimator.Estimate(r.Context(), foodName, portion); err != nil {
		h.logger.Warn("nutrition estimate unavailable", "food", foodName, "error", err)
	} else if _, err := h.foodLogStore.UpdateNutrition(entry.ID, est.Calories, est.Protein, est.Carbs, est.Fat); err != nil {
		h.logger.Error("update nutrition", "error", err)
	}

	http.Redirect(w, r, "/view_logs?household_id="+strconv.FormatInt(householdID, 10), http.StatusSeeOther)
}

func (h *FoodLogHandler) ViewLogs(w http.ResponseWriter, r *http.Request) {
	ac, _ := auth.FromContext(r.Context())
	households, err := h.householdStore.ListForUser(ac.UserID)
	if err != nil {
		h.logger.Error("list households", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	data := map[string]any{
		"Households": households,
		"From":       r.URL.Query().Get("from"),
		"To":         r.URL.Query().Get("to"),
	}

	if len(households) == 0 {
		data["SelectedHousehold"] = int64(0)
		render(w, h.logger, "view_logs.html", data)
		return
	}

	householdID := households[0].ID
	if raw := r.URL.Query().Get("household_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			http.Error(w, "invalid household id", http.StatusBadRequest)
			return
		}
		householdID = id
	}
	data["SelectedHousehold"] = householdID

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

	filter, errMsg := logFilter(r)
	if errMsg != "" {
		data["Error"] = errMsg
		render(w, h.logger, "view_logs.html", data)
		return
	}

	entries, err := h.foodLogStore.List(householdID, filter)
	if err != nil {
		h.logger.Error("list food log", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	data["Entries"] = entries

	today, err := h.foodLogStore.DailyCalories(householdID, ac.UserID, time.Now().UTC())
	if err != nil {
		h.logger.Error("daily calories", "error", err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	data["TodayCalories"] = today

	render(w, h.logger, "view_logs.html", data)
}

func logFilter(r *http.Request) (store.ListFilter, string) {
	var filter store.ListFilter

	if raw := r.URL.Query().Get("user_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, "Invalid user filter"
		}
		filter.UserID = &id
	}
	if raw := r.URL.Query().Get("from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, "Invalid from date, use YYYY-MM-DD"
		}
		filter.From = &t
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filter, "Invalid to date, use YYYY-MM-DD"
		}
		// Inclusive end of day.
		end := t.Add(24*time.Hour - time.Second)
		filter.To = &end
	}
	return filter, ""
}
