// Package handler contains the HTTP handlers. Handlers render the embedded
// templates for page routes and JSON for API routes; external services
// (email, nutrition estimation) come in behind small interfaces so tests
// can stub them.
package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/dchurch/fridge/internal/nutrition"
	"github.com/dchurch/fridge/web"
)

// Estimator produces nutrition estimates for logged food.
type Estimator interface {
	Estimate(ctx context.Context, foodName, portion string) (*nutrition.Estimate, error)
}

// EmailSender delivers transactional email.
type EmailSender interface {
	Configured() bool
	SendVerification(toEmail, name, token string) error
	SendInvitation(toEmail, inviterName, householdName, token string) error
}

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"num": func(v *float64, decimals int) string {
		if v == nil {
			return ""
		}
		return fmt.Sprintf("%.*f", decimals, *v)
	},
}).ParseFS(web.Templates, "templates/*.html"))

func render(w http.ResponseWriter, logger *slog.Logger, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.ExecuteTemplate(w, name, data); err != nil {
		logger.Error("render template", "template", name, "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
