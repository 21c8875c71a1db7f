// Package api serves the read-only operator endpoints over the scored data.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"propsignal/internal/db"
)

// NewRouter creates and configures the Chi router.
func NewRouter(database *db.DB, log zerolog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(RequestLogger(log))
	r.Use(CORS)

	h := NewHandlers(database, log)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)
		r.Get("/properties", h.ListProperties)
		r.Get("/properties/{id}", h.GetProperty)
		r.Get("/properties/{id}/signals", h.GetPropertySignals)
		r.Get("/resolution/stats", h.GetResolutionStats)
		r.Get("/runs/latest", h.GetLatestRun)
	})

	return r
}
