package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"propsignal/internal/db"
)

// Handlers contains HTTP handlers and their dependencies.
type Handlers struct {
	db  *db.DB
	log zerolog.Logger
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(database *db.DB, log zerolog.Logger) *Handlers {
	return &Handlers{db: database, log: log.With().Str("component", "api").Logger()}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Health handles GET /api/health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	properties, err := h.db.GetPropertyCount()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	summaries, err := h.db.GetSummaryCount()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"properties": properties,
		"scored":     summaries,
	})
}

// ListProperties handles GET /api/properties with limit/offset pagination.
func (h *Handlers) ListProperties(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 100
	offset := 0
	if v := q.Get("limit"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 && val <= 500 {
			limit = val
		}
	}
	if v := q.Get("offset"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val >= 0 {
			offset = val
		}
	}

	properties, err := h.db.ListPropertiesPage(limit, offset)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"properties": properties,
		"count":      len(properties),
	})
}

// GetProperty handles GET /api/properties/{id}.
func (h *Handlers) GetProperty(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid property ID", http.StatusBadRequest)
		return
	}

	property, err := h.db.GetProperty(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "property not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, property)
}

// GetPropertySignals handles GET /api/properties/{id}/signals. A property
// that exists but has not been scored yet answers 202 so clients can
// distinguish "processing" from "unknown".
func (h *Handlers) GetPropertySignals(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid property ID", http.StatusBadRequest)
		return
	}

	if _, err := h.db.GetProperty(id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "property not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	summary, err := h.db.GetSignalSummary(id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeJSON(w, http.StatusAccepted, map[string]string{
				"status":  "processing",
				"message": "signals not computed yet",
			})
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// GetResolutionStats handles GET /api/resolution/stats.
func (h *Handlers) GetResolutionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.db.GetResolutionStats()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"sources": stats})
}

// GetLatestRun handles GET /api/runs/latest.
func (h *Handlers) GetLatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.db.GetLatestPipelineRun()
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "no runs recorded", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, run)
}
