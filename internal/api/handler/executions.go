package handler

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	mw "github.com/teampulse/teampulse/internal/api/middleware"
	"github.com/teampulse/teampulse/internal/api/response"
	"github.com/teampulse/teampulse/internal/executions"
)

const (
	defaultExecutionLimit = 20
	maxExecutionLimit     = 100
)

// NewListExecutionsHandler returns an http.HandlerFunc for
// GET /api/v1/executions. Results are scoped to the authenticated
// organization; admin keys may pass all_organizations=true or another
// organization_id.
func NewListExecutionsHandler(svc *executions.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, ok := resolveOrgScope(w, r)
		if !ok {
			return
		}

		limit := defaultExecutionLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"limit must be a positive integer", nil)
				return
			}
			limit = min(n, maxExecutionLimit)
		}

		execs, err := svc.Recent(r.Context(), scope, limit)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to list executions", nil)
			return
		}

		response.JSON(w, execs)
	}
}

// NewExecutionStatsHandler returns an http.HandlerFunc for
// GET /api/v1/executions/stats.
func NewExecutionStatsHandler(svc *executions.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		scope, ok := resolveOrgScope(w, r)
		if !ok {
			return
		}

		days := 0
		if raw := r.URL.Query().Get("days"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > 365 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"days must be between 1 and 365", nil)
				return
			}
			days = n
		}

		stats, err := svc.Stats(r.Context(), scope, days)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to compute execution stats", nil)
			return
		}

		response.JSON(w, stats)
	}
}

// resolveOrgScope picks the organization filter for a read endpoint from the
// authenticated key plus optional admin query parameters. A false return
// means an error response was already written.
func resolveOrgScope(w http.ResponseWriter, r *http.Request) (*uuid.UUID, bool) {
	orgID, ok := mw.GetOrgID(r)
	if !ok {
		response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing organization", nil)
		return nil, false
	}

	admin := hasAdminScope(r)
	q := r.URL.Query()

	if q.Get("all_organizations") == "true" {
		if !admin {
			response.Error(w, http.StatusForbidden, "FORBIDDEN",
				"all_organizations requires the admin scope", nil)
			return nil, false
		}
		return nil, true
	}

	if raw := q.Get("organization_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"organization_id must be a valid UUID", nil)
			return nil, false
		}
		if id != orgID && !admin {
			response.Error(w, http.StatusForbidden, "FORBIDDEN",
				"Cannot read another organization's executions", nil)
			return nil, false
		}
		return &id, true
	}

	return &orgID, true
}
