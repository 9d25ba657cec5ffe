// Package handler contains the HTTP handlers for the trigger surface. The
// handlers validate and scope requests; the actual work happens in the runner
// and executions packages.
package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	mw "github.com/teampulse/teampulse/internal/api/middleware"
	"github.com/teampulse/teampulse/internal/api/response"
	"github.com/teampulse/teampulse/internal/runner"
)

// RunTrigger defines the interface the handler depends on.
type RunTrigger interface {
	Trigger(ctx context.Context, jobID string, orgID *uuid.UUID, dryRun bool) (*runner.Report, error)
}

// NewRunHandler returns an http.HandlerFunc for POST /api/v1/runs. The run
// executes synchronously; the response carries the full report.
//
// Keys without the admin scope are pinned to their own organization. Admin
// keys may target another organization or, by omitting organization_id, all
// of them.
func NewRunHandler(svc RunTrigger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orgID, ok := mw.GetOrgID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing organization", nil)
			return
		}

		var req struct {
			JobID          string `json:"job_id"`
			OrganizationID string `json:"organization_id"`
			AllOrgs        bool   `json:"all_organizations"`
			DryRun         bool   `json:"dry_run"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		target := &orgID
		admin := hasAdminScope(r)
		switch {
		case req.AllOrgs:
			if !admin {
				response.Error(w, http.StatusForbidden, "FORBIDDEN",
					"all_organizations requires the admin scope", nil)
				return
			}
			target = nil
		case req.OrganizationID != "":
			id, err := uuid.Parse(req.OrganizationID)
			if err != nil {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"organization_id must be a valid UUID", nil)
				return
			}
			if id != orgID && !admin {
				response.Error(w, http.StatusForbidden, "FORBIDDEN",
					"Cannot trigger runs for another organization", nil)
				return
			}
			target = &id
		}

		report, err := svc.Trigger(r.Context(), req.JobID, target, req.DryRun)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"An unexpected error occurred", nil)
			return
		}

		response.JSON(w, report)
	}
}

func hasAdminScope(r *http.Request) bool {
	for _, s := range mw.GetScopes(r) {
		if s == "admin" {
			return true
		}
	}
	return false
}
