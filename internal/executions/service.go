// Package executions provides the audit trail for job invocations: one
// record per (job, organization) attempt, opened before the job body runs
// and closed exactly once after it returns.
package executions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/teampulse/teampulse/internal/store"
	"github.com/teampulse/teampulse/pkg/models"
)

// Service records and reports job executions. It is deliberately dumb: it
// never interprets job results, only stores what the runner tells it.
type Service struct {
	store store.Store
}

func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// Start creates a running execution record before the job body runs.
// OrgID is nil for globally scoped jobs.
func (s *Service) Start(ctx context.Context, jobID, jobName string, orgID *uuid.UUID, metadata models.Metadata) (*models.Execution, error) {
	exec := &models.Execution{
		ID:             uuid.New(),
		JobID:          jobID,
		JobName:        jobName,
		OrganizationID: orgID,
		Status:         models.ExecutionStatusRunning,
		StartedAt:      time.Now().UTC(),
		Metadata:       metadata,
	}
	if err := s.store.CreateExecution(ctx, exec); err != nil {
		return nil, fmt.Errorf("start execution for %s: %w", jobID, err)
	}
	return exec, nil
}

// Complete transitions a running record to completed.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, notificationsCreated int, metadata models.Metadata) error {
	if err := s.store.CompleteExecution(ctx, id, notificationsCreated, metadata); err != nil {
		return fmt.Errorf("complete execution %s: %w", id, err)
	}
	return nil
}

// Fail transitions a running record to failed, keeping whatever partial
// notification count the job achieved before failing.
func (s *Service) Fail(ctx context.Context, id uuid.UUID, notificationsCreated int, errMsg string, metadata models.Metadata) error {
	if err := s.store.FailExecution(ctx, id, notificationsCreated, errMsg, metadata); err != nil {
		return fmt.Errorf("fail execution %s: %w", id, err)
	}
	return nil
}

// Recent lists the most recent executions, optionally filtered to one
// organization.
func (s *Service) Recent(ctx context.Context, orgID *uuid.UUID, limit int) ([]*models.Execution, error) {
	return s.store.ListRecentExecutions(ctx, orgID, limit)
}

// Stats aggregates execution outcomes over the trailing daysBack days.
func (s *Service) Stats(ctx context.Context, orgID *uuid.UUID, daysBack int) (*store.ExecutionStats, error) {
	if daysBack <= 0 {
		daysBack = 7
	}
	since := time.Now().UTC().AddDate(0, 0, -daysBack)
	return s.store.GetExecutionStats(ctx, orgID, since)
}

// Cleanup deletes terminal execution records started before the cutoff and
// returns how many were removed.
func (s *Service) Cleanup(ctx context.Context, cutoff time.Time) (int64, error) {
	removed, err := s.store.DeleteExecutionsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup executions: %w", err)
	}
	return removed, nil
}
