package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/teampulse/teampulse/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")
var ErrInvalidTransition = errors.New("invalid execution status transition")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	ListOrganizations(ctx context.Context) ([]*models.Organization, error)
	GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error)

	// Domain reads used by concrete jobs. All are organization-scoped.
	ListPeople(ctx context.Context, orgID uuid.UUID) ([]*models.Person, error)
	ListOverdueTasks(ctx context.Context, orgID uuid.UUID, asOf time.Time) ([]*models.Task, error)
	LastActivity(ctx context.Context, orgID uuid.UUID, since time.Time) ([]models.ActivitySignal, error)

	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotificationsSince(ctx context.Context, orgID, userID uuid.UUID, since time.Time) ([]*models.Notification, error)

	CreateExecution(ctx context.Context, e *models.Execution) error
	CompleteExecution(ctx context.Context, id uuid.UUID, notificationsCreated int, metadata models.Metadata) error
	FailExecution(ctx context.Context, id uuid.UUID, notificationsCreated int, errMsg string, metadata models.Metadata) error
	GetExecution(ctx context.Context, id uuid.UUID) (*models.Execution, error)
	ListRecentExecutions(ctx context.Context, orgID *uuid.UUID, limit int) ([]*models.Execution, error)
	GetExecutionStats(ctx context.Context, orgID *uuid.UUID, since time.Time) (*ExecutionStats, error)
	DeleteExecutionsBefore(ctx context.Context, cutoff time.Time) (int64, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
}

// ExecutionStats is an aggregate over execution records within a window.
type ExecutionStats struct {
	Total                int     `json:"total"`
	Completed            int     `json:"completed"`
	Failed               int     `json:"failed"`
	SuccessRate          float64 `json:"success_rate"`
	NotificationsCreated int     `json:"notifications_created"`
}

// executionTransitions lists the allowed status transitions for execution
// records. Running records move to exactly one terminal state.
var executionTransitions = map[string][]string{
	models.ExecutionStatusRunning: {models.ExecutionStatusCompleted, models.ExecutionStatusFailed},
}

func transitionAllowed(from, to string) bool {
	for _, t := range executionTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}
