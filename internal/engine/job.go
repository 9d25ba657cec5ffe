// Package engine holds the scheduled-job contract: the Job interface, the
// registry that catalogs and executes jobs, and the deduplication helpers
// every job uses to stay idempotent across repeated runs.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/teampulse/teampulse/pkg/models"
)

// Scope declares whether a job runs once per organization or once globally.
type Scope int

const (
	ScopeOrganization Scope = iota
	ScopeGlobal
)

func (s Scope) String() string {
	if s == ScopeGlobal {
		return "global"
	}
	return "organization"
}

// Job is one unit of scheduled work. Implementations are constructed once at
// startup, hold no per-execution state, and must be safe for concurrent
// Execute calls against different organizations.
//
// Schedule returns a standard cron expression. It is informational: an
// external trigger decides when the runner is invoked, the engine never
// schedules itself. The expression is validated at registration.
type Job interface {
	ID() string
	Name() string
	Description() string
	Schedule() string
	Scope() Scope
	DefaultConfig() Config
	ValidateConfig(cfg Config) error
	Execute(ctx context.Context, ec *ExecContext) Result
}

// Config is a job configuration map. Values may arrive as float64 when
// decoded from JSON, so lookups are type-tolerant.
type Config map[string]any

// Int returns the value for key as an int, or def when absent or not numeric.
func (c Config) Int(key string, def int) int {
	switch v := c[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// ExecContext carries everything a single invocation needs. It is created by
// the registry immediately before Execute and discarded after.
type ExecContext struct {
	// Config is the job's default configuration merged with any overrides.
	Config Config

	// StartedAt is the invocation start time. Jobs use it as "now" for all
	// derived values (days-until, lookback windows) so a run is deterministic.
	StartedAt time.Time

	// OrgID is the target organization; uuid.Nil for globally scoped jobs.
	OrgID uuid.UUID

	// DryRun suppresses notification creation; jobs still compute and report
	// what they would have created.
	DryRun bool
}

// Result is what a job returns from Execute. It is never persisted directly;
// the runner maps it onto an execution record.
type Result struct {
	Success              bool            `json:"success"`
	NotificationsCreated int             `json:"notifications_created"`
	Error                string          `json:"error,omitempty"`
	Metadata             models.Metadata `json:"metadata,omitempty"`
}

// Failure builds a failed Result preserving the partial notification count.
// Notifications created before the failure point are independent committed
// writes and are never rolled back.
func Failure(created int, err error) Result {
	return Result{NotificationsCreated: created, Error: err.Error()}
}
