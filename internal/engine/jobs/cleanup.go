package jobs

import (
	"context"
	"fmt"

	"github.com/teampulse/teampulse/internal/engine"
	"github.com/teampulse/teampulse/internal/executions"
	"github.com/teampulse/teampulse/pkg/models"
)

// ExecutionCleanup prunes execution records older than the retention
// horizon. It is globally scoped: the runner invokes it once per batch, not
// per organization, and it creates no notifications.
type ExecutionCleanup struct {
	execs *executions.Service
}

func NewExecutionCleanup(execs *executions.Service) *ExecutionCleanup {
	return &ExecutionCleanup{execs: execs}
}

func (j *ExecutionCleanup) ID() string   { return "execution-cleanup" }
func (j *ExecutionCleanup) Name() string { return "Execution Cleanup" }
func (j *ExecutionCleanup) Description() string {
	return "Deletes job execution records older than the retention horizon."
}
func (j *ExecutionCleanup) Schedule() string    { return "0 3 * * *" }
func (j *ExecutionCleanup) Scope() engine.Scope { return engine.ScopeGlobal }

func (j *ExecutionCleanup) DefaultConfig() engine.Config {
	return engine.Config{
		"days_to_keep": 90,
	}
}

func (j *ExecutionCleanup) ValidateConfig(cfg engine.Config) error {
	if d := cfg.Int("days_to_keep", 0); d < 7 || d > 365 {
		return fmt.Errorf("days_to_keep must be between 7 and 365, got %d", d)
	}
	return nil
}

func (j *ExecutionCleanup) Execute(ctx context.Context, ec *engine.ExecContext) engine.Result {
	daysToKeep := ec.Config.Int("days_to_keep", 90)
	cutoff := ec.StartedAt.AddDate(0, 0, -daysToKeep)

	if ec.DryRun {
		return engine.Result{
			Success:  true,
			Metadata: models.Metadata{"dry_run": true, "cutoff": cutoff},
		}
	}

	removed, err := j.execs.Cleanup(ctx, cutoff)
	if err != nil {
		return engine.Failure(0, err)
	}

	return engine.Result{
		Success: true,
		Metadata: models.Metadata{
			"deleted_records": removed,
			"cutoff":          cutoff,
		},
	}
}
