package engine

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Registry is the in-memory catalog of job instances, keyed by job id. It is
// built at startup and safe to share read-only across concurrent invocations
// for different organizations; it holds no per-execution state.
type Registry struct {
	mu        sync.RWMutex
	jobs      map[string]Job
	schedules map[string]cron.Schedule
	order     []string
}

func NewRegistry() *Registry {
	return &Registry{
		jobs:      make(map[string]Job),
		schedules: make(map[string]cron.Schedule),
	}
}

// Register adds a job to the catalog. Re-registering an id replaces the prior
// instance but keeps its original position in the listing order. The job's
// schedule expression must parse as standard cron.
func (r *Registry) Register(job Job) error {
	sched, err := cron.ParseStandard(job.Schedule())
	if err != nil {
		return fmt.Errorf("job %q: invalid schedule %q: %w", job.ID(), job.Schedule(), err)
	}
	if err := job.ValidateConfig(job.DefaultConfig()); err != nil {
		return fmt.Errorf("job %q: invalid default config: %w", job.ID(), err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID()]; !exists {
		r.order = append(r.order, job.ID())
	}
	r.jobs[job.ID()] = job
	r.schedules[job.ID()] = sched
	return nil
}

// Get resolves a job by id.
func (r *Registry) Get(id string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	return job, ok
}

// All returns every registered job exactly once, in registration order.
func (r *Registry) All() []Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Job, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.jobs[id])
	}
	return out
}

// NextRun returns when the job's informational schedule would next fire.
func (r *Registry) NextRun(id string, from time.Time) (time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sched, ok := r.schedules[id]
	if !ok {
		return time.Time{}, fmt.Errorf("job not found: %s", id)
	}
	return sched.Next(from), nil
}

// ExecOptions parameterizes a single job invocation.
type ExecOptions struct {
	StartedAt time.Time
	OrgID     uuid.UUID
	DryRun    bool
	// Config overrides individual default configuration entries.
	Config Config
}

// ExecuteJob resolves and runs one job. Every failure mode — unknown id,
// invalid config, a returned failure, even a panic — comes back as a failed
// Result; it never crashes the caller.
func (r *Registry) ExecuteJob(ctx context.Context, jobID string, opts ExecOptions) (result Result) {
	job, ok := r.Get(jobID)
	if !ok {
		return Result{Error: fmt.Sprintf("job not found: %s", jobID)}
	}

	cfg := make(Config, len(job.DefaultConfig())+len(opts.Config))
	maps.Copy(cfg, job.DefaultConfig())
	maps.Copy(cfg, opts.Config)
	if err := job.ValidateConfig(cfg); err != nil {
		return Result{Error: fmt.Sprintf("invalid config for job %s: %v", jobID, err)}
	}

	startedAt := opts.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}
	ec := &ExecContext{
		Config:    cfg,
		StartedAt: startedAt,
		OrgID:     opts.OrgID,
		DryRun:    opts.DryRun,
	}

	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("job panicked", "job_id", jobID, "organization_id", opts.OrgID, "panic", rec)
			result = Result{Error: fmt.Sprintf("job %s panicked: %v", jobID, rec)}
		}
	}()

	return job.Execute(ctx, ec)
}

// ExecuteAll runs every organization-scoped job sequentially for one
// organization, in registration order. One job's failure never prevents
// subsequent jobs from running.
func (r *Registry) ExecuteAll(ctx context.Context, orgID uuid.UUID, dryRun bool) map[string]Result {
	results := make(map[string]Result)
	for _, job := range r.All() {
		if job.Scope() != ScopeOrganization {
			continue
		}
		results[job.ID()] = r.ExecuteJob(ctx, job.ID(), ExecOptions{
			StartedAt: time.Now().UTC(),
			OrgID:     orgID,
			DryRun:    dryRun,
		})
	}
	return results
}
