// Package runner drives batch execution: it enumerates organizations and
// jobs, wraps every invocation with execution-record bookkeeping, and reports
// a summary. It is the only component that sees "all organizations"; the
// registry and jobs are always organization-scoped.
package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/teampulse/teampulse/internal/engine"
	"github.com/teampulse/teampulse/internal/executions"
	"github.com/teampulse/teampulse/internal/store"
	"github.com/teampulse/teampulse/pkg/models"
)

// Options filters and tunes one batch run. Zero values mean "all jobs",
// "all organizations", sequential-enough defaults.
type Options struct {
	JobID          string
	OrgID          *uuid.UUID
	DryRun         bool
	Verbose        bool
	OrgConcurrency int
	Out            io.Writer
}

// Invocation is the outcome of one (job, organization) pair.
type Invocation struct {
	JobID                string     `json:"job_id"`
	JobName              string     `json:"job_name"`
	OrganizationID       *uuid.UUID `json:"organization_id,omitempty"`
	OrganizationName     string     `json:"organization_name,omitempty"`
	Success              bool       `json:"success"`
	NotificationsCreated int        `json:"notifications_created"`
	Error                string     `json:"error,omitempty"`
	DurationMS           int64      `json:"duration_ms"`
}

type Summary struct {
	Organizations int `json:"organizations"`
	Invocations   int `json:"invocations"`
	Failures      int `json:"failures"`
	Notifications int `json:"notifications"`
}

// Report is the full outcome of one batch run.
type Report struct {
	Invocations []Invocation `json:"invocations"`
	Summary     Summary      `json:"summary"`
}

type Runner struct {
	store    store.Store
	registry *engine.Registry
	execs    *executions.Service
	opts     Options

	mu     sync.Mutex
	report Report
}

func New(s store.Store, registry *engine.Registry, execs *executions.Service, opts Options) *Runner {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.OrgConcurrency < 1 {
		opts.OrgConcurrency = 1
	}
	return &Runner{store: s, registry: registry, execs: execs, opts: opts}
}

// Run executes the selected jobs against the selected organizations.
// Individual job failures are captured in the report, never returned as an
// error; the returned error is reserved for top-level problems (store
// unreachable, organization listing failed).
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	orgJobs, globalJobs := r.selectJobs()

	orgs, err := r.selectOrgs(ctx, orgJobs)
	if err != nil {
		return nil, err
	}
	if orgs == nil {
		// Organization filter did not resolve; failed records were written.
		return r.finish(0), nil
	}

	// Global jobs run once per batch, before the per-organization fan-out.
	// They are skipped when an organization filter narrows the run.
	if r.opts.OrgID == nil {
		for _, jobID := range globalJobs {
			r.runOne(ctx, jobID, nil, "")
		}
	}

	sem := semaphore.NewWeighted(int64(r.opts.OrgConcurrency))
	g, gctx := errgroup.WithContext(ctx)
	for _, org := range orgs {
		org := org
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			// Jobs within one organization run strictly sequentially; only
			// organizations are independent of each other.
			for _, jobID := range orgJobs {
				r.runOne(gctx, jobID, &org.ID, org.Name)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return r.finish(len(orgs)), nil
}

// selectJobs resolves the job filter into organization-scoped and global job
// id lists, preserving registration order. An unknown filtered id is kept so
// the attempt is recorded as a failed execution rather than silently dropped.
func (r *Runner) selectJobs() (orgJobs, globalJobs []string) {
	if r.opts.JobID != "" {
		job, ok := r.registry.Get(r.opts.JobID)
		if ok && job.Scope() == engine.ScopeGlobal {
			return nil, []string{r.opts.JobID}
		}
		return []string{r.opts.JobID}, nil
	}
	for _, job := range r.registry.All() {
		if job.Scope() == engine.ScopeGlobal {
			globalJobs = append(globalJobs, job.ID())
		} else {
			orgJobs = append(orgJobs, job.ID())
		}
	}
	return orgJobs, globalJobs
}

// selectOrgs resolves the organization filter. A filter naming a missing
// organization is a configuration error: each selected job gets a failed
// execution record and the run continues with no organizations (nil, nil).
func (r *Runner) selectOrgs(ctx context.Context, orgJobs []string) ([]*models.Organization, error) {
	if r.opts.OrgID == nil {
		orgs, err := r.store.ListOrganizations(ctx)
		if err != nil {
			return nil, fmt.Errorf("list organizations: %w", err)
		}
		return orgs, nil
	}

	org, err := r.store.GetOrganization(ctx, *r.opts.OrgID)
	if errors.Is(err, store.ErrNotFound) {
		msg := fmt.Sprintf("organization not found: %s", r.opts.OrgID)
		for _, jobID := range orgJobs {
			r.recordConfigError(ctx, jobID, r.opts.OrgID, msg)
		}
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return []*models.Organization{org}, nil
}

// runOne wraps a single (job, organization) invocation with bookkeeping:
// open a running record, execute, close it exactly once.
func (r *Runner) runOne(ctx context.Context, jobID string, orgID *uuid.UUID, orgName string) {
	jobName := jobID
	if job, ok := r.registry.Get(jobID); ok {
		jobName = job.Name()
	}

	rec, err := r.execs.Start(ctx, jobID, jobName, orgID, nil)
	if err != nil {
		slog.Error("failed to open execution record", "job_id", jobID, "error", err)
		r.record(Invocation{
			JobID: jobID, JobName: jobName,
			OrganizationID: orgID, OrganizationName: orgName,
			Error: err.Error(),
		})
		return
	}

	execOrg := uuid.Nil
	if orgID != nil {
		execOrg = *orgID
	}
	res := r.registry.ExecuteJob(ctx, jobID, engine.ExecOptions{
		StartedAt: rec.StartedAt,
		OrgID:     execOrg,
		DryRun:    r.opts.DryRun,
	})
	duration := time.Since(rec.StartedAt)

	if res.Success {
		err = r.execs.Complete(ctx, rec.ID, res.NotificationsCreated, res.Metadata)
	} else {
		err = r.execs.Fail(ctx, rec.ID, res.NotificationsCreated, res.Error, res.Metadata)
	}
	if err != nil {
		slog.Error("failed to close execution record", "job_id", jobID, "execution_id", rec.ID, "error", err)
	}

	r.record(Invocation{
		JobID: jobID, JobName: jobName,
		OrganizationID: orgID, OrganizationName: orgName,
		Success:              res.Success,
		NotificationsCreated: res.NotificationsCreated,
		Error:                res.Error,
		DurationMS:           duration.Milliseconds(),
	})
}

// recordConfigError writes a failed execution for an invocation aborted
// before any domain work.
func (r *Runner) recordConfigError(ctx context.Context, jobID string, orgID *uuid.UUID, msg string) {
	jobName := jobID
	if job, ok := r.registry.Get(jobID); ok {
		jobName = job.Name()
	}
	if rec, err := r.execs.Start(ctx, jobID, jobName, orgID, nil); err == nil {
		if err := r.execs.Fail(ctx, rec.ID, 0, msg, nil); err != nil {
			slog.Error("failed to close execution record", "job_id", jobID, "error", err)
		}
	}
	r.record(Invocation{JobID: jobID, JobName: jobName, OrganizationID: orgID, Error: msg})
}

func (r *Runner) record(inv Invocation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Invocations = append(r.report.Invocations, inv)
	r.print(inv)
}

func (r *Runner) print(inv Invocation) {
	glyph := "✓"
	if !inv.Success {
		glyph = "✗"
	}
	target := inv.OrganizationName
	if target == "" && inv.OrganizationID != nil {
		target = inv.OrganizationID.String()
	}
	if target == "" {
		target = "global"
	}

	if r.opts.Verbose {
		line := fmt.Sprintf("%s %s@%s notifications=%d duration=%dms", glyph, inv.JobID, target, inv.NotificationsCreated, inv.DurationMS)
		if inv.Error != "" {
			line += " error=" + inv.Error
		}
		fmt.Fprintln(r.opts.Out, line)
		return
	}
	fmt.Fprintf(r.opts.Out, "%s %s@%s %d\n", glyph, inv.JobID, target, inv.NotificationsCreated)
}

func (r *Runner) finish(orgCount int) *Report {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Summary = Summary{Organizations: orgCount, Invocations: len(r.report.Invocations)}
	for _, inv := range r.report.Invocations {
		if !inv.Success {
			r.report.Summary.Failures++
		}
		r.report.Summary.Notifications += inv.NotificationsCreated
	}

	s := r.report.Summary
	fmt.Fprintf(r.opts.Out, "ran %d invocation(s) across %d organization(s): %d failed, %d notification(s) created\n",
		s.Invocations, s.Organizations, s.Failures, s.Notifications)
	return &r.report
}
