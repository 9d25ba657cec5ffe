package runner

import (
	"context"
	"io"

	"github.com/google/uuid"

	"github.com/teampulse/teampulse/internal/engine"
	"github.com/teampulse/teampulse/internal/executions"
	"github.com/teampulse/teampulse/internal/store"
)

// Service triggers batch runs on demand. Each trigger gets a fresh Runner so
// concurrent HTTP-triggered runs never share report state.
type Service struct {
	store       store.Store
	registry    *engine.Registry
	execs       *executions.Service
	concurrency int
}

func NewService(s store.Store, registry *engine.Registry, execs *executions.Service, concurrency int) *Service {
	return &Service{store: s, registry: registry, execs: execs, concurrency: concurrency}
}

func (s *Service) Trigger(ctx context.Context, jobID string, orgID *uuid.UUID, dryRun bool) (*Report, error) {
	r := New(s.store, s.registry, s.execs, Options{
		JobID:          jobID,
		OrgID:          orgID,
		DryRun:         dryRun,
		OrgConcurrency: s.concurrency,
		Out:            io.Discard,
	})
	return r.Run(ctx)
}
