package jobs_test

import (
	"time"

	"github.com/google/uuid"

	"github.com/teampulse/teampulse/internal/cache"
	"github.com/teampulse/teampulse/internal/engine"
	"github.com/teampulse/teampulse/internal/store"
	"github.com/teampulse/teampulse/pkg/models"
)

// testEnv bundles the in-memory collaborators every job test needs.
type testEnv struct {
	store    *store.MemStore
	cache    *cache.MemCache
	notifier *engine.Notifier
	orgID    uuid.UUID
	now      time.Time
}

func newTestEnv() *testEnv {
	s := store.NewMemStore()
	c := cache.NewMemCache()
	orgID := uuid.New()
	s.AddOrganization(&models.Organization{ID: orgID, Name: "acme"})
	return &testEnv{
		store:    s,
		cache:    c,
		notifier: engine.NewNotifier(s, c),
		orgID:    orgID,
		now:      time.Date(2026, 6, 15, 9, 0, 0, 0, time.UTC),
	}
}

// execCtx builds an ExecContext with the job's defaults plus overrides.
func (e *testEnv) execCtx(job engine.Job, overrides engine.Config) *engine.ExecContext {
	cfg := engine.Config{}
	for k, v := range job.DefaultConfig() {
		cfg[k] = v
	}
	for k, v := range overrides {
		cfg[k] = v
	}
	return &engine.ExecContext{
		Config:    cfg,
		StartedAt: e.now,
		OrgID:     e.orgID,
	}
}

func (e *testEnv) addManager(name string) uuid.UUID {
	id := uuid.New()
	e.store.AddPerson(&models.Person{
		ID:             id,
		OrganizationID: e.orgID,
		Name:           name,
		Email:          name + "@acme.test",
		CreatedAt:      e.now.AddDate(-1, 0, 0),
	})
	return id
}

func (e *testEnv) addReport(name string, managerID uuid.UUID, birthday *time.Time) uuid.UUID {
	id := uuid.New()
	e.store.AddPerson(&models.Person{
		ID:             id,
		OrganizationID: e.orgID,
		Name:           name,
		Email:          name + "@acme.test",
		Birthday:       birthday,
		ManagerID:      &managerID,
		CreatedAt:      e.now.AddDate(-1, 0, 0),
	})
	return id
}

func datePtr(year int, month time.Month, day int) *time.Time {
	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &d
}
