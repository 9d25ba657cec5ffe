package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teampulse/teampulse/pkg/models"
)

// MemStore is an in-memory Store used by unit tests. It mirrors the Postgres
// behavior that matters to callers: sentinel errors, the execution status
// transition rules, and the daily uniqueness of (org, user, dedup key).
type MemStore struct {
	mu            sync.Mutex
	orgs          []*models.Organization
	people        map[uuid.UUID][]*models.Person
	tasks         map[uuid.UUID][]*models.Task
	activity      map[uuid.UUID]map[uuid.UUID]time.Time // orgID -> personID -> last activity
	notifications []*models.Notification
	executions    map[uuid.UUID]*models.Execution
	apiKeys       []*models.APIKey
}

func NewMemStore() *MemStore {
	return &MemStore{
		people:     make(map[uuid.UUID][]*models.Person),
		tasks:      make(map[uuid.UUID][]*models.Task),
		activity:   make(map[uuid.UUID]map[uuid.UUID]time.Time),
		executions: make(map[uuid.UUID]*models.Execution),
	}
}

// --- seed helpers ---

func (s *MemStore) AddOrganization(o *models.Organization) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orgs = append(s.orgs, o)
}

func (s *MemStore) AddPerson(p *models.Person) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.people[p.OrganizationID] = append(s.people[p.OrganizationID], p)
}

func (s *MemStore) AddTask(t *models.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[t.OrganizationID] = append(s.tasks[t.OrganizationID], t)
}

func (s *MemStore) AddActivity(orgID, personID uuid.UUID, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activity[orgID] == nil {
		s.activity[orgID] = make(map[uuid.UUID]time.Time)
	}
	if at.After(s.activity[orgID][personID]) {
		s.activity[orgID][personID] = at
	}
}

func (s *MemStore) AddAPIKey(k *models.APIKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKeys = append(s.apiKeys, k)
}

// Notifications returns a snapshot of all stored notifications.
func (s *MemStore) Notifications() []*models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}

// Executions returns a snapshot of all execution records.
func (s *MemStore) Executions() []*models.Execution {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Execution, 0, len(s.executions))
	for _, e := range s.executions {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.Before(out[j].StartedAt) })
	return out
}

// --- Store implementation ---

func (s *MemStore) Ping(_ context.Context) error { return nil }

func (s *MemStore) ListOrganizations(_ context.Context) ([]*models.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Organization, len(s.orgs))
	copy(out, s.orgs)
	return out, nil
}

func (s *MemStore) GetOrganization(_ context.Context, id uuid.UUID) (*models.Organization, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orgs {
		if o.ID == id {
			return o, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) ListPeople(_ context.Context, orgID uuid.UUID) ([]*models.Person, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.Person, len(s.people[orgID]))
	copy(out, s.people[orgID])
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemStore) ListOverdueTasks(_ context.Context, orgID uuid.UUID, asOf time.Time) ([]*models.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Task
	for _, t := range s.tasks[orgID] {
		if t.DueAt == nil || t.AssigneeID == nil {
			continue
		}
		if t.Status == models.TaskStatusDone || t.Status == models.TaskStatusCancelled {
			continue
		}
		if t.DueAt.Before(asOf) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(*out[j].DueAt) })
	return out, nil
}

func (s *MemStore) LastActivity(_ context.Context, orgID uuid.UUID, since time.Time) ([]models.ActivitySignal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ActivitySignal
	for personID, at := range s.activity[orgID] {
		if !at.Before(since) {
			out = append(out, models.ActivitySignal{PersonID: personID, LastActivityAt: at})
		}
	}
	return out, nil
}

func (s *MemStore) CreateNotification(_ context.Context, n *models.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := n.DeduplicationKey()
	if key != "" && n.UserID != nil {
		day := n.CreatedAt.UTC().Truncate(24 * time.Hour)
		for _, existing := range s.notifications {
			if existing.OrganizationID == n.OrganizationID &&
				existing.UserID != nil && *existing.UserID == *n.UserID &&
				existing.DeduplicationKey() == key &&
				existing.CreatedAt.UTC().Truncate(24*time.Hour).Equal(day) {
				return ErrDuplicateKey
			}
		}
	}
	cp := *n
	s.notifications = append(s.notifications, &cp)
	return nil
}

func (s *MemStore) ListNotificationsSince(_ context.Context, orgID, userID uuid.UUID, since time.Time) ([]*models.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Notification
	for _, n := range s.notifications {
		if n.OrganizationID == orgID && n.UserID != nil && *n.UserID == userID && !n.CreatedAt.Before(since) {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemStore) CreateExecution(_ context.Context, e *models.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.executions[e.ID]; exists {
		return ErrDuplicateKey
	}
	cp := *e
	s.executions[e.ID] = &cp
	return nil
}

func (s *MemStore) CompleteExecution(_ context.Context, id uuid.UUID, created int, metadata models.Metadata) error {
	return s.finish(id, models.ExecutionStatusCompleted, created, nil, metadata)
}

func (s *MemStore) FailExecution(_ context.Context, id uuid.UUID, created int, errMsg string, metadata models.Metadata) error {
	return s.finish(id, models.ExecutionStatusFailed, created, &errMsg, metadata)
}

func (s *MemStore) finish(id uuid.UUID, status string, created int, errMsg *string, metadata models.Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.executions[id]
	if !ok {
		return ErrNotFound
	}
	if !transitionAllowed(e.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, e.Status, status)
	}
	now := time.Now().UTC()
	e.Status = status
	e.CompletedAt = &now
	e.NotificationsCreated = created
	e.ErrorMessage = errMsg
	if len(metadata) > 0 {
		e.Metadata = metadata
	}
	return nil
}

func (s *MemStore) GetExecution(_ context.Context, id uuid.UUID) (*models.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.executions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *MemStore) ListRecentExecutions(_ context.Context, orgID *uuid.UUID, limit int) ([]*models.Execution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.Execution
	for _, e := range s.executions {
		if orgID != nil && (e.OrganizationID == nil || *e.OrganizationID != *orgID) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) GetExecutionStats(_ context.Context, orgID *uuid.UUID, since time.Time) (*ExecutionStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats ExecutionStats
	for _, e := range s.executions {
		if e.StartedAt.Before(since) {
			continue
		}
		if orgID != nil && (e.OrganizationID == nil || *e.OrganizationID != *orgID) {
			continue
		}
		stats.Total++
		switch e.Status {
		case models.ExecutionStatusCompleted:
			stats.Completed++
			stats.NotificationsCreated += e.NotificationsCreated
		case models.ExecutionStatusFailed:
			stats.Failed++
			stats.NotificationsCreated += e.NotificationsCreated
		}
	}
	if terminal := stats.Completed + stats.Failed; terminal > 0 {
		stats.SuccessRate = float64(stats.Completed) / float64(terminal)
	}
	return &stats, nil
}

func (s *MemStore) DeleteExecutionsBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for id, e := range s.executions {
		if e.StartedAt.Before(cutoff) && e.Status != models.ExecutionStatusRunning {
			delete(s.executions, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemStore) GetAPIKeyByPrefix(_ context.Context, prefix string) ([]*models.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.APIKey
	for _, k := range s.apiKeys {
		if k.KeyPrefix == prefix && k.DeletedAt == nil {
			out = append(out, k)
		}
	}
	return out, nil
}

func (s *MemStore) UpdateAPIKeyLastUsed(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.apiKeys {
		if k.ID == id {
			now := time.Now().UTC()
			k.LastUsedAt = &now
			return nil
		}
	}
	return ErrNotFound
}
