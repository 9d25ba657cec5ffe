package store_test

import (
	"context"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/teampulse/teampulse/internal/store"
	"github.com/teampulse/teampulse/pkg/models"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool + cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("teampulse_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

func seedOrg(t *testing.T, pool *pgxpool.Pool, name string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO organizations (id, name) VALUES ($1, $2)`, id, name)
	require.NoError(t, err)
	return id
}

func seedPerson(t *testing.T, pool *pgxpool.Pool, orgID uuid.UUID, name string, managerID *uuid.UUID, birthday *time.Time) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO people (id, organization_id, name, email, birthday, manager_id)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, orgID, name, name+"@test.local", birthday, managerID)
	require.NoError(t, err)
	return id
}

func seedTask(t *testing.T, pool *pgxpool.Pool, orgID, assigneeID uuid.UUID, title, status string, dueAt, updatedAt time.Time) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO tasks (id, organization_id, title, status, due_at, assignee_id, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, orgID, title, status, dueAt, assigneeID, updatedAt)
	require.NoError(t, err)
	return id
}

// --- Organizations ---

func TestOrganizations(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	a := seedOrg(t, pool, "acme")
	seedOrg(t, pool, "globex")

	orgs, err := s.ListOrganizations(ctx)
	require.NoError(t, err)
	assert.Len(t, orgs, 2)

	org, err := s.GetOrganization(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, "acme", org.Name)

	_, err = s.GetOrganization(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// --- People / Tasks / Activity ---

func TestListPeople(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	orgID := seedOrg(t, pool, "acme")
	otherOrg := seedOrg(t, pool, "globex")

	manager := seedPerson(t, pool, orgID, "Dana", nil, nil)
	bday := time.Date(1990, 6, 18, 0, 0, 0, 0, time.UTC)
	seedPerson(t, pool, orgID, "Ana", &manager, &bday)
	seedPerson(t, pool, otherOrg, "Stranger", nil, nil)

	people, err := s.ListPeople(ctx, orgID)
	require.NoError(t, err)
	require.Len(t, people, 2)
	assert.Equal(t, "Ana", people[0].Name)
	require.NotNil(t, people[0].Birthday)
	assert.Equal(t, time.June, people[0].Birthday.Month())
	require.NotNil(t, people[0].ManagerID)
	assert.Equal(t, manager, *people[0].ManagerID)
}

func TestListOverdueTasks(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	orgID := seedOrg(t, pool, "acme")
	ana := seedPerson(t, pool, orgID, "Ana", nil, nil)
	now := time.Now().UTC()

	overdue := seedTask(t, pool, orgID, ana, "late", models.TaskStatusOpen, now.AddDate(0, 0, -2), now)
	seedTask(t, pool, orgID, ana, "done late", models.TaskStatusDone, now.AddDate(0, 0, -2), now)
	seedTask(t, pool, orgID, ana, "future", models.TaskStatusOpen, now.AddDate(0, 0, 2), now)

	tasks, err := s.ListOverdueTasks(ctx, orgID, now)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, overdue, tasks[0].ID)
}

func TestLastActivity(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	orgID := seedOrg(t, pool, "acme")
	manager := seedPerson(t, pool, orgID, "Dana", nil, nil)
	ana := seedPerson(t, pool, orgID, "Ana", &manager, nil)
	ben := seedPerson(t, pool, orgID, "Ben", &manager, nil)
	quiet := seedPerson(t, pool, orgID, "Quiet", &manager, nil)

	now := time.Now().UTC()
	since := now.AddDate(0, 0, -7)

	// Ana touched a task; Ben had a one-on-one with Dana; Quiet did nothing.
	seedTask(t, pool, orgID, ana, "t", models.TaskStatusInProgress, now.AddDate(0, 0, 2), now.AddDate(0, 0, -1))
	_, err := pool.Exec(ctx,
		`INSERT INTO one_on_ones (id, organization_id, manager_id, report_id, scheduled_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		uuid.New(), orgID, manager, ben, now.AddDate(0, 0, -3))
	require.NoError(t, err)

	signals, err := s.LastActivity(ctx, orgID, since)
	require.NoError(t, err)

	byPerson := map[uuid.UUID]time.Time{}
	for _, sig := range signals {
		byPerson[sig.PersonID] = sig.LastActivityAt
	}
	assert.Contains(t, byPerson, ana)
	assert.Contains(t, byPerson, ben)
	assert.Contains(t, byPerson, manager, "the manager side of a one-on-one counts too")
	assert.NotContains(t, byPerson, quiet)
}

// --- Notifications ---

func TestNotifications_CreateAndList(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	orgID := seedOrg(t, pool, "acme")
	userID := seedPerson(t, pool, orgID, "Dana", nil, nil)
	now := time.Now().UTC().Truncate(time.Microsecond)

	n := &models.Notification{
		ID:             uuid.New(),
		OrganizationID: orgID,
		UserID:         &userID,
		Title:          "Upcoming birthdays",
		Message:        "Ana's birthday is in 3 days.",
		Type:           models.NotificationTypeReminder,
		Metadata: models.Metadata{
			models.MetaDeduplicationKey: "Ana:3",
			models.MetaJobID:            "birthday-reminder",
		},
		CreatedAt: now,
	}
	require.NoError(t, s.CreateNotification(ctx, n))

	notifs, err := s.ListNotificationsSince(ctx, orgID, userID, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, notifs, 1)
	assert.Equal(t, "Ana:3", notifs[0].DeduplicationKey())
	assert.Equal(t, "birthday-reminder", notifs[0].Metadata[models.MetaJobID])

	// Outside the window nothing comes back.
	notifs, err = s.ListNotificationsSince(ctx, orgID, userID, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, notifs)
}

func TestNotifications_DailyUniqueIndex(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	orgID := seedOrg(t, pool, "acme")
	userID := seedPerson(t, pool, orgID, "Dana", nil, nil)
	now := time.Now().UTC()

	mk := func(key string, at time.Time) *models.Notification {
		return &models.Notification{
			ID:             uuid.New(),
			OrganizationID: orgID,
			UserID:         &userID,
			Title:          "t",
			Message:        "m",
			Type:           models.NotificationTypeInfo,
			Metadata:       models.Metadata{models.MetaDeduplicationKey: key},
			CreatedAt:      at,
		}
	}

	require.NoError(t, s.CreateNotification(ctx, mk("key-a", now)))

	// Same key, same day: rejected by the unique index.
	err := s.CreateNotification(ctx, mk("key-a", now.Add(time.Minute)))
	assert.ErrorIs(t, err, store.ErrDuplicateKey)

	// Different key is fine.
	require.NoError(t, s.CreateNotification(ctx, mk("key-b", now)))
}

// --- Executions ---

func TestExecutions_Lifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	orgID := seedOrg(t, pool, "acme")
	now := time.Now().UTC().Truncate(time.Microsecond)

	exec := &models.Execution{
		ID:             uuid.New(),
		JobID:          "birthday-reminder",
		JobName:        "Birthday Reminder",
		OrganizationID: &orgID,
		Status:         models.ExecutionStatusRunning,
		StartedAt:      now,
	}
	require.NoError(t, s.CreateExecution(ctx, exec))

	require.NoError(t, s.CompleteExecution(ctx, exec.ID, 3, models.Metadata{"managers_with_upcoming": 2}))

	got, err := s.GetExecution(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCompleted, got.Status)
	assert.Equal(t, 3, got.NotificationsCreated)
	assert.NotNil(t, got.CompletedAt)

	// Terminal records never transition again.
	err = s.FailExecution(ctx, exec.ID, 0, "too late", nil)
	assert.ErrorIs(t, err, store.ErrInvalidTransition)

	err = s.CompleteExecution(ctx, uuid.New(), 0, nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestExecutions_StatsAndCleanup(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	orgID := seedOrg(t, pool, "acme")
	now := time.Now().UTC().Truncate(time.Microsecond)

	add := func(startedAt time.Time, terminalStatus string, created int) {
		exec := &models.Execution{
			ID:             uuid.New(),
			JobID:          "j",
			JobName:        "J",
			OrganizationID: &orgID,
			Status:         models.ExecutionStatusRunning,
			StartedAt:      startedAt,
		}
		require.NoError(t, s.CreateExecution(ctx, exec))
		switch terminalStatus {
		case models.ExecutionStatusCompleted:
			require.NoError(t, s.CompleteExecution(ctx, exec.ID, created, nil))
		case models.ExecutionStatusFailed:
			require.NoError(t, s.FailExecution(ctx, exec.ID, created, "boom", nil))
		}
	}

	add(now, models.ExecutionStatusCompleted, 2)
	add(now, models.ExecutionStatusCompleted, 1)
	add(now, models.ExecutionStatusFailed, 0)
	add(now.AddDate(0, 0, -100), models.ExecutionStatusCompleted, 5)
	add(now.AddDate(0, 0, -100), models.ExecutionStatusRunning, 0) // stuck running

	stats, err := s.GetExecutionStats(ctx, &orgID, now.AddDate(0, 0, -7))
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 3, stats.NotificationsCreated)
	assert.InDelta(t, 2.0/3.0, stats.SuccessRate, 0.001)

	removed, err := s.DeleteExecutionsBefore(ctx, now.AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed, "running records survive cleanup")

	execs, err := s.ListRecentExecutions(ctx, &orgID, 10)
	require.NoError(t, err)
	assert.Len(t, execs, 4)
}

// --- API Keys ---

func TestAPIKeys(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()

	orgID := seedOrg(t, pool, "acme")
	keyID := uuid.New()
	_, err := pool.Exec(ctx,
		`INSERT INTO api_keys (id, organization_id, name, key_hash, key_prefix, scopes)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		keyID, orgID, "ci-key", "bcrypt-hash-here", "tp_abcd1", []string{"read", "admin"})
	require.NoError(t, err)

	keys, err := s.GetAPIKeyByPrefix(ctx, "tp_abcd1")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, keyID, keys[0].ID)
	assert.Equal(t, orgID, keys[0].OrganizationID)
	assert.Equal(t, []string{"read", "admin"}, keys[0].Scopes)
	assert.Nil(t, keys[0].LastUsedAt)

	require.NoError(t, s.UpdateAPIKeyLastUsed(ctx, keyID))
	keys, err = s.GetAPIKeyByPrefix(ctx, "tp_abcd1")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.NotNil(t, keys[0].LastUsedAt)
}
