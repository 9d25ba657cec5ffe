package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/teampulse/teampulse/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Organizations ---

func (s *PostgresStore) ListOrganizations(ctx context.Context) ([]*models.Organization, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, created_at, updated_at FROM organizations ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*models.Organization
	for rows.Next() {
		var o models.Organization
		if err := rows.Scan(&o.ID, &o.Name, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan organization: %w", err)
		}
		orgs = append(orgs, &o)
	}
	return orgs, rows.Err()
}

func (s *PostgresStore) GetOrganization(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	var o models.Organization
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, created_at, updated_at FROM organizations WHERE id = $1`, id,
	).Scan(&o.ID, &o.Name, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get organization: %w", err)
	}
	return &o, nil
}

// --- People / Tasks / Activity ---

func (s *PostgresStore) ListPeople(ctx context.Context, orgID uuid.UUID) ([]*models.Person, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, organization_id, name, email, birthday, manager_id, created_at, updated_at
		 FROM people WHERE organization_id = $1 ORDER BY name`, orgID)
	if err != nil {
		return nil, fmt.Errorf("list people: %w", err)
	}
	defer rows.Close()

	var people []*models.Person
	for rows.Next() {
		var p models.Person
		if err := rows.Scan(&p.ID, &p.OrganizationID, &p.Name, &p.Email,
			&p.Birthday, &p.ManagerID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		people = append(people, &p)
	}
	return people, rows.Err()
}

func (s *PostgresStore) ListOverdueTasks(ctx context.Context, orgID uuid.UUID, asOf time.Time) ([]*models.Task, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, organization_id, title, status, due_at, assignee_id, created_at, updated_at
		 FROM tasks
		 WHERE organization_id = $1
		   AND due_at IS NOT NULL AND due_at < $2
		   AND assignee_id IS NOT NULL
		   AND status NOT IN ($3, $4)
		 ORDER BY due_at`, orgID, asOf, models.TaskStatusDone, models.TaskStatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("list overdue tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*models.Task
	for rows.Next() {
		var t models.Task
		if err := rows.Scan(&t.ID, &t.OrganizationID, &t.Title, &t.Status,
			&t.DueAt, &t.AssigneeID, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, &t)
	}
	return tasks, rows.Err()
}

// LastActivity returns, per person, the most recent qualifying signal since
// the given time: a task touch, a one-on-one (as manager or report), or
// feedback given or received. People with no signal in the window are absent.
func (s *PostgresStore) LastActivity(ctx context.Context, orgID uuid.UUID, since time.Time) ([]models.ActivitySignal, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT person_id, MAX(ts) AS last_activity_at FROM (
		    SELECT assignee_id AS person_id, updated_at AS ts
		      FROM tasks WHERE organization_id = $1 AND assignee_id IS NOT NULL AND updated_at >= $2
		    UNION ALL
		    SELECT report_id, scheduled_at
		      FROM one_on_ones WHERE organization_id = $1 AND scheduled_at >= $2
		    UNION ALL
		    SELECT manager_id, scheduled_at
		      FROM one_on_ones WHERE organization_id = $1 AND scheduled_at >= $2
		    UNION ALL
		    SELECT author_id, created_at
		      FROM feedback WHERE organization_id = $1 AND created_at >= $2
		    UNION ALL
		    SELECT recipient_id, created_at
		      FROM feedback WHERE organization_id = $1 AND created_at >= $2
		 ) signals
		 GROUP BY person_id`, orgID, since)
	if err != nil {
		return nil, fmt.Errorf("last activity: %w", err)
	}
	defer rows.Close()

	var signals []models.ActivitySignal
	for rows.Next() {
		var a models.ActivitySignal
		if err := rows.Scan(&a.PersonID, &a.LastActivityAt); err != nil {
			return nil, fmt.Errorf("scan activity signal: %w", err)
		}
		signals = append(signals, a)
	}
	return signals, rows.Err()
}

// --- Notifications ---

func (s *PostgresStore) CreateNotification(ctx context.Context, n *models.Notification) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO notifications (id, organization_id, user_id, title, message, type, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		n.ID, n.OrganizationID, n.UserID, n.Title, n.Message, n.Type, n.Metadata, n.CreatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListNotificationsSince(ctx context.Context, orgID, userID uuid.UUID, since time.Time) ([]*models.Notification, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, organization_id, user_id, title, message, type, metadata, created_at
		 FROM notifications
		 WHERE organization_id = $1 AND user_id = $2 AND created_at >= $3
		 ORDER BY created_at DESC`, orgID, userID, since)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var notifs []*models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.OrganizationID, &n.UserID, &n.Title,
			&n.Message, &n.Type, &n.Metadata, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notifs = append(notifs, &n)
	}
	return notifs, rows.Err()
}

// --- Executions ---

func (s *PostgresStore) CreateExecution(ctx context.Context, e *models.Execution) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO job_executions (id, job_id, job_name, organization_id, status, started_at,
		                             completed_at, notifications_created, error_message, metadata)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.JobID, e.JobName, e.OrganizationID, e.Status, e.StartedAt,
		e.CompletedAt, e.NotificationsCreated, e.ErrorMessage, e.Metadata)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create execution: %w", err)
	}
	return nil
}

func (s *PostgresStore) CompleteExecution(ctx context.Context, id uuid.UUID, notificationsCreated int, metadata models.Metadata) error {
	return s.finishExecution(ctx, id, models.ExecutionStatusCompleted, notificationsCreated, nil, metadata)
}

func (s *PostgresStore) FailExecution(ctx context.Context, id uuid.UUID, notificationsCreated int, errMsg string, metadata models.Metadata) error {
	return s.finishExecution(ctx, id, models.ExecutionStatusFailed, notificationsCreated, &errMsg, metadata)
}

func (s *PostgresStore) finishExecution(ctx context.Context, id uuid.UUID, status string, created int, errMsg *string, metadata models.Metadata) error {
	var current string
	err := s.pool.QueryRow(ctx, `SELECT status FROM job_executions WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get execution status: %w", err)
	}
	if !transitionAllowed(current, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, status)
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE job_executions
		 SET status = $2, completed_at = $3, notifications_created = $4,
		     error_message = $5, metadata = COALESCE($6, metadata)
		 WHERE id = $1 AND status = $7`,
		id, status, time.Now().UTC(), created, errMsg, nilIfEmpty(metadata), current)
	if err != nil {
		return fmt.Errorf("finish execution: %w", err)
	}
	// Guard against a concurrent transition between read and update.
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: record no longer %s", ErrInvalidTransition, current)
	}
	return nil
}

func (s *PostgresStore) GetExecution(ctx context.Context, id uuid.UUID) (*models.Execution, error) {
	var e models.Execution
	err := s.pool.QueryRow(ctx,
		`SELECT id, job_id, job_name, organization_id, status, started_at,
		        completed_at, notifications_created, error_message, metadata
		 FROM job_executions WHERE id = $1`, id,
	).Scan(&e.ID, &e.JobID, &e.JobName, &e.OrganizationID, &e.Status, &e.StartedAt,
		&e.CompletedAt, &e.NotificationsCreated, &e.ErrorMessage, &e.Metadata)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get execution: %w", err)
	}
	return &e, nil
}

func (s *PostgresStore) ListRecentExecutions(ctx context.Context, orgID *uuid.UUID, limit int) ([]*models.Execution, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	query := `SELECT id, job_id, job_name, organization_id, status, started_at,
	                 completed_at, notifications_created, error_message, metadata
	          FROM job_executions`
	args := []any{limit}
	if orgID != nil {
		query += ` WHERE organization_id = $2`
		args = append(args, *orgID)
	}
	query += ` ORDER BY started_at DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recent executions: %w", err)
	}
	defer rows.Close()

	var execs []*models.Execution
	for rows.Next() {
		var e models.Execution
		if err := rows.Scan(&e.ID, &e.JobID, &e.JobName, &e.OrganizationID, &e.Status,
			&e.StartedAt, &e.CompletedAt, &e.NotificationsCreated, &e.ErrorMessage, &e.Metadata); err != nil {
			return nil, fmt.Errorf("scan execution: %w", err)
		}
		execs = append(execs, &e)
	}
	return execs, rows.Err()
}

func (s *PostgresStore) GetExecutionStats(ctx context.Context, orgID *uuid.UUID, since time.Time) (*ExecutionStats, error) {
	query := `SELECT COUNT(*),
	                 COUNT(*) FILTER (WHERE status = 'completed'),
	                 COUNT(*) FILTER (WHERE status = 'failed'),
	                 COALESCE(SUM(notifications_created) FILTER (WHERE status <> 'running'), 0)
	          FROM job_executions WHERE started_at >= $1`
	args := []any{since}
	if orgID != nil {
		query += ` AND organization_id = $2`
		args = append(args, *orgID)
	}

	var stats ExecutionStats
	if err := s.pool.QueryRow(ctx, query, args...).Scan(
		&stats.Total, &stats.Completed, &stats.Failed, &stats.NotificationsCreated); err != nil {
		return nil, fmt.Errorf("execution stats: %w", err)
	}
	if terminal := stats.Completed + stats.Failed; terminal > 0 {
		stats.SuccessRate = float64(stats.Completed) / float64(terminal)
	}
	return &stats, nil
}

func (s *PostgresStore) DeleteExecutionsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM job_executions WHERE started_at < $1 AND status <> $2`,
		cutoff, models.ExecutionStatusRunning)
	if err != nil {
		return 0, fmt.Errorf("delete executions: %w", err)
	}
	return tag.RowsAffected(), nil
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, organization_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.OrganizationID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}

func nilIfEmpty(m models.Metadata) models.Metadata {
	if len(m) == 0 {
		return nil
	}
	return m
}
