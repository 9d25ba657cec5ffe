package jobs

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/teampulse/teampulse/internal/engine"
	"github.com/teampulse/teampulse/internal/store"
	"github.com/teampulse/teampulse/pkg/models"
)

// OverdueTasks notifies each assignee about their tasks past due and not in
// a terminal state. The dedup key is the sorted task id set, so resolving or
// adding a task makes the group notifiable again.
type OverdueTasks struct {
	store    store.Store
	notifier *engine.Notifier
}

func NewOverdueTasks(s store.Store, n *engine.Notifier) *OverdueTasks {
	return &OverdueTasks{store: s, notifier: n}
}

func (j *OverdueTasks) ID() string   { return "overdue-tasks" }
func (j *OverdueTasks) Name() string { return "Overdue Tasks" }
func (j *OverdueTasks) Description() string {
	return "Reminds assignees about tasks past their due date."
}
func (j *OverdueTasks) Schedule() string    { return "0 10 * * *" }
func (j *OverdueTasks) Scope() engine.Scope { return engine.ScopeOrganization }

func (j *OverdueTasks) DefaultConfig() engine.Config {
	return engine.Config{
		"lookback_hours": 24,
		"max_titles":     5,
	}
}

func (j *OverdueTasks) ValidateConfig(cfg engine.Config) error {
	if h := cfg.Int("lookback_hours", 0); h < 1 || h > 720 {
		return fmt.Errorf("lookback_hours must be between 1 and 720, got %d", h)
	}
	if m := cfg.Int("max_titles", 0); m < 1 || m > 20 {
		return fmt.Errorf("max_titles must be between 1 and 20, got %d", m)
	}
	return nil
}

func (j *OverdueTasks) Execute(ctx context.Context, ec *engine.ExecContext) engine.Result {
	lookback := time.Duration(ec.Config.Int("lookback_hours", 24)) * time.Hour
	maxTitles := ec.Config.Int("max_titles", 5)

	tasks, err := j.store.ListOverdueTasks(ctx, ec.OrgID, ec.StartedAt)
	if err != nil {
		return engine.Failure(0, fmt.Errorf("list overdue tasks: %w", err))
	}

	byAssignee := make(map[uuid.UUID][]*models.Task)
	for _, t := range tasks {
		byAssignee[*t.AssigneeID] = append(byAssignee[*t.AssigneeID], t)
	}

	created := 0
	for _, assigneeID := range sortedKeys(byAssignee) {
		group := byAssignee[assigneeID]

		ids := make([]string, len(group))
		for i, t := range group {
			ids[i] = t.ID.String()
		}
		key := engine.DedupKey(ids...)

		ok, err := j.notifier.ShouldNotify(ctx, ec.OrgID, assigneeID, key, lookback, ec.StartedAt)
		if err != nil {
			return engine.Failure(created, err)
		}
		if !ok {
			continue
		}

		assigneeID := assigneeID
		wrote, err := j.notifier.Notify(ctx, ec, j.ID(), &models.Notification{
			UserID:  &assigneeID,
			Title:   fmt.Sprintf("You have %d overdue task(s)", len(group)),
			Message: overdueMessage(group, maxTitles),
			Type:    models.NotificationTypeReminder,
		}, key, lookback)
		if err != nil {
			return engine.Failure(created, err)
		}
		if wrote {
			created++
		}
	}

	return engine.Result{
		Success:              true,
		NotificationsCreated: created,
		Metadata: models.Metadata{
			"overdue_tasks":      len(tasks),
			"assignees_affected": len(byAssignee),
		},
	}
}

func overdueMessage(group []*models.Task, maxTitles int) string {
	titles := make([]string, 0, len(group))
	for _, t := range group {
		titles = append(titles, t.Title)
	}
	sort.Strings(titles)
	if len(titles) > maxTitles {
		extra := len(titles) - maxTitles
		titles = append(titles[:maxTitles], fmt.Sprintf("and %d more", extra))
	}
	return "Overdue: " + strings.Join(titles, ", ")
}
