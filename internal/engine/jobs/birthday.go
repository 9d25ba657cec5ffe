// Package jobs contains the concrete scheduled jobs: each one queries the
// domain store for its organization, groups affected people by notification
// target, and defers idempotency to the engine's deduplication helpers.
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

// BirthdayReminder notifies each manager about reports with a birthday
// coming up within the look-ahead window.
type BirthdayReminder struct {
	store    store.Store
	notifier *engine.Notifier
}

func NewBirthdayReminder(s store.Store, n *engine.Notifier) *BirthdayReminder {
	return &BirthdayReminder{store: s, notifier: n}
}

func (j *BirthdayReminder) ID() string   { return "birthday-reminder" }
func (j *BirthdayReminder) Name() string { return "Birthday Reminder" }
func (j *BirthdayReminder) Description() string {
	return "Reminds managers about upcoming birthdays on their team."
}
func (j *BirthdayReminder) Schedule() string    { return "0 9 * * *" }
func (j *BirthdayReminder) Scope() engine.Scope { return engine.ScopeOrganization }

func (j *BirthdayReminder) DefaultConfig() engine.Config {
	return engine.Config{
		"look_ahead_days": 7,
		"lookback_hours":  24,
	}
}

func (j *BirthdayReminder) ValidateConfig(cfg engine.Config) error {
	if d := cfg.Int("look_ahead_days", 0); d < 1 || d > 60 {
		return fmt.Errorf("look_ahead_days must be between 1 and 60, got %d", d)
	}
	if h := cfg.Int("lookback_hours", 0); h < 1 || h > 720 {
		return fmt.Errorf("lookback_hours must be between 1 and 720, got %d", h)
	}
	return nil
}

type upcomingBirthday struct {
	name      string
	daysUntil int
}

func (j *BirthdayReminder) Execute(ctx context.Context, ec *engine.ExecContext) engine.Result {
	lookAhead := ec.Config.Int("look_ahead_days", 7)
	lookback := time.Duration(ec.Config.Int("lookback_hours", 24)) * time.Hour

	people, err := j.store.ListPeople(ctx, ec.OrgID)
	if err != nil {
		return engine.Failure(0, fmt.Errorf("list people: %w", err))
	}

	byManager := make(map[uuid.UUID][]upcomingBirthday)
	for _, p := range people {
		if p.Birthday == nil || p.ManagerID == nil {
			continue
		}
		days := daysUntilBirthday(*p.Birthday, ec.StartedAt)
		if days <= lookAhead {
			byManager[*p.ManagerID] = append(byManager[*p.ManagerID], upcomingBirthday{
				name:      p.Name,
				daysUntil: days,
			})
		}
	}

	created := 0
	for _, managerID := range sortedKeys(byManager) {
		group := byManager[managerID]
		sort.Slice(group, func(a, b int) bool { return group[a].name < group[b].name })

		// Days-until is part of the key so the same birthday closer in is a
		// new condition, not a suppressed repeat.
		parts := make([]string, len(group))
		for i, b := range group {
			parts[i] = fmt.Sprintf("%s:%d", b.name, b.daysUntil)
		}
		key := engine.DedupKey(parts...)

		ok, err := j.notifier.ShouldNotify(ctx, ec.OrgID, managerID, key, lookback, ec.StartedAt)
		if err != nil {
			return engine.Failure(created, err)
		}
		if !ok {
			continue
		}

		managerID := managerID
		wrote, err := j.notifier.Notify(ctx, ec, j.ID(), &models.Notification{
			UserID:  &managerID,
			Title:   "Upcoming birthdays on your team",
			Message: birthdayMessage(group),
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
			"managers_with_upcoming": len(byManager),
		},
	}
}

// daysUntilBirthday computes whole days from now until the next occurrence of
// the birthday, rolling over the year boundary. Feb 29 birthdays land on
// Mar 1 in non-leap years via time.Date normalization.
func daysUntilBirthday(birthday, now time.Time) int {
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	next := time.Date(today.Year(), birthday.Month(), birthday.Day(), 0, 0, 0, 0, time.UTC)
	if next.Before(today) {
		next = time.Date(today.Year()+1, birthday.Month(), birthday.Day(), 0, 0, 0, 0, time.UTC)
	}
	return int(next.Sub(today).Hours() / 24)
}

func birthdayMessage(group []upcomingBirthday) string {
	lines := make([]string, len(group))
	for i, b := range group {
		switch b.daysUntil {
		case 0:
			lines[i] = fmt.Sprintf("%s's birthday is today!", b.name)
		case 1:
			lines[i] = fmt.Sprintf("%s's birthday is tomorrow.", b.name)
		default:
			lines[i] = fmt.Sprintf("%s's birthday is in %d days.", b.name, b.daysUntil)
		}
	}
	return strings.Join(lines, " ")
}

// sortedKeys returns map keys in a stable order so notification creation is
// deterministic across runs.
func sortedKeys[V any](m map[uuid.UUID]V) []uuid.UUID {
	keys := make([]uuid.UUID, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(a, b int) bool { return keys[a].String() < keys[b].String() })
	return keys
}
