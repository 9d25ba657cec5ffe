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

// InactivityMonitor flags reports with no qualifying activity signal — task
// touch, one-on-one, or feedback — within the look-back window, grouped per
// manager. The 7-day lookback on the notification itself avoids re-alerting
// weekly on the same stagnant set.
type InactivityMonitor struct {
	store    store.Store
	notifier *engine.Notifier
}

func NewInactivityMonitor(s store.Store, n *engine.Notifier) *InactivityMonitor {
	return &InactivityMonitor{store: s, notifier: n}
}

func (j *InactivityMonitor) ID() string   { return "inactivity-monitor" }
func (j *InactivityMonitor) Name() string { return "Inactivity Monitor" }
func (j *InactivityMonitor) Description() string {
	return "Alerts managers when reports show no recent activity."
}
func (j *InactivityMonitor) Schedule() string    { return "0 8 * * 1" }
func (j *InactivityMonitor) Scope() engine.Scope { return engine.ScopeOrganization }

func (j *InactivityMonitor) DefaultConfig() engine.Config {
	return engine.Config{
		"inactive_days":  7,
		"lookback_hours": 168,
	}
}

func (j *InactivityMonitor) ValidateConfig(cfg engine.Config) error {
	if d := cfg.Int("inactive_days", 0); d < 1 || d > 90 {
		return fmt.Errorf("inactive_days must be between 1 and 90, got %d", d)
	}
	if h := cfg.Int("lookback_hours", 0); h < 1 || h > 720 {
		return fmt.Errorf("lookback_hours must be between 1 and 720, got %d", h)
	}
	return nil
}

func (j *InactivityMonitor) Execute(ctx context.Context, ec *engine.ExecContext) engine.Result {
	inactiveDays := ec.Config.Int("inactive_days", 7)
	lookback := time.Duration(ec.Config.Int("lookback_hours", 168)) * time.Hour
	since := ec.StartedAt.AddDate(0, 0, -inactiveDays)

	signals, err := j.store.LastActivity(ctx, ec.OrgID, since)
	if err != nil {
		return engine.Failure(0, fmt.Errorf("last activity: %w", err))
	}
	active := make(map[uuid.UUID]bool, len(signals))
	for _, sig := range signals {
		active[sig.PersonID] = true
	}

	people, err := j.store.ListPeople(ctx, ec.OrgID)
	if err != nil {
		return engine.Failure(0, fmt.Errorf("list people: %w", err))
	}

	byManager := make(map[uuid.UUID][]string)
	inactiveTotal := 0
	for _, p := range people {
		if p.ManagerID == nil || active[p.ID] {
			continue
		}
		// People added after the window opened have had no chance to show
		// activity yet; don't flag them.
		if p.CreatedAt.After(since) {
			continue
		}
		byManager[*p.ManagerID] = append(byManager[*p.ManagerID], p.Name)
		inactiveTotal++
	}

	created := 0
	for _, managerID := range sortedKeys(byManager) {
		names := byManager[managerID]
		sort.Strings(names)
		key := engine.DedupKey(names...)

		ok, err := j.notifier.ShouldNotify(ctx, ec.OrgID, managerID, key, lookback, ec.StartedAt)
		if err != nil {
			return engine.Failure(created, err)
		}
		if !ok {
			continue
		}

		managerID := managerID
		title := fmt.Sprintf("%d report(s) with no recent activity", len(names))
		message := fmt.Sprintf("No tasks, one-on-ones, or feedback in the last %d days: %s. Consider checking in.",
			inactiveDays, strings.Join(names, ", "))
		wrote, err := j.notifier.Notify(ctx, ec, j.ID(), &models.Notification{
			UserID:  &managerID,
			Title:   title,
			Message: message,
			Type:    models.NotificationTypeWarning,
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
			"inactive_reports": inactiveTotal,
		},
	}
}
