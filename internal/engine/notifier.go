package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/teampulse/teampulse/internal/cache"
	"github.com/teampulse/teampulse/internal/store"
	"github.com/teampulse/teampulse/pkg/models"
)

// Notifier is the shared idempotency primitive all jobs use. It answers "has
// an equivalent notification already fired recently?" and creates stamped
// notifications. The Redis marker is a fast path only; the notification store
// remains the source of truth for the lookback scan.
type Notifier struct {
	store store.Store
	cache cache.Cache
}

func NewNotifier(s store.Store, c cache.Cache) *Notifier {
	return &Notifier{store: s, cache: c}
}

// ShouldNotify reports whether no notification with the given deduplication
// key was created for (org, user) within the lookback window ending at now.
// Cache errors fall through to the store scan rather than failing the job.
func (n *Notifier) ShouldNotify(ctx context.Context, orgID, userID uuid.UUID, dedupKey string, lookback time.Duration, now time.Time) (bool, error) {
	marker := cache.DedupMarkerKey(orgID, userID, dedupKey)
	if hit, err := n.cache.HasDedupMarker(ctx, marker); err == nil && hit {
		return false, nil
	}

	since := now.Add(-lookback)
	prior, err := n.store.ListNotificationsSince(ctx, orgID, userID, since)
	if err != nil {
		return false, fmt.Errorf("dedup lookback scan: %w", err)
	}
	for _, p := range prior {
		if p.DeduplicationKey() == dedupKey {
			// Backfill the marker for the remainder of the window.
			if ttl := p.CreatedAt.Add(lookback).Sub(now); ttl > 0 {
				_ = n.cache.SetDedupMarker(ctx, marker, ttl)
			}
			return false, nil
		}
	}
	return true, nil
}

// BuildNotification stamps the deduplication key and originating job id into
// a copy of the draft's metadata. The caller's metadata map is never mutated.
func BuildNotification(draft *models.Notification, jobID, dedupKey string) *models.Notification {
	out := *draft
	meta := draft.Metadata.Clone()
	meta[models.MetaDeduplicationKey] = dedupKey
	meta[models.MetaJobID] = jobID
	out.Metadata = meta
	return &out
}

// Notify stamps and persists a notification for the execution's organization.
// Returns true when a row was actually created. Dry runs and duplicate-key
// suppression return false with no error.
func (n *Notifier) Notify(ctx context.Context, ec *ExecContext, jobID string, draft *models.Notification, dedupKey string, lookback time.Duration) (bool, error) {
	notif := BuildNotification(draft, jobID, dedupKey)
	notif.ID = uuid.New()
	notif.OrganizationID = ec.OrgID
	notif.CreatedAt = ec.StartedAt.UTC()

	if ec.DryRun {
		slog.Info("dry run: would create notification",
			"job_id", jobID,
			"organization_id", ec.OrgID,
			"title", notif.Title,
		)
		return false, nil
	}

	if err := n.store.CreateNotification(ctx, notif); err != nil {
		// A concurrent run won the check-then-create race; treat the
		// uniqueness violation as suppression, not a failure.
		if errors.Is(err, store.ErrDuplicateKey) {
			return false, nil
		}
		return false, fmt.Errorf("create notification: %w", err)
	}

	if notif.UserID != nil {
		marker := cache.DedupMarkerKey(ec.OrgID, *notif.UserID, dedupKey)
		if err := n.cache.SetDedupMarker(ctx, marker, lookback); err != nil {
			slog.Warn("dedup marker write failed", "error", err, "job_id", jobID)
		}
	}
	return true, nil
}
