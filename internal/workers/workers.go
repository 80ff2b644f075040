package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// EventPruner deletes webhook events received before a unix timestamp.
type EventPruner interface {
	DeleteReceivedBefore(ctx context.Context, before int64) (int64, error)
}

// AuditPruner deletes audit entries created before a unix timestamp.
type AuditPruner interface {
	DeleteBefore(ctx context.Context, before int64) (int64, error)
}

// Pruners groups the stores the retention worker trims. A nil field is
// skipped.
type Pruners struct {
	Events EventPruner
	Audit  AuditPruner
}

func cutoff(retention time.Duration, now time.Time) (int64, error) {
	if retention <= 0 {
		return 0, fmt.Errorf("retention must be positive, got %s", retention)
	}
	return now.Add(-retention).Unix(), nil
}

// PruneWebhookEvents removes events older than retention, measured from now.
func PruneWebhookEvents(ctx context.Context, pruner EventPruner, retention time.Duration, now time.Time) (int64, error) {
	before, err := cutoff(retention, now)
	if err != nil {
		return 0, err
	}

	removed, err := pruner.DeleteReceivedBefore(ctx, before)
	if err != nil {
		return 0, err
	}

	log.Info().Int64("removed", removed).Int64("cutoff", before).Msg("pruned webhook events")
	return removed, nil
}

// PruneAuditEntries removes audit entries older than retention, measured
// from now.
func PruneAuditEntries(ctx context.Context, pruner AuditPruner, retention time.Duration, now time.Time) (int64, error) {
	before, err := cutoff(retention, now)
	if err != nil {
		return 0, err
	}

	removed, err := pruner.DeleteBefore(ctx, before)
	if err != nil {
		return 0, err
	}

	log.Info().Int64("removed", removed).Int64("cutoff", before).Msg("pruned audit entries")
	return removed, nil
}

// PruneOnce trims every configured store. It keeps going after a failure and
// returns the first error.
func PruneOnce(ctx context.Context, p Pruners, retention time.Duration, now time.Time) error {
	var first error
	if p.Events != nil {
		if _, err := PruneWebhookEvents(ctx, p.Events, retention, now); err != nil {
			log.Error().Err(err).Msg("webhook event pruning failed")
			first = err
		}
	}
	if p.Audit != nil {
		if _, err := PruneAuditEntries(ctx, p.Audit, retention, now); err != nil {
			log.Error().Err(err).Msg("audit entry pruning failed")
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// RunPruner prunes once immediately, then every interval until ctx is done.
func RunPruner(ctx context.Context, p Pruners, retention, interval time.Duration) {
	PruneOnce(ctx, p, retention, time.Now())

	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			PruneOnce(ctx, p, retention, time.Now())
		}
	}
}
