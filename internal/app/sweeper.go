package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/domain"
	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/metrics"
	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/platform/correlation"
)

const (
	defaultSweepInterval    = 1 * time.Hour
	defaultRetentionHorizon = 7 * 24 * time.Hour
)

// RetentionSweeper deletes processed events older than the retention
// horizon. Unprocessed events are never deleted regardless of age: an
// unprocessed backlog means the dispatch worker is stalled, and those
// events must stay recoverable.
type RetentionSweeper struct {
	store     domain.EventStore
	clock     clockwork.Clock
	interval  time.Duration
	retention time.Duration
}

func NewRetentionSweeper(store domain.EventStore, clock clockwork.Clock) *RetentionSweeper {
	return &RetentionSweeper{
		store:     store,
		clock:     clock,
		interval:  defaultSweepInterval,
		retention: defaultRetentionHorizon,
	}
}

// WithInterval overrides the sweep interval.
func (s *RetentionSweeper) WithInterval(d time.Duration) *RetentionSweeper {
	s.interval = d
	return s
}

// WithRetention overrides the retention horizon.
func (s *RetentionSweeper) WithRetention(d time.Duration) *RetentionSweeper {
	s.retention = d
	return s
}

// Run starts the periodic sweep loop. It blocks until ctx is cancelled.
func (s *RetentionSweeper) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			tickCtx := correlation.NewContext(ctx, correlation.New())
			if err := s.Sweep(tickCtx); err != nil {
				slog.ErrorContext(tickCtx, "Retention sweep failed", "error", err)
				metrics.SweeperTickErrorsTotal.Inc()
			}
		}
	}
}

// Sweep runs one retention pass.
func (s *RetentionSweeper) Sweep(ctx context.Context) error {
	horizon := s.clock.Now().Add(-s.retention)
	deleted, err := s.store.DeleteProcessedOlderThan(ctx, horizon)
	if err != nil {
		return fmt.Errorf("failed to delete expired events: %w", err)
	}
	if deleted > 0 {
		metrics.SweeperDeletedTotal.Add(float64(deleted))
		slog.InfoContext(ctx, "Retention sweep completed", "deleted", deleted, "horizon", horizon)
	}
	return nil
}
