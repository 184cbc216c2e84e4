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
	defaultDispatchInterval = 1 * time.Second
	defaultDispatchBatch    = 100
)

// DispatchWorker periodically drains the unprocessed tail of the event log
// into the fan-out sinks. Delivery is best-effort: a per-event sink failure
// is logged and the event is still marked processed, because a missed live
// push is recoverable via replay for as long as the event exists. A failed
// tick leaves its batch unprocessed and the next tick retries it.
//
// Exactly one worker instance may run against a given log; markProcessed
// carries no claim semantics.
type DispatchWorker struct {
	store     domain.EventStore
	sinks     []domain.EventSink
	clock     clockwork.Clock
	interval  time.Duration
	batchSize int
}

func NewDispatchWorker(store domain.EventStore, clock clockwork.Clock, sinks ...domain.EventSink) *DispatchWorker {
	return &DispatchWorker{
		store:     store,
		sinks:     sinks,
		clock:     clock,
		interval:  defaultDispatchInterval,
		batchSize: defaultDispatchBatch,
	}
}

// WithInterval overrides the tick interval.
func (w *DispatchWorker) WithInterval(d time.Duration) *DispatchWorker {
	w.interval = d
	return w
}

// WithBatchSize overrides the per-tick batch bound.
func (w *DispatchWorker) WithBatchSize(n int) *DispatchWorker {
	w.batchSize = n
	return w
}

// Run starts the periodic dispatch loop. It blocks until ctx is cancelled.
func (w *DispatchWorker) Run(ctx context.Context) {
	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			tickCtx := correlation.NewContext(ctx, correlation.New())
			if err := w.Tick(tickCtx); err != nil {
				slog.ErrorContext(tickCtx, "Dispatch tick failed", "error", err)
				metrics.DispatchTickErrorsTotal.Inc()
			}
		}
	}
}

// Tick runs one dispatch pass: fetch a bounded unprocessed batch oldest
// first, hand every event to each sink, then mark the whole batch
// processed. Only store failures abort the tick.
func (w *DispatchWorker) Tick(ctx context.Context) error {
	start := w.clock.Now()
	defer func() {
		metrics.DispatchTickDuration.Observe(w.clock.Since(start).Seconds())
	}()

	events, err := w.store.ListUnprocessed(ctx, w.batchSize)
	if err != nil {
		return fmt.Errorf("failed to fetch unprocessed events: %w", err)
	}
	if len(events) == 0 {
		return nil
	}

	ids := make([]int64, 0, len(events))
	for _, e := range events {
		for _, sink := range w.sinks {
			if err := sink.Deliver(ctx, e); err != nil {
				slog.WarnContext(ctx, "Event delivery failed",
					"event_id", e.ID,
					"type", e.Type,
					"error", err,
				)
				metrics.DispatchDeliveryFailuresTotal.Inc()
			}
		}
		ids = append(ids, e.ID)
	}

	if err := w.store.MarkProcessed(ctx, ids); err != nil {
		return fmt.Errorf("failed to mark batch processed: %w", err)
	}

	metrics.EventsDispatchedTotal.Add(float64(len(ids)))
	slog.DebugContext(ctx, "Dispatch tick completed", "events", len(ids))
	return nil
}
