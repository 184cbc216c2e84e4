package app

import (
	"context"
	"fmt"

	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/domain"
	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/metrics"
)

// defaultReplayPageSize bounds one replay invocation so a far-behind client
// cannot trigger an unbounded catch-up storm. A client further behind than
// one page issues repeated requests.
const defaultReplayPageSize = 50

// ReplayResult summarizes one replay page.
type ReplayResult struct {
	// Count is the number of event frames emitted.
	Count int
	// LastEventID is the highest event id scanned, visible or not. The
	// client resumes from here; it can exceed the id of the last emitted
	// frame when trailing events on the page were invisible to the caller.
	LastEventID int64
}

// ReplayEngine re-delivers missed events to a reconnecting viewer. It is
// shared by both gateways; only the frame transport differs.
type ReplayEngine struct {
	store    domain.EventStore
	pageSize int
}

func NewReplayEngine(store domain.EventStore) *ReplayEngine {
	return &ReplayEngine{store: store, pageSize: defaultReplayPageSize}
}

// WithPageSize overrides the per-invocation page bound.
func (r *ReplayEngine) WithPageSize(n int) *ReplayEngine {
	r.pageSize = n
	return r
}

// Replay fetches up to one page of events with id greater than lastEventID,
// filters them by the caller's visibility, and emits each in ascending id
// order tagged replayed:true. The emit callback aborts the replay by
// returning an error (e.g. the connection went away mid-page).
func (r *ReplayEngine) Replay(ctx context.Context, identity domain.Identity, lastEventID int64, emit func(domain.EventFrame) error) (ReplayResult, error) {
	metrics.ReplayRequestsTotal.Inc()

	events, err := r.store.ListSince(ctx, lastEventID, r.pageSize)
	if err != nil {
		return ReplayResult{LastEventID: lastEventID}, fmt.Errorf("failed to fetch replay page: %w", err)
	}

	result := ReplayResult{LastEventID: lastEventID}
	for _, e := range events {
		result.LastEventID = e.ID
		if !identity.CanSee(e) {
			continue
		}
		if err := emit(domain.NewEventFrame(e, true)); err != nil {
			return result, fmt.Errorf("failed to emit replay frame: %w", err)
		}
		result.Count++
		metrics.ReplayFramesTotal.Inc()
	}
	return result, nil
}
