package domain

import (
	"context"
	"time"
)

// EventFilter narrows the operational event listing.
type EventFilter struct {
	Processed *bool
	SubjectID *int64
	Type      *EventType
	Limit     int
	Offset    int
}

// EventStore is the durable, append-only, id-ordered event log.
//
// Implementations must assign strictly increasing ids on Append, return
// ListSince/ListUnprocessed results oldest-first, and never reorder events
// already returned by a previous query.
type EventStore interface {
	// Append stores a new unprocessed event and assigns the next id.
	Append(ctx context.Context, typ EventType, subjectID *int64, payload []byte) (Event, error)

	// ListUnprocessed returns up to limit unprocessed events, oldest first.
	ListUnprocessed(ctx context.Context, limit int) ([]Event, error)

	// MarkProcessed flips processed for the given ids. Already-processed ids
	// are no-ops, keeping the flag monotonic.
	MarkProcessed(ctx context.Context, ids []int64) error

	// ListSince returns up to limit events with id strictly greater than
	// afterID, oldest first.
	ListSince(ctx context.Context, afterID int64, limit int) ([]Event, error)

	// DeleteProcessedOlderThan removes processed events created before
	// horizon and reports how many were deleted. Unprocessed events are
	// never touched.
	DeleteProcessedOlderThan(ctx context.Context, horizon time.Time) (int64, error)

	// List is the paginated, filterable read used by the operational
	// endpoint. Results are ascending by id.
	List(ctx context.Context, filter EventFilter) ([]Event, error)
}

// EventPublisher is the thin write path used by domain logic after a state
// mutation has committed. Publishing is best-effort and advisory: failures
// are logged, never raised back into the caller.
type EventPublisher interface {
	Publish(ctx context.Context, typ EventType, subjectID *int64, payload any)
}

// EventSink receives events from the dispatch worker. The local fan-out
// registry and the cross-process relay both implement it.
type EventSink interface {
	Deliver(ctx context.Context, e Event) error
}
