package eventlog

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/domain"
	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/metrics"
)

// Publisher appends events on behalf of domain logic. Distribution is
// advisory: every failure is logged and swallowed so a publish can never
// roll back or block the state mutation that triggered it.
type Publisher struct {
	store domain.EventStore
}

func NewPublisher(store domain.EventStore) *Publisher {
	return &Publisher{store: store}
}

func (p *Publisher) Publish(ctx context.Context, typ domain.EventType, subjectID *int64, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to marshal event payload", "type", typ, "error", err)
		metrics.PublishFailuresTotal.Inc()
		return
	}

	e, err := p.store.Append(ctx, typ, subjectID, data)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to publish event", "type", typ, "error", err)
		metrics.PublishFailuresTotal.Inc()
		return
	}

	metrics.EventsPublishedTotal.WithLabelValues(string(typ)).Inc()
	slog.DebugContext(ctx, "Event published", "event_id", e.ID, "type", typ)
}
