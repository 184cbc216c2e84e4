// Package relay fans events out across server instances via Redis Pub/Sub.
//
// With a relay configured, the dispatch worker publishes each event to a
// shared channel instead of delivering to its local registry. Every
// instance, the dispatching one included, runs a subscriber that forwards
// received events to its own registry, so clients connected anywhere see
// the same stream.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/domain"
	"github.com/msusndrotcunit-boop/MSU-SND-RGMS-sub000/internal/metrics"
)

const dispatchChannel = "events:dispatch"

// Relay publishes dispatched events to the shared channel. It implements
// domain.EventSink so the dispatch worker can target it directly.
type Relay struct {
	client *Client
}

func New(client *Client) *Relay {
	return &Relay{client: client}
}

var _ domain.EventSink = (*Relay)(nil)

// Deliver publishes one event to the dispatch channel.
func (r *Relay) Deliver(ctx context.Context, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal relay event: %w", err)
	}
	if err := r.client.rdb.Publish(ctx, dispatchChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish relay event: %w", err)
	}
	metrics.RelayMessagesPublishedTotal.Inc()
	return nil
}

// Run subscribes to the dispatch channel and forwards each received event
// to sink until ctx is cancelled. Malformed payloads are logged and
// skipped; a sink failure is logged and does not stop the loop.
func (r *Relay) Run(ctx context.Context, sink domain.EventSink) {
	sub := r.client.rdb.Subscribe(ctx, dispatchChannel)
	defer func() { _ = sub.Close() }()

	slog.Info("relay subscriber started", "channel", dispatchChannel)

	msgCh := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			slog.Info("relay subscriber stopped")
			return
		case msg, ok := <-msgCh:
			if !ok {
				slog.Warn("relay subscription channel closed")
				return
			}
			var event domain.Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				slog.Error("failed to unmarshal relay event", "error", err)
				continue
			}
			metrics.RelayMessagesReceivedTotal.Inc()
			if err := sink.Deliver(ctx, event); err != nil {
				slog.Error("failed to deliver relay event", "error", err, "event_id", event.ID)
			}
		}
	}
}
