// Package metrics defines the Prometheus instruments for the event
// distribution subsystem.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Publish path
var (
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_published_total",
			Help: "Events appended to the log by type",
		},
		[]string{"type"},
	)

	PublishFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_publish_failures_total",
			Help: "Publish attempts that failed to append (logged and swallowed)",
		},
	)
)

// Dispatch worker
var (
	EventsDispatchedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_events_total",
			Help: "Events handed to the fan-out layer and marked processed",
		},
	)

	DispatchDeliveryFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_delivery_failures_total",
			Help: "Per-event delivery failures (event still marked processed)",
		},
	)

	DispatchTickErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dispatch_tick_errors_total",
			Help: "Dispatch ticks abandoned due to a store failure",
		},
	)

	DispatchTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dispatch_tick_duration_seconds",
			Help:    "Duration of one dispatch tick",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)
)

// Fan-out registry
var (
	RegistryConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "registry_connected_clients",
			Help: "Live WebSocket connections registered for fan-out",
		},
	)

	RegistryGroups = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "registry_groups",
			Help: "Distinct connection groups currently populated",
		},
	)

	RegistrySlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "registry_slow_clients_evicted_total",
			Help: "Connections dropped because their send buffer overflowed",
		},
	)

	RegistryFramesPushedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "registry_frames_pushed_total",
			Help: "Event frames pushed to live connections",
		},
	)
)

// Gateways
var (
	WebSocketAuthFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_auth_failures_total",
			Help: "WebSocket connects refused before joining",
		},
	)

	WebSocketProtocolErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_protocol_errors_total",
			Help: "Malformed inbound frames answered with an error frame",
		},
	)

	WebSocketMessageSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "websocket_message_send_duration_seconds",
			Help:    "Time to write one frame to a WebSocket client",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		},
	)

	WebSocketPingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_ping_failures_total",
			Help: "Keepalive pings that failed to write",
		},
	)

	ReplayRequestsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "replay_requests_total",
			Help: "Replay invocations across both gateways",
		},
	)

	ReplayFramesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "replay_frames_total",
			Help: "Event frames re-delivered by the replay engine",
		},
	)

	SSEStreamsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sse_streams_active",
			Help: "Open event-stream connections",
		},
	)

	SSEEventsSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sse_events_sent_total",
			Help: "Event frames written to event-stream clients",
		},
	)
)

// Background jobs and relay
var (
	SweeperDeletedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sweeper_deleted_events_total",
			Help: "Processed events removed by the retention sweeper",
		},
	)

	SweeperTickErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sweeper_tick_errors_total",
			Help: "Retention sweeps abandoned due to a store failure",
		},
	)

	RelayMessagesPublishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_messages_published_total",
			Help: "Events published to the cross-process relay channel",
		},
	)

	RelayMessagesReceivedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_messages_received_total",
			Help: "Events received from the cross-process relay channel",
		},
	)

	RedisOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redis_operations_total",
			Help: "Redis commands executed by operation and status",
		},
		[]string{"operation", "status"},
	)

	RedisOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Duration of Redis commands by operation",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	RedisConnectionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "redis_connection_errors_total",
			Help: "Failed Redis connection attempts",
		},
	)
)
