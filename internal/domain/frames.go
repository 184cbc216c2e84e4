package domain

import (
	"encoding/json"
	"time"
)

// Control frame types exchanged with viewers. Event frames reuse the
// EventType tag directly, so the full outbound set is these constants plus
// every EventType.
const (
	FrameConnectionEstablished = "connection_established"
	FramePong                  = "pong"
	FrameError                 = "error"
	FrameReplayComplete        = "replay_complete"

	FramePing          = "ping"
	FrameReplayRequest = "replay_request"
)

// InboundFrame is a decoded client control message. Unknown Type values are
// answered with an error frame; the connection survives.
type InboundFrame struct {
	Type        string `json:"type"`
	Timestamp   int64  `json:"timestamp,omitempty"`
	LastEventID int64  `json:"last_event_id,omitempty"`
}

// ConnectionEstablishedFrame is sent once after a viewer joins, so the
// client can self-verify the identity the server resolved.
type ConnectionEstablishedFrame struct {
	Type    string `json:"type"`
	UserID  int64  `json:"user_id"`
	Role    Role   `json:"role"`
	CadetID *int64 `json:"cadet_id,omitempty"`
}

// PongFrame answers a ping, echoing the client's timestamp.
type PongFrame struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// ErrorFrame reports an in-band protocol error without closing the
// connection.
type ErrorFrame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ReplayCompleteFrame terminates one replay page. Count is the number of
// event frames emitted; LastEventID is the highest id scanned, so a far
// behind client can issue the next request from there even when every event
// on the page was invisible to it.
type ReplayCompleteFrame struct {
	Type        string `json:"type"`
	Count       int    `json:"count"`
	LastEventID int64  `json:"last_event_id"`
}

// EventFrame is the wire form of one event, pushed live or replayed.
type EventFrame struct {
	Type      EventType       `json:"type"`
	ID        int64           `json:"id"`
	SubjectID *int64          `json:"subject_id,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	Replayed  bool            `json:"replayed,omitempty"`
}

// NewConnectionEstablished builds the join acknowledgement for id.
func NewConnectionEstablished(id Identity) ConnectionEstablishedFrame {
	return ConnectionEstablishedFrame{
		Type:    FrameConnectionEstablished,
		UserID:  id.UserID,
		Role:    id.Role,
		CadetID: id.CadetID,
	}
}

// NewEventFrame converts a stored event into its wire form.
func NewEventFrame(e Event, replayed bool) EventFrame {
	return EventFrame{
		Type:      e.Type,
		ID:        e.ID,
		SubjectID: e.SubjectID,
		Payload:   e.Payload,
		CreatedAt: e.CreatedAt,
		Replayed:  replayed,
	}
}
