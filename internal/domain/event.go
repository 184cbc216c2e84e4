package domain

import (
	"encoding/json"
	"time"
)

// EventType is the closed set of event tags carried on the wire.
type EventType string

const (
	EventGradeUpdate          EventType = "grade_update"
	EventAttendanceUpdate     EventType = "attendance_update"
	EventExamScoreUpdate      EventType = "exam_score_update"
	EventNotification         EventType = "notification"
	EventMessage              EventType = "message"
	EventSync                 EventType = "sync_event"
	EventSystemSettingsUpdate EventType = "system_settings_update"
)

// eventTypes is the authoritative set used for validation.
var eventTypes = map[EventType]struct{}{
	EventGradeUpdate:          {},
	EventAttendanceUpdate:     {},
	EventExamScoreUpdate:      {},
	EventNotification:         {},
	EventMessage:              {},
	EventSync:                 {},
	EventSystemSettingsUpdate: {},
}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	_, ok := eventTypes[t]
	return ok
}

// Event is one immutable record of the distribution log. Events are
// append-only: the id is assigned by the store and strictly increasing,
// processed flips false→true exactly once and is never reset.
type Event struct {
	ID        int64           `db:"id" json:"id"`
	Type      EventType       `db:"type" json:"type"`
	SubjectID *int64          `db:"subject_id" json:"subject_id,omitempty"` // cadet the event concerns; nil = global
	Payload   json.RawMessage `db:"payload" json:"payload"`
	Processed bool            `db:"processed" json:"processed"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Global reports whether the event has no subject and is visible to everyone.
func (e Event) Global() bool {
	return e.SubjectID == nil
}
