package model

import (
	"time"

	"github.com/google/uuid"
)

// MonitorEventType classifies live monitor events.
type MonitorEventType string

const (
	MonitorEventJoined    MonitorEventType = "joined"
	MonitorEventSubmitted MonitorEventType = "submitted"
	MonitorEventStarted   MonitorEventType = "started"
	MonitorEventEnded     MonitorEventType = "ended"
)

// MonitorEvent is broadcast to teachers watching a session live.
type MonitorEvent struct {
	Type       MonitorEventType `json:"type"`
	SessionID  uuid.UUID        `json:"session_id"`
	StudentID  string           `json:"student_id,omitempty"`
	Responses  int              `json:"responses,omitempty"`
	Score      *int             `json:"score,omitempty"`
	AutoSubmit bool             `json:"auto_submit,omitempty"`
	At         time.Time        `json:"at"`
}
