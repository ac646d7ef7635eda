package model

import "time"

// EventType identifies a lifecycle notification.
type EventType string

const (
	EventEditPending    EventType = "edit_pending"
	EventEditRemoved    EventType = "edit_removed"
	EventChangeAccepted EventType = "change_accepted"
	EventChangeRejected EventType = "change_rejected"
	EventChangeResolved EventType = "change_resolved"
)

// Event is one fire-and-forget notification delivered to sinks.
type Event struct {
	Type         EventType `json:"event"`
	PermissionID string    `json:"permission_id,omitempty"`
	ChangeID     ChangeID  `json:"change_id,omitempty"`
	Status       string    `json:"status,omitempty"`
	FileCount    int       `json:"file_count,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}
