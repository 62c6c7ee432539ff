// Package events defines the payloads published when the timeline is reconciled.
package events

import "time"

// Event type names recorded in the outbox.
const (
	TypeTimelineReconciled = "timeline.reconciled"
	TypeActivityChanged    = "timeline.activity_changed"
)

// TimelineReconciled is emitted once per applied reconciliation command.
type TimelineReconciled struct {
	CommandID   string    `json:"command_id"`
	Kind        string    `json:"kind"`
	Resolution  string    `json:"resolution,omitempty"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	IssuedAt    time.Time `json:"issued_at"`
	Changes     int       `json:"changes"`
}

// ActivityChanged is emitted for every activity a command updated, deleted or created.
type ActivityChanged struct {
	CommandID    string    `json:"command_id"`
	Action       string    `json:"action"`
	SourceType   string    `json:"source_type"`
	ActivityID   int64     `json:"activity_id"`
	ActivityType string    `json:"activity_type"`
	Title        string    `json:"title"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
}
