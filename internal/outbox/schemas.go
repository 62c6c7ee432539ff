package outbox

import (
	"maps"
	"slices"

	"github.com/osama1998H/lume-sub000/internal/events"
)

// TopicTimeline carries every reconciliation event so a command's events share one ordered log.
const TopicTimeline = "timeline_events"

// CatalogEntry routes an event type to its topic, subject and JSON schema.
type CatalogEntry struct {
	Topic         string
	SchemaSubject string
	Schema        string
}

var catalog = map[string]CatalogEntry{
	events.TypeTimelineReconciled: {
		Topic:         TopicTimeline,
		SchemaSubject: "timeline_events-reconciled-value",
		Schema:        timelineReconciledSchema,
	},
	events.TypeActivityChanged: {
		Topic:         TopicTimeline,
		SchemaSubject: "timeline_events-activity_changed-value",
		Schema:        activityChangedSchema,
	},
}

// Lookup returns the routing entry for eventType.
func Lookup(eventType string) (CatalogEntry, bool) {
	entry, ok := catalog[eventType]
	return entry, ok
}

// EventTypes lists the catalogued event types in sorted order.
func EventTypes() []string {
	return slices.Sorted(maps.Keys(catalog))
}

// Topics lists the distinct topics timeline events are published to.
func Topics() []string {
	topics := make([]string, 0, 1)
	for _, entry := range catalog {
		if !slices.Contains(topics, entry.Topic) {
			topics = append(topics, entry.Topic)
		}
	}
	slices.Sort(topics)
	return topics
}

const timelineReconciledSchema = `{
  "type": "object",
  "title": "TimelineReconciled",
  "properties": {
    "command_id": {"type": "string"},
    "kind": {"type": "string", "enum": ["merge", "split", "resolve", "auto_merge"]},
    "resolution": {"type": "string"},
    "window_start": {"type": "string", "format": "date-time"},
    "window_end": {"type": "string", "format": "date-time"},
    "issued_at": {"type": "string", "format": "date-time"},
    "changes": {"type": "integer"}
  },
  "required": ["command_id", "kind", "window_start", "window_end", "issued_at", "changes"],
  "additionalProperties": false
}`

const activityChangedSchema = `{
  "type": "object",
  "title": "TimelineActivityChanged",
  "properties": {
    "command_id": {"type": "string"},
    "action": {"type": "string", "enum": ["update", "delete", "create"]},
    "source_type": {"type": "string", "enum": ["manual", "automatic", "pomodoro"]},
    "activity_id": {"type": "integer"},
    "activity_type": {"type": "string"},
    "title": {"type": "string"},
    "start_time": {"type": "string", "format": "date-time"},
    "end_time": {"type": "string", "format": "date-time"}
  },
  "required": ["command_id", "action", "source_type", "activity_id", "activity_type", "start_time", "end_time"],
  "additionalProperties": false
}`
