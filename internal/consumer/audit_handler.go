package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/osama1998H/lume-sub000/internal/events"
)

// ErrUnknownEvent is returned for event types the audit log does not record.
var ErrUnknownEvent = errors.New("unknown timeline event type")

// AuditHandler appends timeline events to timeline_event_log. Redelivered offsets are ignored.
type AuditHandler struct {
	pool *pgxpool.Pool
}

// NewAuditHandler constructs an AuditHandler.
func NewAuditHandler(pool *pgxpool.Pool) *AuditHandler {
	return &AuditHandler{pool: pool}
}

// Handle implements Handler.
func (h *AuditHandler) Handle(ctx context.Context, msg Message) error {
	evt, err := decodeAudit(msg)
	if err != nil {
		return err
	}

	tag, err := h.pool.Exec(ctx,
		`INSERT INTO timeline_event_log (event_type, command_id, schema_id, schema_subject, topic, partition, record_offset, payload, received_at)
         VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
         ON CONFLICT (topic, partition, record_offset) DO NOTHING`,
		msg.EventType,
		evt.commandID,
		msg.SchemaID,
		msg.SchemaSubject,
		msg.Topic,
		msg.Partition,
		msg.Offset,
		msg.Payload,
		msg.Timestamp,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		recordRedelivered(msg)
		return nil
	}
	recordAudited(evt, msg.Timestamp)
	return nil
}

// auditEvent is a decoded timeline event. Exactly one payload field is set.
type auditEvent struct {
	commandID  string
	reconciled *events.TimelineReconciled
	changed    *events.ActivityChanged
}

// decodeAudit checks the payload shape for msg.EventType. The command id falls
// back to the record key.
func decodeAudit(msg Message) (auditEvent, error) {
	var evt auditEvent
	switch msg.EventType {
	case events.TypeTimelineReconciled:
		var payload events.TimelineReconciled
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return evt, fmt.Errorf("decode %s: %w", msg.EventType, err)
		}
		evt.commandID = payload.CommandID
		evt.reconciled = &payload
	case events.TypeActivityChanged:
		var payload events.ActivityChanged
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return evt, fmt.Errorf("decode %s: %w", msg.EventType, err)
		}
		evt.commandID = payload.CommandID
		evt.changed = &payload
	default:
		return evt, fmt.Errorf("%w: %s", ErrUnknownEvent, msg.EventType)
	}
	if evt.commandID == "" {
		evt.commandID = msg.CommandID
	}
	return evt, nil
}
