package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Event is a pending outbox row. Payload is marshalled to JSON.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	PartitionKey  string
	DedupeKey     string
	Payload       any
}

// Enqueue inserts evt inside tx. A repeated DedupeKey is ignored.
func Enqueue(ctx context.Context, tx pgx.Tx, evt Event) error {
	entry, ok := catalog[evt.EventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", evt.EventType)
	}

	body, err := json.Marshal(evt.Payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", evt.EventType, err)
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (dedupe_key) DO NOTHING`

	_, err = tx.Exec(ctx, stmt,
		evt.AggregateType,
		evt.AggregateID,
		evt.EventType,
		entry.Topic,
		entry.SchemaSubject,
		evt.PartitionKey,
		body,
		nullIfEmpty(evt.DedupeKey),
	)
	if err != nil {
		return err
	}
	enqueuedCounter.WithLabelValues(evt.EventType).Inc()
	return nil
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}
