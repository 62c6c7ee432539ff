package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/osama1998H/lume-sub000/internal/events"
)

func TestEncodeWireFormat(t *testing.T) {
	frame := encodeWireFormat(258, []byte(`{"a":1}`))

	require.Equal(t, byte(0), frame[0])
	require.Equal(t, uint32(258), binary.BigEndian.Uint32(frame[1:5]))
	require.Equal(t, `{"a":1}`, string(frame[5:]))
}

func TestDeliverGroupsByTopicAndCachesSchemaIDs(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{id: 42}
	d := NewDispatcher(nil, producer, registry, time.Second, 10, WithLogger(log.New(io.Discard, "", 0)))

	messages := []Message{
		testMessage(t, 1, events.TypeTimelineReconciled, events.TimelineReconciled{CommandID: "c1", Kind: "merge"}),
		testMessage(t, 2, events.TypeActivityChanged, events.ActivityChanged{CommandID: "c1", Action: "update"}),
		testMessage(t, 3, events.TypeActivityChanged, events.ActivityChanged{CommandID: "c1", Action: "delete"}),
	}

	require.NoError(t, d.deliver(context.Background(), messages))
	require.Len(t, producer.writes, 1)
	require.Equal(t, TopicTimeline, producer.writes[0].topic)
	require.Len(t, producer.writes[0].messages, 3)
	require.Len(t, registry.calls, 2, "one registry call per subject")

	first := producer.writes[0].messages[0]
	require.Equal(t, "c1", string(first.Key))
	require.Equal(t, uint32(42), binary.BigEndian.Uint32(first.Value[1:5]))
	require.Equal(t, "event_type", first.Headers[0].Key)
	require.Equal(t, events.TypeTimelineReconciled, string(first.Headers[0].Value))

	require.NoError(t, d.deliver(context.Background(), messages[:1]))
	require.Len(t, registry.calls, 2, "cached schema id reused across batches")
}

func TestDeliverRejectsUnknownEventType(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{}
	d := NewDispatcher(nil, producer, registry, time.Second, 10)

	err := d.deliver(context.Background(), []Message{{EventID: 9, EventType: "timeline.unknown", Topic: TopicTimeline, Payload: json.RawMessage(`{}`)}})
	require.ErrorContains(t, err, "no schema metadata for event_type=timeline.unknown")
	require.Empty(t, producer.writes)
	require.Empty(t, registry.calls)
}

func TestDeliverPropagatesFailures(t *testing.T) {
	msg := testMessage(t, 1, events.TypeTimelineReconciled, events.TimelineReconciled{CommandID: "c1"})

	registryErr := errors.New("registry down")
	d := NewDispatcher(nil, &stubProducer{}, &stubRegistry{err: registryErr}, time.Second, 10)
	require.ErrorIs(t, d.deliver(context.Background(), []Message{msg}), registryErr)

	kafkaErr := errors.New("broker unavailable")
	d = NewDispatcher(nil, &stubProducer{err: kafkaErr}, &stubRegistry{}, time.Second, 10)
	err := d.deliver(context.Background(), []Message{msg})
	require.ErrorIs(t, err, kafkaErr)
	require.ErrorContains(t, err, "write "+TopicTimeline)
}

func TestBackoffDelayDoublesAndCaps(t *testing.T) {
	m := NewDLQManager(nil, 0, 0)
	require.Equal(t, 5, m.maxRetries)
	require.Equal(t, time.Minute, m.backoffDelay(1))
	require.Equal(t, 2*time.Minute, m.backoffDelay(2))
	require.Equal(t, 16*time.Minute, m.backoffDelay(5))
	require.Equal(t, time.Hour, m.backoffDelay(7))
	require.Equal(t, time.Hour, m.backoffDelay(40))
}

func TestCatalogCoversTimelineEvents(t *testing.T) {
	for _, eventType := range []string{events.TypeTimelineReconciled, events.TypeActivityChanged} {
		entry, ok := Lookup(eventType)
		require.True(t, ok, eventType)
		require.Equal(t, TopicTimeline, entry.Topic)
		require.True(t, json.Valid([]byte(entry.Schema)), eventType)
	}
}

func testMessage(t *testing.T, id int64, eventType string, payload any) Message {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	entry, ok := Lookup(eventType)
	require.True(t, ok)
	return Message{
		EventID:       id,
		AggregateType: "command",
		AggregateID:   "c1",
		EventType:     eventType,
		Topic:         entry.Topic,
		SchemaSubject: entry.SchemaSubject,
		PartitionKey:  "c1",
		Payload:       body,
	}
}
