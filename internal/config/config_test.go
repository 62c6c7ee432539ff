package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()
	require.Equal(t, ":8080", cfg.HTTPAddress)
	require.Equal(t, []string{"kafka:9092"}, cfg.KafkaBrokers)
	require.Equal(t, "longest", cfg.MergeStrategy)
	require.Equal(t, 70.0, cfg.DuplicateThreshold)
	require.Equal(t, time.Minute, cfg.DuplicateTolerance)
	require.Equal(t, int64(60), cfg.AutoMergeSeconds)
	require.Equal(t, 50, cfg.DLQBatchSize)
	require.Empty(t, cfg.ConsumerTopics)
	require.Equal(t, time.UTC, cfg.Location())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " a:9092, ,b:9092 ")
	t.Setenv("DUPLICATE_THRESHOLD", "85.5")
	t.Setenv("GAP_MINIMUM", "15m")
	t.Setenv("OUTBOX_BATCH_SIZE", "not-a-number")
	t.Setenv("TIMEZONE", "Europe/Berlin")
	t.Setenv("DLQ_BATCH_SIZE", "10")
	t.Setenv("CONSUMER_TOPICS", "timeline_events,")

	cfg := Load()
	require.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 85.5, cfg.DuplicateThreshold)
	require.Equal(t, 15*time.Minute, cfg.GapMinimum)
	require.Equal(t, 25, cfg.OutboxBatchSize)
	require.Equal(t, "Europe/Berlin", cfg.Location().String())
	require.Equal(t, 10, cfg.DLQBatchSize)
	require.Equal(t, []string{"timeline_events"}, cfg.ConsumerTopics)
}
