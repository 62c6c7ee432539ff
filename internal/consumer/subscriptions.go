package consumer

import (
	"fmt"
	"slices"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/osama1998H/lume-sub000/internal/outbox"
)

// Subscriptions resolves the topics the audit consumer reads. An empty list
// selects every topic in the event catalog.
func Subscriptions(configured []string) ([]string, error) {
	catalogued := outbox.Topics()
	if len(configured) == 0 {
		return catalogued, nil
	}
	out := make([]string, 0, len(configured))
	for _, topic := range configured {
		if !slices.Contains(catalogued, topic) {
			return nil, fmt.Errorf("topic %q carries no timeline events (known: %v)", topic, catalogued)
		}
		if !slices.Contains(out, topic) {
			out = append(out, topic)
		}
	}
	return out, nil
}

// ReaderConfig is the group reader setup for one timeline topic.
func ReaderConfig(brokers []string, group, topic string) kafka.ReaderConfig {
	return kafka.ReaderConfig{
		Brokers:         brokers,
		GroupID:         group,
		Topic:           topic,
		MinBytes:        1e3,
		MaxBytes:        10e6,
		CommitInterval:  time.Second,
		RetentionTime:   24 * time.Hour,
		ReadLagInterval: -1,
	}
}
