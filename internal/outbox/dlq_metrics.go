package outbox

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// DLQ entry outcomes.
const (
	dlqRequeued    = "requeued"
	dlqRescheduled = "rescheduled"
	dlqQuarantined = "quarantined"
)

// uncataloguedEvent labels DLQ entries whose event type has no schema entry.
const uncataloguedEvent = "uncatalogued"

var (
	dlqOutcomeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lume",
		Subsystem: "dlq",
		Name:      "timeline_events_total",
		Help:      "Dead-lettered timeline events handled by the manager, by event type and outcome.",
	}, []string{"event_type", "outcome"})

	dlqBacklogGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "lume",
		Subsystem: "dlq",
		Name:      "backlog_events",
		Help:      "Timeline events waiting in the DLQ, by event type.",
	}, []string{"event_type"})

	dlqOldestGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "lume",
		Subsystem: "dlq",
		Name:      "oldest_event_age_seconds",
		Help:      "Age of the oldest waiting DLQ entry, by event type.",
	}, []string{"event_type"})
)

func init() {
	prometheus.MustRegister(dlqOutcomeCounter, dlqBacklogGauge, dlqOldestGauge)
}

// DLQReport summarises one DLQManager pass.
type DLQReport struct {
	Requeued    int
	Rescheduled int
	Quarantined int
}

// Empty reports whether the pass touched no entries.
func (r DLQReport) Empty() bool {
	return r.Requeued == 0 && r.Rescheduled == 0 && r.Quarantined == 0
}

func (r *DLQReport) record(entry dlqEntry, outcome string) {
	switch outcome {
	case dlqRequeued:
		r.Requeued++
	case dlqRescheduled:
		r.Rescheduled++
	case dlqQuarantined:
		r.Quarantined++
	}
	dlqOutcomeCounter.WithLabelValues(eventLabel(entry.EventType), outcome).Inc()
}

// eventLabel bounds label cardinality to the catalog.
func eventLabel(eventType string) string {
	if _, ok := catalog[eventType]; ok {
		return eventType
	}
	return uncataloguedEvent
}

// backlog is the waiting entry count and oldest entry age in seconds for one event type.
type backlog struct {
	count  int
	oldest float64
}

func refreshBacklog(ctx context.Context, pool *pgxpool.Pool) error {
	rows, err := pool.Query(ctx,
		`SELECT event_type, COUNT(*), EXTRACT(EPOCH FROM NOW() - MIN(created_at))::float8
           FROM outbox_dlq
          WHERE quarantined_at IS NULL
          GROUP BY event_type`)
	if err != nil {
		return err
	}
	defer rows.Close()

	byType := make(map[string]backlog)
	for rows.Next() {
		var eventType string
		var count int
		var age float64
		if err := rows.Scan(&eventType, &count, &age); err != nil {
			return err
		}
		label := eventLabel(eventType)
		b := byType[label]
		b.count += count
		b.oldest = max(b.oldest, age)
		byType[label] = b
	}
	if err := rows.Err(); err != nil {
		return err
	}
	setBacklog(byType)
	return nil
}

// setBacklog publishes every catalogued event type so drained types read zero.
func setBacklog(byType map[string]backlog) {
	for _, label := range append(EventTypes(), uncataloguedEvent) {
		b := byType[label]
		dlqBacklogGauge.WithLabelValues(label).Set(float64(b.count))
		dlqOldestGauge.WithLabelValues(label).Set(b.oldest)
	}
}
