package outbox

import "github.com/prometheus/client_golang/prometheus"

var (
	deliveredCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "lume",
		Subsystem: "outbox",
		Name:      "events_delivered_total",
		Help:      "Timeline events published to Kafka.",
	})

	failedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "lume",
		Subsystem: "outbox",
		Name:      "events_failed_total",
		Help:      "Timeline events that failed to publish and were routed to the DLQ.",
	})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "lume",
		Subsystem: "outbox",
		Name:      "batch_duration_seconds",
		Help:      "Time spent claiming, delivering and marking one outbox batch.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	dlqCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lume",
		Subsystem: "outbox",
		Name:      "events_dlq_total",
		Help:      "Timeline events routed to the dead-letter queue, by topic.",
	}, []string{"topic"})

	enqueuedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lume",
		Subsystem: "outbox",
		Name:      "events_enqueued_total",
		Help:      "Timeline events written to the outbox, by event type.",
	}, []string{"event_type"})
)

func init() {
	prometheus.MustRegister(deliveredCounter, failedCounter, batchDuration, dlqCounter, enqueuedCounter)
}
