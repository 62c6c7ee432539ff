package consumer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	processedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lume",
		Subsystem: "consumer",
		Name:      "events_processed_total",
		Help:      "Timeline events handled and committed, by event type.",
	}, []string{"event_type"})

	handlerErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lume",
		Subsystem: "consumer",
		Name:      "handler_errors_total",
		Help:      "Handler failures by event type.",
	}, []string{"event_type"})

	decodeErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lume",
		Subsystem: "consumer",
		Name:      "decode_errors_total",
		Help:      "Records that could not be decoded, by topic.",
	}, []string{"topic"})

	auditedCommandsCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lume",
		Subsystem: "consumer",
		Name:      "audited_commands_total",
		Help:      "Reconciliation commands recorded in the audit log, by command kind.",
	}, []string{"kind"})

	auditedChangesCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lume",
		Subsystem: "consumer",
		Name:      "audited_activity_changes_total",
		Help:      "Activity changes recorded in the audit log, by action and source.",
	}, []string{"action", "source_type"})

	redeliveredCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lume",
		Subsystem: "consumer",
		Name:      "redelivered_events_total",
		Help:      "Events whose offset was already in the audit log, by event type.",
	}, []string{"event_type"})

	publishLagHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "lume",
		Subsystem: "consumer",
		Name:      "command_publish_lag_seconds",
		Help:      "Delay between a reconciliation command being issued and its event reaching Kafka.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})
)

func init() {
	prometheus.MustRegister(
		processedCounter,
		handlerErrorCounter,
		decodeErrorCounter,
		auditedCommandsCounter,
		auditedChangesCounter,
		redeliveredCounter,
		publishLagHistogram,
	)
}

func recordProcessed(msg Message) {
	processedCounter.WithLabelValues(msg.EventType).Inc()
}

func recordHandlerError(msg Message) {
	handlerErrorCounter.WithLabelValues(msg.EventType).Inc()
}

func recordDecodeError(topic string) {
	decodeErrorCounter.WithLabelValues(topic).Inc()
}

func recordRedelivered(msg Message) {
	redeliveredCounter.WithLabelValues(msg.EventType).Inc()
}

// recordAudited counts a first-time audit record. published is the Kafka record time.
func recordAudited(evt auditEvent, published time.Time) {
	switch {
	case evt.reconciled != nil:
		auditedCommandsCounter.WithLabelValues(evt.reconciled.Kind).Inc()
		if evt.reconciled.IssuedAt.IsZero() || published.IsZero() {
			return
		}
		if lag := published.Sub(evt.reconciled.IssuedAt); lag >= 0 {
			publishLagHistogram.Observe(lag.Seconds())
		}
	case evt.changed != nil:
		auditedChangesCounter.WithLabelValues(evt.changed.Action, evt.changed.SourceType).Inc()
	}
}
