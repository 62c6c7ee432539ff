// Package observability holds the service-wide Prometheus collectors.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	writeBackGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "lume",
		Subsystem: "reconcile",
		Name:      "last_write_back_timestamp_seconds",
		Help:      "Unix timestamp of the most recent reconciliation command written back to the sources.",
	})
	commandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lume",
		Subsystem: "reconcile",
		Name:      "commands_total",
		Help:      "Reconciliation commands by kind and outcome.",
	}, []string{"command", "outcome"})
	commandDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "lume",
		Subsystem: "reconcile",
		Name:      "command_duration_seconds",
		Help:      "Time spent executing a reconciliation command, lock wait included.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"command"})
	conflictsDetected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lume",
		Subsystem: "conflicts",
		Name:      "detected_total",
		Help:      "Conflicts returned by detection requests, by type.",
	}, []string{"type"})
	analyticsDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "lume",
		Subsystem: "analytics",
		Name:      "duration_seconds",
		Help:      "Time spent computing an analytics report, snapshot fetch included.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"report"})
)

func init() {
	prometheus.MustRegister(writeBackGauge, commandsTotal, commandDuration, conflictsDetected, analyticsDuration)
}

// RecordWriteBack updates the write-back watermark gauge.
func RecordWriteBack(ts time.Time) {
	if ts.IsZero() {
		return
	}
	writeBackGauge.Set(float64(ts.Unix()))
}

// RecordCommand counts a finished command and observes its latency.
func RecordCommand(command, outcome string, elapsed time.Duration) {
	commandsTotal.WithLabelValues(command, outcome).Inc()
	commandDuration.WithLabelValues(command).Observe(elapsed.Seconds())
}

// RecordConflicts adds per-type detection counts.
func RecordConflicts(counts map[string]int) {
	for kind, n := range counts {
		if n > 0 {
			conflictsDetected.WithLabelValues(kind).Add(float64(n))
		}
	}
}

// ObserveAnalytics records how long a report took.
func ObserveAnalytics(report string, elapsed time.Duration) {
	analyticsDuration.WithLabelValues(report).Observe(elapsed.Seconds())
}
