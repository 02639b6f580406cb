// Package metrics exposes Prometheus instrumentation for the audit log.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds audit pipeline instrumentation. A nil *Metrics is valid and
// disables collection, so unit tests can run without a registry.
type Metrics struct {
	EventsRecorded  prometheus.Counter
	EventsDelivered prometheus.Counter
	EventsDropped   prometheus.Counter
	FlushSuccesses  prometheus.Counter
	FlushFailures   prometheus.Counter
	QueueDepth      prometheus.Gauge
	FlushDuration   prometheus.Histogram
}

// New creates and registers all audit metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		EventsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mediglot_audit_events_recorded_total",
			Help: "Total number of audit events accepted by the in-process queue",
		}),
		EventsDelivered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mediglot_audit_events_delivered_total",
			Help: "Total number of audit events durably delivered to the sink",
		}),
		EventsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mediglot_audit_events_dropped_total",
			Help: "Total number of audit events discarded after exhausting delivery retries",
		}),
		FlushSuccesses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mediglot_audit_flush_successes_total",
			Help: "Total number of successful sink deliveries",
		}),
		FlushFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mediglot_audit_flush_failures_total",
			Help: "Total number of failed sink deliveries",
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "mediglot_audit_queue_depth",
			Help: "Current number of audit events waiting in the in-process queue",
		}),
		FlushDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "mediglot_audit_flush_duration_seconds",
			Help:    "Sink delivery latency per batch",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) IncEventsRecorded() {
	if m != nil {
		m.EventsRecorded.Inc()
	}
}

func (m *Metrics) AddEventsDelivered(n int) {
	if m != nil {
		m.EventsDelivered.Add(float64(n))
	}
}

func (m *Metrics) AddEventsDropped(n int) {
	if m != nil {
		m.EventsDropped.Add(float64(n))
	}
}

func (m *Metrics) IncFlushSuccesses() {
	if m != nil {
		m.FlushSuccesses.Inc()
	}
}

func (m *Metrics) IncFlushFailures() {
	if m != nil {
		m.FlushFailures.Inc()
	}
}

func (m *Metrics) SetQueueDepth(n int) {
	if m != nil {
		m.QueueDepth.Set(float64(n))
	}
}

func (m *Metrics) ObserveFlushDuration(seconds float64) {
	if m != nil {
		m.FlushDuration.Observe(seconds)
	}
}
