package idempotency

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds idempotency counters. A nil *Metrics records nothing.
type Metrics struct {
	requests      *prometheus.CounterVec
	storageErrors *prometheus.CounterVec
	dedup         *prometheus.CounterVec
}

// NewMetrics registers the idempotency collectors on registry
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wms",
			Name:      "idempotency_requests_total",
			Help:      "Idempotent requests by outcome (hit, miss, mismatch, concurrent)",
		}, []string{"endpoint", "method", "outcome"}),
		storageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wms",
			Name:      "idempotency_storage_errors_total",
			Help:      "Idempotency store failures by operation",
		}, []string{"operation"}),
		dedup: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wms",
			Name:      "message_deduplication_total",
			Help:      "Consumed messages by deduplication outcome",
		}, []string{"topic", "event_type", "outcome"}),
	}
	registry.MustRegister(m.requests, m.storageErrors, m.dedup)
	return m
}

func (m *Metrics) record(endpoint, method, outcome string) {
	if m != nil {
		m.requests.WithLabelValues(endpoint, method, outcome).Inc()
	}
}

func (m *Metrics) hit(endpoint, method string)        { m.record(endpoint, method, "hit") }
func (m *Metrics) miss(endpoint, method string)       { m.record(endpoint, method, "miss") }
func (m *Metrics) mismatch(endpoint, method string)   { m.record(endpoint, method, "mismatch") }
func (m *Metrics) concurrent(endpoint, method string) { m.record(endpoint, method, "concurrent") }

func (m *Metrics) storageError(operation string) {
	if m != nil {
		m.storageErrors.WithLabelValues(operation).Inc()
	}
}

func (m *Metrics) deduplicated(topic, eventType, outcome string) {
	if m != nil {
		m.dedup.WithLabelValues(topic, eventType, outcome).Inc()
	}
}
