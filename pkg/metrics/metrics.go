package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the task engine's prometheus collectors
type Metrics struct {
	serviceName string
	registry    *prometheus.Registry

	// HTTP
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Kafka
	KafkaEventsPublished *prometheus.CounterVec
	KafkaEventsConsumed  *prometheus.CounterVec
	KafkaPublishDuration *prometheus.HistogramVec

	// MongoDB
	MongoDBOperations        *prometheus.CounterVec
	MongoDBOperationDuration *prometheus.HistogramVec

	// Outbox
	OutboxPending   prometheus.Gauge
	OutboxPublished *prometheus.CounterVec
	OutboxRetries   *prometheus.CounterVec

	// Dispatcher
	TaskClaims          *prometheus.CounterVec
	TaskClaimConflicts  *prometheus.CounterVec
	TaskClaimDuration   *prometheus.HistogramVec
	TaskTransitions     *prometheus.CounterVec
	TaskReassignments   *prometheus.CounterVec
	CapacityDeferrals   *prometheus.CounterVec
	TasksCreated        *prometheus.CounterVec
	WavesReleased       *prometheus.CounterVec
	SlottingRunDuration *prometheus.HistogramVec
	ActiveSessions      prometheus.Gauge

	// Circuit breakers
	CircuitBreakerState *prometheus.GaugeVec
}

// Config holds metrics configuration
type Config struct {
	ServiceName string
	Namespace   string
}

// DefaultConfig returns default metrics configuration
func DefaultConfig(serviceName string) *Config {
	return &Config{
		ServiceName: serviceName,
		Namespace:   "wms",
	}
}

// New creates and registers all collectors on a private registry
func New(config *Config) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	ns := config.Namespace
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: ns, Name: name, Help: help}, append([]string{"service"}, labels...))
	}
	histogram := func(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
		return prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: ns, Name: name, Help: help, Buckets: buckets}, append([]string{"service"}, labels...))
	}
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Name:        name,
			Help:        help,
			ConstLabels: prometheus.Labels{"service": config.ServiceName},
		})
	}

	fast := []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5}

	m := &Metrics{
		serviceName: config.ServiceName,
		registry:    registry,

		HTTPRequestsTotal:    counter("http_requests_total", "Total number of HTTP requests", "method", "path", "status"),
		HTTPRequestDuration:  histogram("http_request_duration_seconds", "HTTP request duration in seconds", append(fast, 5, 10), "method", "path"),
		HTTPRequestsInFlight: gauge("http_requests_in_flight", "Number of HTTP requests currently being processed"),

		KafkaEventsPublished: counter("kafka_events_published_total", "Total number of Kafka events published", "topic", "event_type", "status"),
		KafkaEventsConsumed:  counter("kafka_events_consumed_total", "Total number of Kafka events consumed", "topic", "event_type", "status"),
		KafkaPublishDuration: histogram("kafka_publish_duration_seconds", "Kafka publish duration in seconds", fast, "topic"),

		MongoDBOperations:        counter("mongodb_operations_total", "Total number of MongoDB operations", "collection", "operation", "status"),
		MongoDBOperationDuration: histogram("mongodb_operation_duration_seconds", "MongoDB operation duration in seconds", fast, "collection", "operation"),

		OutboxPending:   gauge("outbox_pending_events", "Unpublished outbox events seen by the last poll"),
		OutboxPublished: counter("outbox_events_published_total", "Outbox events relayed to Kafka", "event_type", "status"),
		OutboxRetries:   counter("outbox_event_retries_total", "Outbox publish retries", "event_type"),

		TaskClaims:          counter("task_claims_total", "Claim attempts by outcome", "warehouse", "outcome"),
		TaskClaimConflicts:  counter("task_claim_conflicts_total", "Optimistic claim conflicts resolved by re-ranking", "warehouse", "zone"),
		TaskClaimDuration:   histogram("task_claim_duration_seconds", "Time to rank and claim a task", fast, "warehouse"),
		TaskTransitions:     counter("task_transitions_total", "Task status transitions", "task_type", "to_status"),
		TaskReassignments:   counter("task_reassignments_total", "Tasks released back to PENDING", "cause"),
		CapacityDeferrals:   counter("task_capacity_deferrals_total", "Claims deferred because a zone was at capacity", "warehouse", "zone"),
		TasksCreated:        counter("tasks_created_total", "Tasks created by source", "task_type", "source_type"),
		WavesReleased:       counter("waves_released_total", "Waves released", "wave_type"),
		SlottingRunDuration: histogram("slotting_recompute_duration_seconds", "Slotting recompute duration", []float64{.05, .1, .5, 1, 5, 15, 30, 60, 120}, "warehouse"),
		ActiveSessions:      gauge("worker_sessions_active", "Worker sessions with a recent heartbeat"),

		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		}, []string{"service", "name"}),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal, m.HTTPRequestDuration, m.HTTPRequestsInFlight,
		m.KafkaEventsPublished, m.KafkaEventsConsumed, m.KafkaPublishDuration,
		m.MongoDBOperations, m.MongoDBOperationDuration,
		m.OutboxPending, m.OutboxPublished, m.OutboxRetries,
		m.TaskClaims, m.TaskClaimConflicts, m.TaskClaimDuration, m.TaskTransitions,
		m.TaskReassignments, m.CapacityDeferrals, m.TasksCreated, m.WavesReleased,
		m.SlottingRunDuration, m.ActiveSessions,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns an HTTP handler for metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Registry returns the prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(m.serviceName, method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(m.serviceName, method, path).Observe(duration.Seconds())
}

// IncrementHTTPRequestsInFlight increments in-flight requests
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements in-flight requests
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	m.HTTPRequestsInFlight.Dec()
}

// RecordKafkaPublish records a Kafka publish event
func (m *Metrics) RecordKafkaPublish(topic, eventType string, success bool, duration time.Duration) {
	m.KafkaEventsPublished.WithLabelValues(m.serviceName, topic, eventType, statusLabel(success)).Inc()
	m.KafkaPublishDuration.WithLabelValues(m.serviceName, topic).Observe(duration.Seconds())
}

// RecordKafkaConsume records a Kafka consume event
func (m *Metrics) RecordKafkaConsume(topic, eventType string, success bool) {
	m.KafkaEventsConsumed.WithLabelValues(m.serviceName, topic, eventType, statusLabel(success)).Inc()
}

// RecordMongoDBOperation records a MongoDB operation
func (m *Metrics) RecordMongoDBOperation(collection, operation string, success bool, duration time.Duration) {
	m.MongoDBOperations.WithLabelValues(m.serviceName, collection, operation, statusLabel(success)).Inc()
	m.MongoDBOperationDuration.WithLabelValues(m.serviceName, collection, operation).Observe(duration.Seconds())
}

// SetOutboxPending sets the number of unpublished outbox events
func (m *Metrics) SetOutboxPending(count int) {
	m.OutboxPending.Set(float64(count))
}

// RecordOutboxPublish records an outbox relay attempt
func (m *Metrics) RecordOutboxPublish(eventType string, success bool, _ time.Duration) {
	m.OutboxPublished.WithLabelValues(m.serviceName, eventType, statusLabel(success)).Inc()
}

// RecordOutboxRetry records an outbox retry
func (m *Metrics) RecordOutboxRetry(eventType string) {
	m.OutboxRetries.WithLabelValues(m.serviceName, eventType).Inc()
}

// RecordClaim records a claim call. outcome is one of claimed, empty,
// deferred or rejected.
func (m *Metrics) RecordClaim(warehouseID, outcome string, duration time.Duration) {
	m.TaskClaims.WithLabelValues(m.serviceName, warehouseID, outcome).Inc()
	m.TaskClaimDuration.WithLabelValues(m.serviceName, warehouseID).Observe(duration.Seconds())
}

// RecordClaimConflict records one lost optimistic claim
func (m *Metrics) RecordClaimConflict(warehouseID, zone string) {
	m.TaskClaimConflicts.WithLabelValues(m.serviceName, warehouseID, zone).Inc()
}

// RecordTaskTransition records a task moving to a new status
func (m *Metrics) RecordTaskTransition(taskType, toStatus string) {
	m.TaskTransitions.WithLabelValues(m.serviceName, taskType, toStatus).Inc()
}

// RecordReassignment records a claim released back to PENDING
func (m *Metrics) RecordReassignment(cause string) {
	m.TaskReassignments.WithLabelValues(m.serviceName, cause).Inc()
}

// RecordCapacityDeferral records a claim skipped because a zone was full
func (m *Metrics) RecordCapacityDeferral(warehouseID, zone string) {
	m.CapacityDeferrals.WithLabelValues(m.serviceName, warehouseID, zone).Inc()
}

// RecordTasksCreated records newly created tasks
func (m *Metrics) RecordTasksCreated(taskType, sourceType string, count int) {
	m.TasksCreated.WithLabelValues(m.serviceName, taskType, sourceType).Add(float64(count))
}

// RecordWaveReleased records a wave release
func (m *Metrics) RecordWaveReleased(waveType string) {
	m.WavesReleased.WithLabelValues(m.serviceName, waveType).Inc()
}

// RecordSlottingRun records a slotting recompute for one warehouse
func (m *Metrics) RecordSlottingRun(warehouseID string, duration time.Duration) {
	m.SlottingRunDuration.WithLabelValues(m.serviceName, warehouseID).Observe(duration.Seconds())
}

// SetActiveSessions sets the number of live worker sessions
func (m *Metrics) SetActiveSessions(count int) {
	m.ActiveSessions.Set(float64(count))
}

// SetCircuitBreakerState sets the circuit breaker state
func (m *Metrics) SetCircuitBreakerState(name string, state int) {
	m.CircuitBreakerState.WithLabelValues(m.serviceName, name).Set(float64(state))
}
