package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds all the application metrics
type Metrics struct {
	// HTTP request metrics
	HTTPRequestTotal    *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Engine API call metrics
	EngineCallTotal    *prometheus.CounterVec
	EngineCallDuration *prometheus.HistogramVec

	// Fetch/reconcile workflow metrics
	WorkflowTotal    *prometheus.CounterVec
	WorkflowDuration *prometheus.HistogramVec

	// Storage operation metrics
	StorageOperationTotal    *prometheus.CounterVec
	StorageOperationDuration *prometheus.HistogramVec

	// Event publishing metrics
	EventPublishTotal    *prometheus.CounterVec
	EventPublishDuration *prometheus.HistogramVec

	// Channel document validation metrics
	SchemaValidationTotal *prometheus.CounterVec

	// Connected workspace stream clients
	StreamClients prometheus.Gauge
}

// Global metrics instance with mutex for thread safety
var (
	globalMetrics *Metrics
	metricsMutex  sync.Mutex
)

// NewMetrics creates a new Metrics instance with all required metrics
func NewMetrics() *Metrics {
	metricsMutex.Lock()
	defer metricsMutex.Unlock()

	// Return existing instance if already created
	if globalMetrics != nil {
		return globalMetrics
	}

	m := &Metrics{
		HTTPRequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "console_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),

		EngineCallTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_engine_calls_total",
			Help: "Total number of engine API calls",
		}, []string{"operation", "status"}),

		EngineCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "console_engine_call_duration_seconds",
			Help:    "Engine API call duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "status"}),

		WorkflowTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_workflow_runs_total",
			Help: "Total number of workflow runs by outcome",
		}, []string{"workflow", "status"}),

		WorkflowDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "console_workflow_duration_seconds",
			Help:    "Workflow run duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"workflow", "status"}),

		StorageOperationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_storage_operations_total",
			Help: "Total number of storage operations",
		}, []string{"operation", "status"}),

		StorageOperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "console_storage_operation_duration_seconds",
			Help:    "Storage operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "status"}),

		EventPublishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_event_publish_total",
			Help: "Total number of event publish operations",
		}, []string{"event_type", "status"}),

		EventPublishDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "console_event_publish_duration_seconds",
			Help:    "Event publish duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"event_type", "status"}),

		SchemaValidationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "console_schema_validation_total",
			Help: "Total number of channel document validations",
		}, []string{"status"}),

		StreamClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "console_stream_clients",
			Help: "Number of connected workspace stream clients",
		}),
	}

	// Register metrics with the default registry
	registerMetrics(m)

	// Store as global instance
	globalMetrics = m

	return m
}

// registerMetrics registers all metrics with the default registry
func registerMetrics(m *Metrics) {
	registerOrGet(m.HTTPRequestTotal)
	registerOrGet(m.HTTPRequestDuration)
	registerOrGet(m.EngineCallTotal)
	registerOrGet(m.EngineCallDuration)
	registerOrGet(m.WorkflowTotal)
	registerOrGet(m.WorkflowDuration)
	registerOrGet(m.StorageOperationTotal)
	registerOrGet(m.StorageOperationDuration)
	registerOrGet(m.EventPublishTotal)
	registerOrGet(m.EventPublishDuration)
	registerOrGet(m.SchemaValidationTotal)
	registerOrGet(m.StreamClients)
}

// registerOrGet tries to register a metric, returns the existing one if already registered
func registerOrGet(c prometheus.Collector) prometheus.Collector {
	if err := prometheus.Register(c); err != nil {
		// If already registered, return the existing collector
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector
		}
	}
	return c
}

// ObserveEngineCall records one engine API call.
func (m *Metrics) ObserveEngineCall(operation, status string, d time.Duration) {
	m.EngineCallTotal.WithLabelValues(operation, status).Inc()
	m.EngineCallDuration.WithLabelValues(operation, status).Observe(d.Seconds())
}

// ObserveWorkflow records one workflow run; status is fulfilled or rejected.
func (m *Metrics) ObserveWorkflow(workflow, status string, d time.Duration) {
	m.WorkflowTotal.WithLabelValues(workflow, status).Inc()
	m.WorkflowDuration.WithLabelValues(workflow, status).Observe(d.Seconds())
}

// ObserveStorage records one storage operation.
func (m *Metrics) ObserveStorage(operation string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.StorageOperationTotal.WithLabelValues(operation, status).Inc()
	m.StorageOperationDuration.WithLabelValues(operation, status).Observe(d.Seconds())
}

// ObservePublish records one event publish.
func (m *Metrics) ObservePublish(eventType string, err error, d time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.EventPublishTotal.WithLabelValues(eventType, status).Inc()
	m.EventPublishDuration.WithLabelValues(eventType, status).Observe(d.Seconds())
}

// ObserveValidation records one schema validation; status is valid or invalid.
func (m *Metrics) ObserveValidation(err error) {
	status := "valid"
	if err != nil {
		status = "invalid"
	}
	m.SchemaValidationTotal.WithLabelValues(status).Inc()
}

// ObserveHTTP records one HTTP request; path is the route pattern.
func (m *Metrics) ObserveHTTP(method, path string, status int, d time.Duration) {
	code := strconv.Itoa(status)
	m.HTTPRequestTotal.WithLabelValues(method, path, code).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, code).Observe(d.Seconds())
}
