// Package metrics provides Prometheus metrics for the csvmerge service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the csvmerge service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Merge metrics
	merges         *prometheus.CounterVec
	mergeLatency   prometheus.Histogram
	rowsProduced   prometheus.Counter
	rowsDiscarded  *prometheus.CounterVec
	uploadBytes    prometheus.Histogram
	mergeEntities  prometheus.Histogram
	mergeWindowDay prometheus.Histogram

	// Store metrics
	storedRecords prometheus.Gauge
	sweptRecords  prometheus.Counter
	storeLatency  *prometheus.HistogramVec

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error metrics
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "csvmerge",
		subsystem:        "service",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
		Buckets:     buckets,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric definition
	auto := promauto.With(m.registry)

	m.merges = auto.NewCounterVec(
		m.counterOpts("merges_total", "Merge requests by result (ok, invalid, error)"),
		[]string{"result"},
	)
	m.mergeLatency = auto.NewHistogram(
		m.histogramOpts("merge_latency_milliseconds", "Time spent merging one request in milliseconds", m.histogramBuckets),
	)
	m.rowsProduced = auto.NewCounter(
		m.counterOpts("rows_produced_total", "Output rows produced by successful merges"),
	)
	m.rowsDiscarded = auto.NewCounterVec(
		m.counterOpts("rows_discarded_total", "Input rows left out of the output by reason"),
		[]string{"reason"},
	)
	m.uploadBytes = auto.NewHistogram(
		m.histogramOpts("upload_bytes", "Size of uploaded request bodies in bytes",
			prometheus.ExponentialBuckets(1024, 4, 10)),
	)
	m.mergeEntities = auto.NewHistogram(
		m.histogramOpts("merge_entities", "Directory entities per merge",
			prometheus.ExponentialBuckets(1, 4, 10)),
	)
	m.mergeWindowDay = auto.NewHistogram(
		m.histogramOpts("merge_window_days", "Calendar days per merge window",
			prometheus.ExponentialBuckets(1, 3, 9)),
	)

	m.storedRecords = auto.NewGauge(
		m.gaugeOpts("stored_records", "Records currently held by the record store"),
	)
	m.sweptRecords = auto.NewCounter(
		m.counterOpts("swept_records_total", "Records removed by retention sweeps"),
	)
	m.storeLatency = auto.NewHistogramVec(
		m.histogramOpts("store_latency_milliseconds", "Record store operation latency in milliseconds", m.histogramBuckets),
		[]string{"backend", "operation"},
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Errors by component and type"),
		[]string{"component", "error_type"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Errors by HTTP endpoint"),
		[]string{"endpoint", "method", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(
		m.gaugeOpts("system_memory_bytes", "Heap memory in use in bytes"),
	)
	m.systemGoroutineCount = auto.NewGauge(
		m.gaugeOpts("system_goroutines", "Current number of goroutines"),
	)
	m.systemGCPauseTime = auto.NewHistogram(
		m.histogramOpts("system_gc_pause_milliseconds", "Average GC pause in milliseconds", m.histogramBuckets),
	)
}

// RecordMerge counts a merge attempt by result.
func RecordMerge(result string) {
	globalManager.merges.WithLabelValues(result).Inc()
}

// RecordMergeLatency records the duration of one merge in milliseconds.
func RecordMergeLatency(latencyMs float64) {
	globalManager.mergeLatency.Observe(latencyMs)
}

// RecordMergeShape records the size of a successful merge.
func RecordMergeShape(entities, days, rows int) {
	globalManager.mergeEntities.Observe(float64(entities))
	globalManager.mergeWindowDay.Observe(float64(days))
	globalManager.rowsProduced.Add(float64(rows))
}

// RecordRowsDiscarded adds n discarded input rows for reason.
func RecordRowsDiscarded(reason string, n int) {
	if n <= 0 {
		return
	}
	globalManager.rowsDiscarded.WithLabelValues(reason).Add(float64(n))
}

// RecordUploadBytes records the size of an upload.
func RecordUploadBytes(n int64) {
	globalManager.uploadBytes.Observe(float64(n))
}

// UpdateStoredRecords sets the stored records gauge.
func UpdateStoredRecords(count int) {
	globalManager.storedRecords.Set(float64(count))
}

// RecordSweptRecords adds records removed by a retention sweep.
func RecordSweptRecords(n int) {
	if n <= 0 {
		return
	}
	globalManager.sweptRecords.Add(float64(n))
}

// RecordStoreLatency records one store operation in milliseconds.
func RecordStoreLatency(backend, operation string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(backend, operation).Observe(latencyMs)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error for a component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error for an HTTP endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets heap memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
