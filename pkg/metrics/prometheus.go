// Package metrics provides Prometheus metrics for the cadhub coordinator.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// defaultLatencyBuckets are in milliseconds, like every latency recorder here.
var defaultLatencyBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000} //nolint:gochecknoglobals // read-only defaults

// Manager manages all Prometheus metrics for the hub.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Request lifecycle
	requestsCreated  *prometheus.CounterVec
	requestsFinished *prometheus.CounterVec
	storedResults    prometheus.Gauge
	evictedResults   prometheus.Counter

	// Completion backend
	completionLatency prometheus.Histogram
	completionErrors  prometheus.Counter
	normalizeFailures prometheus.Counter

	// CAD delivery
	deliveries     *prometheus.CounterVec
	deliveryErrors prometheus.Counter

	// Push channel
	connectedClients *prometheus.GaugeVec
	pushMessages     *prometheus.CounterVec
	pushDropped      prometheus.Counter
	schemaParameters prometheus.Gauge

	// Background prompt jobs
	jobQueueSize    prometheus.Gauge
	jobsRejected    prometheus.Counter
	jobLatency      prometheus.Histogram
	workerBusyCount prometheus.Gauge

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error tracking
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System Performance Metrics
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
		namespace:        "cadhub",
		subsystem:        "hub",
		histogramBuckets: defaultLatencyBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	m.requestsCreated = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "requests_created_total",
		Help:        "Requests accepted for processing by origin",
		ConstLabels: labels,
	}, []string{"source"})

	m.requestsFinished = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "requests_finished_total",
		Help:        "Requests that reached a terminal status",
		ConstLabels: labels,
	}, []string{"status"})

	m.storedResults = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "stored_results",
		Help:        "Requests currently held by the result store",
		ConstLabels: labels,
	})

	m.evictedResults = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "evicted_results_total",
		Help:        "Requests removed by TTL expiry",
		ConstLabels: labels,
	})

	m.completionLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "completion_latency_milliseconds",
		Help:        "Completion backend call latency in milliseconds",
		Buckets:     []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000, 120000},
		ConstLabels: labels,
	})

	m.completionErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "completion_errors_total",
		Help:        "Failed completion backend calls",
		ConstLabels: labels,
	})

	m.normalizeFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "normalize_failures_total",
		Help:        "Completion outputs that could not be decoded into a parameter update",
		ConstLabels: labels,
	})

	m.deliveries = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "deliveries_total",
		Help:        "Parameter updates delivered to the CAD side by transport",
		ConstLabels: labels,
	}, []string{"transport"})

	m.deliveryErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "delivery_errors_total",
		Help:        "Parameter updates that could not be delivered to the CAD side",
		ConstLabels: labels,
	})

	m.connectedClients = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "connected_clients",
		Help:        "Live push-channel connections by role",
		ConstLabels: labels,
	}, []string{"role"})

	m.pushMessages = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "push_messages_total",
		Help:        "Push-channel messages queued for delivery by event",
		ConstLabels: labels,
	}, []string{"event"})

	m.pushDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "push_dropped_total",
		Help:        "Push-channel messages dropped because a connection buffer was full",
		ConstLabels: labels,
	})

	m.schemaParameters = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "schema_parameters",
		Help:        "Parameters in the current schema",
		ConstLabels: labels,
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests by endpoint and method",
			ConstLabels: labels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "http_request_duration_milliseconds",
			Help:        "HTTP request duration in milliseconds",
			Buckets:     m.histogramBuckets,
			ConstLabels: labels,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "errors_by_component_total",
			Help:        "Errors by component and type",
			ConstLabels: labels,
		},
		[]string{"component", "error_type"},
	)

	m.errorRateByType = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "errors_by_type_total",
			Help:        "Errors by type and severity",
			ConstLabels: labels,
		},
		[]string{"error_type", "severity"},
	)

	m.errorRateByEndpoint = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "errors_by_endpoint_total",
			Help:        "Errors by HTTP endpoint",
			ConstLabels: labels,
		},
		[]string{"endpoint", "method", "error_type"},
	)

	m.errorLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "error_latency_milliseconds",
			Help:        "Latency of operations that resulted in an error",
			Buckets:     m.histogramBuckets,
			ConstLabels: labels,
		},
		[]string{"component", "error_type"},
	)

	m.jobQueueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "job_queue_size",
		Help:        "Prompt jobs waiting for a worker",
		ConstLabels: labels,
	})

	m.jobsRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "jobs_rejected_total",
		Help:        "Prompt jobs refused because the queue was full or closed",
		ConstLabels: labels,
	})

	m.jobLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "job_latency_milliseconds",
		Help:        "Time a worker spent running a prompt job",
		Buckets:     m.histogramBuckets,
		ConstLabels: labels,
	})

	m.workerBusyCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "worker_busy_count",
		Help:        "Workers currently running a job",
		ConstLabels: labels,
	})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_memory_usage_bytes",
		Help:        "System memory usage in bytes",
		ConstLabels: labels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_goroutine_count",
		Help:        "Number of goroutines",
		ConstLabels: labels,
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_gc_pause_time_milliseconds",
		Help:        "GC pause time in milliseconds",
		Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		ConstLabels: labels,
	})
}

// Init rebuilds the global manager on a fresh registry with opts. Call it
// once at startup, before GetRegistry is handed to an HTTP handler.
func Init(opts ...Option) *Manager {
	reg := prometheus.NewRegistry()
	customRegistry = reg
	globalManager = NewManager(append([]Option{WithPrometheusRegistry(reg)}, opts...)...)
	return globalManager
}

// RefreshInterval is how often the process should refresh lazily changing
// gauges such as stored results and system memory.
func RefreshInterval() time.Duration { return globalManager.refreshInterval }

// Enabled reports whether the manager records observations.
func (m *Manager) Enabled() bool { return m.enabled }

// RefreshInterval is how often gauge updaters should run.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// RecordRequestCreated counts a newly created request by origin.
func RecordRequestCreated(source string) {
	if !globalManager.enabled {
		return
	}
	globalManager.requestsCreated.WithLabelValues(source).Inc()
}

// RecordRequestFinished counts a request reaching a terminal status.
func RecordRequestFinished(status string) {
	if !globalManager.enabled {
		return
	}
	globalManager.requestsFinished.WithLabelValues(status).Inc()
}

// UpdateStoredResults sets the number of requests held by the result store.
func UpdateStoredResults(count int) {
	globalManager.storedResults.Set(float64(count))
}

// RecordEvictedResults adds n expired requests.
func RecordEvictedResults(n int) {
	if !globalManager.enabled || n <= 0 {
		return
	}
	globalManager.evictedResults.Add(float64(n))
}

// RecordCompletionLatency records completion backend latency in milliseconds.
func RecordCompletionLatency(latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.completionLatency.Observe(latencyMs)
}

// RecordCompletionError increments the completion error counter.
func RecordCompletionError() {
	if !globalManager.enabled {
		return
	}
	globalManager.completionErrors.Inc()
}

// RecordNormalizeFailure increments the normalizer failure counter.
func RecordNormalizeFailure() {
	if !globalManager.enabled {
		return
	}
	globalManager.normalizeFailures.Inc()
}

// RecordDelivery counts a delivery by transport ("push" or "http").
func RecordDelivery(transport string) {
	if !globalManager.enabled {
		return
	}
	globalManager.deliveries.WithLabelValues(transport).Inc()
}

// RecordDeliveryError increments the delivery error counter.
func RecordDeliveryError() {
	if !globalManager.enabled {
		return
	}
	globalManager.deliveryErrors.Inc()
}

// UpdateConnectedClients sets the live connection count for a role.
func UpdateConnectedClients(role string, count int) {
	globalManager.connectedClients.WithLabelValues(role).Set(float64(count))
}

// RecordPushMessage counts a message queued on a push channel.
func RecordPushMessage(event string) {
	if !globalManager.enabled {
		return
	}
	globalManager.pushMessages.WithLabelValues(event).Inc()
}

// RecordPushDropped counts a message dropped on a full connection buffer.
func RecordPushDropped() {
	if !globalManager.enabled {
		return
	}
	globalManager.pushDropped.Inc()
}

// UpdateSchemaParameters sets the current schema size.
func UpdateSchemaParameters(count int) {
	globalManager.schemaParameters.Set(float64(count))
}

// UpdateJobQueueSize sets the number of queued prompt jobs.
func UpdateJobQueueSize(size int) {
	if !globalManager.enabled {
		return
	}
	globalManager.jobQueueSize.Set(float64(size))
}

// RecordJobRejected counts a job refused by the queue.
func RecordJobRejected() {
	if !globalManager.enabled {
		return
	}
	globalManager.jobsRejected.Inc()
}

// RecordJobLatency records how long a job ran.
func RecordJobLatency(latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.jobLatency.Observe(latencyMs)
}

// AddWorkerBusy adjusts the busy worker gauge by delta.
func AddWorkerBusy(delta int) {
	if !globalManager.enabled {
		return
	}
	globalManager.workerBusyCount.Add(float64(delta))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	if !globalManager.enabled {
		return
	}
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	if !globalManager.enabled {
		return
	}
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if !globalManager.enabled {
		return
	}
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
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
