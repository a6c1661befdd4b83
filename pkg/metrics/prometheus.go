// Package metrics provides Prometheus metrics for the nudge reminder
// service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns all Prometheus instruments for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Command handling
	commandsProcessed *prometheus.CounterVec
	commandErrors     *prometheus.CounterVec

	// Scheduler sweep
	sweepTicks    prometheus.Counter
	sweepFaults   prometheus.Counter
	sweepDuration prometheus.Histogram
	archived      prometheus.Counter

	// Notification pipeline
	notificationsSent   *prometheus.CounterVec
	notificationsFailed *prometheus.CounterVec
	deliveryLatency     prometheus.Histogram

	// Store
	storeUsers  prometheus.Gauge
	storeEvents prometheus.Gauge

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueues      prometheus.Counter
	queueDequeues      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount prometheus.Gauge

	// HTTP surface
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "nudge",
		subsystem:        "reminder",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.commandsProcessed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "commands_processed_total",
		Help:      "Inbound commands handled, by command verb",
	}, []string{"command"})

	m.commandErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "command_errors_total",
		Help:      "Commands answered with a user-visible error, by command verb",
	}, []string{"command"})

	m.sweepTicks = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sweep_ticks_total",
		Help:      "Scheduler sweep executions",
	})

	m.sweepFaults = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sweep_faults_total",
		Help:      "Per-event faults isolated during sweeps",
	})

	m.sweepDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sweep_duration_milliseconds",
		Help:      "Wall time of one full sweep over all users",
		Buckets:   m.histogramBuckets,
	})

	m.archived = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "events_archived_total",
		Help:      "Events auto-archived after their datetime elapsed",
	})

	m.notificationsSent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notifications_sent_total",
		Help:      "Notifications delivered, by kind",
	}, []string{"kind"})

	m.notificationsFailed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "notifications_failed_total",
		Help:      "Notification sends that failed and were dropped, by kind",
	}, []string{"kind"})

	m.deliveryLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "delivery_latency_milliseconds",
		Help:      "Latency of one notification send",
		Buckets:   m.histogramBuckets,
	})

	m.storeUsers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_users",
		Help:      "Users present in the persisted document",
	})

	m.storeEvents = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_active_events",
		Help:      "Active events across all users",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_size",
		Help:      "Notifications waiting for delivery",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_capacity",
		Help:      "Maximum queueable notifications",
	})

	m.queueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_utilization",
		Help:      "Queue fill ratio between 0 and 1",
	})

	m.queueEnqueues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueues_total",
		Help:      "Notifications accepted by the queue",
	})

	m.queueDequeues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_dequeues_total",
		Help:      "Notifications handed to delivery workers",
	})

	m.queueEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "queue_enqueue_errors_total",
		Help:      "Notifications rejected by the queue",
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_count",
		Help:      "Delivery workers running",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_requests_total",
		Help:      "HTTP requests by endpoint, method, and status code",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration by endpoint, method, and status code",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
}

// RecordCommand increments the processed counter for one command verb.
func RecordCommand(command string) {
	globalManager.commandsProcessed.WithLabelValues(command).Inc()
}

// RecordCommandError increments the error counter for one command verb.
func RecordCommandError(command string) {
	globalManager.commandErrors.WithLabelValues(command).Inc()
}

// RecordSweepTick increments the sweep counter.
func RecordSweepTick() {
	globalManager.sweepTicks.Inc()
}

// RecordSweepFault increments the isolated-fault counter.
func RecordSweepFault() {
	globalManager.sweepFaults.Inc()
}

// ObserveSweepDuration records the wall time of one sweep.
func ObserveSweepDuration(ms float64) {
	globalManager.sweepDuration.Observe(ms)
}

// RecordEventArchived increments the auto-archive counter.
func RecordEventArchived() {
	globalManager.archived.Inc()
}

// RecordNotificationSent increments the sent counter for a kind.
func RecordNotificationSent(kind string) {
	globalManager.notificationsSent.WithLabelValues(kind).Inc()
}

// RecordNotificationFailed increments the failed counter for a kind.
func RecordNotificationFailed(kind string) {
	globalManager.notificationsFailed.WithLabelValues(kind).Inc()
}

// ObserveDeliveryLatency records the latency of one send.
func ObserveDeliveryLatency(ms float64) {
	globalManager.deliveryLatency.Observe(ms)
}

// UpdateStoreUsers sets the persisted-user gauge.
func UpdateStoreUsers(count int) {
	globalManager.storeUsers.Set(float64(count))
}

// UpdateStoreEvents sets the active-event gauge.
func UpdateStoreEvents(count int) {
	globalManager.storeEvents.Set(float64(count))
}

// UpdateQueueSize sets the queued-notification gauge.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity gauge.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue fill ratio gauge.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the accepted counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueues.Inc()
}

// RecordQueueDequeue increments the dequeued counter.
func RecordQueueDequeue() {
	globalManager.queueDequeues.Inc()
}

// RecordQueueEnqueueError increments the rejected counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount sets the delivery-worker gauge.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordHTTPRequest counts one HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records one HTTP request's duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// GetRegistry exposes the custom registry for the /metrics handler.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
