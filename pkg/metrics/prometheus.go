// Package metrics provides Prometheus metrics for the ringside scoring engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Ingestion
	eventsAccepted   prometheus.Counter
	eventsDuplicate  prometheus.Counter
	eventsRejected   prometheus.Counter
	eventsTombstoned prometheus.Counter

	// Scoring and lifecycle
	roundsComputed    prometheus.Counter
	computeDuration   prometheus.Histogram
	judgeLocks        prometheus.Counter
	judgeUnlocks      prometheus.Counter
	barrierWaits      prometheus.Gauge
	barrierOverrides  prometheus.Counter
	fightsFinalized   prometheus.Counter
	activeBouts       prometheus.Gauge
	activeDevices     prometheus.Gauge
	registeredDevices prometheus.Gauge

	// Audit
	auditEntries       prometheus.Counter
	auditVerifyFailed  prometheus.Counter
	auditExportEntries prometheus.Gauge

	// Broadcast queue and fan-out
	queueCapacity    prometheus.Gauge
	queueSize        prometheus.Gauge
	queueUtilization prometheus.Gauge
	queueEnqueues    prometheus.Counter
	queueDrops       prometheus.Counter
	wsSubscribers    prometheus.Gauge
	wsDeliveries     prometheus.Counter
	wsDeliveryErrors prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByComponent   *prometheus.CounterVec
}

// Global metrics manager instance, registered on a custom registry so the
// default Go collectors never collide with ours.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // singleton registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "ringside",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
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

	m.eventsAccepted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "events_accepted_total",
		Help: "Total number of fight events accepted into the event log",
	})
	m.eventsDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "events_duplicate_total",
		Help: "Total number of duplicate event submissions absorbed",
	})
	m.eventsRejected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "events_rejected_total",
		Help: "Total number of events rejected by validation",
	})
	m.eventsTombstoned = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "events_tombstoned_total",
		Help: "Total number of events logically deleted via tombstone",
	})

	m.roundsComputed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "rounds_computed_total",
		Help: "Total number of round score computations (cache hits excluded)",
	})
	m.computeDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "round_compute_duration_ms",
		Help:    "Round score computation duration in milliseconds",
		Buckets: m.histogramBuckets,
	})
	m.judgeLocks = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "judge_locks_total",
		Help: "Total number of judge score locks written",
	})
	m.judgeUnlocks = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "judge_unlocks_total",
		Help: "Total number of supervisor-approved judge unlocks",
	})
	m.barrierWaits = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "barrier_waiters",
		Help: "Devices currently blocked on the round-advance barrier",
	})
	m.barrierOverrides = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "barrier_overrides_total",
		Help: "Total number of supervisor force-advances past the barrier",
	})
	m.fightsFinalized = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "fights_finalized_total",
		Help: "Total number of fights finalized",
	})
	m.activeBouts = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "active_bouts",
		Help: "Bouts currently tracked in memory",
	})
	m.activeDevices = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "active_devices",
		Help: "Devices with a heartbeat inside the staleness window",
	})
	m.registeredDevices = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "registered_devices",
		Help: "Device sessions registered for the last updated bout",
	})

	m.auditEntries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "audit_entries_total",
		Help: "Total number of audit log entries appended",
	})
	m.auditVerifyFailed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "audit_verify_failures_total",
		Help: "Total number of audit signature verifications that failed",
	})
	m.auditExportEntries = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "audit_export_entries",
		Help: "Entry count returned by the most recent audit export",
	})

	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "broadcast_queue_capacity",
		Help: "Configured capacity of the broadcast queue",
	})
	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "broadcast_queue_size",
		Help: "Messages currently waiting in the broadcast queue",
	})
	m.queueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "broadcast_queue_utilization",
		Help: "Broadcast queue fill ratio (0..1)",
	})
	m.queueEnqueues = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "broadcast_enqueues_total",
		Help: "Total number of messages enqueued for fan-out",
	})
	m.queueDrops = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "broadcast_drops_total",
		Help: "Total number of fan-out messages dropped (backpressure)",
	})
	m.wsSubscribers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "ws_subscribers",
		Help: "Currently connected websocket subscribers",
	})
	m.wsDeliveries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "ws_deliveries_total",
		Help: "Total number of messages delivered to websocket subscribers",
	})
	m.wsDeliveryErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "ws_delivery_errors_total",
		Help: "Total number of failed websocket deliveries (subscriber dropped)",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_requests_total",
		Help: "Total number of HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "http_request_duration_ms",
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status"})
	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "errors_total",
		Help: "Errors by component and kind",
	}, []string{"component", "kind"})
}

// GetRegistry exposes the custom registry for the /healthz metrics handler.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Package-level helpers operating on the global manager.

func RecordEventAccepted()   { globalManager.eventsAccepted.Inc() }
func RecordEventDuplicate()  { globalManager.eventsDuplicate.Inc() }
func RecordEventRejected()   { globalManager.eventsRejected.Inc() }
func RecordEventTombstoned() { globalManager.eventsTombstoned.Inc() }

func RecordRoundComputed()                 { globalManager.roundsComputed.Inc() }
func RecordComputeDuration(ms float64)     { globalManager.computeDuration.Observe(ms) }
func RecordJudgeLock()                     { globalManager.judgeLocks.Inc() }
func RecordJudgeUnlock()                   { globalManager.judgeUnlocks.Inc() }
func IncBarrierWaiters()                   { globalManager.barrierWaits.Inc() }
func DecBarrierWaiters()                   { globalManager.barrierWaits.Dec() }
func RecordBarrierOverride()               { globalManager.barrierOverrides.Inc() }
func RecordFightFinalized()                { globalManager.fightsFinalized.Inc() }
func UpdateActiveBouts(n int)              { globalManager.activeBouts.Set(float64(n)) }
func UpdateActiveDevices(n int)            { globalManager.activeDevices.Set(float64(n)) }
func UpdateRegisteredDevices(n int)        { globalManager.registeredDevices.Set(float64(n)) }
func RecordAuditEntry()                    { globalManager.auditEntries.Inc() }
func RecordAuditVerifyFailure()            { globalManager.auditVerifyFailed.Inc() }
func UpdateAuditExportEntries(n int)       { globalManager.auditExportEntries.Set(float64(n)) }
func UpdateQueueCapacity(n int)            { globalManager.queueCapacity.Set(float64(n)) }
func UpdateQueueSize(n int)                { globalManager.queueSize.Set(float64(n)) }
func UpdateQueueUtilization(u float64)     { globalManager.queueUtilization.Set(u) }
func RecordQueueEnqueue()                  { globalManager.queueEnqueues.Inc() }
func RecordQueueDrop()                     { globalManager.queueDrops.Inc() }
func IncWSSubscribers()                    { globalManager.wsSubscribers.Inc() }
func DecWSSubscribers()                    { globalManager.wsSubscribers.Dec() }
func RecordWSDelivery()                    { globalManager.wsDeliveries.Inc() }
func RecordWSDeliveryError()               { globalManager.wsDeliveryErrors.Inc() }

// RecordHTTPRequest records a completed HTTP request.
func RecordHTTPRequest(endpoint, method, status string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
}

// RecordHTTPRequestDuration records the latency of a completed HTTP request.
func RecordHTTPRequestDuration(endpoint, method, status string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, status).Observe(ms)
}

// RecordErrorByComponent tracks an error bucketed by component and kind.
func RecordErrorByComponent(component, kind string) {
	globalManager.errorsByComponent.WithLabelValues(component, kind).Inc()
}
