// Package metrics provides Prometheus metrics for the CourtSync core.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Manager owns all Prometheus collectors for the process.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Clock synchronization
	syncAttempts  prometheus.Counter
	syncSuccesses prometheus.Counter
	syncFailures  prometheus.Counter
	syncRoundTrip prometheus.Histogram
	clockOffsetMS prometheus.Gauge
	corrections   *prometheus.CounterVec

	// Calibration
	calibrationPhase   prometheus.Gauge
	calibrationQuality prometheus.Gauge
	calibrationRuns    *prometheus.CounterVec
	trialsAccepted     prometheus.Counter
	trialsRejected     prometheus.Counter
	samplesIngested    prometheus.Counter
	samplesDropped     *prometheus.CounterVec

	// Sample queue
	queueSize     prometheus.Gauge
	queueCapacity prometheus.Gauge

	// HTTP surface
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go collectors.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "courtsync",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.register()
	return m
}

func (m *Manager) register() {
	factory := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{Namespace: m.namespace, Name: name, Help: help})
		m.registry.MustRegister(c)
		return c
	}
	gauge := func(name, help string) prometheus.Gauge {
		g := prometheus.NewGauge(prometheus.GaugeOpts{Namespace: m.namespace, Name: name, Help: help})
		m.registry.MustRegister(g)
		return g
	}

	m.syncAttempts = factory("sync_attempts_total", "Round-trip exchange attempts issued.")
	m.syncSuccesses = factory("sync_success_total", "Synchronization runs that ended accepted.")
	m.syncFailures = factory("sync_failures_total", "Synchronization runs that exhausted their retries.")
	m.syncRoundTrip = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "sync_round_trip_ms",
		Help:      "Observed round-trip time of exchanges in milliseconds.",
		Buckets:   m.histogramBuckets,
	})
	m.registry.MustRegister(m.syncRoundTrip)
	m.clockOffsetMS = gauge("clock_offset_ms", "Current effective clock offset in milliseconds.")
	m.corrections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "corrections_applied_total",
		Help:      "Clock corrections applied, by method.",
	}, []string{"method"})
	m.registry.MustRegister(m.corrections)

	m.calibrationPhase = gauge("calibration_phase", "Current calibration phase as an ordinal.")
	m.calibrationQuality = gauge("calibration_quality", "Quality score of the last completed calibration.")
	m.calibrationRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "calibration_runs_total",
		Help:      "Finished calibration runs, by outcome.",
	}, []string{"outcome"})
	m.registry.MustRegister(m.calibrationRuns)
	m.trialsAccepted = factory("swing_trials_accepted_total", "Swing trials that passed validation.")
	m.trialsRejected = factory("swing_trials_rejected_total", "Swing trials discarded by validation.")
	m.samplesIngested = factory("samples_ingested_total", "Motion samples accepted on the hot path.")
	m.samplesDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "samples_dropped_total",
		Help:      "Motion samples dropped before processing, by reason.",
	}, []string{"reason"})
	m.registry.MustRegister(m.samplesDropped)

	m.queueSize = gauge("sample_queue_size", "Current depth of the sample queue.")
	m.queueCapacity = gauge("sample_queue_capacity", "Configured capacity of the sample queue.")

	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests served, by endpoint, method and status.",
	}, []string{"endpoint", "method", "status"})
	m.registry.MustRegister(m.httpRequests)
	m.httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds, by endpoint.",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint"})
	m.registry.MustRegister(m.httpRequestDuration)
}

// GetRegistry returns the registry backing the global manager, for serving
// via promhttp.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Package-level helpers delegating to the global manager.

func RecordSyncAttempt() {
	if globalManager.enabled {
		globalManager.syncAttempts.Inc()
	}
}

func RecordSyncSuccess() {
	if globalManager.enabled {
		globalManager.syncSuccesses.Inc()
	}
}

func RecordSyncFailure() {
	if globalManager.enabled {
		globalManager.syncFailures.Inc()
	}
}

func ObserveRoundTrip(ms float64) {
	if globalManager.enabled {
		globalManager.syncRoundTrip.Observe(ms)
	}
}

func UpdateClockOffset(ms float64) {
	if globalManager.enabled {
		globalManager.clockOffsetMS.Set(ms)
	}
}

func RecordCorrection(method string) {
	if globalManager.enabled {
		globalManager.corrections.WithLabelValues(method).Inc()
	}
}

func UpdateCalibrationPhase(ordinal int) {
	if globalManager.enabled {
		globalManager.calibrationPhase.Set(float64(ordinal))
	}
}

func UpdateCalibrationQuality(q float64) {
	if globalManager.enabled {
		globalManager.calibrationQuality.Set(q)
	}
}

func RecordCalibrationRun(outcome string) {
	if globalManager.enabled {
		globalManager.calibrationRuns.WithLabelValues(outcome).Inc()
	}
}

func RecordTrialAccepted() {
	if globalManager.enabled {
		globalManager.trialsAccepted.Inc()
	}
}

func RecordTrialRejected() {
	if globalManager.enabled {
		globalManager.trialsRejected.Inc()
	}
}

func RecordSampleIngested() {
	if globalManager.enabled {
		globalManager.samplesIngested.Inc()
	}
}

func RecordSampleDropped(reason string) {
	if globalManager.enabled {
		globalManager.samplesDropped.WithLabelValues(reason).Inc()
	}
}

func UpdateQueueSize(n int) {
	if globalManager.enabled {
		globalManager.queueSize.Set(float64(n))
	}
}

func UpdateQueueCapacity(n int) {
	if globalManager.enabled {
		globalManager.queueCapacity.Set(float64(n))
	}
}

func RecordHTTPRequest(endpoint, method, status string) {
	if globalManager.enabled {
		globalManager.httpRequests.WithLabelValues(endpoint, method, status).Inc()
	}
}

func ObserveHTTPDuration(endpoint string, ms float64) {
	if globalManager.enabled {
		globalManager.httpRequestDuration.WithLabelValues(endpoint).Observe(ms)
	}
}
