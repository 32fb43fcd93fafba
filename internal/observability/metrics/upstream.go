package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// UpstreamMetrics contains Prometheus metrics for calls to the analysis service.
// It implements Recorder: operations are "analyze" or "health" and statuses
// are the call outcomes.
type UpstreamMetrics struct {
	registry *prometheus.Registry

	callsTotal    *prometheus.CounterVec
	callDuration  *prometheus.HistogramVec
	callErrors    *prometheus.CounterVec
	detectionsHis prometheus.Histogram
}

// NewUpstreamMetrics creates and registers new upstream metrics
func NewUpstreamMetrics(registry *prometheus.Registry) (*UpstreamMetrics, error) {
	m := &UpstreamMetrics{registry: registry}
	if err := m.initMetrics(); err != nil {
		return nil, err
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *UpstreamMetrics) initMetrics() error {
	m.callsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "upstream_calls_total",
			Help:      "Total number of calls to the analysis service",
		},
		[]string{"operation", "outcome"}, // outcome: success, http_error, transport_error, cache_hit
	)

	m.callDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "upstream_call_duration_seconds",
			Help:      "Time taken for calls to the analysis service",
			Buckets:   prometheus.ExponentialBuckets(BucketStart10ms, BucketFactor2, BucketCount15), // 10ms to ~5min
		},
		[]string{"operation"},
	)

	m.callErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "upstream_call_errors_total",
			Help:      "Total number of failed calls to the analysis service by error type",
		},
		[]string{"operation", "error_type"}, // error_type: timeout, canceled, connection, status_4xx, status_5xx
	)

	m.detectionsHis = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "upstream_detections_per_analysis",
			Help:      "Number of detections returned per successful analysis",
			Buckets:   prometheus.ExponentialBuckets(1, BucketFactor2, BucketCount10), // 1 to 512
		},
	)
	return nil
}

func (m *UpstreamMetrics) getCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.callsTotal,
		m.callDuration,
		m.callErrors,
		m.detectionsHis,
	}
}

// Describe implements the Collector interface
func (m *UpstreamMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.getCollectors() {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *UpstreamMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.getCollectors() {
		collector.Collect(ch)
	}
}

// RecordOperation records an upstream call outcome
func (m *UpstreamMetrics) RecordOperation(operation, outcome string) {
	m.callsTotal.WithLabelValues(operation, outcome).Inc()
}

// RecordDuration records the duration of an upstream call
func (m *UpstreamMetrics) RecordDuration(operation string, seconds float64) {
	m.callDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordError records a failed upstream call by error type
func (m *UpstreamMetrics) RecordError(operation, errorType string) {
	m.callErrors.WithLabelValues(operation, errorType).Inc()
}

// RecordDetections records how many detections a successful analysis returned
func (m *UpstreamMetrics) RecordDetections(count int) {
	m.detectionsHis.Observe(float64(count))
}
