// Package metrics provides constants used across metric definitions.
package metrics

// Namespace prefixes every metric exported by the proxy.
const Namespace = "birdnet_proxy"

// Operation label values.
const (
	// OpAnalyze is the forwarded analysis call.
	OpAnalyze = "analyze"
	// OpHealth is the upstream health probe.
	OpHealth = "health"
	// OpRecordAnalysis persists an analysis with its detections.
	OpRecordAnalysis = "record_analysis"
	// OpGetAnalysis reads one analysis back.
	OpGetAnalysis = "get_analysis"
	// OpListAnalyses lists recent analyses.
	OpListAnalyses = "list_analyses"
	// OpDeleteAnalysis removes an analysis and its detections.
	OpDeleteAnalysis = "delete_analysis"
	// OpMigrate initializes the schema.
	OpMigrate = "migrate"
)

// Status and outcome label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"

	// OutcomeHTTPError means the upstream answered with a non-2xx status.
	OutcomeHTTPError = "http_error"
	// OutcomeTransportError means no response was received.
	OutcomeTransportError = "transport_error"
	// OutcomeCacheHit means a cached health body was served.
	OutcomeCacheHit = "cache_hit"
)

// Histogram bucket configuration constants.
const (
	// BucketStart1ms is the starting bucket for 1ms histograms.
	BucketStart1ms = 0.001
	// BucketStart10ms is the starting bucket for 10ms histograms (10ms to ~5min with 15 buckets).
	BucketStart10ms = 0.01
	// BucketStart1KB is the starting bucket for 1KB histograms.
	BucketStart1KB = 1024.0

	// BucketFactor2 is the common exponential growth factor of 2 for histogram buckets.
	BucketFactor2 = 2
	// BucketFactor4 covers upload sizes from 1KB to ~256MB in 10 buckets.
	BucketFactor4 = 4

	BucketCount10 = 10
	BucketCount12 = 12
	BucketCount15 = 15
)
