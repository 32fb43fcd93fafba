package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcanpahali/BirdNet/internal/observability/metrics"
)

// TestNewMetricsConcurrency verifies that NewMetrics can be called concurrently
// without causing race conditions or duplicate registration errors
func TestNewMetricsConcurrency(t *testing.T) {
	t.Parallel()

	const numGoroutines = 20

	var wg sync.WaitGroup
	for range numGoroutines {
		wg.Go(func() {
			m, err := NewMetrics()
			if err != nil {
				t.Errorf("NewMetrics failed: %v", err)
				return
			}
			if m.registry == nil || m.HTTP == nil || m.Upstream == nil || m.Datastore == nil {
				t.Error("NewMetrics returned partially initialized metrics")
			}
		})
	}
	wg.Wait()
}

func TestMetricsHandlerExposesCollectors(t *testing.T) {
	t.Parallel()

	m, err := NewMetrics()
	require.NoError(t, err)

	m.HTTP.RecordHTTPRequest(http.MethodPost, "/analyze", http.StatusOK, 0.25)
	m.Upstream.RecordOperation(metrics.OpAnalyze, metrics.StatusSuccess)
	m.Datastore.RecordPersistFailure()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	text := string(body)
	assert.Contains(t, text, `birdnet_proxy_http_requests_total{method="POST",route="/analyze",status_code="200"} 1`)
	assert.Contains(t, text, `birdnet_proxy_upstream_calls_total{operation="analyze",outcome="success"} 1`)
	assert.Contains(t, text, "birdnet_proxy_persist_failures_total 1")
	assert.Contains(t, text, "go_goroutines")
}
