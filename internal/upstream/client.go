// Package upstream talks to the BirdNET analysis service: it forwards audio
// uploads for analysis, probes its health endpoint and maps every failure
// into an Error the HTTP layer can relay.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/rcanpahali/BirdNet/internal/errors"
	"github.com/rcanpahali/BirdNet/internal/httpclient"
	"github.com/rcanpahali/BirdNet/internal/logger"
	"github.com/rcanpahali/BirdNet/internal/observability/metrics"
)

const (
	analyzePath = "/analyze"
	healthPath  = "/health"

	// maxResponseBytes bounds how much of an upstream body is read into memory.
	maxResponseBytes = 32 << 20

	healthCacheKey = "health"

	DefaultAnalyzeTimeout = 5 * time.Minute
	DefaultHealthTimeout  = 15 * time.Second
)

// Config configures a Client.
type Config struct {
	// BaseURL of the analysis service, e.g. http://localhost:8000.
	BaseURL string
	// AnalyzeTimeout bounds one forwarded analysis including the body read.
	AnalyzeTimeout time.Duration
	// HealthTimeout bounds one health probe.
	HealthTimeout time.Duration
	// HealthCacheTTL caches successful health bodies; zero disables caching.
	HealthCacheTTL time.Duration
	// Transport overrides the HTTP transport (tests inject httpmock here).
	Transport http.RoundTripper
}

// Detection is one entry of the upstream "detections" array.
type Detection struct {
	CommonName     string  `json:"common_name"`
	ScientificName string  `json:"scientific_name"`
	Confidence     float64 `json:"confidence"`
	StartTime      float64 `json:"start_time"`
	EndTime        float64 `json:"end_time"`
}

// Result is a successful analysis.
type Result struct {
	// Body is the upstream response as JSON, relayed to the caller unchanged.
	Body []byte
	// Detections decoded from Body; empty when the field is missing or malformed.
	Detections []Detection
}

// HealthResult is a successful health probe.
type HealthResult struct {
	Body   []byte
	Cached bool
}

// Upload is the file to forward. Size is the declared byte length of Body;
// a negative Size streams without a Content-Length.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Params are the optional query parameters, forwarded as strings.
type Params struct {
	Lat     string
	Lon     string
	MinConf string
}

// Values returns the query string, including only trimmed non-empty values.
func (p Params) Values() url.Values {
	v := url.Values{}
	for key, raw := range map[string]string{"lat": p.Lat, "lon": p.Lon, "min_conf": p.MinConf} {
		if trimmed := strings.TrimSpace(raw); trimmed != "" {
			v.Set(key, trimmed)
		}
	}
	return v
}

// detectionObserver is implemented by recorders that track detections per analysis.
type detectionObserver interface {
	RecordDetections(count int)
}

// Client is the upstream analysis client. Safe for concurrent use.
type Client struct {
	baseURL        string
	http           *httpclient.Client
	analyzeTimeout time.Duration
	healthTimeout  time.Duration
	healthCache    *cache.Cache
	metrics        metrics.Recorder
	log            logger.Logger
}

// New creates a Client. recorder may be nil.
func New(cfg Config, recorder metrics.Recorder) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	u, err := url.Parse(base)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.Newf("invalid upstream URL %q", cfg.BaseURL).
			Component("upstream").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if cfg.AnalyzeTimeout <= 0 {
		cfg.AnalyzeTimeout = DefaultAnalyzeTimeout
	}
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = DefaultHealthTimeout
	}

	c := &Client{
		baseURL: base,
		http: httpclient.New(&httpclient.Config{
			DefaultTimeout: cfg.AnalyzeTimeout,
			Transport:      cfg.Transport,
		}),
		analyzeTimeout: cfg.AnalyzeTimeout,
		healthTimeout:  cfg.HealthTimeout,
		metrics:        metrics.OrNoOp(recorder),
		log:            logger.Global().Module("upstream"),
	}
	if cfg.HealthCacheTTL > 0 {
		// single key, expired on read; no janitor goroutine needed
		c.healthCache = cache.New(cfg.HealthCacheTTL, 0)
	}

	c.http.SetBeforeRequestHook(func(req *http.Request) {
		c.log.Debug("upstream request",
			logger.String("method", req.Method),
			logger.String("path", req.URL.Path),
			logger.Int64("content_length", req.ContentLength))
	})

	return c, nil
}

// BaseURL returns the normalized upstream base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.Close()
}

// Analyze forwards one upload as multipart field "file" to {base}/analyze.
// It makes exactly one attempt. Failures are returned as *Error.
func (c *Client) Analyze(ctx context.Context, upload Upload, params Params) (*Result, error) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, c.analyzeTimeout)
	defer cancel()

	target := c.baseURL + analyzePath
	if q := params.Values(); len(q) > 0 {
		target += "?" + q.Encode()
	}

	body, contentType, length, err := multipartBody(upload)
	if err != nil {
		return nil, c.fail(metrics.OpAnalyze, start, &Error{Op: metrics.OpAnalyze, Err: err})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return nil, c.fail(metrics.OpAnalyze, start, &Error{Op: metrics.OpAnalyze, Err: err})
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	req.ContentLength = length

	status, raw, callErr := c.roundTrip(ctx, req, metrics.OpAnalyze, c.analyzeTimeout)
	if callErr != nil {
		return nil, c.fail(metrics.OpAnalyze, start, callErr)
	}

	result := &Result{
		Body:       relayBody(raw),
		Detections: c.decodeDetections(raw),
	}

	c.metrics.RecordDuration(metrics.OpAnalyze, time.Since(start).Seconds())
	c.metrics.RecordOperation(metrics.OpAnalyze, metrics.StatusSuccess)
	if obs, ok := c.metrics.(detectionObserver); ok {
		obs.RecordDetections(len(result.Detections))
	}
	c.log.Debug("upstream analysis completed",
		logger.Int("status", status),
		logger.Int("detections", len(result.Detections)),
		logger.Duration("elapsed", time.Since(start)))
	return result, nil
}

// Health probes {base}/health with the health timeout. Successful bodies are
// cached for the configured TTL.
func (c *Client) Health(ctx context.Context) (*HealthResult, error) {
	if c.healthCache != nil {
		if cached, ok := c.healthCache.Get(healthCacheKey); ok {
			if body, ok := cached.([]byte); ok {
				c.metrics.RecordOperation(metrics.OpHealth, metrics.OutcomeCacheHit)
				return &HealthResult{Body: body, Cached: true}, nil
			}
		}
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, http.NoBody)
	if err != nil {
		return nil, c.fail(metrics.OpHealth, start, &Error{Op: metrics.OpHealth, Err: err})
	}
	req.Header.Set("Accept", "application/json")

	_, raw, callErr := c.roundTrip(ctx, req, metrics.OpHealth, c.healthTimeout)
	if callErr != nil {
		return nil, c.fail(metrics.OpHealth, start, callErr)
	}

	body := relayBody(raw)
	if c.healthCache != nil {
		c.healthCache.SetDefault(healthCacheKey, body)
	}

	c.metrics.RecordDuration(metrics.OpHealth, time.Since(start).Seconds())
	c.metrics.RecordOperation(metrics.OpHealth, metrics.StatusSuccess)
	return &HealthResult{Body: body}, nil
}

// roundTrip sends req once and reads the body.
func (c *Client) roundTrip(ctx context.Context, req *http.Request, op string, timeout time.Duration) (int, []byte, *Error) {
	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return 0, nil, &Error{
			Op:   op,
			Sent: true,
			Err:  networkError(err, op, req.URL.Redacted(), timeout),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		// headers arrived but the body did not
		return 0, nil, &Error{
			Op:   op,
			Sent: true,
			Err:  networkError(err, op, req.URL.Redacted(), timeout),
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, nil, &Error{
			Op:         op,
			Sent:       true,
			StatusCode: resp.StatusCode,
			Body:       raw,
			Err:        fmt.Errorf("upstream %s returned status %d", op, resp.StatusCode),
		}
	}
	return resp.StatusCode, raw, nil
}

// fail records metrics and logs a failed call, then returns it.
func (c *Client) fail(op string, start time.Time, e *Error) error {
	c.metrics.RecordDuration(op, time.Since(start).Seconds())

	fields := []logger.Field{
		logger.String("operation", op),
		logger.Int("status", e.Status()),
		logger.String("message", e.Message()),
	}
	if e.HasResponse() {
		c.metrics.RecordOperation(op, metrics.OutcomeHTTPError)
		c.metrics.RecordError(op, statusClass(e.StatusCode))
	} else {
		c.metrics.RecordOperation(op, metrics.OutcomeTransportError)
		c.metrics.RecordError(op, transportErrorType(e.Err))
		fields = append(fields, logger.Error(e.Err))
	}
	c.log.Warn("upstream call failed", fields...)
	return e
}

// decodeDetections extracts the detections array. A missing field, a value
// that is not an array, or elements that do not decode all yield an empty list.
func (c *Client) decodeDetections(raw []byte) []Detection {
	var envelope struct {
		Detections json.RawMessage `json:"detections"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return []Detection{}
	}
	trimmed := bytes.TrimSpace(envelope.Detections)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return []Detection{}
	}

	var detections []Detection
	if err := json.Unmarshal(trimmed, &detections); err != nil {
		c.log.Warn("ignoring malformed detections from upstream", logger.Error(err))
		return []Detection{}
	}
	if detections == nil {
		return []Detection{}
	}
	return detections
}

// relayBody returns raw unchanged when it is JSON, otherwise encodes it as a
// JSON string so the caller always receives JSON.
func relayBody(raw []byte) []byte {
	if json.Valid(raw) {
		return raw
	}
	s, _ := json.Marshal(string(raw))
	return s
}

func networkError(err error, op, target string, timeout time.Duration) error {
	return errors.New(err).
		Component("upstream").
		Category(errors.CategoryNetwork).
		NetworkContext(target, timeout).
		Context("operation", op).
		Build()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "status_5xx"
	case status >= 400:
		return "status_4xx"
	default:
		return "status_other"
	}
}

func transportErrorType(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	default:
		return "connection"
	}
}
