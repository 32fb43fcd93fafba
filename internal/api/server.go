package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	mw "github.com/rcanpahali/BirdNet/internal/api/middleware"
	"github.com/rcanpahali/BirdNet/internal/conf"
	"github.com/rcanpahali/BirdNet/internal/datastore"
	"github.com/rcanpahali/BirdNet/internal/logger"
	"github.com/rcanpahali/BirdNet/internal/observability"
	"github.com/rcanpahali/BirdNet/internal/upstream"
)

// AnalysisStore is the persistence the HTTP layer needs.
type AnalysisStore interface {
	RecordAnalysis(ctx context.Context, in datastore.AnalysisInput, detections []datastore.Detection) (uint, error)
	GetAnalysis(ctx context.Context, id uint) (*datastore.Analysis, error)
	ListAnalyses(ctx context.Context, limit int) ([]datastore.Analysis, error)
}

// Upstream is the classification engine client.
type Upstream interface {
	Analyze(ctx context.Context, upload upstream.Upload, params upstream.Params) (*upstream.Result, error)
	Health(ctx context.Context) (*upstream.HealthResult, error)
	BaseURL() string
}

// Server is the HTTP server of the proxy. It owns the Echo instance, its
// middleware stack and all routes.
type Server struct {
	echo     *echo.Echo
	config   *Config
	settings *conf.Settings
	log      logger.Logger

	// Dependencies
	store    AnalysisStore
	upstream Upstream
	metrics  *observability.Metrics

	startTime time.Time
}

// ServerOption is a functional option for configuring the Server.
type ServerOption func(*Server)

// WithLogger sets the logger for the server.
func WithLogger(l logger.Logger) ServerOption {
	return func(s *Server) {
		s.log = l
	}
}

// WithStore sets the analysis store.
func WithStore(store AnalysisStore) ServerOption {
	return func(s *Server) {
		s.store = store
	}
}

// WithUpstream sets the upstream client.
func WithUpstream(up Upstream) ServerOption {
	return func(s *Server) {
		s.upstream = up
	}
}

// WithMetrics sets the observability metrics for the server.
func WithMetrics(m *observability.Metrics) ServerOption {
	return func(s *Server) {
		s.metrics = m
	}
}

// New creates a new HTTP server with the given settings and options.
// A store and an upstream client are required.
func New(settings *conf.Settings, opts ...ServerOption) (*Server, error) {
	config := ConfigFromSettings(settings)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server configuration: %w", err)
	}

	s := &Server{
		config:    config,
		settings:  settings,
		startTime: time.Now(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		return nil, fmt.Errorf("server requires an analysis store")
	}
	if s.upstream == nil {
		return nil, fmt.Errorf("server requires an upstream client")
	}
	if s.log == nil {
		s.log = GetLogger()
	}

	s.echo = echo.New()
	s.echo.HideBanner = true
	s.echo.HidePort = true
	s.echo.Logger = logger.NewEchoLoggerAdapter(s.log.Module("echo"))
	s.echo.HTTPErrorHandler = s.handleError

	s.echo.Server.ReadTimeout = config.ReadTimeout
	s.echo.Server.WriteTimeout = config.WriteTimeout
	s.echo.Server.IdleTimeout = config.IdleTimeout

	s.setupMiddleware()
	s.setupRoutes()

	s.log.Info("HTTP server initialized",
		logger.String("address", config.Address()),
		logger.String("upstream", s.upstream.BaseURL()),
		logger.Int64("max_file_size", config.MaxFileSize),
		logger.Bool("metrics", s.metricsEnabled()),
		logger.Bool("rate_limit", config.RateLimitEnabled))

	return s, nil
}

// setupMiddleware configures the Echo middleware stack.
func (s *Server) setupMiddleware() {
	// Recovery middleware - should be first
	s.echo.Use(echomw.Recover())

	s.echo.Use(mw.NewRequestID())

	if s.metricsEnabled() {
		s.echo.Use(mw.NewMetrics(s.metrics.HTTP))
	}

	if s.config.Debug {
		s.echo.Use(mw.NewRequestLogger(s.log.Module("access")))
	}

	s.echo.Use(mw.NewCORS(mw.SecurityConfig{
		AllowedOrigins: s.config.AllowedOrigins,
	}))

	s.echo.Use(mw.NewBodyLimit(s.config.MaxFileSize))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.echo.GET("/", s.info)
	s.echo.GET("/health", s.health)

	var analyzeMiddleware []echo.MiddlewareFunc
	if s.config.RateLimitEnabled {
		analyzeMiddleware = append(analyzeMiddleware, mw.NewRateLimiter(mw.RateLimitConfig{
			RequestsPerSecond: s.config.RequestsPerSecond,
			Burst:             s.config.Burst,
		}))
	}
	s.echo.POST("/analyze", s.analyze, analyzeMiddleware...)

	s.echo.GET("/analyses", s.listAnalyses)
	s.echo.GET("/analyses/:id", s.getAnalysis)

	if s.metricsEnabled() {
		s.echo.GET("/metrics", echo.WrapHandler(s.metrics.Handler()))
	}
}

func (s *Server) metricsEnabled() bool {
	return s.config.MetricsEnabled && s.metrics != nil
}

// Start serves HTTP requests and blocks until the server is shut down.
// A clean shutdown returns nil.
func (s *Server) Start() error {
	addr := s.config.Address()
	s.log.Info("starting HTTP server", logger.String("address", addr))

	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server, draining in-flight requests for at
// most the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.echo.Shutdown(ctx); err != nil {
		s.log.Error("error during server shutdown", logger.Error(err))
		return fmt.Errorf("shutdown error: %w", err)
	}

	s.log.Info("server shutdown complete",
		logger.Duration("uptime", time.Since(s.startTime)))
	return nil
}

// Echo returns the underlying Echo instance.
// This is useful for testing or advanced configuration.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// Config returns the effective server configuration.
func (s *Server) Config() *Config {
	return s.config
}
