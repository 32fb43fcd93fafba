// Package api provides the HTTP surface of the BirdNet proxy: the analyze
// ingest endpoint, the upstream health relay and read access to stored
// analyses.
package api

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/rcanpahali/BirdNet/internal/conf"
	"github.com/rcanpahali/BirdNet/internal/logger"
)

// GetLogger returns the api package logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api")
}

// Default constants for the HTTP server.
const (
	DefaultReadTimeout     = 10 * time.Minute
	DefaultAnalyzeTimeout  = 5 * time.Minute
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 10 * time.Second

	writeTimeoutMargin = 30 * time.Second
)

// writeTimeoutFor returns a write deadline that outlasts the slowest analyze
// request: body upload, upstream call, persistence and the response itself.
// net/http starts the write deadline once the request headers are read.
func writeTimeoutFor(readTimeout, analyzeTimeout time.Duration) time.Duration {
	return readTimeout + analyzeTimeout + persistTimeout + writeTimeoutMargin
}

// Config holds the HTTP server configuration.
type Config struct {
	Host string
	Port string

	AllowedOrigins []string

	// MaxFileSize is the largest accepted upload in bytes.
	MaxFileSize int64

	RateLimitEnabled  bool
	RequestsPerSecond float64
	Burst             int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	MetricsEnabled bool
	Debug          bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Port:            strconv.Itoa(conf.DefaultPort),
		AllowedOrigins:  []string{"*"},
		MaxFileSize:     conf.DefaultMaxFileSize,
		ReadTimeout:     DefaultReadTimeout,
		WriteTimeout:    writeTimeoutFor(DefaultReadTimeout, DefaultAnalyzeTimeout),
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// ConfigFromSettings creates a Config from the application settings.
func ConfigFromSettings(settings *conf.Settings) *Config {
	cfg := DefaultConfig()

	cfg.Host = settings.Server.Host
	if settings.Server.Port > 0 {
		cfg.Port = strconv.Itoa(settings.Server.Port)
	}
	if len(settings.Server.CORS.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = settings.Server.CORS.AllowedOrigins
	}
	if settings.Server.MaxFileSize > 0 {
		cfg.MaxFileSize = settings.Server.MaxFileSize
	}
	if settings.Server.ShutdownTimeout > 0 {
		cfg.ShutdownTimeout = settings.Server.ShutdownTimeout
	}
	if settings.Server.ReadTimeout > 0 {
		cfg.ReadTimeout = settings.Server.ReadTimeout
	}
	analyzeTimeout := DefaultAnalyzeTimeout
	if settings.Upstream.AnalyzeTimeout > 0 {
		analyzeTimeout = settings.Upstream.AnalyzeTimeout
	}
	cfg.WriteTimeout = writeTimeoutFor(cfg.ReadTimeout, analyzeTimeout)

	cfg.RateLimitEnabled = settings.Server.RateLimit.Enabled
	cfg.RequestsPerSecond = settings.Server.RateLimit.RequestsPerSecond
	cfg.Burst = settings.Server.RateLimit.Burst

	cfg.MetricsEnabled = settings.Metrics.Enabled
	cfg.Debug = settings.Debug

	return cfg
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if c.MaxFileSize <= 0 {
		return fmt.Errorf("max file size must be positive")
	}
	if c.RateLimitEnabled && c.RequestsPerSecond <= 0 {
		return fmt.Errorf("rate limit enabled but requests per second is not positive")
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}
	return nil
}

// Address returns the full address string for the server to listen on.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// String returns a human-readable representation of the config.
func (c *Config) String() string {
	return fmt.Sprintf("Server Config: address=%s, max_file_size=%d, rate_limit=%v, debug=%v",
		c.Address(), c.MaxFileSize, c.RateLimitEnabled, c.Debug)
}
