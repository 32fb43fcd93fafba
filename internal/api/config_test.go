package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rcanpahali/BirdNet/internal/conf"
)

func TestConfigFromSettings(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{
		Debug: true,
		Server: conf.ServerSettings{
			Host:            "127.0.0.1",
			Port:            9090,
			MaxFileSize:     2048,
			ReadTimeout:     3 * time.Minute,
			ShutdownTimeout: 3 * time.Second,
			CORS:            conf.CORSSettings{AllowedOrigins: []string{"https://birds.example"}},
			RateLimit:       conf.RateLimitSettings{Enabled: true, RequestsPerSecond: 2, Burst: 4},
		},
		Upstream: conf.UpstreamSettings{AnalyzeTimeout: time.Minute},
		Metrics:  conf.MetricsSettings{Enabled: true},
	}

	cfg := ConfigFromSettings(settings)

	assert.Equal(t, "127.0.0.1:9090", cfg.Address())
	assert.Equal(t, int64(2048), cfg.MaxFileSize)
	assert.Equal(t, []string{"https://birds.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 3*time.Minute, cfg.ReadTimeout)
	assert.Equal(t, 3*time.Minute+time.Minute+persistTimeout+writeTimeoutMargin, cfg.WriteTimeout)
	assert.True(t, cfg.RateLimitEnabled)
	assert.InDelta(t, 2.0, cfg.RequestsPerSecond, 1e-9)
	assert.Equal(t, 4, cfg.Burst)
	assert.True(t, cfg.MetricsEnabled)
	assert.True(t, cfg.Debug)
	assert.NoError(t, cfg.Validate())
}

func TestConfigFromEmptySettingsUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg := ConfigFromSettings(&conf.Settings{})

	assert.Equal(t, ":8080", cfg.Address())
	assert.Equal(t, int64(conf.DefaultMaxFileSize), cfg.MaxFileSize)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, DefaultReadTimeout, cfg.ReadTimeout)
	assert.NoError(t, cfg.Validate())
}

// A timed-out upstream call must still be able to write its 502: the write
// deadline has to cover the slowest upload plus the analyze timeout and
// persistence.
func TestWriteTimeoutCoversSlowestAnalyzeRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		read    time.Duration
		analyze time.Duration
	}{
		{"defaults", 0, 0},
		{"slow upload", 20 * time.Minute, 5 * time.Minute},
		{"long analysis", 2 * time.Minute, 30 * time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := ConfigFromSettings(&conf.Settings{
				Server:   conf.ServerSettings{ReadTimeout: tt.read},
				Upstream: conf.UpstreamSettings{AnalyzeTimeout: tt.analyze},
			})

			analyze := tt.analyze
			if analyze == 0 {
				analyze = DefaultAnalyzeTimeout
			}
			worstCase := cfg.ReadTimeout + analyze + persistTimeout
			assert.Greater(t, cfg.WriteTimeout, worstCase)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing port", func(c *Config) { c.Port = "" }, "port is required"},
		{"zero file size", func(c *Config) { c.MaxFileSize = 0 }, "max file size"},
		{"rate limit without rate", func(c *Config) { c.RateLimitEnabled = true }, "requests per second"},
		{"zero read timeout", func(c *Config) { c.ReadTimeout = 0 }, "read timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
