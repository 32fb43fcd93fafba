// Package conf provides configuration management for the BirdNet proxy.
package conf

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/rcanpahali/BirdNet/internal/errors"
	"github.com/rcanpahali/BirdNet/internal/logger"
)

// Settings contains all configuration options for the proxy.
type Settings struct {
	Debug bool // true to enable debug logging

	Server   ServerSettings
	Upstream UpstreamSettings
	Database DatabaseSettings
	Logging  logger.LoggingConfig
	Metrics  MetricsSettings
	Sentry   SentrySettings
}

// ServerSettings configures the inbound HTTP server.
type ServerSettings struct {
	Host            string        // listen host, empty for all interfaces
	Port            int           `validate:"min=1,max=65535"`
	MaxFileSize     int64         `validate:"gt=0"` // maximum accepted upload size in bytes
	ReadTimeout     time.Duration `validate:"gt=0"` // time allowed to receive a request, upload included
	ShutdownTimeout time.Duration `validate:"gt=0"` // graceful shutdown drain period
	CORS            CORSSettings
	RateLimit       RateLimitSettings
}

// CORSSettings lists the origins allowed to call the API.
type CORSSettings struct {
	AllowedOrigins []string `validate:"min=1"`
}

// RateLimitSettings configures the per-client limiter on the analyze route.
type RateLimitSettings struct {
	Enabled           bool
	RequestsPerSecond float64 `validate:"gte=0"`
	Burst             int     `validate:"gte=0"`
}

// UpstreamSettings configures the classification engine the proxy forwards to.
type UpstreamSettings struct {
	URL            string        `validate:"required,url"`
	AnalyzeTimeout time.Duration `validate:"gt=0"` // bound for the forwarded analyze call
	HealthTimeout  time.Duration `validate:"gt=0"` // bound for the health probe
	HealthCacheTTL time.Duration `validate:"gte=0"` // 0 disables health response caching
}

// DatabaseSettings selects and configures the persistence backend.
type DatabaseSettings struct {
	Type  string `validate:"oneof=sqlite mysql"`
	Path  string // SQLite database file
	MySQL MySQLSettings
}

// MySQLSettings holds MySQL connection parameters, used when Type is "mysql".
type MySQLSettings struct {
	Host     string
	Port     int `validate:"gte=0,lte=65535"`
	Username string
	Password string
	Database string
}

// MetricsSettings toggles the Prometheus endpoint.
type MetricsSettings struct {
	Enabled bool
}

// SentrySettings configures optional error telemetry.
type SentrySettings struct {
	Enabled     bool
	DSN         string
	Environment string
}

const configName = "config"

var settingsMutex sync.Mutex

// Load reads defaults, the optional config file, environment variables and any
// flags already bound to viper, then validates the result. configFile may be
// empty to search the default locations.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal").
			Build()
	}

	if settings.Debug {
		settings.Logging.Level = string(logger.LogLevelDebug)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	return settings, nil
}

// initViper registers defaults and environment bindings and reads the config file if present.
func initViper(configFile string) error {
	setDefaultConfig()

	if err := bindEnvVars(); err != nil {
		return err
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		viper.SetConfigName(configName)
		viper.SetConfigType("yaml")
		for _, path := range GetDefaultConfigPaths() {
			viper.AddConfigPath(path)
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && configFile == "" {
			// No config file is fine: defaults and environment apply
			return nil
		}
		return errors.New(err).
			Component("conf").
			Category(errors.CategoryConfiguration).
			Context("operation", "read_config").
			Build()
	}

	GetLogger().Debug("config file loaded", logger.String("path", viper.ConfigFileUsed()))
	return nil
}

// GetDefaultConfigPaths returns the directories searched for config.yaml, in order.
func GetDefaultConfigPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "birdnet-proxy"))
	}
	return append(paths, "/etc/birdnet-proxy")
}
