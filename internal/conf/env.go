// env.go - Environment variable configuration and validation
package conf

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings (internal use)
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "DEBUG", validateEnvBool},

		// Server
		{"server.port", "PORT", validateEnvPort},
		{"server.maxfilesize", "MAX_FILE_SIZE", validateEnvPositiveInt},
		{"server.readtimeout", "SERVER_READ_TIMEOUT", validateEnvDuration},
		{"server.cors.allowedorigins", "CORS_ALLOWED_ORIGINS", nil},
		{"server.ratelimit.enabled", "RATE_LIMIT_ENABLED", validateEnvBool},
		{"server.ratelimit.requestspersecond", "RATE_LIMIT_RPS", validateEnvNonNegativeFloat},
		{"server.ratelimit.burst", "RATE_LIMIT_BURST", validateEnvPositiveInt},

		// Upstream analyzer
		{"upstream.url", "BIRDNET_API_URL", validateEnvURL},
		{"upstream.analyzetimeout", "BIRDNET_ANALYZE_TIMEOUT", validateEnvDuration},

		// Persistence
		{"database.type", "DATABASE_TYPE", validateEnvDatabaseType},
		{"database.path", "DATABASE_PATH", nil},
		{"database.mysql.host", "MYSQL_HOST", nil},
		{"database.mysql.port", "MYSQL_PORT", validateEnvPort},
		{"database.mysql.username", "MYSQL_USERNAME", nil},
		{"database.mysql.password", "MYSQL_PASSWORD", nil},
		{"database.mysql.database", "MYSQL_DATABASE", nil},

		// Observability
		{"logging.level", "LOG_LEVEL", validateEnvLogLevel},
		{"logging.format", "LOG_FORMAT", validateEnvLogFormat},
		{"metrics.enabled", "METRICS_ENABLED", validateEnvBool},
		{"sentry.enabled", "SENTRY_ENABLED", validateEnvBool},
		{"sentry.dsn", "SENTRY_DSN", nil},
		{"sentry.environment", "SENTRY_ENVIRONMENT", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation (internal)
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate != nil {
			if envValue := os.Getenv(binding.EnvVar); envValue != "" {
				if err := binding.Validate(envValue); err != nil {
					warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
				}
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}

	return nil
}

// Environment variable validation functions

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(strings.TrimSpace(value)); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f", value)
	}
	return nil
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validateEnvPositiveInt(value string) error {
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer: %w", err)
	}
	if n <= 0 {
		return fmt.Errorf("must be positive, got %d", n)
	}
	return nil
}

func validateEnvNonNegativeFloat(value string) error {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fmt.Errorf("invalid number: %w", err)
	}
	if f < 0 {
		return fmt.Errorf("must not be negative, got %g", f)
	}
	return nil
}

func validateEnvURL(value string) error {
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must include a host")
	}
	return nil
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("duration must be positive, got %s", d)
	}
	return nil
}

func validateEnvDatabaseType(value string) error {
	switch value {
	case "sqlite", "mysql":
		return nil
	default:
		return fmt.Errorf("must be one of: sqlite, mysql")
	}
}

func validateEnvLogLevel(value string) error {
	switch strings.ToLower(value) {
	case "trace", "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("must be one of: trace, debug, info, warn, error")
	}
}

func validateEnvLogFormat(value string) error {
	switch value {
	case "text", "json":
		return nil
	default:
		return fmt.Errorf("must be one of: text, json")
	}
}
