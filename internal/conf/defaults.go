// conf/defaults.go default values for settings
package conf

import (
	"github.com/spf13/viper"
)

const (
	DefaultPort        = 8080
	DefaultUpstreamURL = "http://localhost:8000"
	DefaultMaxFileSize = 100 * 1024 * 1024
	DefaultDBPath      = "data/birdnet.db"
)

// Sets default values for the configuration.
// Durations are given as strings so `config` output stays readable.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("server.host", "")
	viper.SetDefault("server.port", DefaultPort)
	viper.SetDefault("server.maxfilesize", DefaultMaxFileSize)
	viper.SetDefault("server.readtimeout", "10m")
	viper.SetDefault("server.shutdowntimeout", "10s")
	viper.SetDefault("server.cors.allowedorigins", []string{"*"})
	viper.SetDefault("server.ratelimit.enabled", false)
	viper.SetDefault("server.ratelimit.requestspersecond", 5.0)
	viper.SetDefault("server.ratelimit.burst", 10)

	viper.SetDefault("upstream.url", DefaultUpstreamURL)
	viper.SetDefault("upstream.analyzetimeout", "5m")
	viper.SetDefault("upstream.healthtimeout", "15s")
	viper.SetDefault("upstream.healthcachettl", "0s")

	viper.SetDefault("database.type", "sqlite")
	viper.SetDefault("database.path", DefaultDBPath)
	viper.SetDefault("database.mysql.host", "localhost")
	viper.SetDefault("database.mysql.port", 3306)
	viper.SetDefault("database.mysql.username", "")
	viper.SetDefault("database.mysql.password", "")
	viper.SetDefault("database.mysql.database", "birdnet")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.file.enabled", false)
	viper.SetDefault("logging.file.path", "logs/birdnet-proxy.log")

	viper.SetDefault("metrics.enabled", true)

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
	viper.SetDefault("sentry.environment", "production")
}
