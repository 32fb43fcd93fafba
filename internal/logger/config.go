package logger

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level        string            `yaml:"level" mapstructure:"level"`               // trace, debug, info, warn, error
	Format       string            `yaml:"format" mapstructure:"format"`             // console format: "text" or "json"
	Timezone     string            `yaml:"timezone" mapstructure:"timezone"`         // "Local", "UTC", or IANA name like "Europe/Helsinki"
	ModuleLevels map[string]string `yaml:"modulelevels" mapstructure:"modulelevels"` // per-module log levels
	File         FileOutput        `yaml:"file" mapstructure:"file"`
}

// FileOutput represents file logging configuration.
// File output is always JSON with RFC3339 timestamps.
type FileOutput struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Path    string `yaml:"path" mapstructure:"path"`
	Level   string `yaml:"level" mapstructure:"level"` // empty means the default level
}

const (
	DefaultLogLevel = "info"
	DefaultFormat   = "text"
	DefaultLogPath  = "logs/birdnet-proxy.log"
)

// applyConfigDefaults fills zero values so a partially populated config still logs somewhere.
func applyConfigDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = DefaultLogLevel
	}
	if cfg.Format == "" {
		cfg.Format = DefaultFormat
	}
	if cfg.File.Enabled && cfg.File.Path == "" {
		cfg.File.Path = DefaultLogPath
	}
}
