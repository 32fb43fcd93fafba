package cmd

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	configcmd "github.com/rcanpahali/BirdNet/cmd/config"
	"github.com/rcanpahali/BirdNet/cmd/migrate"
	"github.com/rcanpahali/BirdNet/cmd/serve"
	"github.com/rcanpahali/BirdNet/internal/buildinfo"
	"github.com/rcanpahali/BirdNet/internal/conf"
	"github.com/rcanpahali/BirdNet/internal/errors"
	"github.com/rcanpahali/BirdNet/internal/logger"
)

const telemetryFlushTimeout = 2 * time.Second

// RootCommand creates the root command. settings is filled in before any
// subcommand runs.
func RootCommand(settings *conf.Settings, build *buildinfo.Context) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "birdnet-proxy",
		Short: "BirdNet ingest proxy",
		Long:  "Forwards audio uploads to a BirdNET analysis service and records the detections it returns.",
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config.yaml (default: search ., ~/.config/birdnet-proxy, /etc/birdnet-proxy)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug output")
	if err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		panic(fmt.Sprintf("error binding debug flag: %v", err))
	}

	rootCmd.AddCommand(
		serve.Command(settings),
		migrate.Command(settings),
		configcmd.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return initialize(settings, configFile, build)
	}

	return rootCmd
}

// initialize is called before any subcommand runs. It loads .env, the
// settings, the global logger and optional telemetry.
func initialize(settings *conf.Settings, configFile string, build *buildinfo.Context) error {
	// .env is optional
	_ = godotenv.Load()

	loaded, err := conf.Load(configFile)
	if err != nil {
		return err
	}
	*settings = *loaded

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.SetGlobal(central)
	central.Module("main").Debug("settings loaded",
		logger.String("version", build.GetVersion()),
		logger.String("build_date", build.GetBuildDate()))

	if settings.Sentry.Enabled {
		if err := errors.InitSentry(errors.SentryConfig{
			DSN:         settings.Sentry.DSN,
			Environment: settings.Sentry.Environment,
			Release:     build.Release(),
			Debug:       settings.Debug,
		}); err != nil {
			central.Module("main").Warn("error telemetry disabled", logger.Error(err))
		}
	}

	return nil
}

// Cleanup flushes telemetry and the global logger. main calls it after the
// command returns, including on error.
func Cleanup() {
	errors.FlushTelemetry(telemetryFlushTimeout)
	_ = logger.Global().Close()
}
