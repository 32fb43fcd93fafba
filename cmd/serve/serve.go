package serve

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/rcanpahali/BirdNet/internal/api"
	"github.com/rcanpahali/BirdNet/internal/conf"
	"github.com/rcanpahali/BirdNet/internal/datastore"
	"github.com/rcanpahali/BirdNet/internal/logger"
	"github.com/rcanpahali/BirdNet/internal/observability"
	"github.com/rcanpahali/BirdNet/internal/observability/metrics"
	"github.com/rcanpahali/BirdNet/internal/upstream"
)

// Command creates the serve command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the ingest proxy",
		Long:  "Start the HTTP server that forwards uploads to the BirdNET service and records every analysis.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return Run(cmd.Context(), settings)
		},
	}

	if err := setupFlags(cmd); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the serve command. Flags only
// override configuration when set.
func setupFlags(cmd *cobra.Command) error {
	cmd.Flags().IntP("port", "p", 0, "Port to listen on")
	cmd.Flags().String("upstream", "", "Base URL of the BirdNET analysis service")
	cmd.Flags().String("db", "", "Path of the SQLite database file")
	cmd.Flags().Int64("max-file-size", 0, "Maximum accepted upload size in bytes")

	bindings := map[string]string{
		"server.port":        "port",
		"upstream.url":       "upstream",
		"database.path":      "db",
		"server.maxfilesize": "max-file-size",
	}
	for key, flag := range bindings {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", flag, err)
		}
	}
	return nil
}

// Run boots the store, the upstream client and the HTTP server, and blocks
// until ctx is cancelled or the server fails. A store that cannot be opened
// is fatal.
func Run(ctx context.Context, settings *conf.Settings) error {
	log := logger.Global().Module("serve")

	var (
		m             *observability.Metrics
		storeRecorder metrics.Recorder
		upRecorder    metrics.Recorder
	)
	if settings.Metrics.Enabled {
		var err error
		m, err = observability.NewMetrics()
		if err != nil {
			return fmt.Errorf("failed to initialize metrics: %w", err)
		}
		storeRecorder = m.Datastore
		upRecorder = m.Upstream
	}

	store, err := datastore.Open(&settings.Database, storeRecorder)
	if err != nil {
		return fmt.Errorf("failed to open datastore: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("error closing datastore", logger.Error(err))
		}
	}()

	client, err := upstream.New(upstream.Config{
		BaseURL:        settings.Upstream.URL,
		AnalyzeTimeout: settings.Upstream.AnalyzeTimeout,
		HealthTimeout:  settings.Upstream.HealthTimeout,
		HealthCacheTTL: settings.Upstream.HealthCacheTTL,
	}, upRecorder)
	if err != nil {
		return err
	}
	defer client.Close()

	srv, err := api.New(settings,
		api.WithStore(store),
		api.WithUpstream(client),
		api.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	log.Info("birdnet proxy starting",
		logger.String("address", srv.Config().Address()),
		logger.String("upstream", client.BaseURL()),
		logger.String("store", store.Location()))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Start)
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown requested")
		return srv.Shutdown(context.WithoutCancel(gctx))
	})

	return g.Wait()
}
