package migrate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcanpahali/BirdNet/internal/conf"
	"github.com/rcanpahali/BirdNet/internal/datastore"
)

// Command creates the migrate command.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Long:  "Open the configured database, apply the schema and exit. Safe to run against an existing database.",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := datastore.Open(&settings.Database, nil)
			if err != nil {
				return fmt.Errorf("failed to initialize datastore: %w", err)
			}
			location := store.Location()
			if err := store.Close(); err != nil {
				return fmt.Errorf("failed to close datastore: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema is up to date (%s: %s)\n", settings.Database.Type, location)
			return err
		},
	}
}
