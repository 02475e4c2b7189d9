package main

import (
	"fmt"

	"github.com/spf13/cobra"

	repopg "github.com/tendant/simple-catalog/pkg/catalog/repo/postgres"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the catalog tables and change triggers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.DatabaseType != "postgres" {
			return fmt.Errorf("migrate needs DATABASE_URL to point at Postgres")
		}
		ctx := cmd.Context()
		pool, err := cfg.OpenPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := repopg.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info("Schema is up to date", "schema", cfg.DBSchema)
		return nil
	},
}
