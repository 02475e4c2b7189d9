package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/tendant/simple-catalog/pkg/catalog/config"
)

var rootCmd = &cobra.Command{
	Use:   "catalogctl",
	Short: "Administer the product catalog",
	Long: `catalogctl runs maintenance tasks against the catalog database and
image storage. Configuration is read from the environment and from a .env
file in the current directory; run "catalogctl env" for the variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Describe the environment variables catalogctl reads",
	RunE: func(cmd *cobra.Command, args []string) error {
		desc, err := config.EnvDescription()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), desc)
		return err
	},
}

func init() {
	rootCmd.AddCommand(envCmd, migrateCmd, productsCmd, blobsCmd, backfillCmd)
}

func loadConfig() (*config.ServerConfig, *slog.Logger, error) {
	cfg, err := config.Load(config.WithEnv())
	if err != nil {
		return nil, nil, err
	}
	return cfg, cfg.NewLogger(), nil
}
