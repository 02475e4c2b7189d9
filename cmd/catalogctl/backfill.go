package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	backfillPrefix      string
	backfillConcurrency int
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Generate missing thumbnails for stored images",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		comps, err := cfg.Build(cmd.Context(), logger)
		if err != nil {
			return err
		}
		defer comps.Close()

		report, err := comps.Thumbnailer.Backfill(cmd.Context(), backfillPrefix, backfillConcurrency)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "scanned %d, created %d, skipped %d, failed %d\n",
			report.Scanned, report.Created, report.Skipped, report.Failed)
		return err
	},
}

func init() {
	backfillCmd.Flags().StringVar(&backfillPrefix, "prefix", "", "only scan keys under this prefix")
	backfillCmd.Flags().IntVar(&backfillConcurrency, "concurrency", 4, "thumbnails generated in parallel")
}
