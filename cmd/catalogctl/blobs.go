package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tendant/simple-catalog/pkg/catalog/media"
	"github.com/tendant/simple-catalog/pkg/catalog/storage"
)

var (
	blobsStore  string
	blobsPrefix string
)

var blobsCmd = &cobra.Command{
	Use:   "blobs",
	Short: "List stored images with their size and release date",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		comps, err := cfg.Build(ctx, logger)
		if err != nil {
			return err
		}
		defer comps.Close()

		var store storage.BlobStore
		switch blobsStore {
		case "images":
			store = comps.Images
		case "thumbnails":
			store = comps.Thumbnails
		default:
			return fmt.Errorf("unknown store %q (want images or thumbnails)", blobsStore)
		}

		keys, err := store.List(ctx, blobsPrefix)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tSIZE\tTYPE\tRELEASE")
		for _, key := range keys {
			meta, err := store.GetObjectMeta(ctx, key)
			if err != nil {
				fmt.Fprintf(w, "%s\t-\t-\t%v\n", key, err)
				continue
			}
			release := "-"
			if ts := media.ReleaseInstant(meta); ts > 0 {
				release = time.Unix(ts, 0).UTC().Format(time.RFC3339)
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", key, meta.Size, meta.ContentType, release)
		}
		return w.Flush()
	},
}

func init() {
	blobsCmd.Flags().StringVar(&blobsStore, "store", "images", "images or thumbnails")
	blobsCmd.Flags().StringVar(&blobsPrefix, "prefix", "", "only list keys under this prefix")
}
