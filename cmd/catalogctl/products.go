package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tendant/simple-catalog/pkg/catalog"
)

var (
	productsCategory string
	productsLimit    int
	productsOffset   int
	productsJSON     bool
)

var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "List stored products without resolving image URLs",
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

		products, total, err := comps.Repository.ListProducts(cmd.Context(), catalog.ProductFilter{
			Category: productsCategory,
			Offset:   productsOffset,
			Limit:    productsLimit,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if productsJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(products)
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tPRICE\tIMAGE")
		for _, p := range products {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Category, p.Price.StringFixed(2), p.ImageURL)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		_, err = fmt.Fprintf(out, "\n%d of %d products\n", len(products), total)
		return err
	},
}

func init() {
	f := productsCmd.Flags()
	f.StringVar(&productsCategory, "category", "", "only list products in this category")
	f.IntVar(&productsLimit, "limit", 50, "maximum number of products")
	f.IntVar(&productsOffset, "offset", 0, "number of products to skip")
	f.BoolVar(&productsJSON, "json", false, "print JSON instead of a table")
}
