package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ent0n29/concierge/internal/catalog"
)

func newCatalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Catalog maintenance commands",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a JSON or YAML catalog file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			products, err := catalog.LoadFile(args[0])
			if err != nil {
				return err
			}
			counts := make(map[string]int)
			for _, p := range products {
				counts[p.CategorySlug]++
			}
			slugs := make([]string, 0, len(counts))
			for slug := range counts {
				slugs = append(slugs, slug)
			}
			sort.Strings(slugs)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d products ok\n", args[0], len(products))
			for _, slug := range slugs {
				fmt.Fprintf(out, "  %-12s %d\n", slug, counts[slug])
			}
			return nil
		},
	})
	return cmd
}
