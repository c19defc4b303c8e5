package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "concierge",
		Short: "Storefront shopping assistant",
		Long: `Concierge serves the storefront chat assistant: product discovery over the
catalog, FAQ answers and order tracking, one conversation per session.`,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newCatalogCmd())
	return root
}
