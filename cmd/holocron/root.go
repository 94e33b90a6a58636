package main

import (
	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "holocron",
		Short: "A concurrent, priority-ordered API graph crawler",
		Long: `holocron discovers and fetches a graph of linked JSON resources through
a paginated HTTP API, deduplicates work through a priority frontier, and
persists results for later batch ingestion.`,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default searches ./config.yaml)")

	cmd.AddCommand(newCrawlCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}
