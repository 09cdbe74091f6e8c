// Package cmd defines the CLI commands for the doc-harvester executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doc-harvester",
		Short: "Crawls PowerShell documentation sites and extracts scripts.",
		Long: `doc-harvester walks documentation sites from a seed URL, turns pages
into summarized documents, and extracts deduplicated PowerShell scripts.
Run "serve" for the HTTP API or "crawl" for a one-shot crawl.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newCrawlCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
