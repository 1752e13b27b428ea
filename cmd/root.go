// Package cmd defines the CLI commands for the docbridge executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/regdata/docbridge/internal/config"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docbridge",
		Short: "Regulatory document ingestion and change tracking",
		Long: `docbridge ingests documents from configured feeds and pages,
tracks content changes as an append-only version history, and runs ad hoc
site scrapers against pages that publish no feed.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (defaults and DOCBRIDGE_* env vars apply when omitted)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newScrapeCmd())

	return cmd
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
