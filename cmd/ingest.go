package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/regdata/docbridge/internal/app"
)

func newIngestCmd() *cobra.Command {
	var includeInactive bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run one ingestion cycle and print its stats as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIngest(cmd.Context(), includeInactive)
		},
	}
	cmd.Flags().BoolVar(&includeInactive, "all", false, "include inactive sources")
	return cmd
}

func runIngest(ctx context.Context, includeInactive bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.Close(closeCtx)
	}()

	if _, err := a.SeedSources(ctx); err != nil {
		return fmt.Errorf("seed sources: %w", err)
	}

	stats, err := a.Runner.RunOnce(ctx, !includeInactive)
	if err != nil {
		return fmt.Errorf("run ingest: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(stats); err != nil {
		return fmt.Errorf("write stats: %w", err)
	}
	return nil
}
