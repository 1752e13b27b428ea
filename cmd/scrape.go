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

func newScrapeCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "scrape [scraper-id]",
		Short: "Check registered site scrapers for changes, streaming JSONL results",
		Long: `Without arguments every registered scraper is checked concurrently.
Passing a scraper ID checks that scraper alone. --force discards the
scraper's cached signature so the next check reports the page as changed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return runScrape(cmd.Context(), id, force)
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "clear the scraper's cache before checking")
	return cmd
}

func runScrape(ctx context.Context, id string, force bool) error {
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

	if id != "" {
		res, err := a.Scrapers.Check(ctx, id, force)
		if err != nil {
			return fmt.Errorf("check scraper %q: %w", id, err)
		}
		if err := json.NewEncoder(os.Stdout).Encode(res); err != nil {
			return fmt.Errorf("write result: %w", err)
		}
		return nil
	}

	a.Scrapers.CheckAll(ctx, force, os.Stdout)
	return nil
}
