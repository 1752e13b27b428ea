package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regdata/docbridge/internal/app"
	"github.com/regdata/docbridge/internal/config"
)

// One end-to-end construction test: the prometheus report sink registers
// against the default registry, so New can only run once per process.
func TestNewBuildsAllServices(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Report.JSONLDir = t.TempDir()
	cfg.Scraper.CacheDir = t.TempDir()
	cfg.Sources = []config.SourceConfig{
		{Name: "ferc-rss", URL: "https://www.ferc.gov/rss", Type: "feed", Active: true},
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg)
	require.NoError(t, err)
	defer a.Close(ctx)

	assert.NotNil(t, a.Store)
	assert.NotNil(t, a.Fetcher)
	assert.NotNil(t, a.Dispatcher)
	assert.NotNil(t, a.Runner)
	assert.NotNil(t, a.Hub)
	assert.NotNil(t, a.Registry)
	assert.NotNil(t, a.Scrapers)

	n, err := a.SeedSources(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	sources, err := a.Store.ListSources(ctx)
	require.NoError(t, err)
	require.Len(t, sources, 1)
	assert.Equal(t, "ferc-rss", sources[0].Name)
}
