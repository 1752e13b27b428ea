// Package app initializes and holds the long-lived application services,
// acting as a dependency injection container for the CLI commands.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/regdata/docbridge/internal/clock/system"
	"github.com/regdata/docbridge/internal/config"
	"github.com/regdata/docbridge/internal/extract"
	"github.com/regdata/docbridge/internal/fetch"
	"github.com/regdata/docbridge/internal/hash/sha1"
	"github.com/regdata/docbridge/internal/ingest"
	"github.com/regdata/docbridge/internal/logging"
	"github.com/regdata/docbridge/internal/report"
	"github.com/regdata/docbridge/internal/report/sinks"
	"github.com/regdata/docbridge/internal/scraper"
	"github.com/regdata/docbridge/internal/store/memory"
	"github.com/regdata/docbridge/internal/store/postgres"
	"github.com/regdata/docbridge/internal/track"
)

// App holds the shared services built from configuration: the store, the
// fetch client, the ingestion pipeline, the report hub, and the site
// scrapers. It is initialized once at startup and torn down via Close.
type App struct {
	Cfg        config.Config
	Logger     *zap.Logger
	Store      ingest.Store
	Fetcher    *fetch.Client
	Dispatcher *ingest.Dispatcher
	Runner     *ingest.Runner
	Hub        *report.Hub
	Registry   *scraper.Registry
	Scrapers   *scraper.BatchRunner

	pg *postgres.Store
}

// New builds every service from the configuration, failing fast when any
// critical dependency cannot be initialized. An empty db.dsn selects the
// in-memory store.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &App{Cfg: cfg, Logger: logger}

	if cfg.DB.DSN != "" {
		pg, err := postgres.New(ctx, postgres.Config{
			DSN:             cfg.DB.DSN,
			MaxConns:        cfg.DB.MaxConns,
			MinConns:        cfg.DB.MinConns,
			MaxConnLifetime: cfg.DBConnLifetime(),
		})
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			pg.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		a.pg = pg
		a.Store = pg
		logger.Info("using postgres store")
	} else {
		a.Store = memory.New()
		logger.Warn("db.dsn is empty, using in-memory store")
	}

	a.Fetcher, err = fetch.New(fetch.Config{
		UserAgent:    cfg.Fetch.UserAgent,
		Timeout:      cfg.FetchTimeout(),
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
		MaxRetries:   cfg.Fetch.MaxRetries,
		BaseBackoff:  cfg.FetchBackoff(),
		PerHostRPS:   cfg.Fetch.PerHostRPS,
		PerHostBurst: cfg.Fetch.PerHostBurst,
	}, logger.Named("fetch"))
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("init fetch client: %w", err)
	}

	clk := system.New()
	tracker := track.New(a.Store, sha1.New(), clk, logger.Named("track"))

	htmlEx := extract.NewHTMLExtractor(a.Fetcher, logger.Named("extract"))
	feedEx := extract.NewFeedExtractor(a.Fetcher, htmlEx, logger.Named("extract"))
	a.Dispatcher = ingest.NewDispatcher(a.Store, tracker, map[ingest.SourceType]ingest.Extractor{
		ingest.SourceTypeFeed: feedEx,
		ingest.SourceTypeHTML: htmlEx,
	}, logger.Named("dispatch"))

	hub, err := buildHub(cfg, logger)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	a.Hub = hub

	a.Runner = ingest.NewRunner(a.Store, a.Dispatcher, hub, cfg.Ingest.Workers, logger.Named("ingest"))

	a.Registry, err = scraper.DefaultRegistry(a.Fetcher, clk, cfg.Scraper.CacheDir, logger.Named("scraper"))
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("build scraper registry: %w", err)
	}
	a.Scrapers = scraper.NewBatchRunner(a.Registry, cfg.Scraper.Workers, logger.Named("scraper"))

	return a, nil
}

func buildHub(cfg config.Config, logger *zap.Logger) (*report.Hub, error) {
	hubSinks := []report.Sink{sinks.NewLogSink(logger.Named("report"))}

	if cfg.Report.JSONLDir != "" {
		jsonl, err := sinks.NewJSONLSink(cfg.Report.JSONLDir)
		if err != nil {
			return nil, fmt.Errorf("init jsonl sink: %w", err)
		}
		hubSinks = append(hubSinks, jsonl)
	}

	prom, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, fmt.Errorf("init prometheus sink: %w", err)
	}
	hubSinks = append(hubSinks, prom)

	return report.NewHub(report.Config{Logger: logger.Named("report")}, hubSinks...), nil
}

// SeedSources converts the configured source list and seeds the store when
// it holds no sources yet.
func (a *App) SeedSources(ctx context.Context) (int, error) {
	defaults := make([]ingest.Source, 0, len(a.Cfg.Sources))
	for _, s := range a.Cfg.Sources {
		defaults = append(defaults, ingest.Source{
			Name:         s.Name,
			URL:          s.URL,
			Type:         ingest.SourceType(s.Type),
			Jurisdiction: s.Jurisdiction,
			Active:       s.Active,
		})
	}
	return ingest.SeedSources(ctx, a.Store, defaults, a.Logger)
}

// Close flushes the report hub and releases the store.
func (a *App) Close(ctx context.Context) {
	if a.Hub != nil {
		if err := a.Hub.Close(ctx); err != nil {
			a.Logger.Warn("report hub close failed", zap.Error(err))
		}
	}
	if a.pg != nil {
		a.pg.Close()
	}
	_ = a.Logger.Sync()
}
