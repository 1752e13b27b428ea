package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/regdata/docbridge/internal/api"
	"github.com/regdata/docbridge/internal/app"
	"github.com/regdata/docbridge/internal/sched"
)

const shutdownGrace = 15 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server and the periodic ingestion schedule",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		a.Close(closeCtx)
	}()

	if n, err := a.SeedSources(ctx); err != nil {
		return fmt.Errorf("seed sources: %w", err)
	} else if n > 0 {
		a.Logger.Info("seeded default sources", zap.Int("count", n))
	}

	var scheduler *sched.Scheduler
	if cfg.Sched.Enabled {
		scheduler, err = sched.New(cfg.Sched.Spec, func(ctx context.Context) error {
			_, err := a.Runner.RunOnce(ctx, true)
			return err
		}, a.Logger.Named("sched"))
		if err != nil {
			return fmt.Errorf("init scheduler: %w", err)
		}
		scheduler.Start()
		a.Logger.Info("scheduler started", zap.String("spec", cfg.Sched.Spec))
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewServer(a.Store, a.Runner, a.Dispatcher, a.Scrapers, a.Registry, a.Logger.Named("api")).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("http server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if scheduler != nil {
		if err := scheduler.Stop(shutdownCtx); err != nil {
			a.Logger.Warn("scheduler stop timed out", zap.Error(err))
		}
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
