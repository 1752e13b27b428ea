// Package sched triggers ingestion cycles on a cron schedule.
package sched

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Job is one scheduled unit of work, typically Runner.RunOnce bound to
// onlyActive=true.
type Job func(ctx context.Context) error

// Scheduler runs a single Job on a cron cadence. Ticks that arrive while a
// previous run is still in flight are skipped rather than stacked.
type Scheduler struct {
	cron    *cron.Cron
	logger  *zap.Logger
	running atomic.Bool
}

// New validates spec (standard 5-field cron) and registers the job. The
// scheduler does not start until Start is called.
func New(spec string, job Job, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		cron:   cron.New(),
		logger: logger,
	}
	if _, err := s.cron.AddFunc(spec, func() { s.tick(job) }); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) tick(job Job) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Warn("skipping scheduled ingestion, previous run still in flight")
		return
	}
	defer s.running.Store(false)

	if err := job(context.Background()); err != nil {
		s.logger.Error("scheduled ingestion failed", zap.Error(err))
	}
}

// Start begins the schedule. It is idempotent.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running job to finish, bounded by
// ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop wait: %w", ctx.Err())
	}
}
