package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/regdata/docbridge/internal/metrics"
	"github.com/regdata/docbridge/internal/report"
)

const defaultRunnerWorkers = 4

// Runner executes one ingestion cycle over the configured sources, fanning
// sources out to a bounded worker pool and streaming report events while the
// cycle is still in flight.
type Runner struct {
	store      Store
	dispatcher *Dispatcher
	emitter    report.Emitter
	logger     *zap.Logger
	workers    int
}

// NewRunner builds a Runner. workers <= 0 selects the default pool size.
func NewRunner(store Store, dispatcher *Dispatcher, emitter report.Emitter, workers int, logger *zap.Logger) *Runner {
	if workers <= 0 {
		workers = defaultRunnerWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &Runner{
		store:      store,
		dispatcher: dispatcher,
		emitter:    emitter,
		logger:     logger,
		workers:    workers,
	}
}

// RunOnce processes every configured source and returns aggregate stats.
// When onlyActive is set, inactive sources are reported as skipped rather
// than dispatched. Per-source failures are isolated: they appear in the
// stats and the event stream but never abort the cycle.
func (r *Runner) RunOnce(ctx context.Context, onlyActive bool) (Stats, error) {
	runID := report.NewRunID()
	started := time.Now()
	r.emit(report.Event{RunID: runID, TS: started.UTC(), Stage: report.StageRunStart})

	sources, err := r.store.ListSources(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("list sources: %w", err)
	}

	reports := make([]SourceReport, len(sources))
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < r.workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				reports[idx] = r.processSource(ctx, runID, sources[idx], onlyActive)
			}
		}()
	}
	for idx := range sources {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	stats := Stats{PerSource: reports}
	for _, rep := range reports {
		stats.Total++
		switch {
		case rep.Skipped:
			stats.Skipped++
		case rep.OK:
			stats.OK++
		default:
			stats.Errors++
		}
	}

	r.emit(report.Event{
		RunID: runID,
		TS:    time.Now().UTC(),
		Stage: report.StageRunDone,
		Items: stats.OK,
		Dur:   time.Since(started),
		Note:  fmt.Sprintf("total=%d ok=%d errors=%d skipped=%d", stats.Total, stats.OK, stats.Errors, stats.Skipped),
	})
	r.logger.Info("ingestion cycle finished",
		zap.Int("total", stats.Total),
		zap.Int("ok", stats.OK),
		zap.Int("errors", stats.Errors),
		zap.Int("skipped", stats.Skipped),
		zap.Duration("dur", time.Since(started)),
	)
	return stats, nil
}

func (r *Runner) processSource(ctx context.Context, runID [16]byte, src Source, onlyActive bool) SourceReport {
	if onlyActive && !src.Active {
		rep := SourceReport{Source: src.Name, Type: src.Type, URL: src.URL, Skipped: true}
		r.emit(report.Event{
			RunID:  runID,
			TS:     time.Now().UTC(),
			Stage:  report.StageSourceSkipped,
			Source: src.Name,
			URL:    src.URL,
			Note:   "inactive",
		})
		return rep
	}

	metrics.IncActiveIngestWorkers()
	defer metrics.DecActiveIngestWorkers()

	started := time.Now()
	rep := r.dispatcher.Process(ctx, src, func(doc Document, change ChangeType) {
		r.emit(report.Event{
			RunID:  runID,
			TS:     time.Now().UTC(),
			Stage:  report.StageDocChange,
			Source: src.Name,
			URL:    doc.URL,
			Change: string(change),
		})
	})

	evt := report.Event{
		RunID:  runID,
		TS:     time.Now().UTC(),
		Stage:  report.StageSourceDone,
		Source: src.Name,
		URL:    src.URL,
		Items:  rep.Items,
		Dur:    time.Since(started),
	}
	if !rep.OK {
		evt.Stage = report.StageSourceError
		evt.Note = rep.Error
		r.logger.Warn("source failed",
			zap.String("source", src.Name),
			zap.String("url", src.URL),
			zap.String("error", rep.Error),
		)
	}
	r.emit(evt)
	return rep
}

func (r *Runner) emit(evt report.Event) {
	if r.emitter != nil {
		r.emitter.Emit(evt)
	}
}
