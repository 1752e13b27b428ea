package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/regdata/docbridge/internal/ingest"
	"github.com/regdata/docbridge/internal/metrics"
)

const defaultBatchWorkers = 8

// BatchRunner checks every registered scraper with a bounded worker pool,
// streaming each result as a JSON line the moment it is available.
type BatchRunner struct {
	registry *Registry
	workers  int
	logger   *zap.Logger
}

// NewBatchRunner builds a runner. workers <= 0 selects the default.
func NewBatchRunner(registry *Registry, workers int, logger *zap.Logger) *BatchRunner {
	if workers <= 0 {
		workers = defaultBatchWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics.Init()
	return &BatchRunner{registry: registry, workers: workers, logger: logger}
}

// CheckAll runs every scraper and returns the results ordered by scraper ID.
// When out is non-nil each result is additionally written to it as one JSON
// line as soon as the check finishes. Scraper failures are captured in their
// Result and never abort the batch.
func (r *BatchRunner) CheckAll(ctx context.Context, force bool, out io.Writer) []Result {
	scrapers := r.registry.List()
	results := make([]Result, len(scrapers))

	var (
		wg    sync.WaitGroup
		outMu sync.Mutex
	)
	sem := make(chan struct{}, r.workers)
	for i, sc := range scrapers {
		wg.Add(1)
		go func(idx int, sc Scraper) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			res, err := sc.Check(ctx, force)
			outcome := "ok"
			switch {
			case err != nil:
				outcome = "error"
				r.logger.Warn("scraper check failed",
					zap.String("scraper", sc.ID()),
					zap.Error(err),
				)
			case res.Updated:
				outcome = "updated"
			}
			metrics.ObserveScraperCheck(sc.ID(), outcome)
			results[idx] = res

			if out != nil {
				outMu.Lock()
				defer outMu.Unlock()
				if werr := json.NewEncoder(out).Encode(res); werr != nil {
					r.logger.Warn("scraper result write failed", zap.Error(werr))
				}
			}
		}(i, sc)
	}
	wg.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Scraper < results[j].Scraper })
	return results
}

// Check runs a single scraper by ID.
func (r *BatchRunner) Check(ctx context.Context, id string, force bool) (Result, error) {
	sc, ok := r.registry.Get(id)
	if !ok {
		return Result{}, fmt.Errorf("scraper %q: %w", id, ingest.ErrNotFound)
	}
	res, err := sc.Check(ctx, force)
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case res.Updated:
		outcome = "updated"
	}
	metrics.ObserveScraperCheck(id, outcome)
	return res, err
}
