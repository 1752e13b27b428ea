package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/regdata/docbridge/internal/report"
)

// PrometheusSink exports ingestion-run metrics. It owns the run/source/
// document collectors; fetch-level collectors live in the metrics package.
type PrometheusSink struct {
	runsTotal      prometheus.Counter
	runDuration    prometheus.Histogram
	sourcesTotal   *prometheus.CounterVec
	sourceDuration *prometheus.HistogramVec
	documentsTotal *prometheus.CounterVec
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docbridge_ingest_runs_total",
			Help: "Total ingestion cycles completed.",
		}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "docbridge_ingest_run_duration_seconds",
			Help:    "Wall time per completed ingestion cycle.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		sourcesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docbridge_ingest_sources_total",
			Help: "Sources processed partitioned by outcome.",
		}, []string{"outcome"}),
		sourceDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docbridge_ingest_source_duration_seconds",
			Help:    "Processing time per source partitioned by outcome.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"outcome"}),
		documentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docbridge_documents_total",
			Help: "Document observations partitioned by change type.",
		}, []string{"change"}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsTotal,
		s.runDuration,
		s.sourcesTotal,
		s.sourceDuration,
		s.documentsTotal,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register report collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch. Safe for concurrent use.
func (s *PrometheusSink) Consume(_ context.Context, batch []report.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt report.Event) {
	switch evt.Stage {
	case report.StageRunDone:
		s.runsTotal.Inc()
		if evt.Dur > 0 {
			s.runDuration.Observe(evt.Dur.Seconds())
		}
	case report.StageSourceDone:
		s.observeSource("ok", evt)
	case report.StageSourceError:
		s.observeSource("error", evt)
	case report.StageSourceSkipped:
		s.observeSource("skipped", evt)
	case report.StageDocChange:
		s.documentsTotal.WithLabelValues(evt.Change).Inc()
	}
}

func (s *PrometheusSink) observeSource(outcome string, evt report.Event) {
	s.sourcesTotal.WithLabelValues(outcome).Inc()
	if evt.Dur > 0 {
		s.sourceDuration.WithLabelValues(outcome).Observe(evt.Dur.Seconds())
	}
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
