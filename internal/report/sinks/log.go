// Package sinks provides the built-in report.Sink implementations.
package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/regdata/docbridge/internal/report"
)

// LogSink emits structured logs for each report event. It is the default
// sink and the only one that is always on.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []report.Event) error {
	for _, evt := range batch {
		s.logger.Info("ingest event",
			zap.String("run_id", evt.RunUUID().String()),
			zap.String("stage", string(evt.Stage)),
			zap.String("source", evt.Source),
			zap.String("url", evt.URL),
			zap.String("change", evt.Change),
			zap.Int("items", evt.Items),
			zap.Duration("dur", evt.Dur),
			zap.String("note", evt.Note),
		)
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
