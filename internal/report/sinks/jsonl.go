package sinks

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/regdata/docbridge/internal/report"
)

// JSONLSink appends report events as JSON lines to a per-run file under a
// base directory, so each ingestion cycle leaves a durable audit trail even
// when the process exits mid-run.
type JSONLSink struct {
	dir string
	now func() time.Time

	mu   sync.Mutex
	file *os.File
}

// NewJSONLSink creates the base directory if needed. The output file is
// opened lazily on the first batch, named by the wall-clock start time.
func NewJSONLSink(dir string) (*JSONLSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("jsonl sink dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create report dir %s: %w", dir, err)
	}
	return &JSONLSink{dir: dir, now: time.Now}, nil
}

// Consume appends one JSON line per event.
func (s *JSONLSink) Consume(_ context.Context, batch []report.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		name := fmt.Sprintf("ingest-%s.jsonl", s.now().UTC().Format("20060102T150405Z"))
		f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open report file: %w", err)
		}
		s.file = f
	}
	enc := json.NewEncoder(s.file)
	for _, evt := range batch {
		line := struct {
			report.Event
			RunID string `json:"run_id"`
		}{Event: evt, RunID: evt.RunUUID().String()}
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("write report line: %w", err)
		}
	}
	return nil
}

// Close flushes and closes the output file.
func (s *JSONLSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	if err != nil {
		return fmt.Errorf("close report file: %w", err)
	}
	return nil
}
