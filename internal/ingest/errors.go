package ingest

import (
	"errors"
	"fmt"
)

// ErrUnsupportedSourceType is returned by the dispatcher for a source whose
// declared type has no registered extractor. It is recorded per source and
// never aborts a batch.
var ErrUnsupportedSourceType = errors.New("unsupported source type")

// ErrNotFound is returned by store lookups for unknown documents or sources.
var ErrNotFound = errors.New("not found")

// FetchError is a terminal network or HTTP failure after retries were
// exhausted or the failure was not retryable.
type FetchError struct {
	URL        string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: status %d after %d attempt(s)", e.URL, e.StatusCode, e.Attempts)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError signals malformed feed or HTML input. It triggers the fallback
// chain rather than failing the source.
type ParseError struct {
	URL    string
	Format string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s as %s: %v", e.URL, e.Format, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ExtractionError means a strategy ran cleanly but produced zero valid items.
// Callers treat it as informational, not fatal.
type ExtractionError struct {
	Source   string
	Strategy string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: strategy %s produced no items", e.Source, e.Strategy)
}

// PersistenceError wraps a store failure. Constraint violations on the
// URL-keyed upsert indicate a logic defect, not an expected runtime state.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
