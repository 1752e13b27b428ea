// Package scraper implements ad hoc per-site change checks. Unlike the
// ingestion pipeline, scrapers do not persist documents: each one keeps a
// private on-disk signature and answers "did this page change since the
// last check".
package scraper

import (
	"context"
	"time"
)

// Result is the outcome of one scraper check.
type Result struct {
	Scraper     string         `json:"scraper"`
	URL         string         `json:"url"`
	Updated     bool           `json:"updated"`
	DiffSummary string         `json:"diff_summary"`
	LastChecked time.Time      `json:"last_checked"`
	Error       string         `json:"error,omitempty"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// Scraper checks one site for changes. force discards the scraper's own
// cached signature before checking, and only its own.
type Scraper interface {
	ID() string
	URL() string
	Check(ctx context.Context, force bool) (Result, error)
}
