// Package ingest defines the core types and interfaces for the document
// ingestion pipeline: sources, documents, version history, and the
// orchestration that ties fetching, extraction, and change tracking together.
package ingest

import (
	"time"
)

// SourceType declares which extraction strategy a source uses.
type SourceType string

// Supported source types.
const (
	SourceTypeFeed SourceType = "feed"
	SourceTypeHTML SourceType = "html"
)

// Source is a configured origin (feed or page) documents are ingested from.
type Source struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	URL          string     `json:"url"`
	Jurisdiction string     `json:"jurisdiction,omitempty"`
	Type         SourceType `json:"type"`
	Active       bool       `json:"active"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Document is a URL-identified, deduplicated ingested item. The url column is
// the natural key: exactly one row exists per distinct URL no matter how many
// times it is re-ingested.
type Document struct {
	ID           int64          `json:"id"`
	SourceID     int64          `json:"source_id"`
	Title        string         `json:"title"`
	URL          string         `json:"url"`
	PublishedAt  *time.Time     `json:"published_at,omitempty"`
	Text         string         `json:"text,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Jurisdiction string         `json:"jurisdiction,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`

	// Change-tracking fields maintained by the tracker.
	CurrentHash   string     `json:"current_hash,omitempty"`
	FirstSeenAt   *time.Time `json:"first_seen_at,omitempty"`
	LastSeenAt    *time.Time `json:"last_seen_at,omitempty"`
	LastChangedAt *time.Time `json:"last_changed_at,omitempty"`
}

// ChangeType classifies a document observation.
type ChangeType string

// Change classifications. NoChange is returned by the tracker but never
// persisted as a version row.
const (
	ChangeAdded    ChangeType = "ADDED"
	ChangeUpdated  ChangeType = "UPDATED"
	ChangeNoChange ChangeType = "NOCHANGE"
	ChangeRemoved  ChangeType = "REMOVED"
)

// DocumentVersion is an append-only history entry for one document. Version
// numbers start at 1, increase strictly, and are never reused.
type DocumentVersion struct {
	ID          int64      `json:"id"`
	DocID       int64      `json:"doc_id"`
	VersionNo   int        `json:"version_no"`
	ContentHash string     `json:"content_hash"`
	Title       string     `json:"title,omitempty"`
	Snapshot    string     `json:"snapshot,omitempty"`
	ChangeType  ChangeType `json:"change_type"`
	FetchedAt   time.Time  `json:"fetched_at"`
}

// Item is one extracted candidate document produced by an extractor before
// it has been persisted.
type Item struct {
	Title       string
	URL         string
	PublishedAt *time.Time
	Text        string
	Metadata    map[string]any
}

// SourceReport records the per-source outcome of one ingestion cycle.
type SourceReport struct {
	Source  string     `json:"source"`
	Type    SourceType `json:"type"`
	URL     string     `json:"url"`
	OK      bool       `json:"ok"`
	Skipped bool       `json:"skipped,omitempty"`
	Items   int        `json:"items"`
	Error   string     `json:"error,omitempty"`
}

// Stats aggregates one ingestion cycle across all sources.
type Stats struct {
	Total     int            `json:"total"`
	OK        int            `json:"ok"`
	Errors    int            `json:"errors"`
	Skipped   int            `json:"skipped"`
	PerSource []SourceReport `json:"per_source"`
}

// FetchResponse is what a Fetcher returns: the body plus enough metadata for
// content-type sniffing and error classification.
type FetchResponse struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
}
