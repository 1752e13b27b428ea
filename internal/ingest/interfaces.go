package ingest

import (
	"context"
	"time"
)

// Fetcher retrieves a URL and returns the body plus response metadata.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResponse, error)
}

// ExtractStatus reports how an extraction attempt concluded. Fallback
// decisions are data, not control flow: the feed extractor reports
// ExtractFellBack when it delegated to the HTML path.
type ExtractStatus string

// Extraction outcomes.
const (
	ExtractOK       ExtractStatus = "ok"
	ExtractNoItems  ExtractStatus = "no_items"
	ExtractFellBack ExtractStatus = "fell_back"
)

// ExtractResult carries the items one strategy produced.
type ExtractResult struct {
	Items  []Item
	Status ExtractStatus
}

// Extractor turns a source into candidate documents. Implementations must
// not touch the store; persistence is the dispatcher's job.
type Extractor interface {
	Extract(ctx context.Context, src Source) (ExtractResult, error)
}

// TrackingState is the snapshot of a document's tracking fields read under
// the store's per-document lock.
type TrackingState struct {
	DocID        int64
	Title        string
	URL          string
	CurrentHash  string
	MaxVersionNo int
	FirstSeenAt  *time.Time
	LastSeenAt   *time.Time
}

// TrackingUpdate holds the tracking-field mutations to apply to a document.
// Nil fields are left untouched.
type TrackingUpdate struct {
	CurrentHash   *string
	Title         *string
	FirstSeenAt   *time.Time
	LastSeenAt    *time.Time
	LastChangedAt *time.Time
}

// DocTx is the atomic scope the change tracker operates in. Reading the
// current hash and max version number, inserting the version row, and
// updating the tracking fields all happen inside one WithDocument call, so
// two concurrent writers can never both allocate the same version number.
type DocTx interface {
	Tracking(ctx context.Context) (TrackingState, error)
	InsertVersion(ctx context.Context, v DocumentVersion) error
	UpdateTracking(ctx context.Context, u TrackingUpdate) error
	LatestSnapshot(ctx context.Context) (string, error)
}

// Store persists sources, documents, and version history.
type Store interface {
	UpsertSource(ctx context.Context, src Source) (Source, error)
	ListSources(ctx context.Context) ([]Source, error)
	UpsertDocument(ctx context.Context, doc Document) (Document, error)
	GetDocumentByURL(ctx context.Context, url string) (Document, error)
	ListVersions(ctx context.Context, docID int64) ([]DocumentVersion, error)
	// WithDocument serializes fn against all other writers of the same
	// document. Ordering across different documents is unconstrained.
	WithDocument(ctx context.Context, docID int64, fn func(DocTx) error) error
}

// Tracker classifies one observation of a document and maintains its
// version history.
type Tracker interface {
	RecordVersion(ctx context.Context, docID int64, text, title string) (ChangeType, error)
	RecordRemoved(ctx context.Context, docID int64, reason string) error
	SeedIfMissing(ctx context.Context, docID int64, text, title string) (ChangeType, error)
}

// Hasher computes hex digests over normalized content.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (swap out in tests).
type Clock interface {
	Now() time.Time
}
