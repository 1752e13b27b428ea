// Package memory provides an in-memory Store for development and tests.
// It mirrors the Postgres store's semantics, including per-document
// serialization of tracking writes.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/regdata/docbridge/internal/ingest"
)

// Store implements ingest.Store backed by maps.
type Store struct {
	mu            sync.RWMutex
	nextSourceID  int64
	nextDocID     int64
	nextVersionID int64
	sources       map[int64]ingest.Source
	sourceByName  map[string]int64
	docs          map[int64]ingest.Document
	docByURL      map[string]int64
	versions      map[int64][]ingest.DocumentVersion

	lockMu   sync.Mutex
	docLocks map[int64]*sync.Mutex

	now func() time.Time
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		sources:      make(map[int64]ingest.Source),
		sourceByName: make(map[string]int64),
		docs:         make(map[int64]ingest.Document),
		docByURL:     make(map[string]int64),
		versions:     make(map[int64][]ingest.DocumentVersion),
		docLocks:     make(map[int64]*sync.Mutex),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// UpsertSource creates or updates a source keyed by its unique name.
func (s *Store) UpsertSource(_ context.Context, src ingest.Source) (ingest.Source, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if id, ok := s.sourceByName[src.Name]; ok {
		existing := s.sources[id]
		existing.URL = src.URL
		existing.Jurisdiction = src.Jurisdiction
		existing.Type = src.Type
		existing.Active = src.Active
		existing.UpdatedAt = now
		s.sources[id] = existing
		return existing, nil
	}
	s.nextSourceID++
	src.ID = s.nextSourceID
	src.CreatedAt = now
	src.UpdatedAt = now
	s.sources[src.ID] = src
	s.sourceByName[src.Name] = src.ID
	return src, nil
}

// ListSources returns all sources ordered by name.
func (s *Store) ListSources(_ context.Context) ([]ingest.Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ingest.Source, 0, len(s.sources))
	for _, src := range s.sources {
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// UpsertDocument creates or updates a document keyed by its unique URL.
// Non-empty text/metadata already stored are never overwritten by empty
// values from a later fetch; title and published_at may refresh.
func (s *Store) UpsertDocument(_ context.Context, doc ingest.Document) (ingest.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.docByURL[doc.URL]; ok {
		existing := s.docs[id]
		if doc.Title != "" && doc.Title != existing.Title {
			existing.Title = doc.Title
		}
		if doc.PublishedAt != nil {
			existing.PublishedAt = doc.PublishedAt
		}
		if doc.Text != "" && existing.Text == "" {
			existing.Text = doc.Text
		}
		if len(doc.Metadata) > 0 && len(existing.Metadata) == 0 {
			existing.Metadata = doc.Metadata
		}
		if doc.Jurisdiction != "" && doc.Jurisdiction != existing.Jurisdiction {
			existing.Jurisdiction = doc.Jurisdiction
		}
		s.docs[id] = existing
		return existing, nil
	}
	s.nextDocID++
	doc.ID = s.nextDocID
	if doc.Title == "" {
		doc.Title = "(untitled)"
	}
	doc.CreatedAt = s.now()
	s.docs[doc.ID] = doc
	s.docByURL[doc.URL] = doc.ID
	return doc, nil
}

// GetDocumentByURL fetches a document by its natural key.
func (s *Store) GetDocumentByURL(_ context.Context, url string) (ingest.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.docByURL[url]
	if !ok {
		return ingest.Document{}, fmt.Errorf("document %q: %w", url, ingest.ErrNotFound)
	}
	return s.docs[id], nil
}

// ListVersions returns a document's history ordered by version number.
func (s *Store) ListVersions(_ context.Context, docID int64) ([]ingest.DocumentVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]ingest.DocumentVersion(nil), s.versions[docID]...)
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNo < out[j].VersionNo })
	return out, nil
}

// WithDocument serializes fn against other writers of the same document via
// a per-document mutex; different documents proceed independently.
func (s *Store) WithDocument(_ context.Context, docID int64, fn func(ingest.DocTx) error) error {
	s.mu.RLock()
	_, ok := s.docs[docID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("document %d: %w", docID, ingest.ErrNotFound)
	}

	lock := s.docLock(docID)
	lock.Lock()
	defer lock.Unlock()
	return fn(&docTx{store: s, docID: docID})
}

func (s *Store) docLock(docID int64) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.docLocks[docID]
	if !ok {
		lock = &sync.Mutex{}
		s.docLocks[docID] = lock
	}
	return lock
}

type docTx struct {
	store *Store
	docID int64
}

func (tx *docTx) Tracking(_ context.Context) (ingest.TrackingState, error) {
	s := tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[tx.docID]
	if !ok {
		return ingest.TrackingState{}, fmt.Errorf("document %d: %w", tx.docID, ingest.ErrNotFound)
	}
	maxNo := 0
	for _, v := range s.versions[tx.docID] {
		if v.VersionNo > maxNo {
			maxNo = v.VersionNo
		}
	}
	return ingest.TrackingState{
		DocID:        doc.ID,
		Title:        doc.Title,
		URL:          doc.URL,
		CurrentHash:  doc.CurrentHash,
		MaxVersionNo: maxNo,
		FirstSeenAt:  doc.FirstSeenAt,
		LastSeenAt:   doc.LastSeenAt,
	}, nil
}

func (tx *docTx) InsertVersion(_ context.Context, v ingest.DocumentVersion) error {
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextVersionID++
	v.ID = s.nextVersionID
	v.DocID = tx.docID
	s.versions[tx.docID] = append(s.versions[tx.docID], v)
	return nil
}

func (tx *docTx) UpdateTracking(_ context.Context, u ingest.TrackingUpdate) error {
	s := tx.store
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[tx.docID]
	if !ok {
		return fmt.Errorf("document %d: %w", tx.docID, ingest.ErrNotFound)
	}
	if u.CurrentHash != nil {
		doc.CurrentHash = *u.CurrentHash
	}
	if u.Title != nil {
		doc.Title = *u.Title
	}
	if u.FirstSeenAt != nil {
		doc.FirstSeenAt = u.FirstSeenAt
	}
	if u.LastSeenAt != nil {
		doc.LastSeenAt = u.LastSeenAt
	}
	if u.LastChangedAt != nil {
		doc.LastChangedAt = u.LastChangedAt
	}
	s.docs[tx.docID] = doc
	return nil
}

func (tx *docTx) LatestSnapshot(_ context.Context) (string, error) {
	s := tx.store
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *ingest.DocumentVersion
	for i := range s.versions[tx.docID] {
		v := &s.versions[tx.docID][i]
		if latest == nil || v.VersionNo > latest.VersionNo {
			latest = v
		}
	}
	if latest == nil {
		return "", nil
	}
	return latest.Snapshot, nil
}
