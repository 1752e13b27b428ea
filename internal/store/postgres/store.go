// Package postgres provides the Postgres-backed Store.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/regdata/docbridge/internal/ingest"
)

//go:embed schema.sql
var schemaSQL string

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// Store implements ingest.Store on top of a pgx connection pool.
type Store struct {
	pool pgxPool
}

// New creates a Store using the provided config and verifies connectivity.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a Store from an existing pool (primarily for testing).
func NewWithPool(pool pgxPool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the tables and indexes if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// UpsertSource creates or updates a source keyed by its unique name.
func (s *Store) UpsertSource(ctx context.Context, src ingest.Source) (ingest.Source, error) {
	query := `
INSERT INTO sources (name, url, jurisdiction, type, active)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (name) DO UPDATE
SET url = EXCLUDED.url,
    jurisdiction = EXCLUDED.jurisdiction,
    type = EXCLUDED.type,
    active = EXCLUDED.active,
    updated_at = now()
RETURNING id, created_at, updated_at;
`
	row := s.pool.QueryRow(ctx, query, src.Name, src.URL, src.Jurisdiction, string(src.Type), src.Active)
	if err := row.Scan(&src.ID, &src.CreatedAt, &src.UpdatedAt); err != nil {
		return ingest.Source{}, &ingest.PersistenceError{Op: "upsert source", Err: err}
	}
	return src, nil
}

// ListSources returns all sources ordered by name.
func (s *Store) ListSources(ctx context.Context) ([]ingest.Source, error) {
	query := `
SELECT id, name, url, jurisdiction, type, active, created_at, updated_at
FROM sources
ORDER BY name;
`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, &ingest.PersistenceError{Op: "list sources", Err: err}
	}
	defer rows.Close()

	var out []ingest.Source
	for rows.Next() {
		var src ingest.Source
		var typ string
		if err := rows.Scan(&src.ID, &src.Name, &src.URL, &src.Jurisdiction, &typ, &src.Active, &src.CreatedAt, &src.UpdatedAt); err != nil {
			return nil, &ingest.PersistenceError{Op: "scan source", Err: err}
		}
		src.Type = ingest.SourceType(typ)
		out = append(out, src)
	}
	if err := rows.Err(); err != nil {
		return nil, &ingest.PersistenceError{Op: "list sources", Err: err}
	}
	return out, nil
}

// UpsertDocument creates or updates a document keyed by its unique URL.
// Non-empty text/metadata already stored are never overwritten by empty
// values from a later fetch; title and published_at may refresh.
func (s *Store) UpsertDocument(ctx context.Context, doc ingest.Document) (ingest.Document, error) {
	title := doc.Title
	if title == "" {
		title = "(untitled)"
	}
	var metadata []byte
	if len(doc.Metadata) > 0 {
		var err error
		metadata, err = json.Marshal(doc.Metadata)
		if err != nil {
			return ingest.Document{}, &ingest.PersistenceError{Op: "marshal document metadata", Err: err}
		}
	}
	query := `
INSERT INTO documents (source_id, title, url, published_at, text, metadata, jurisdiction)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (url) DO UPDATE
SET title = CASE WHEN EXCLUDED.title <> '' AND EXCLUDED.title <> '(untitled)'
                 THEN EXCLUDED.title ELSE documents.title END,
    published_at = COALESCE(EXCLUDED.published_at, documents.published_at),
    text = CASE WHEN documents.text = '' THEN EXCLUDED.text ELSE documents.text END,
    metadata = COALESCE(documents.metadata, EXCLUDED.metadata),
    jurisdiction = CASE WHEN EXCLUDED.jurisdiction <> ''
                        THEN EXCLUDED.jurisdiction ELSE documents.jurisdiction END
RETURNING id, source_id, title, url, published_at, text, metadata, jurisdiction,
          created_at, current_hash, first_seen_at, last_seen_at, last_changed_at;
`
	row := s.pool.QueryRow(ctx, query,
		doc.SourceID, title, doc.URL, doc.PublishedAt, doc.Text, metadata, doc.Jurisdiction)
	got, err := scanDocument(row)
	if err != nil {
		return ingest.Document{}, &ingest.PersistenceError{Op: "upsert document", Err: err}
	}
	return got, nil
}

// GetDocumentByURL fetches a document by its natural key.
func (s *Store) GetDocumentByURL(ctx context.Context, url string) (ingest.Document, error) {
	query := `
SELECT id, source_id, title, url, published_at, text, metadata, jurisdiction,
       created_at, current_hash, first_seen_at, last_seen_at, last_changed_at
FROM documents
WHERE url = $1;
`
	doc, err := scanDocument(s.pool.QueryRow(ctx, query, url))
	if errors.Is(err, pgx.ErrNoRows) {
		return ingest.Document{}, fmt.Errorf("document %q: %w", url, ingest.ErrNotFound)
	}
	if err != nil {
		return ingest.Document{}, &ingest.PersistenceError{Op: "get document", Err: err}
	}
	return doc, nil
}

// ListVersions returns a document's history ordered by version number.
func (s *Store) ListVersions(ctx context.Context, docID int64) ([]ingest.DocumentVersion, error) {
	query := `
SELECT id, doc_id, version_no, content_hash, title, snapshot, change_type, fetched_at
FROM document_versions
WHERE doc_id = $1
ORDER BY version_no;
`
	rows, err := s.pool.Query(ctx, query, docID)
	if err != nil {
		return nil, &ingest.PersistenceError{Op: "list versions", Err: err}
	}
	defer rows.Close()

	var out []ingest.DocumentVersion
	for rows.Next() {
		var v ingest.DocumentVersion
		var change string
		if err := rows.Scan(&v.ID, &v.DocID, &v.VersionNo, &v.ContentHash, &v.Title, &v.Snapshot, &change, &v.FetchedAt); err != nil {
			return nil, &ingest.PersistenceError{Op: "scan version", Err: err}
		}
		v.ChangeType = ingest.ChangeType(change)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, &ingest.PersistenceError{Op: "list versions", Err: err}
	}
	return out, nil
}

// WithDocument runs fn inside a transaction holding a row lock on the
// document, so concurrent writers of the same document serialize and each
// reads a max version number no other writer can reuse.
func (s *Store) WithDocument(ctx context.Context, docID int64, fn func(ingest.DocTx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return &ingest.PersistenceError{Op: "begin document tx", Err: err}
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	dt := &docTx{tx: tx, docID: docID}
	if err := fn(dt); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return &ingest.PersistenceError{Op: "commit document tx", Err: err}
	}
	return nil
}

type docTx struct {
	tx    pgx.Tx
	docID int64
}

func (t *docTx) Tracking(ctx context.Context) (ingest.TrackingState, error) {
	query := `
SELECT d.id, d.title, d.url, d.current_hash, d.first_seen_at, d.last_seen_at,
       COALESCE((SELECT MAX(version_no) FROM document_versions WHERE doc_id = d.id), 0)
FROM documents d
WHERE d.id = $1
FOR UPDATE OF d;
`
	var state ingest.TrackingState
	err := t.tx.QueryRow(ctx, query, t.docID).Scan(
		&state.DocID, &state.Title, &state.URL, &state.CurrentHash,
		&state.FirstSeenAt, &state.LastSeenAt, &state.MaxVersionNo)
	if errors.Is(err, pgx.ErrNoRows) {
		return ingest.TrackingState{}, fmt.Errorf("document %d: %w", t.docID, ingest.ErrNotFound)
	}
	if err != nil {
		return ingest.TrackingState{}, &ingest.PersistenceError{Op: "read tracking state", Err: err}
	}
	return state, nil
}

func (t *docTx) InsertVersion(ctx context.Context, v ingest.DocumentVersion) error {
	query := `
INSERT INTO document_versions (doc_id, version_no, content_hash, title, snapshot, change_type, fetched_at)
VALUES ($1, $2, $3, $4, $5, $6, $7);
`
	_, err := t.tx.Exec(ctx, query,
		t.docID, v.VersionNo, v.ContentHash, v.Title, v.Snapshot, string(v.ChangeType), v.FetchedAt)
	if err != nil {
		return &ingest.PersistenceError{Op: "insert version", Err: err}
	}
	return nil
}

func (t *docTx) UpdateTracking(ctx context.Context, u ingest.TrackingUpdate) error {
	query := `
UPDATE documents
SET current_hash = COALESCE($2, current_hash),
    title = COALESCE($3, title),
    first_seen_at = COALESCE($4, first_seen_at),
    last_seen_at = COALESCE($5, last_seen_at),
    last_changed_at = COALESCE($6, last_changed_at)
WHERE id = $1;
`
	tag, err := t.tx.Exec(ctx, query,
		t.docID, u.CurrentHash, u.Title, u.FirstSeenAt, u.LastSeenAt, u.LastChangedAt)
	if err != nil {
		return &ingest.PersistenceError{Op: "update tracking state", Err: err}
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %d: %w", t.docID, ingest.ErrNotFound)
	}
	return nil
}

func (t *docTx) LatestSnapshot(ctx context.Context) (string, error) {
	query := `
SELECT snapshot
FROM document_versions
WHERE doc_id = $1
ORDER BY version_no DESC
LIMIT 1;
`
	var snapshot string
	err := t.tx.QueryRow(ctx, query, t.docID).Scan(&snapshot)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", &ingest.PersistenceError{Op: "read latest snapshot", Err: err}
	}
	return snapshot, nil
}

func scanDocument(row pgx.Row) (ingest.Document, error) {
	var doc ingest.Document
	var metadata []byte
	if err := row.Scan(
		&doc.ID, &doc.SourceID, &doc.Title, &doc.URL, &doc.PublishedAt,
		&doc.Text, &metadata, &doc.Jurisdiction, &doc.CreatedAt,
		&doc.CurrentHash, &doc.FirstSeenAt, &doc.LastSeenAt, &doc.LastChangedAt,
	); err != nil {
		return ingest.Document{}, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &doc.Metadata); err != nil {
			return ingest.Document{}, fmt.Errorf("unmarshal document metadata: %w", err)
		}
	}
	return doc, nil
}
