package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regdata/docbridge/internal/ingest"
)

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	store, err := NewWithPool(mock)
	require.NoError(t, err)
	return store, mock
}

func TestUpsertSourceReturnsStoredRow(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	now := time.Unix(1700000000, 0).UTC()

	mock.ExpectQuery("INSERT INTO sources").
		WithArgs("ferc-news", "https://www.ferc.gov/news", "US-FED", "html", true).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(int64(7), now, now))

	src, err := store.UpsertSource(context.Background(), ingest.Source{
		Name:         "ferc-news",
		URL:          "https://www.ferc.gov/news",
		Jurisdiction: "US-FED",
		Type:         ingest.SourceTypeHTML,
		Active:       true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), src.ID)
	assert.Equal(t, now, src.CreatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListSources(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	now := time.Unix(1700000000, 0).UTC()

	mock.ExpectQuery("SELECT (.+) FROM sources").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "name", "url", "jurisdiction", "type", "active", "created_at", "updated_at",
		}).
			AddRow(int64(1), "bsee-news", "https://www.bsee.gov/newsroom", "US-FED", "feed", true, now, now).
			AddRow(int64(2), "rrc-news", "https://www.rrc.texas.gov/news/", "US-TX", "html", false, now, now))

	sources, err := store.ListSources(context.Background())
	require.NoError(t, err)
	require.Len(t, sources, 2)
	assert.Equal(t, ingest.SourceTypeFeed, sources[0].Type)
	assert.False(t, sources[1].Active)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDocumentByURLNotFound(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT (.+) FROM documents").
		WithArgs("https://example.gov/missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetDocumentByURL(context.Background(), "https://example.gov/missing")
	require.ErrorIs(t, err, ingest.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListVersionsScansHistory(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	now := time.Unix(1700000000, 0).UTC()

	mock.ExpectQuery("SELECT (.+) FROM document_versions").
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "doc_id", "version_no", "content_hash", "title", "snapshot", "change_type", "fetched_at",
		}).
			AddRow(int64(1), int64(42), 1, "aaa", "Doc", "body v1", "ADDED", now).
			AddRow(int64(2), int64(42), 2, "bbb", "Doc", "body v2", "UPDATED", now.Add(time.Hour)))

	versions, err := store.ListVersions(context.Background(), 42)
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, ingest.ChangeAdded, versions[0].ChangeType)
	assert.Equal(t, 2, versions[1].VersionNo)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithDocumentCommitsVersionWrite(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	now := time.Unix(1700000000, 0).UTC()
	docID := int64(42)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE OF d").
		WithArgs(docID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "title", "url", "current_hash", "first_seen_at", "last_seen_at", "max",
		}).AddRow(docID, "Doc", "https://example.gov/doc", "aaa", &now, &now, 3))
	mock.ExpectExec("INSERT INTO document_versions").
		WithArgs(docID, 4, "bbb", "Doc", "body v4", "UPDATED", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("UPDATE documents").
		WithArgs(docID, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	hash := "bbb"
	err := store.WithDocument(context.Background(), docID, func(tx ingest.DocTx) error {
		state, err := tx.Tracking(context.Background())
		if err != nil {
			return err
		}
		if err := tx.InsertVersion(context.Background(), ingest.DocumentVersion{
			VersionNo:   state.MaxVersionNo + 1,
			ContentHash: hash,
			Title:       state.Title,
			Snapshot:    "body v4",
			ChangeType:  ingest.ChangeUpdated,
			FetchedAt:   now,
		}); err != nil {
			return err
		}
		return tx.UpdateTracking(context.Background(), ingest.TrackingUpdate{
			CurrentHash: &hash,
			LastSeenAt:  &now,
		})
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithDocumentRollsBackOnError(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	docID := int64(42)
	boom := errors.New("tracker failure")

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE OF d").
		WithArgs(docID).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "title", "url", "current_hash", "first_seen_at", "last_seen_at", "max",
		}).AddRow(docID, "Doc", "https://example.gov/doc", "", nil, nil, 0))
	mock.ExpectRollback()

	err := store.WithDocument(context.Background(), docID, func(tx ingest.DocTx) error {
		if _, err := tx.Tracking(context.Background()); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithDocumentUnknownDoc(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE OF d").
		WithArgs(int64(99)).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	err := store.WithDocument(context.Background(), 99, func(tx ingest.DocTx) error {
		_, err := tx.Tracking(context.Background())
		return err
	})
	require.ErrorIs(t, err, ingest.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS sources").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}
