// Package track implements content-change tracking: it hashes each
// observation of a document, compares it against the stored hash, and
// maintains the append-only version history.
package track

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/regdata/docbridge/internal/ingest"
)

// SnapshotMaxChars bounds the text snapshot stored with each version row.
const SnapshotMaxChars = 20_000

// Tracker classifies document observations. All read-then-insert work runs
// inside the store's per-document atomic scope, so version numbers are
// allocated race-free.
type Tracker struct {
	store  ingest.Store
	hasher ingest.Hasher
	clock  ingest.Clock
	logger *zap.Logger
}

// New constructs a Tracker.
func New(store ingest.Store, hasher ingest.Hasher, clock ingest.Clock, logger *zap.Logger) *Tracker {
	return &Tracker{store: store, hasher: hasher, clock: clock, logger: logger}
}

// basis returns the normalized hashing basis: the extracted text when
// present, otherwise "title\nurl" so every document has a stable basis.
func (t *Tracker) basis(text, title, docTitle, docURL string) string {
	if b := Normalize(text); b != "" {
		return b
	}
	if title == "" {
		title = docTitle
	}
	return Normalize(title + "\n" + docURL)
}

// RecordVersion compares the observation against the stored hash and
// appends a version row when content changed.
func (t *Tracker) RecordVersion(ctx context.Context, docID int64, text, title string) (ingest.ChangeType, error) {
	change := ingest.ChangeNoChange
	err := t.store.WithDocument(ctx, docID, func(tx ingest.DocTx) error {
		state, err := tx.Tracking(ctx)
		if err != nil {
			return err
		}
		now := t.clock.Now()

		basis := t.basis(text, title, state.Title, state.URL)
		newHash, err := t.hasher.Hash([]byte(basis))
		if err != nil {
			return fmt.Errorf("hash basis: %w", err)
		}

		versionTitle := title
		if versionTitle == "" {
			versionTitle = state.Title
		}

		// First observation with content. max+1 rather than a literal 1:
		// a REMOVED row can precede the first content observation, and the
		// version_no sequence must keep increasing past it.
		if state.CurrentHash == "" {
			change = ingest.ChangeAdded
			if err := tx.InsertVersion(ctx, ingest.DocumentVersion{
				DocID:       docID,
				VersionNo:   state.MaxVersionNo + 1,
				ContentHash: newHash,
				Title:       versionTitle,
				Snapshot:    snapshot(basis),
				ChangeType:  ingest.ChangeAdded,
				FetchedAt:   now,
			}); err != nil {
				return err
			}
			return tx.UpdateTracking(ctx, ingest.TrackingUpdate{
				CurrentHash:   &newHash,
				FirstSeenAt:   &now,
				LastSeenAt:    &now,
				LastChangedAt: &now,
			})
		}

		// Subsequent observation: always refresh last_seen_at.
		if state.CurrentHash == newHash {
			change = ingest.ChangeNoChange
			return tx.UpdateTracking(ctx, ingest.TrackingUpdate{LastSeenAt: &now})
		}

		change = ingest.ChangeUpdated
		if err := tx.InsertVersion(ctx, ingest.DocumentVersion{
			DocID:       docID,
			VersionNo:   state.MaxVersionNo + 1,
			ContentHash: newHash,
			Title:       versionTitle,
			Snapshot:    snapshot(basis),
			ChangeType:  ingest.ChangeUpdated,
			FetchedAt:   now,
		}); err != nil {
			return err
		}
		update := ingest.TrackingUpdate{
			CurrentHash:   &newHash,
			LastSeenAt:    &now,
			LastChangedAt: &now,
		}
		if title != "" && title != state.Title {
			update.Title = &title
		}
		return tx.UpdateTracking(ctx, update)
	})
	if err != nil {
		return change, err
	}
	t.logger.Debug("version recorded",
		zap.Int64("doc_id", docID),
		zap.String("change", string(change)),
	)
	return change, nil
}

// RecordRemoved appends a REMOVED version when a previously seen URL has
// disappeared (absent from a cycle, or a permanent failure like a 404).
// The stored current_hash is deliberately left untouched.
func (t *Tracker) RecordRemoved(ctx context.Context, docID int64, reason string) error {
	return t.store.WithDocument(ctx, docID, func(tx ingest.DocTx) error {
		state, err := tx.Tracking(ctx)
		if err != nil {
			return err
		}
		now := t.clock.Now()

		contentHash := state.CurrentHash
		if contentHash == "" {
			basis := Normalize(state.Title + "\n" + state.URL)
			contentHash, err = t.hasher.Hash([]byte(basis))
			if err != nil {
				return fmt.Errorf("hash basis: %w", err)
			}
		}
		if err := tx.InsertVersion(ctx, ingest.DocumentVersion{
			DocID:       docID,
			VersionNo:   state.MaxVersionNo + 1,
			ContentHash: contentHash,
			Title:       state.Title,
			Snapshot:    fmt.Sprintf("(Document marked removed: %s)", reason),
			ChangeType:  ingest.ChangeRemoved,
			FetchedAt:   now,
		}); err != nil {
			return err
		}
		return tx.UpdateTracking(ctx, ingest.TrackingUpdate{
			LastSeenAt:    &now,
			LastChangedAt: &now,
		})
	})
}

// SeedIfMissing backfills tracking fields for legacy rows without a stored
// hash. Rows that already have version history only get timestamps and the
// hash filled in; rows without history get a full ADDED version.
func (t *Tracker) SeedIfMissing(ctx context.Context, docID int64, text, title string) (ingest.ChangeType, error) {
	change := ingest.ChangeNoChange
	err := t.store.WithDocument(ctx, docID, func(tx ingest.DocTx) error {
		state, err := tx.Tracking(ctx)
		if err != nil {
			return err
		}
		if state.CurrentHash != "" {
			return nil
		}
		now := t.clock.Now()

		basis := t.basis(text, title, state.Title, state.URL)
		newHash, err := t.hasher.Hash([]byte(basis))
		if err != nil {
			return fmt.Errorf("hash basis: %w", err)
		}

		update := ingest.TrackingUpdate{CurrentHash: &newHash}
		if state.FirstSeenAt == nil {
			update.FirstSeenAt = &now
		}
		if state.LastSeenAt == nil {
			update.LastSeenAt = &now
			update.LastChangedAt = &now
		}

		if state.MaxVersionNo > 0 {
			// History exists; only fill the missing document fields.
			return tx.UpdateTracking(ctx, update)
		}

		change = ingest.ChangeAdded
		versionTitle := title
		if versionTitle == "" {
			versionTitle = state.Title
		}
		if err := tx.InsertVersion(ctx, ingest.DocumentVersion{
			DocID:       docID,
			VersionNo:   state.MaxVersionNo + 1,
			ContentHash: newHash,
			Title:       versionTitle,
			Snapshot:    snapshot(basis),
			ChangeType:  ingest.ChangeAdded,
			FetchedAt:   now,
		}); err != nil {
			return err
		}
		update.FirstSeenAt = &now
		update.LastSeenAt = &now
		update.LastChangedAt = &now
		return tx.UpdateTracking(ctx, update)
	})
	return change, err
}

// snapshot caps the stored text at SnapshotMaxChars characters. The cut is
// made on a rune boundary: a byte slice could split a multi-byte code point
// and produce invalid UTF-8, which Postgres rejects on insert.
func snapshot(basis string) string {
	if len(basis) <= SnapshotMaxChars {
		return basis
	}
	n := 0
	for i := range basis {
		if n == SnapshotMaxChars {
			return basis[:i]
		}
		n++
	}
	return basis
}
