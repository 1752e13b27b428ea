package ingest

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Dispatcher routes one source to the extractor registered for its type and
// persists whatever the extractor produced. The registry is fixed at
// construction; there is no runtime registration.
type Dispatcher struct {
	extractors map[SourceType]Extractor
	store      Store
	tracker    Tracker
	logger     *zap.Logger
}

// NewDispatcher builds a Dispatcher with a static extractor registry.
func NewDispatcher(store Store, tracker Tracker, extractors map[SourceType]Extractor, logger *zap.Logger) *Dispatcher {
	reg := make(map[SourceType]Extractor, len(extractors))
	for typ, ex := range extractors {
		reg[typ] = ex
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{extractors: reg, store: store, tracker: tracker, logger: logger}
}

// Process ingests a single source: extract, upsert each item, and record a
// version observation per document. Failures never propagate past the
// returned report, so one broken source cannot abort a batch.
func (d *Dispatcher) Process(ctx context.Context, src Source, onChange func(doc Document, change ChangeType)) SourceReport {
	rep := SourceReport{Source: src.Name, Type: src.Type, URL: src.URL}

	ex, ok := d.extractors[src.Type]
	if !ok {
		rep.Error = fmt.Sprintf("%v: %q", ErrUnsupportedSourceType, src.Type)
		return rep
	}

	res, err := ex.Extract(ctx, src)
	if err != nil {
		rep.Error = err.Error()
		return rep
	}
	if res.Status == ExtractFellBack {
		d.logger.Info("feed source fell back to html extraction",
			zap.String("source", src.Name),
			zap.String("url", src.URL),
		)
	}

	for _, item := range res.Items {
		if err := ctx.Err(); err != nil {
			rep.Error = err.Error()
			return rep
		}
		doc, change, err := d.ingestItem(ctx, src, item)
		if err != nil {
			rep.Error = err.Error()
			return rep
		}
		rep.Items++
		if onChange != nil {
			onChange(doc, change)
		}
	}
	rep.OK = true
	return rep
}

func (d *Dispatcher) ingestItem(ctx context.Context, src Source, item Item) (Document, ChangeType, error) {
	doc, err := d.store.UpsertDocument(ctx, Document{
		SourceID:     src.ID,
		Title:        item.Title,
		URL:          item.URL,
		PublishedAt:  item.PublishedAt,
		Text:         item.Text,
		Metadata:     item.Metadata,
		Jurisdiction: src.Jurisdiction,
	})
	if err != nil {
		return Document{}, ChangeNoChange, fmt.Errorf("upsert %s: %w", item.URL, err)
	}
	change, err := d.tracker.RecordVersion(ctx, doc.ID, item.Text, item.Title)
	if err != nil {
		return Document{}, ChangeNoChange, fmt.Errorf("track %s: %w", item.URL, err)
	}
	return doc, change, nil
}

// Supports reports whether a source type has a registered extractor.
func (d *Dispatcher) Supports(typ SourceType) bool {
	_, ok := d.extractors[typ]
	return ok
}

// ValidateSourceType rejects types no extractor is registered for.
func (d *Dispatcher) ValidateSourceType(typ SourceType) error {
	if !d.Supports(typ) {
		return fmt.Errorf("%w: %q", ErrUnsupportedSourceType, typ)
	}
	return nil
}
