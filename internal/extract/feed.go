package extract

import (
	"bytes"
	"context"
	"time"

	"github.com/mmcdole/gofeed"
	"go.uber.org/zap"

	"github.com/regdata/docbridge/internal/fetch"
	"github.com/regdata/docbridge/internal/ingest"
)

// FeedExtractor parses syndication feeds (RSS/Atom/JSON feed). When a feed
// URL serves HTML instead (sites routinely return an HTML error page to
// bots) or the feed is structurally broken, the already-fetched body is
// handed to the HTML extractor exactly once, never recursively.
type FeedExtractor struct {
	fetcher ingest.Fetcher
	html    *HTMLExtractor
	logger  *zap.Logger
}

// NewFeedExtractor builds a FeedExtractor that falls back to html.
func NewFeedExtractor(fetcher ingest.Fetcher, html *HTMLExtractor, logger *zap.Logger) *FeedExtractor {
	return &FeedExtractor{fetcher: fetcher, html: html, logger: logger}
}

// Extract fetches the source URL once and projects feed entries into items.
func (e *FeedExtractor) Extract(ctx context.Context, src ingest.Source) (ingest.ExtractResult, error) {
	resp, err := e.fetcher.Fetch(ctx, src.URL)
	if err != nil {
		return ingest.ExtractResult{}, err
	}

	if fetch.LooksLikeHTML(resp.ContentType, resp.Body) {
		e.logger.Info("feed source served HTML, using HTML extraction",
			zap.String("source", src.Name),
			zap.String("content_type", resp.ContentType),
		)
		return e.fallback(src, resp.Body)
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(resp.Body))
	if err != nil {
		e.logger.Info("feed parse failed, using HTML extraction",
			zap.String("source", src.Name),
			zap.Error(err),
		)
		return e.fallback(src, resp.Body)
	}

	items := make([]ingest.Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		// Entries without a link cannot be keyed and are dropped silently.
		if entry.Link == "" {
			continue
		}
		title := cleanTitle(entry.Title)
		if title == "" {
			title = "(untitled)"
		}
		items = append(items, ingest.Item{
			Title:       title,
			URL:         entry.Link,
			PublishedAt: entryDate(entry),
			Text:        entry.Description,
			Metadata:    entryMetadata(entry),
		})
	}
	return resultFor(items), nil
}

// fallback delegates the already-fetched body to the HTML extractor and tags
// the outcome so reporting can tell the paths apart.
func (e *FeedExtractor) fallback(src ingest.Source, body []byte) (ingest.ExtractResult, error) {
	res, err := e.html.ExtractFromBody(src, body)
	if err != nil {
		return res, err
	}
	res.Status = ingest.ExtractFellBack
	return res, nil
}

func entryDate(entry *gofeed.Item) *time.Time {
	if entry.PublishedParsed != nil {
		t := entry.PublishedParsed.UTC()
		return &t
	}
	if entry.UpdatedParsed != nil {
		t := entry.UpdatedParsed.UTC()
		return &t
	}
	return dateFromValue(entry.Published)
}

func entryMetadata(entry *gofeed.Item) map[string]any {
	meta := map[string]any{}
	if entry.GUID != "" {
		meta["feed_id"] = entry.GUID
	}
	if len(entry.Categories) > 0 {
		meta["tags"] = entry.Categories
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}
