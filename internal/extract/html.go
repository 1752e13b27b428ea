// Package extract implements the format-aware extraction strategies: a feed
// extractor with an HTML fallback, a generic HTML extractor (structured data
// first, anchor scanning second), and site-specific overrides.
package extract

import (
	"bytes"
	"context"
	"html"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/regdata/docbridge/internal/ingest"
)

const maxTitleLen = 1024

// Titles that mark navigation chrome rather than real documents.
var genericTitles = map[string]bool{
	"home":                 true,
	"news":                 true,
	"menu":                 true,
	"search":               true,
	"back":                 true,
	"next":                 true,
	"previous":             true,
	"more":                 true,
	"read more":            true,
	"skip to main content": true,
}

var curlyReplacer = strings.NewReplacer(
	"’", "'", "‘", "'",
	"“", `"`, "”", `"`,
	"—", "-", "–", "-",
)

// HTMLExtractor implements the generic HTML strategy: structured-data blocks
// first, anchor scanning only when that pass yields nothing. Site overrides
// replace both passes for hosts they claim.
type HTMLExtractor struct {
	fetcher   ingest.Fetcher
	overrides []SiteOverride
	logger    *zap.Logger
}

// NewHTMLExtractor builds an HTMLExtractor with the default site overrides.
func NewHTMLExtractor(fetcher ingest.Fetcher, logger *zap.Logger) *HTMLExtractor {
	return &HTMLExtractor{
		fetcher:   fetcher,
		overrides: DefaultOverrides(),
		logger:    logger,
	}
}

// Extract fetches the source page and extracts candidate documents from it.
func (e *HTMLExtractor) Extract(ctx context.Context, src ingest.Source) (ingest.ExtractResult, error) {
	resp, err := e.fetcher.Fetch(ctx, src.URL)
	if err != nil {
		return ingest.ExtractResult{}, err
	}
	return e.ExtractFromBody(src, resp.Body)
}

// ExtractFromBody extracts from an already-fetched HTML body. The feed
// extractor uses this entry point when it falls back.
func (e *HTMLExtractor) ExtractFromBody(src ingest.Source, body []byte) (ingest.ExtractResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ingest.ExtractResult{}, &ingest.ParseError{URL: src.URL, Format: "html", Err: err}
	}

	if ov, ok := matchOverride(e.overrides, src.URL); ok {
		items := ov.extract(doc, src)
		return resultFor(items), nil
	}

	items := e.structuredItems(doc, src)
	if len(items) > 0 {
		return ingest.ExtractResult{Items: items, Status: ingest.ExtractOK}, nil
	}
	e.logger.Debug("no structured data, scanning anchors",
		zap.String("source", src.Name),
		zap.String("url", src.URL),
	)
	return resultFor(e.anchorItems(doc, src)), nil
}

func resultFor(items []ingest.Item) ingest.ExtractResult {
	status := ingest.ExtractOK
	if len(items) == 0 {
		status = ingest.ExtractNoItems
	}
	return ingest.ExtractResult{Items: items, Status: status}
}

// structuredItems is the JSON-LD pass.
func (e *HTMLExtractor) structuredItems(doc *goquery.Document, src ingest.Source) []ingest.Item {
	var items []ingest.Item
	seen := map[string]bool{}
	for _, a := range jsonLDArticles(doc) {
		href := resolveURL(src.URL, a.URL)
		title := cleanTitle(a.Headline)
		if !realDocument(title, href, src.URL) {
			continue
		}
		if !sameHost(href, src.URL) || seen[href] {
			continue
		}
		seen[href] = true
		items = append(items, ingest.Item{
			Title:       title,
			URL:         href,
			PublishedAt: a.Published,
			Metadata:    map[string]any{"jsonld_type": a.Type},
		})
	}
	return items
}

// anchorItems is the fallback pass: every hyperlink with visible text,
// same-host, de-duplicated within the page, dated from nearby prose when
// possible.
func (e *HTMLExtractor) anchorItems(doc *goquery.Document, src ingest.Source) []ingest.Item {
	var items []ingest.Item
	seen := map[string]bool{}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		title := cleanTitle(s.Text())
		if href == "" || title == "" {
			return
		}
		if rejectHref(href) {
			return
		}
		resolved := resolveURL(src.URL, href)
		if !realDocument(title, resolved, src.URL) {
			return
		}
		if !sameHost(resolved, src.URL) || seen[resolved] {
			return
		}
		seen[resolved] = true
		items = append(items, ingest.Item{
			Title:       title,
			URL:         resolved,
			PublishedAt: dateNearAnchor(s, title),
		})
	})
	return items
}

// dateNearAnchor looks for a prose date in the anchor's containing block.
func dateNearAnchor(s *goquery.Selection, title string) *time.Time {
	block := s.Parent()
	text := title
	if block.Length() > 0 {
		text = collapseSpace(block.Text())
	}
	return dateFromText(text)
}

// rejectHref drops link schemes and shapes that never identify documents.
func rejectHref(href string) bool {
	lower := strings.ToLower(href)
	if strings.HasPrefix(lower, "mailto:") || strings.HasPrefix(lower, "tel:") ||
		strings.HasPrefix(lower, "javascript:") {
		return true
	}
	if strings.HasPrefix(href, "#") || strings.HasSuffix(href, "#") {
		return true
	}
	return false
}

// realDocument applies the candidate filter: a non-empty, non-navigational
// title and a URL that is neither fragment-only nor the source homepage.
func realDocument(title, resolved, base string) bool {
	if title == "" || title == "(untitled)" {
		return false
	}
	if genericTitles[strings.ToLower(title)] {
		return false
	}
	if resolved == "" || strings.HasPrefix(resolved, "#") {
		return false
	}
	u, err := url.Parse(resolved)
	if err != nil || (u.Scheme != "" && u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	if normalizePage(resolved) == normalizePage(base) {
		return false
	}
	return true
}

// normalizePage strips fragments and trailing slashes for homepage equality.
func normalizePage(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	return u.String()
}

// resolveURL resolves href against base; a failed parse keeps href as-is.
func resolveURL(base, href string) string {
	b, err := url.Parse(base)
	if err != nil {
		return href
	}
	h, err := url.Parse(href)
	if err != nil {
		return href
	}
	return b.ResolveReference(h).String()
}

// sameHost reports whether href stays on base's host. Host-less (relative)
// URLs count as same-host.
func sameHost(href, base string) bool {
	h, err := url.Parse(href)
	if err != nil {
		return true
	}
	b, err := url.Parse(base)
	if err != nil {
		return true
	}
	return h.Host == "" || h.Host == b.Host
}

// cleanTitle unescapes entities, normalizes curly punctuation, collapses
// whitespace, and caps length.
func cleanTitle(s string) string {
	s = html.UnescapeString(strings.TrimSpace(s))
	s = curlyReplacer.Replace(s)
	s = collapseSpace(s)
	if len(s) > maxTitleLen {
		// Cut on a rune boundary; a byte slice could split a code point.
		n := 0
		for i := range s {
			if n == maxTitleLen {
				s = s[:i]
				break
			}
			n++
		}
	}
	return s
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
