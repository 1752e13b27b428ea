package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/regdata/docbridge/internal/hash/sha256"
	"github.com/regdata/docbridge/internal/ingest"
	"github.com/regdata/docbridge/internal/track"
)

const (
	signatureFile = "last_signature.json"
	contentFile   = "last_content.txt"
)

// noise is stripped before extracting comparison text.
var noise = "script, style, noscript, nav, header, footer, iframe"

// HeadFetcher extends the fetcher with cheap signature probes.
type HeadFetcher interface {
	ingest.Fetcher
	Head(ctx context.Context, url string) (http.Header, int, error)
}

// SiteConfig declares one selector-configured site scraper.
type SiteConfig struct {
	ID        string
	TargetURL string
	// Selector narrows the comparison text; empty compares the whole page.
	Selector string
	// DiffLabel names the page in human-readable summaries.
	DiffLabel string
}

// Site is a single-site change checker. The signature prefers HEAD caching
// headers and falls back to hashing the extracted text. State lives under a
// cache directory owned exclusively by this scraper.
type Site struct {
	cfg      SiteConfig
	fetcher  HeadFetcher
	hasher   ingest.Hasher
	clock    ingest.Clock
	cacheDir string
	logger   *zap.Logger
}

// NewSite builds a Site scraper rooted at cacheRoot/<id>.
func NewSite(cfg SiteConfig, fetcher HeadFetcher, clock ingest.Clock, cacheRoot string, logger *zap.Logger) (*Site, error) {
	if cfg.ID == "" || cfg.TargetURL == "" {
		return nil, fmt.Errorf("scraper id and target url are required")
	}
	if cfg.DiffLabel == "" {
		cfg.DiffLabel = cfg.ID
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Site{
		cfg:      cfg,
		fetcher:  fetcher,
		hasher:   sha256.New(),
		clock:    clock,
		cacheDir: filepath.Join(cacheRoot, cfg.ID),
		logger:   logger,
	}, nil
}

// ID returns the registry key.
func (s *Site) ID() string { return s.cfg.ID }

// URL returns the page this scraper watches.
func (s *Site) URL() string { return s.cfg.TargetURL }

// Check computes the current signature and compares it against the cached
// one. force removes this scraper's cache directory first, so the next
// comparison always reports updated.
func (s *Site) Check(ctx context.Context, force bool) (Result, error) {
	now := s.clock.Now()
	res := Result{Scraper: s.cfg.ID, URL: s.cfg.TargetURL, LastChecked: now}

	if force {
		if err := os.RemoveAll(s.cacheDir); err != nil {
			return res, fmt.Errorf("clear scraper cache %s: %w", s.cacheDir, err)
		}
	}
	if err := os.MkdirAll(s.cacheDir, 0o755); err != nil {
		return res, fmt.Errorf("create scraper cache %s: %w", s.cacheDir, err)
	}

	signature, body, err := s.signature(ctx)
	if err != nil {
		res.DiffSummary = fmt.Sprintf("Error getting signature: %v", err)
		res.Error = err.Error()
		return res, err
	}
	res.Meta = map[string]any{
		"content_type":  "html",
		"selector_used": s.cfg.Selector,
		"signature":     signature,
		"fetched_at":    now.UTC().Format("2006-01-02T15:04:05Z"),
	}

	oldSignature := s.loadSignature()
	if signature == oldSignature {
		res.DiffSummary = "No change"
		return res, nil
	}

	// Signature moved; download the body if the HEAD path skipped it and
	// record what the page looks like now.
	if body == nil {
		fetched, err := s.fetcher.Fetch(ctx, s.cfg.TargetURL)
		if err != nil {
			res.DiffSummary = fmt.Sprintf("Error downloading page: %v", err)
			res.Error = err.Error()
			return res, err
		}
		body = fetched.Body
	}
	newContent, err := s.extractText(body)
	if err != nil {
		res.DiffSummary = fmt.Sprintf("Error extracting page text: %v", err)
		res.Error = err.Error()
		return res, err
	}
	oldContent := s.loadContent()

	if err := s.save(signature, newContent); err != nil {
		return res, err
	}

	res.Updated = true
	res.DiffSummary = s.diffSummary(oldContent, newContent)
	return res, nil
}

// signature prefers HEAD caching headers; when the server exposes none it
// falls back to hashing the extracted page text. The body is returned when
// the fallback already downloaded it.
func (s *Site) signature(ctx context.Context) (string, []byte, error) {
	headers, _, err := s.fetcher.Head(ctx, s.cfg.TargetURL)
	if err == nil {
		etag := headers.Get("ETag")
		lm := headers.Get("Last-Modified")
		cl := headers.Get("Content-Length")
		if etag != "" || lm != "" || cl != "" {
			return fmt.Sprintf("etag=%s|lm=%s|cl=%s", etag, lm, cl), nil, nil
		}
	} else {
		s.logger.Debug("head probe failed, falling back to content hash",
			zap.String("scraper", s.cfg.ID),
			zap.Error(err),
		)
	}

	fetched, err := s.fetcher.Fetch(ctx, s.cfg.TargetURL)
	if err != nil {
		return "", nil, err
	}
	text, err := s.extractText(fetched.Body)
	if err != nil {
		return "", nil, err
	}
	digest, err := s.hasher.Hash([]byte(text))
	if err != nil {
		return "", nil, err
	}
	return "sha256=" + digest, fetched.Body, nil
}

func (s *Site) extractText(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse page: %w", err)
	}
	doc.Find(noise).Remove()

	sel := doc.Selection
	if s.cfg.Selector != "" {
		if narrowed := doc.Find(s.cfg.Selector); narrowed.Length() > 0 {
			sel = narrowed
		}
	}
	var parts []string
	sel.Each(func(_ int, node *goquery.Selection) {
		if t := strings.TrimSpace(node.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, "\n\n"), nil
}

func (s *Site) diffSummary(oldContent, newContent string) string {
	if oldContent == "" {
		return fmt.Sprintf("%s content changed", s.cfg.DiffLabel)
	}
	if diff := track.DiffSummary(oldContent, newContent, 12); diff != "" {
		return diff
	}
	return fmt.Sprintf("%s signature changed", s.cfg.DiffLabel)
}

func (s *Site) loadSignature() string {
	raw, err := os.ReadFile(filepath.Join(s.cacheDir, signatureFile))
	if err != nil {
		return ""
	}
	var cached struct {
		Signature string `json:"signature"`
	}
	if err := json.Unmarshal(raw, &cached); err != nil {
		return ""
	}
	return cached.Signature
}

func (s *Site) loadContent() string {
	raw, err := os.ReadFile(filepath.Join(s.cacheDir, contentFile))
	if err != nil {
		return ""
	}
	return string(raw)
}

func (s *Site) save(signature, content string) error {
	payload, err := json.Marshal(map[string]string{"signature": signature})
	if err != nil {
		return fmt.Errorf("marshal signature: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.cacheDir, signatureFile), payload, 0o644); err != nil {
		return fmt.Errorf("write signature: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.cacheDir, contentFile), []byte(content), 0o644); err != nil {
		return fmt.Errorf("write content: %w", err)
	}
	return nil
}
