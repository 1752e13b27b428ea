package scraper

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/regdata/docbridge/internal/ingest"
)

// Registry is the static table of named site scrapers. There is no runtime
// discovery: everything the service can check is registered at construction.
type Registry struct {
	byID map[string]Scraper
}

// NewRegistry indexes the given scrapers by ID. Duplicate IDs are an error.
func NewRegistry(scrapers ...Scraper) (*Registry, error) {
	byID := make(map[string]Scraper, len(scrapers))
	for _, sc := range scrapers {
		if _, ok := byID[sc.ID()]; ok {
			return nil, fmt.Errorf("duplicate scraper id %q", sc.ID())
		}
		byID[sc.ID()] = sc
	}
	return &Registry{byID: byID}, nil
}

// Get returns the scraper registered under id.
func (r *Registry) Get(id string) (Scraper, bool) {
	sc, ok := r.byID[id]
	return sc, ok
}

// List returns all scrapers ordered by ID.
func (r *Registry) List() []Scraper {
	out := make([]Scraper, 0, len(r.byID))
	for _, sc := range r.byID {
		out = append(out, sc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// MatchURL picks the scraper whose target URL is the longest substring of
// url, so a specific page scraper beats a site-wide one.
func (r *Registry) MatchURL(url string) (Scraper, bool) {
	var best Scraper
	for _, sc := range r.byID {
		if !strings.Contains(url, sc.URL()) {
			continue
		}
		if best == nil || len(sc.URL()) > len(best.URL()) {
			best = sc
		}
	}
	return best, best != nil
}

// DefaultSites is the shipped scraper set.
func DefaultSites() []SiteConfig {
	return []SiteConfig{
		{
			ID:        "ferc-news",
			TargetURL: "https://www.ferc.gov/news-events/news",
			Selector:  "div.view-news",
			DiffLabel: "FERC news",
		},
		{
			ID:        "bsee-newsroom",
			TargetURL: "https://www.bsee.gov/newsroom",
			Selector:  "div.view-news",
			DiffLabel: "BSEE newsroom",
		},
		{
			ID:        "ca-conservation",
			TargetURL: "https://www.conservation.ca.gov/calgem",
			Selector:  "div.sf_colsOut",
			DiffLabel: "CalGEM homepage",
		},
	}
}

// DefaultRegistry builds the shipped scrapers rooted at cacheRoot.
func DefaultRegistry(fetcher HeadFetcher, clock ingest.Clock, cacheRoot string, logger *zap.Logger) (*Registry, error) {
	var scrapers []Scraper
	for _, cfg := range DefaultSites() {
		site, err := NewSite(cfg, fetcher, clock, cacheRoot, logger)
		if err != nil {
			return nil, err
		}
		scrapers = append(scrapers, site)
	}
	return NewRegistry(scrapers...)
}
