package extract

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/regdata/docbridge/internal/ingest"
)

// SiteOverride narrows extraction for one host: only links under PathPrefix
// survive, DenyPrefixes are dropped outright, and publish dates are read
// from digits embedded in the path before falling back to nearby prose.
// Overrides are registered statically; there is no runtime discovery.
type SiteOverride struct {
	// HostSuffix claims a host and its subdomains, e.g. "rrc.texas.gov".
	HostSuffix string
	// PathPrefix is the only path namespace that holds documents.
	PathPrefix string
	// DenyPrefixes are known non-document path namespaces.
	DenyPrefixes []string
	// PathDate8 and PathDate6 capture compact dates embedded in the path:
	// 8 digits read as YYYYMMDD, 6 digits read as MMDDYY in the 2000s.
	PathDate8 *regexp.Regexp
	PathDate6 *regexp.Regexp
}

// DefaultOverrides returns the statically registered site overrides.
func DefaultOverrides() []SiteOverride {
	return []SiteOverride{
		{
			HostSuffix: "rrc.texas.gov",
			PathPrefix: "/news/",
			DenyPrefixes: []string{
				"/about-us", "/apps", "/forms", "/resource-center",
				"/general-counsel", "/surface-mining", "/gas-services",
				"/pipeline-safety", "/critical-infrastructure", "/contact-us",
				"/hearings", "/legal", "/public-engagement", "/oil-and-gas",
				"/site-policies", "/newsletters", "/announcements",
			},
			PathDate8: regexp.MustCompile(`/news/(\d{8})-`),
			PathDate6: regexp.MustCompile(`/news/(\d{6})-`),
		},
	}
}

// matchOverride finds the override claiming the source URL's host, if any.
func matchOverride(overrides []SiteOverride, sourceURL string) (SiteOverride, bool) {
	u, err := url.Parse(sourceURL)
	if err != nil {
		return SiteOverride{}, false
	}
	host := strings.ToLower(u.Hostname())
	for _, ov := range overrides {
		if host == ov.HostSuffix || strings.HasSuffix(host, "."+ov.HostSuffix) {
			return ov, true
		}
	}
	return SiteOverride{}, false
}

// extract runs the override's narrowed anchor scan.
func (ov SiteOverride) extract(doc *goquery.Document, src ingest.Source) []ingest.Item {
	var items []ingest.Item
	seen := map[string]bool{}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		title := cleanTitle(s.Text())
		if href == "" || title == "" || rejectHref(href) {
			return
		}
		resolved := resolveURL(src.URL, href)
		if !sameHost(resolved, src.URL) {
			return
		}
		path := pathOf(resolved)
		if !strings.HasPrefix(path, ov.PathPrefix) {
			return
		}
		if ov.denied(path) || seen[resolved] {
			return
		}
		if !realDocument(title, resolved, src.URL) {
			return
		}
		seen[resolved] = true

		pub := ov.dateFromPath(path)
		if pub == nil {
			pub = dateNearAnchor(s, title)
		}
		items = append(items, ingest.Item{
			Title:       title,
			URL:         resolved,
			PublishedAt: pub,
		})
	})
	return items
}

func (ov SiteOverride) denied(path string) bool {
	for _, prefix := range ov.DenyPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// dateFromPath tries the 8-digit pattern first, then the 6-digit one.
func (ov SiteOverride) dateFromPath(path string) *time.Time {
	if ov.PathDate8 != nil {
		if m := ov.PathDate8.FindStringSubmatch(path); m != nil {
			if t := dateFromYYYYMMDD(m[1]); t != nil {
				return t
			}
		}
	}
	if ov.PathDate6 != nil {
		if m := ov.PathDate6.FindStringSubmatch(path); m != nil {
			if t := dateFromMMDDYY(m[1]); t != nil {
				return t
			}
		}
	}
	return nil
}

func pathOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Path
}
