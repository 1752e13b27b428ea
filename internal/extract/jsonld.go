package extract

import (
	"encoding/json"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Article-like structured-data types worth ingesting.
var articleTypes = map[string]bool{
	"NewsArticle": true,
	"BlogPosting": true,
	"Article":     true,
}

// Date fields tried in order of preference.
var jsonLDDateKeys = []string{"datePublished", "dateCreated", "dateModified"}

// article is the statically typed projection of one structured-data item.
// Raw keeps the original fields for the metadata bag.
type article struct {
	Type      string
	Headline  string
	URL       string
	Published *time.Time
	Raw       map[string]any
}

// jsonLDArticles parses every <script type="application/ld+json"> block in
// the page and walks nested objects/arrays, collecting article-like items.
// Malformed blocks are skipped; structured data in the wild is rarely clean.
func jsonLDArticles(doc *goquery.Document) []article {
	var out []article
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var data any
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return
		}
		walkJSONLD(data, func(obj map[string]any) {
			a, ok := articleFrom(obj)
			if ok {
				out = append(out, a)
			}
		})
	})
	return out
}

// walkJSONLD visits every object nested anywhere inside v.
func walkJSONLD(v any, fn func(map[string]any)) {
	switch t := v.(type) {
	case map[string]any:
		fn(t)
		for _, child := range t {
			walkJSONLD(child, fn)
		}
	case []any:
		for _, child := range t {
			walkJSONLD(child, fn)
		}
	}
}

// articleFrom projects a raw object into an article if its declared type is
// article-like and it carries both a headline and a URL.
func articleFrom(obj map[string]any) (article, bool) {
	typ := stringField(obj["@type"])
	if !articleTypes[typ] {
		return article{}, false
	}
	headline := stringField(obj["headline"])
	if headline == "" {
		headline = stringField(obj["name"])
	}
	href := stringField(obj["url"])
	if href == "" {
		href = stringField(obj["mainEntityOfPage"])
	}
	if headline == "" || href == "" {
		return article{}, false
	}
	a := article{Type: typ, Headline: headline, URL: href, Raw: obj}
	for _, key := range jsonLDDateKeys {
		if raw := stringField(obj[key]); raw != "" {
			if t := dateFromValue(raw); t != nil {
				a.Published = t
				break
			}
		}
	}
	return a, true
}

// stringField extracts a usable string from a structured-data value, which
// may be a bare string, a list, or an object carrying an @id reference.
func stringField(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		for _, item := range t {
			if s := stringField(item); s != "" {
				return s
			}
		}
	case map[string]any:
		if id, ok := t["@id"].(string); ok {
			return id
		}
	}
	return ""
}
