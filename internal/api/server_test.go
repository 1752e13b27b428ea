package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/regdata/docbridge/internal/clock/system"
	"github.com/regdata/docbridge/internal/hash/sha1"
	"github.com/regdata/docbridge/internal/ingest"
	"github.com/regdata/docbridge/internal/scraper"
	"github.com/regdata/docbridge/internal/store/memory"
	"github.com/regdata/docbridge/internal/track"
)

type stubExtractor struct {
	items []ingest.Item
	err   error
}

func (e *stubExtractor) Extract(context.Context, ingest.Source) (ingest.ExtractResult, error) {
	if e.err != nil {
		return ingest.ExtractResult{}, e.err
	}
	return ingest.ExtractResult{Items: e.items, Status: ingest.ExtractOK}, nil
}

type stubScraper struct {
	id  string
	url string
	res scraper.Result
}

func (s *stubScraper) ID() string  { return s.id }
func (s *stubScraper) URL() string { return s.url }

func (s *stubScraper) Check(context.Context, bool) (scraper.Result, error) {
	return s.res, nil
}

type testEnv struct {
	store  *memory.Store
	server *Server
}

func newTestEnv(t *testing.T, items []ingest.Item) *testEnv {
	t.Helper()

	store := memory.New()
	tracker := track.New(store, sha1.New(), system.New(), zap.NewNop())
	extractor := &stubExtractor{items: items}
	dispatcher := ingest.NewDispatcher(store, tracker, map[ingest.SourceType]ingest.Extractor{
		ingest.SourceTypeFeed: extractor,
		ingest.SourceTypeHTML: extractor,
	}, zap.NewNop())
	runner := ingest.NewRunner(store, dispatcher, nil, 2, zap.NewNop())

	checked := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
	reg, err := scraper.NewRegistry(&stubScraper{
		id:  "ferc-news",
		url: "https://www.ferc.gov/news-events/news",
		res: scraper.Result{
			Scraper:     "ferc-news",
			URL:         "https://www.ferc.gov/news-events/news",
			Updated:     true,
			DiffSummary: "+ New notice",
			LastChecked: checked,
		},
	})
	require.NoError(t, err)
	batch := scraper.NewBatchRunner(reg, 2, zap.NewNop())

	return &testEnv{
		store:  store,
		server: NewServer(store, runner, dispatcher, batch, reg, zap.NewNop()),
	}
}

func (e *testEnv) seedSource(t *testing.T, name string, active bool) ingest.Source {
	t.Helper()
	src, err := e.store.UpsertSource(context.Background(), ingest.Source{
		Name:   name,
		URL:    "https://example.com/" + name,
		Type:   ingest.SourceTypeFeed,
		Active: active,
	})
	require.NoError(t, err)
	return src
}

func doRequest(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	rec := doRequest(t, env.server, http.MethodGet, "/healthz", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRunIngestReturnsStats(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, []ingest.Item{
		{Title: "Notice A", URL: "https://example.com/a", Text: "body a"},
		{Title: "Notice B", URL: "https://example.com/b", Text: "body b"},
	})
	env.seedSource(t, "feed-one", true)
	env.seedSource(t, "feed-off", false)

	rec := doRequest(t, env.server, http.MethodPost, "/v1/ingest", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats ingest.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.OK)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 0, stats.Errors)
}

func TestRunIngestIncludesInactiveWhenRequested(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, []ingest.Item{
		{Title: "Notice A", URL: "https://example.com/a", Text: "body a"},
	})
	env.seedSource(t, "feed-off", false)

	rec := doRequest(t, env.server, http.MethodPost, "/v1/ingest?only_active=false", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats ingest.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.OK)
	assert.Equal(t, 0, stats.Skipped)
}

func TestRunIngestRejectsBadQuery(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	rec := doRequest(t, env.server, http.MethodPost, "/v1/ingest?only_active=maybe", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpsertAndListSources(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)

	rec := doRequest(t, env.server, http.MethodPost, "/v1/sources",
		`{"name":"ferc-rss","url":"https://www.ferc.gov/rss","type":"feed","jurisdiction":"US-FED"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var created struct {
		Source ingest.Source `json:"source"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotZero(t, created.Source.ID)
	assert.True(t, created.Source.Active, "active defaults to true")
	assert.Equal(t, ingest.SourceTypeFeed, created.Source.Type)

	rec = doRequest(t, env.server, http.MethodGet, "/v1/sources", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var listed struct {
		Sources []ingest.Source `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Sources, 1)
	assert.Equal(t, "ferc-rss", listed.Sources[0].Name)
}

func TestUpsertSourceValidation(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)

	cases := []struct {
		name string
		body string
	}{
		{"invalid JSON", `{`},
		{"missing name", `{"url":"https://x","type":"feed"}`},
		{"missing url", `{"name":"x","type":"feed"}`},
		{"unknown type", `{"name":"x","url":"https://x","type":"sitemap"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, env.server, http.MethodPost, "/v1/sources", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestListVersions(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, []ingest.Item{
		{Title: "Notice A", URL: "https://example.com/a", Text: "body a"},
	})
	env.seedSource(t, "feed-one", true)

	rec := doRequest(t, env.server, http.MethodPost, "/v1/ingest", "")
	require.Equal(t, http.StatusOK, rec.Code)

	doc, err := env.store.GetDocumentByURL(context.Background(), "https://example.com/a")
	require.NoError(t, err)

	rec = doRequest(t, env.server, http.MethodGet,
		"/v1/documents/"+strconv.FormatInt(doc.ID, 10)+"/versions", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		DocID    int64                    `json:"doc_id"`
		Versions []ingest.DocumentVersion `json:"versions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, doc.ID, resp.DocID)
	require.Len(t, resp.Versions, 1)
	assert.Equal(t, ingest.ChangeAdded, resp.Versions[0].ChangeType)
	assert.Equal(t, 1, resp.Versions[0].VersionNo)
}

func TestListVersionsNotFound(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)

	rec := doRequest(t, env.server, http.MethodGet, "/v1/documents/9999/versions", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, env.server, http.MethodGet, "/v1/documents/abc/versions", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListScrapers(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	rec := doRequest(t, env.server, http.MethodGet, "/v1/scrapers", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Scrapers []scraperInfo `json:"scrapers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Scrapers, 1)
	assert.Equal(t, "ferc-news", resp.Scrapers[0].ID)
}

func TestRunScraper(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)

	rec := doRequest(t, env.server, http.MethodPost, "/v1/scrapers/ferc-news/run?force=true", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var res scraper.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "ferc-news", res.Scraper)
	assert.True(t, res.Updated)
	assert.Equal(t, "+ New notice", res.DiffSummary)

	rec = doRequest(t, env.server, http.MethodPost, "/v1/scrapers/nope/run", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunAllScrapers(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)

	rec := doRequest(t, env.server, http.MethodPost, "/v1/scrapers/run", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Results []scraper.Result `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "ferc-news", resp.Results[0].Scraper)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	env := newTestEnv(t, nil)
	rec := doRequest(t, env.server, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "# HELP")
}
