package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/regdata/docbridge/internal/ingest"
)

type stubScraper struct {
	id  string
	url string
	res Result
	err error
}

func (s *stubScraper) ID() string  { return s.id }
func (s *stubScraper) URL() string { return s.url }

func (s *stubScraper) Check(context.Context, bool) (Result, error) {
	if s.err != nil {
		return Result{Scraper: s.id, URL: s.url, Error: s.err.Error()}, s.err
	}
	return s.res, nil
}

func TestRegistryMatchURLPrefersLongestAnchor(t *testing.T) {
	t.Parallel()

	generic := &stubScraper{id: "ferc", url: "https://www.ferc.gov"}
	specific := &stubScraper{id: "ferc-news", url: "https://www.ferc.gov/news-events/news"}
	reg, err := NewRegistry(generic, specific)
	require.NoError(t, err)

	sc, ok := reg.MatchURL("https://www.ferc.gov/news-events/news?page=2")
	require.True(t, ok)
	assert.Equal(t, "ferc-news", sc.ID())

	sc, ok = reg.MatchURL("https://www.ferc.gov/about")
	require.True(t, ok)
	assert.Equal(t, "ferc", sc.ID())

	_, ok = reg.MatchURL("https://www.bsee.gov/newsroom")
	assert.False(t, ok)
}

func TestRegistryRejectsDuplicateIDs(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(
		&stubScraper{id: "ferc-news", url: "https://a"},
		&stubScraper{id: "ferc-news", url: "https://b"},
	)
	require.Error(t, err)
}

func TestDefaultRegistryShipsThreeSites(t *testing.T) {
	t.Parallel()

	reg, err := DefaultRegistry(&fakeFetcher{}, fixedClock{t: time.Now()}, t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	var ids []string
	for _, sc := range reg.List() {
		ids = append(ids, sc.ID())
	}
	assert.Equal(t, []string{"bsee-newsroom", "ca-conservation", "ferc-news"}, ids)
}

func TestBatchRunnerStreamsJSONLAndIsolatesFailures(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(
		&stubScraper{id: "a", url: "https://a", res: Result{Scraper: "a", URL: "https://a", Updated: true}},
		&stubScraper{id: "b", url: "https://b", err: errors.New("boom")},
		&stubScraper{id: "c", url: "https://c", res: Result{Scraper: "c", URL: "https://c"}},
	)
	require.NoError(t, err)

	var buf bytes.Buffer
	runner := NewBatchRunner(reg, 2, zap.NewNop())
	results := runner.CheckAll(context.Background(), false, &buf)

	require.Len(t, results, 3)
	assert.Equal(t, "a", results[0].Scraper)
	assert.True(t, results[0].Updated)
	assert.Equal(t, "boom", results[1].Error)
	assert.False(t, results[2].Updated)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	for _, line := range lines {
		var decoded Result
		require.NoError(t, json.Unmarshal([]byte(line), &decoded))
	}
}

func TestBatchRunnerCheckUnknownID(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry()
	require.NoError(t, err)
	runner := NewBatchRunner(reg, 0, zap.NewNop())

	_, err = runner.Check(context.Background(), "nope", false)
	require.ErrorIs(t, err, ingest.ErrNotFound)
}
