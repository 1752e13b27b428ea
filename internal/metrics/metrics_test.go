package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeSite(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   string
		want string
	}{
		{"full url", "https://www.FERC.gov/news", "www.ferc.gov"},
		{"bare host", "example.com/path", "example.com"},
		{"garbage", "://not a url", "unknown"},
		{"empty", "", "unknown"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, SanitizeSite(tc.in))
		})
	}
}

func TestObserveFetchAndRetry(t *testing.T) {
	Init()

	before := testutil.ToFloat64(fetchRequestsTotal.WithLabelValues("example.gov", "200"))
	ObserveFetch("https://example.gov/doc", 200, 120*time.Millisecond)
	after := testutil.ToFloat64(fetchRequestsTotal.WithLabelValues("example.gov", "200"))
	require.Equal(t, before+1, after)

	beforeRetry := testutil.ToFloat64(fetchRetriesTotal.WithLabelValues("example.gov"))
	ObserveFetchRetry("https://example.gov/doc")
	afterRetry := testutil.ToFloat64(fetchRetriesTotal.WithLabelValues("example.gov"))
	require.Equal(t, beforeRetry+1, afterRetry)
}

func TestActiveIngestWorkersGauge(t *testing.T) {
	Init()

	base := testutil.ToFloat64(activeIngestWorkers)
	IncActiveIngestWorkers()
	IncActiveIngestWorkers()
	DecActiveIngestWorkers()
	require.Equal(t, base+1, testutil.ToFloat64(activeIngestWorkers))
	DecActiveIngestWorkers()
}
