package fetch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/regdata/docbridge/internal/metrics"
)

func TestHostLimiterThrottlesSameHost(t *testing.T) {
	t.Parallel()
	metrics.Init()

	// 10 rps with burst 1: the second request waits roughly 100ms.
	l := newHostLimiter(10, 1)
	ctx := context.Background()

	require.NoError(t, l.wait(ctx, "https://example.com/a"))

	start := time.Now()
	require.NoError(t, l.wait(ctx, "https://example.com/b"))
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestHostLimiterIsolatesHosts(t *testing.T) {
	t.Parallel()
	metrics.Init()

	l := newHostLimiter(1, 1)
	ctx := context.Background()

	require.NoError(t, l.wait(ctx, "https://a.example/1"))

	start := time.Now()
	require.NoError(t, l.wait(ctx, "https://b.example/1"))
	require.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestHostLimiterZeroRPSIsUnlimited(t *testing.T) {
	t.Parallel()
	metrics.Init()

	l := newHostLimiter(0, 0)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.wait(ctx, "https://example.com/x"))
	}
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestHostLimiterHonorsContext(t *testing.T) {
	t.Parallel()
	metrics.Init()

	l := newHostLimiter(1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, l.wait(ctx, "https://example.com/a"))

	cancel()
	err := l.wait(ctx, "https://example.com/b")
	require.Error(t, err)
}
