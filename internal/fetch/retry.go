package fetch

import (
	"context"
	"errors"
	"time"
)

// Status codes worth retrying. Everything else is terminal on first sight.
var retryableStatuses = map[int]bool{
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

// retryPolicy drives the fetch retry loop: up to maxRetries extra attempts,
// exponential backoff of base × 2^attempt, retrying only transient HTTP
// statuses and transport errors. Fetches are GETs, so retrying is safe.
type retryPolicy struct {
	maxRetries int
	base       time.Duration
}

func newRetryPolicy(maxRetries int, base time.Duration) retryPolicy {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	return retryPolicy{maxRetries: maxRetries, base: base}
}

// shouldRetry reports whether another attempt is warranted after the given
// status/error on the given zero-based attempt.
func (p retryPolicy) shouldRetry(status int, err error, attempt int) bool {
	if attempt >= p.maxRetries {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if status > 0 {
		return retryableStatuses[status]
	}
	return err != nil
}

// backoff returns the wait before the next attempt: base × 2^attempt.
func (p retryPolicy) backoff(attempt int) time.Duration {
	d := p.base
	for i := 0; i < attempt; i++ {
		d *= 2
	}
	return d
}

// sleep waits for d or until the context is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
