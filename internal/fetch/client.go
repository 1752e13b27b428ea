// Package fetch implements the retrying HTTP layer used by all extractors.
// It wraps a Colly collector behind the narrow ingest.Fetcher contract:
// fetch a URL once, get back body, content type, and status.
package fetch

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/regdata/docbridge/internal/ingest"
	"github.com/regdata/docbridge/internal/metrics"
)

const defaultAccept = "text/html,application/xhtml+xml,application/xml;q=0.9," +
	"application/rss+xml;q=0.8,*/*;q=0.7"

// Config is the immutable client configuration. A Client built from it never
// mutates shared state between calls beyond transport connection reuse.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int
	MaxRetries   int
	BaseBackoff  time.Duration
	// PerHostRPS caps the request rate against a single host; zero means
	// unlimited. PerHostBurst is the bucket size (minimum 1).
	PerHostRPS   float64
	PerHostBurst int
}

func (c Config) withDefaults() Config {
	if c.UserAgent == "" {
		c.UserAgent = "DocBridge/1.0 (+https://github.com/regdata/docbridge)"
	}
	if c.Timeout <= 0 {
		c.Timeout = 25 * time.Second
	}
	if c.MaxBodyBytes <= 0 {
		c.MaxBodyBytes = 5 * 1024 * 1024
	}
	return c
}

// Client fetches URLs with bounded retries. TLS verification is always on;
// the transport is tuned once at construction and shared for connection
// reuse only.
type Client struct {
	base    *colly.Collector
	retry   retryPolicy
	limiter *hostLimiter
	logger  *zap.Logger
}

// New constructs a Client from an immutable Config.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	cfg = cfg.withDefaults()
	metrics.Init()
	base := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.MaxBodySize(cfg.MaxBodyBytes),
	)
	base.AllowURLRevisit = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.Timeout)

	return &Client{
		base:    base,
		retry:   newRetryPolicy(cfg.MaxRetries, cfg.BaseBackoff),
		limiter: newHostLimiter(cfg.PerHostRPS, cfg.PerHostBurst),
		logger:  logger,
	}, nil
}

// Fetch retrieves rawURL, retrying transient failures. Status codes outside
// 2xx/3xx surface as *ingest.FetchError carrying the last observed status.
func (c *Client) Fetch(ctx context.Context, rawURL string) (ingest.FetchResponse, error) {
	var (
		resp ingest.FetchResponse
		err  error
	)
	start := time.Now()
	attempt := 0
	for {
		if lerr := c.limiter.wait(ctx, rawURL); lerr != nil {
			return ingest.FetchResponse{}, &ingest.FetchError{URL: rawURL, Attempts: attempt + 1, Err: lerr}
		}
		resp, err = c.doOnce(ctx, rawURL)
		if err == nil && resp.StatusCode < 400 {
			metrics.ObserveFetch(rawURL, resp.StatusCode, time.Since(start))
			return resp, nil
		}
		if !c.retry.shouldRetry(resp.StatusCode, err, attempt) {
			break
		}
		metrics.ObserveFetchRetry(rawURL)
		wait := c.retry.backoff(attempt)
		c.logger.Debug("retrying fetch",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Int("status", resp.StatusCode),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		if serr := sleep(ctx, wait); serr != nil {
			return ingest.FetchResponse{}, &ingest.FetchError{URL: rawURL, Attempts: attempt + 1, Err: serr}
		}
		attempt++
	}
	metrics.ObserveFetch(rawURL, resp.StatusCode, time.Since(start))
	return ingest.FetchResponse{}, &ingest.FetchError{
		URL:        rawURL,
		StatusCode: resp.StatusCode,
		Attempts:   attempt + 1,
		Err:        err,
	}
}

// Head issues a single HEAD request and returns the response headers and
// status. It never retries; callers that need a body fall back to Fetch.
func (c *Client) Head(ctx context.Context, rawURL string) (http.Header, int, error) {
	if err := c.limiter.wait(ctx, rawURL); err != nil {
		return nil, 0, err
	}
	collector := c.base.Clone()
	resultCh := make(chan headResult, 1)
	var once sync.Once
	send := func(res headResult) {
		once.Do(func() { resultCh <- res })
	}

	collector.OnResponseHeaders(func(r *colly.Response) {
		headers := http.Header{}
		if r.Headers != nil {
			headers = r.Headers.Clone()
		}
		send(headResult{headers: headers, status: r.StatusCode})
	})
	collector.OnError(func(r *colly.Response, err error) {
		res := headResult{err: err}
		if r != nil {
			res.status = r.StatusCode
		}
		send(res)
	})

	if err := collector.Head(rawURL); err != nil {
		return nil, 0, err
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return nil, 0, err
		}
		if res.err != nil {
			return nil, res.status, res.err
		}
		if res.status >= 400 {
			return nil, res.status, &ingest.FetchError{URL: rawURL, StatusCode: res.status, Attempts: 1}
		}
		return res.headers, res.status, nil
	default:
		return nil, 0, errors.New("head produced no result")
	}
}

type headResult struct {
	headers http.Header
	status  int
	err     error
}

// doOnce performs a single request via a cloned collector so per-call
// callbacks never leak into the shared base.
func (c *Client) doOnce(ctx context.Context, rawURL string) (ingest.FetchResponse, error) {
	collector := c.base.Clone()
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() { resultCh <- res })
	}

	collector.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", defaultAccept)
	})
	collector.OnResponse(func(r *colly.Response) {
		send(fetchResult{resp: responseFrom(rawURL, r)})
	})
	collector.OnError(func(r *colly.Response, err error) {
		if err == nil {
			err = errors.New("unknown colly error")
		}
		res := fetchResult{err: err}
		if r != nil {
			res.resp = responseFrom(rawURL, r)
		}
		send(res)
	})

	if err := collector.Visit(rawURL); err != nil {
		return ingest.FetchResponse{}, err
	}
	collector.Wait()

	select {
	case res := <-resultCh:
		if err := ctx.Err(); err != nil {
			return ingest.FetchResponse{}, err
		}
		return res.resp, res.err
	default:
		return ingest.FetchResponse{}, errors.New("fetch produced no result")
	}
}

func responseFrom(rawURL string, r *colly.Response) ingest.FetchResponse {
	contentType := ""
	if r.Headers != nil {
		contentType = r.Headers.Get("Content-Type")
	}
	return ingest.FetchResponse{
		URL:         rawURL,
		StatusCode:  r.StatusCode,
		ContentType: contentType,
		Body:        append([]byte{}, r.Body...),
	}
}

type fetchResult struct {
	resp ingest.FetchResponse
	err  error
}
