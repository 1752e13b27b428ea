// Package metrics exposes Prometheus collectors for the ingestion service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchRequestsTotal         *prometheus.CounterVec
	fetchRetriesTotal          *prometheus.CounterVec
	fetchDurationSeconds       *prometheus.HistogramVec
	fetchThrottleSeconds       *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	scraperChecksTotal         *prometheus.CounterVec
	activeIngestWorkers        prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docbridge_fetch_requests_total",
				Help: "Total number of fetches, labeled by site and status code.",
			},
			[]string{"site", "status"},
		)

		fetchRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docbridge_fetch_retries_total",
				Help: "Total number of fetch retries, labeled by site.",
			},
			[]string{"site"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docbridge_fetch_duration_seconds",
				Help:    "Histogram of fetch latencies including retries, labeled by site.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
		)

		fetchThrottleSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docbridge_fetch_throttle_seconds",
				Help:    "Histogram of delay introduced by the per-host rate limiter.",
				Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"site"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		scraperChecksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docbridge_scraper_checks_total",
				Help: "Total number of scraper checks, labeled by scraper and outcome.",
			},
			[]string{"scraper", "outcome"},
		)

		activeIngestWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "docbridge_active_ingest_workers",
				Help: "Number of workers currently processing a source.",
			},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one completed fetch, including failed ones.
func ObserveFetch(site string, statusCode int, duration time.Duration) {
	sanitizedSite := SanitizeSite(site)
	fetchRequestsTotal.WithLabelValues(sanitizedSite, strconv.Itoa(statusCode)).Inc()
	fetchDurationSeconds.WithLabelValues(sanitizedSite).Observe(duration.Seconds())
}

// ObserveFetchThrottle records time a request spent waiting on the per-host
// rate limiter.
func ObserveFetchThrottle(site string, waited time.Duration) {
	fetchThrottleSeconds.WithLabelValues(SanitizeSite(site)).Observe(waited.Seconds())
}

// ObserveFetchRetry increments the retry counter for the given site.
func ObserveFetchRetry(site string) {
	fetchRetriesTotal.WithLabelValues(SanitizeSite(site)).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveScraperCheck increments the scraper check counter.
func ObserveScraperCheck(scraper, outcome string) {
	scraperChecksTotal.WithLabelValues(scraper, outcome).Inc()
}

// IncActiveIngestWorkers increments the active workers gauge.
func IncActiveIngestWorkers() {
	activeIngestWorkers.Inc()
}

// DecActiveIngestWorkers decrements the active workers gauge.
func DecActiveIngestWorkers() {
	activeIngestWorkers.Dec()
}
