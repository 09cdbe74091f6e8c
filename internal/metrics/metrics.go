// Package metrics exposes Prometheus collectors for the harvester service.
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
	harvesterPagesTotal        *prometheus.CounterVec
	harvesterScriptsTotal      *prometheus.CounterVec
	harvesterFallbackTotal     prometheus.Counter
	harvesterJobsTotal         *prometheus.CounterVec
	harvesterActiveJobs        prometheus.Gauge
	harvesterPageFetchSeconds  *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

func init() {
	Init()
}

// Init initializes the Prometheus collectors. It is safe to call multiple
// times.
func Init() {
	once.Do(func() {
		harvesterPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_pages_total",
				Help: "Total number of pages processed, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		harvesterScriptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_scripts_total",
				Help: "Total number of extracted scripts, labeled by outcome (saved or dedup).",
			},
			[]string{"outcome"},
		)

		harvesterFallbackTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "harvester_summarize_fallback_total",
				Help: "Total number of pages summarized by the heuristic fallback.",
			},
		)

		harvesterJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harvester_jobs_total",
				Help: "Total number of crawl jobs finished, labeled by terminal status.",
			},
			[]string{"status"},
		)

		harvesterActiveJobs = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "harvester_active_jobs",
				Help: "Number of crawl jobs currently running.",
			},
		)

		harvesterPageFetchSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harvester_page_fetch_seconds",
				Help:    "Histogram of page fetch latencies, labeled by site.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15},
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
	})
}

// SanitizeSite extracts a lowercase hostname from a URL, or "unknown".
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

// Handler returns an http.Handler exposing the Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage records one processed page.
func ObservePage(site, outcome string, fetchDuration time.Duration) {
	sanitized := SanitizeSite(site)
	harvesterPagesTotal.WithLabelValues(sanitized, outcome).Inc()
	if fetchDuration > 0 {
		harvesterPageFetchSeconds.WithLabelValues(sanitized).Observe(fetchDuration.Seconds())
	}
}

// ObserveScript records one script extraction outcome.
func ObserveScript(outcome string) {
	harvesterScriptsTotal.WithLabelValues(outcome).Inc()
}

// ObserveSummarizeFallback counts a page handled by the heuristic fallback.
func ObserveSummarizeFallback() {
	harvesterFallbackTotal.Inc()
}

// ObserveJob increments the job counter for a terminal status.
func ObserveJob(status string) {
	harvesterJobsTotal.WithLabelValues(status).Inc()
}

// IncActiveJobs increments the running jobs gauge.
func IncActiveJobs() {
	harvesterActiveJobs.Inc()
}

// DecActiveJobs decrements the running jobs gauge.
func DecActiveJobs() {
	harvesterActiveJobs.Dec()
}

// ObserveHTTPRequest records one API request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
