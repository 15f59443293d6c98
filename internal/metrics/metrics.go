// Package metrics exposes Prometheus collectors for the synthetic monitor.
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

// Run outcomes recorded by ObserveRun.
const (
	OutcomeCompleted = "completed"
	OutcomeTimedOut  = "timed_out"
	OutcomeLoadError = "load_error"
	OutcomeNoSession = "no_session"
)

var (
	monitorRunsTotal             *prometheus.CounterVec
	monitorDocumentsTotal        *prometheus.CounterVec
	monitorDeliveryFailuresTotal *prometheus.CounterVec
	monitorPageLoadSeconds       *prometheus.HistogramVec
	monitorActiveRuns            prometheus.Gauge
	provisionerStacksTotal       *prometheus.CounterVec
	rateLimitDelaySeconds        *prometheus.HistogramVec
	httpRequestsTotal            *prometheus.CounterVec
	httpRequestDurationSeconds   *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		monitorRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synthetic_monitor_runs_total",
				Help: "Total number of monitoring runs, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		monitorDocumentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synthetic_monitor_documents_total",
				Help: "Total number of telemetry documents handed to the sink, labeled by kind.",
			},
			[]string{"kind"},
		)

		monitorDeliveryFailuresTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synthetic_monitor_delivery_failures_total",
				Help: "Total number of telemetry documents the listener did not accept, labeled by kind.",
			},
			[]string{"kind"},
		)

		monitorPageLoadSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "synthetic_monitor_page_load_seconds",
				Help:    "Histogram of page time-to-complete, labeled by site.",
				Buckets: []float64{0.25, 0.5, 1, 2, 3, 5, 10, 30},
			},
			[]string{"site"},
		)

		monitorActiveRuns = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "synthetic_monitor_active_runs",
				Help: "Number of monitoring runs currently holding a browser session.",
			},
		)

		provisionerStacksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "synthetic_monitor_provisioned_stacks_total",
				Help: "Total number of stack creation attempts, labeled by region and status.",
			},
			[]string{"region", "status"},
		)

		rateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "synthetic_monitor_rate_limit_delay_seconds",
				Help:    "Histogram of time runs waited on the per-host rate limiter.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"host"},
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30},
			},
			[]string{"method", "route"},
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

// ObserveRun counts a finished monitoring run.
func ObserveRun(site, outcome string) {
	Init()
	monitorRunsTotal.WithLabelValues(SanitizeSite(site), outcome).Inc()
}

// ObservePageLoad records the page time-to-complete.
func ObservePageLoad(site string, d time.Duration) {
	Init()
	monitorPageLoadSeconds.WithLabelValues(SanitizeSite(site)).Observe(d.Seconds())
}

// ObserveDocument counts a document handed to the sink.
func ObserveDocument(kind string) {
	Init()
	monitorDocumentsTotal.WithLabelValues(kind).Inc()
}

// ObserveDeliveryFailure counts a document the listener did not accept.
func ObserveDeliveryFailure(kind string) {
	Init()
	monitorDeliveryFailuresTotal.WithLabelValues(kind).Inc()
}

// ObserveStack counts a stack creation attempt.
func ObserveStack(region, status string) {
	Init()
	provisionerStacksTotal.WithLabelValues(region, status).Inc()
}

// ObserveRateLimitDelay records time spent waiting on the per-host limiter.
func ObserveRateLimitDelay(host string, d time.Duration) {
	Init()
	rateLimitDelaySeconds.WithLabelValues(host).Observe(d.Seconds())
}

// IncActiveRuns increments the active runs gauge.
func IncActiveRuns() {
	Init()
	monitorActiveRuns.Inc()
}

// DecActiveRuns decrements the active runs gauge.
func DecActiveRuns() {
	Init()
	monitorActiveRuns.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
