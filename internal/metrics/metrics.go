// Package metrics exposes Prometheus collectors for the proxy pool and crawler.
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
	proxyChecksTotal           *prometheus.CounterVec
	proxyCheckDurationSeconds  prometheus.Histogram
	poolProxies                *prometheus.GaugeVec
	poolHealthScore            prometheus.Gauge
	poolAlertsTotal            *prometheus.CounterVec
	providerCandidatesTotal    *prometheus.CounterVec
	crawlerPagesTotal          *prometheus.CounterVec
	crawlerCacheTotal          *prometheus.CounterVec
	crawlerRecordsTotal        *prometheus.CounterVec
	crawlerRateLimitDelays     *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		proxyChecksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proxy_checks_total",
				Help: "Total number of proxy health checks, labeled by result.",
			},
			[]string{"result"},
		)

		proxyCheckDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "proxy_check_duration_seconds",
				Help:    "Histogram of proxy health check latencies.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20},
			},
		)

		poolProxies = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "proxy_pool_proxies",
				Help: "Number of proxies in the pool, labeled by state.",
			},
			[]string{"state"},
		)

		poolHealthScore = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "proxy_pool_health_score",
				Help: "Composite 0-100 health score of the proxy pool.",
			},
		)

		poolAlertsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proxy_pool_alerts_total",
				Help: "Total number of pool alerts raised, labeled by type and severity.",
			},
			[]string{"type", "severity"},
		)

		providerCandidatesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "proxy_provider_candidates_total",
				Help: "Total number of proxy candidates fetched, labeled by provider.",
			},
			[]string{"provider"},
		)

		crawlerPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_pages_total",
				Help: "Total number of pages crawled, labeled by target and status.",
			},
			[]string{"target", "status"},
		)

		crawlerCacheTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_cache_lookups_total",
				Help: "Total number of response cache lookups, labeled by result.",
			},
			[]string{"result"},
		)

		crawlerRecordsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_records_total",
				Help: "Total number of records handed to persistence, labeled by target and outcome.",
			},
			[]string{"target", "outcome"},
		)

		crawlerRateLimitDelays = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
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

// ObserveProxyCheck records the outcome and latency of one proxy test.
func ObserveProxyCheck(success bool, duration time.Duration) {
	Init()
	result := "failure"
	if success {
		result = "success"
	}
	proxyChecksTotal.WithLabelValues(result).Inc()
	proxyCheckDurationSeconds.Observe(duration.Seconds())
}

// SetPoolSize publishes the pool gauges.
func SetPoolSize(total, working, failed int) {
	Init()
	poolProxies.WithLabelValues("total").Set(float64(total))
	poolProxies.WithLabelValues("working").Set(float64(working))
	poolProxies.WithLabelValues("failed").Set(float64(failed))
}

// SetHealthScore publishes the latest pool health score.
func SetHealthScore(score int) {
	Init()
	poolHealthScore.Set(float64(score))
}

// ObserveAlert counts a newly raised alert.
func ObserveAlert(alertType, severity string) {
	Init()
	poolAlertsTotal.WithLabelValues(alertType, severity).Inc()
}

// ObserveProviderCandidates counts candidates returned by a provider.
func ObserveProviderCandidates(provider string, n int) {
	Init()
	if n > 0 {
		providerCandidatesTotal.WithLabelValues(provider).Add(float64(n))
	}
}

// ObserveCrawl increments the page counter for a target.
func ObserveCrawl(target, status string) {
	Init()
	crawlerPagesTotal.WithLabelValues(target, status).Inc()
}

// ObserveCacheLookup records a cache hit or miss.
func ObserveCacheLookup(hit bool) {
	Init()
	result := "miss"
	if hit {
		result = "hit"
	}
	crawlerCacheTotal.WithLabelValues(result).Inc()
}

// ObserveRecord records the persistence outcome of one crawled record.
func ObserveRecord(target, outcome string) {
	Init()
	crawlerRecordsTotal.WithLabelValues(target, outcome).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	crawlerRateLimitDelays.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
