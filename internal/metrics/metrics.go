// Package metrics exposes Prometheus collectors for the vanity checker.
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
	probeAttemptsTotal         *prometheus.CounterVec
	probeDurationSeconds       *prometheus.HistogramVec
	probesInFlight             prometheus.Gauge
	rateLimitDelaysSeconds     *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		probeAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "vanity_probe_attempts_total",
				Help: "Total number of probe HTTP attempts, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		probeDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vanity_probe_duration_seconds",
				Help:    "Histogram of full probe durations including retries, labeled by status.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"status"},
		)

		probesInFlight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "vanity_probes_in_flight",
				Help: "Number of probes currently running.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "vanity_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests served, labeled by method and code.",
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

// SanitizeHost extracts a lowercase hostname from a URL.
// It returns "unknown" if the URL is invalid.
func SanitizeHost(rawURL string) string {
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

// ObserveProbeAttempt counts one HTTP attempt. outcome is one of verdict, transient or error.
func ObserveProbeAttempt(outcome string) {
	Init()
	probeAttemptsTotal.WithLabelValues(outcome).Inc()
}

// ObserveProbe records the duration of a completed probe.
func ObserveProbe(status string, duration time.Duration) {
	Init()
	probeDurationSeconds.WithLabelValues(status).Observe(duration.Seconds())
}

// IncProbesInFlight increments the in-flight probe gauge.
func IncProbesInFlight() {
	Init()
	probesInFlight.Inc()
}

// DecProbesInFlight decrements the in-flight probe gauge.
func DecProbesInFlight() {
	Init()
	probesInFlight.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
