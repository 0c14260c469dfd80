// Package metrics exposes Prometheus collectors for the account service.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "accounts"

type Metrics struct {
	registry         *prometheus.Registry
	authAttempts     *prometheus.CounterVec
	tokensIssued     prometheus.Counter
	refreshRotations *prometheus.CounterVec
	revocations      prometheus.Counter
	versionLookups   *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_attempts_total",
			Help:      "Authentication attempts by operation and result.",
		}, []string{"operation", "result"}),
		tokensIssued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_issued_total",
			Help:      "Access/refresh token pairs issued.",
		}),
		refreshRotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "refresh_rotations_total",
			Help:      "Refresh token rotations by result.",
		}, []string{"result"}),
		revocations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_revocations_total",
			Help:      "Calls that invalidated every token of a user.",
		}),
		versionLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_version_lookups_total",
			Help:      "Token version lookups during full verification by source.",
		}, []string{"source"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.authAttempts,
		m.tokensIssued,
		m.refreshRotations,
		m.revocations,
		m.versionLookups,
		m.httpRequests,
		m.httpDuration,
	)

	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// WatchEventDrops exports dropped() as the count of notifications lost to
// slow subscribers.
func (m *Metrics) WatchEventDrops(dropped func() uint64) {
	if m == nil {
		return
	}
	m.registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_dropped_total",
		Help:      "Event deliveries dropped because a subscriber fell behind.",
	}, func() float64 { return float64(dropped()) }))
}

func (m *Metrics) AuthAttempt(operation string, success bool) {
	if m == nil {
		return
	}
	m.authAttempts.WithLabelValues(operation, result(success)).Inc()
}

func (m *Metrics) TokenIssued() {
	if m == nil {
		return
	}
	m.tokensIssued.Inc()
}

func (m *Metrics) RefreshRotation(success bool) {
	if m == nil {
		return
	}
	m.refreshRotations.WithLabelValues(result(success)).Inc()
}

func (m *Metrics) Revocation() {
	if m == nil {
		return
	}
	m.revocations.Inc()
}

// VersionLookup records where a token version came from: "cache" or "store".
func (m *Metrics) VersionLookup(source string) {
	if m == nil {
		return
	}
	m.versionLookups.WithLabelValues(source).Inc()
}

func (m *Metrics) ObserveHTTP(method string, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func result(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
