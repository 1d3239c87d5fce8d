// Package metrics exposes Prometheus counters for proxied registry calls,
// token refreshes and logins.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors used by the proxy server.
type Metrics struct {
	registry        prometheus.Gatherer
	proxyRequests   *prometheus.CounterVec
	proxyDuration   prometheus.Histogram
	tokenRefreshes  *prometheus.CounterVec
	logins          *prometheus.CounterVec
	sessionTeardown prometheus.Counter
}

// New creates a Metrics instance registered with its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m, err := NewWithRegistry(reg, reg)
	if err != nil {
		// A fresh registry cannot hold duplicates.
		panic(err)
	}
	return m
}

// NewWithRegistry registers the collectors with registerer and serves them
// from gatherer.
func NewWithRegistry(registerer prometheus.Registerer, gatherer prometheus.Gatherer) (*Metrics, error) {
	m := &Metrics{
		registry: gatherer,
		proxyRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hubviewer_proxy_requests_total",
			Help: "Proxied registry requests by upstream status code",
		}, []string{"code"}),
		proxyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "hubviewer_proxy_upstream_seconds",
			Help:    "Latency of upstream registry calls made by the proxy",
			Buckets: prometheus.DefBuckets,
		}),
		tokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hubviewer_token_refreshes_total",
			Help: "Bearer token exchanges by outcome",
		}, []string{"outcome"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "hubviewer_logins_total",
			Help: "Login attempts by mode and outcome",
		}, []string{"mode", "outcome"}),
		sessionTeardown: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "hubviewer_session_teardowns_total",
			Help: "Sessions cleared because cookies were missing, expired or invalid",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.proxyRequests,
		m.proxyDuration,
		m.tokenRefreshes,
		m.logins,
		m.sessionTeardown,
	} {
		if err := registerer.Register(c); err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}
	return m, nil
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveProxy records one upstream call. code is 0 on transport failure.
func (m *Metrics) ObserveProxy(code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	m.proxyRequests.WithLabelValues(label).Inc()
	m.proxyDuration.Observe(elapsed.Seconds())
}

// TokenRefresh records a token exchange outcome.
func (m *Metrics) TokenRefresh(ok bool) {
	if m == nil {
		return
	}
	m.tokenRefreshes.WithLabelValues(outcome(ok)).Inc()
}

// Login records a login attempt.
func (m *Metrics) Login(mode string, ok bool) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(mode, outcome(ok)).Inc()
}

// SessionTeardown records a cleared session.
func (m *Metrics) SessionTeardown() {
	if m == nil {
		return
	}
	m.sessionTeardown.Inc()
}

func outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
