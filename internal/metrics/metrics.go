// Package metrics holds the prometheus instruments of the listing engine.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pager"

type Metrics struct {
	registry *prometheus.Registry

	ListRequests     *prometheus.CounterVec
	ListDuration     *prometheus.HistogramVec
	Fallbacks        *prometheus.CounterVec
	CandidatesLoaded *prometheus.HistogramVec
	DecodeFailures   *prometheus.CounterVec
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
}

// New creates the instruments on their own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		ListRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "list_requests_total",
			Help:      "The total number of listing requests by serving strategy",
		}, []string{"strategy", "outcome"}),
		ListDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "list_duration_seconds",
			Help:      "The latency of listing requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"strategy"}),
		Fallbacks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "strategy_fallbacks_total",
			Help:      "The total number of times a strategy handed a request to the next one",
		}, []string{"from", "reason"}),
		CandidatesLoaded: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "candidates_loaded",
			Help:      "The number of documents transferred to serve one page",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}, []string{"strategy"}),
		DecodeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_failures_total",
			Help:      "The total number of stored documents that could not be decoded",
		}, []string{"mode"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "The total number of HTTP requests",
		}, []string{"method", "route", "status_code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "The latency of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	reg.MustRegister(m.ListRequests)
	reg.MustRegister(m.ListDuration)
	reg.MustRegister(m.Fallbacks)
	reg.MustRegister(m.CandidatesLoaded)
	reg.MustRegister(m.DecodeFailures)
	reg.MustRegister(m.HTTPRequests)
	reg.MustRegister(m.HTTPDuration)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the metrics in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordList(strategy, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ListRequests.WithLabelValues(strategy, outcome).Inc()
	m.ListDuration.WithLabelValues(strategy).Observe(d.Seconds())
}

func (m *Metrics) RecordFallback(from, reason string) {
	if m == nil {
		return
	}
	m.Fallbacks.WithLabelValues(from, reason).Inc()
}

func (m *Metrics) RecordCandidates(strategy string, n int) {
	if m == nil {
		return
	}
	m.CandidatesLoaded.WithLabelValues(strategy).Observe(float64(n))
}

func (m *Metrics) RecordDecodeFailures(mode string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.DecodeFailures.WithLabelValues(mode).Add(float64(n))
}

func (m *Metrics) RecordHTTPRequest(method, route string, statusCode int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
