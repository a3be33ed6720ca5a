// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metricSet holds the server's Prometheus collectors. Each Server carries
// its own registry so independent instances never fight over registration.
type metricSet struct {
	registry        *prometheus.Registry
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	corpusArticles  prometheus.Gauge
	corpusDegraded  prometheus.Gauge
	refreshesTotal  *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	contextRequests *prometheus.CounterVec
}

func newMetricSet() *metricSet {
	m := &metricSet{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		corpusArticles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "corpus_articles",
			Help: "Articles in the current corpus snapshot.",
		}),
		corpusDegraded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "corpus_degraded",
			Help: "Whether the current corpus is degraded (1) or complete (0).",
		}),
		refreshesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "corpus_refreshes_total",
				Help: "Corpus refreshes by outcome.",
			},
			[]string{"outcome"},
		),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "corpus_refresh_duration_seconds",
			Help:    "Corpus refresh duration in seconds.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		contextRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "context_requests_total",
				Help: "Context requests by payload kind.",
			},
			[]string{"kind"},
		),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.corpusArticles,
		m.corpusDegraded,
		m.refreshesTotal,
		m.refreshDuration,
		m.contextRequests,
	)
	return m
}

func (m *metricSet) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
