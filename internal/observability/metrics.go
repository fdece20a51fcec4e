// Package observability exposes the proxy's Prometheus metrics.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the proxy's counters on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RateLimitedTotal prometheus.Counter
	UpstreamErrors   prometheus.Counter
	StreamPartsTotal *prometheus.CounterVec
	SideChannelDrops prometheus.Counter
	MemoryPersists   prometheus.Counter
	SessionsMinted   prometheus.Counter
}

// NewMetrics creates the metric set on a fresh registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatwidget",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"route", "status"}),
		RateLimitedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "chatwidget",
			Name:      "rate_limited_total",
			Help:      "Requests denied by the fixed-window rate limiter.",
		}),
		UpstreamErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "chatwidget",
			Name:      "upstream_errors_total",
			Help:      "Failed dispatches to the upstream chat service.",
		}),
		StreamPartsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatwidget",
			Name:      "stream_parts_total",
			Help:      "Client protocol parts written, by kind.",
		}, []string{"kind"}),
		SideChannelDrops: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "chatwidget",
			Name:      "side_channel_dropped_chunks_total",
			Help:      "Upstream chunks dropped on the inspector branch.",
		}),
		MemoryPersists: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "chatwidget",
			Name:      "memory_persists_total",
			Help:      "Assistant summaries persisted to the memory gateway.",
		}),
		SessionsMinted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "chatwidget",
			Name:      "sessions_minted_total",
			Help:      "Fresh browser identities issued.",
		}),
	}
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
