// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ridit"

// Metrics is the set of collectors the server updates.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// ItemTransitions counts successful item status changes by target status.
	ItemTransitions *prometheus.CounterVec
	// AcceptRejections counts refused acceptances by reason.
	AcceptRejections *prometheus.CounterVec
	// SubscriptionsExpired counts subscriptions deactivated on read.
	SubscriptionsExpired prometheus.Counter
}

// New creates a registry with the server's collectors and the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		ItemTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "item_transitions_total",
			Help:      "Item status transitions by target status.",
		}, []string{"status"}),
		AcceptRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accept_rejections_total",
			Help:      "Refused item acceptances by reason.",
		}, []string{"reason"}),
		SubscriptionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "subscriptions_expired_total",
			Help:      "Collector subscriptions deactivated because their expiry passed.",
		}),
	}

	m.Registry.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.ItemTransitions,
		m.AcceptRejections,
		m.SubscriptionsExpired,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
