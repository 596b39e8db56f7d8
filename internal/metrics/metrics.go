package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the storefront collectors. A nil *Registry is valid and
// records nothing.
type Registry struct {
	reg *prometheus.Registry

	CartMutations   *prometheus.CounterVec
	SnapshotLoads   *prometheus.CounterVec
	SnapshotSaves   *prometheus.CounterVec
	CheckoutResults *prometheus.CounterVec
	CheckoutLatency prometheus.Histogram
	OpenSessions    prometheus.Gauge
	OutboxPublished prometheus.Counter
	OutboxFailed    prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	m := &Registry{
		reg: r,
		CartMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_cart_mutations_total",
			Help: "Cart store mutations by operation.",
		}, []string{"op"}),
		SnapshotLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_cart_snapshot_loads_total",
			Help: "Cart rehydrations by outcome.",
		}, []string{"outcome"}),
		SnapshotSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_cart_snapshot_saves_total",
			Help: "Cart snapshot writes by outcome.",
		}, []string{"outcome"}),
		CheckoutResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_checkout_results_total",
			Help: "Checkout attempts by outcome.",
		}, []string{"outcome"}),
		CheckoutLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "storefront_checkout_duration_seconds",
			Buckets: prometheus.DefBuckets,
		}),
		OpenSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "storefront_open_sessions",
		}),
		OutboxPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_outbox_published_total",
		}),
		OutboxFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "storefront_outbox_publish_failures_total",
		}),
	}
	r.MustRegister(
		m.CartMutations,
		m.SnapshotLoads,
		m.SnapshotSaves,
		m.CheckoutResults,
		m.CheckoutLatency,
		m.OpenSessions,
		m.OutboxPublished,
		m.OutboxFailed,
	)
	return m
}

func (m *Registry) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Registry) CartMutation(op string) {
	if m == nil {
		return
	}
	m.CartMutations.WithLabelValues(op).Inc()
}

func (m *Registry) SnapshotLoaded(outcome string) {
	if m == nil {
		return
	}
	m.SnapshotLoads.WithLabelValues(outcome).Inc()
}

func (m *Registry) SnapshotSaved(outcome string) {
	if m == nil {
		return
	}
	m.SnapshotSaves.WithLabelValues(outcome).Inc()
}

func (m *Registry) CheckoutFinished(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.CheckoutResults.WithLabelValues(outcome).Inc()
	m.CheckoutLatency.Observe(seconds)
}

func (m *Registry) SessionOpened() {
	if m == nil {
		return
	}
	m.OpenSessions.Inc()
}

func (m *Registry) SessionClosed() {
	if m == nil {
		return
	}
	m.OpenSessions.Dec()
}

func (m *Registry) OutboxResult(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.OutboxFailed.Inc()
		return
	}
	m.OutboxPublished.Inc()
}
