package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics aggregates the service's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	BuildsTotal     *prometheus.CounterVec
	ConfirmsTotal   *prometheus.CounterVec
	SignaturesTotal prometheus.Counter
	DriftTotal      prometheus.Counter
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		BuildsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "solranch_transaction_builds_total",
			Help: "Unsigned transactions built, by operation kind.",
		}, []string{"kind"}),
		ConfirmsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "solranch_transaction_confirms_total",
			Help: "Confirmation outcomes, by operation kind and result.",
		}, []string{"kind", "result"}),
		SignaturesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "solranch_signatures_accepted_total",
			Help: "Partially signed payloads accepted from ranchers.",
		}),
		DriftTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "solranch_reconciliation_drift_total",
			Help: "Mirror writes that failed after on-chain confirmation.",
		}),
	}

	registry.MustRegister(m.BuildsTotal, m.ConfirmsTotal, m.SignaturesTotal, m.DriftTotal)
	return m
}

// Handler exposes the registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Build records a build for the given operation kind. Nil-safe so services
// can run without metrics wired.
func (m *Metrics) Build(kind string) {
	if m == nil {
		return
	}
	m.BuildsTotal.WithLabelValues(kind).Inc()
}

// Confirm records a confirmation outcome.
func (m *Metrics) Confirm(kind, result string) {
	if m == nil {
		return
	}
	m.ConfirmsTotal.WithLabelValues(kind, result).Inc()
}

// Signature records an accepted co-signature.
func (m *Metrics) Signature() {
	if m == nil {
		return
	}
	m.SignaturesTotal.Inc()
}

// Drift records a reconciliation drift event.
func (m *Metrics) Drift() {
	if m == nil {
		return
	}
	m.DriftTotal.Inc()
}
