// Package metrics exposes Prometheus telemetry for the analysis pipeline.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "advisor"

// Metrics holds the collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	AnalysisResults  *prometheus.CounterVec
	CacheLookups     *prometheus.CounterVec
	CacheInvalidated *prometheus.CounterVec
	RemoteLatency    *prometheus.HistogramVec
	RemoteErrors     *prometheus.CounterVec
	CircuitState     *prometheus.GaugeVec
	BudgetRejections *prometheus.CounterVec
	SpendUnits       prometheus.Counter
	BatteryLevel     prometheus.Gauge
	Deduplicated     prometheus.Counter
}

// New registers all collectors plus the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		AnalysisResults: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_results_total",
			Help:      "Analysis results by source.",
		}, []string{"source"}),

		// kind: exact or adapted; tier: memory, store, similar, miss
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by hit kind and tier.",
		}, []string{"kind", "tier"}),

		CacheInvalidated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidations_total",
			Help:      "Cache family invalidations by reason.",
		}, []string{"reason"}),

		RemoteLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_call_duration_seconds",
			Help:      "Guarded remote analysis latency, retries included.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"endpoint", "outcome"}),

		RemoteErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_errors_total",
			Help:      "Failed remote analyses by class.",
		}, []string{"endpoint", "class"}),

		CircuitState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_state",
			Help:      "Circuit state per endpoint: 0 closed, 1 half open, 2 open.",
		}, []string{"endpoint"}),

		BudgetRejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "budget_rejections_total",
			Help:      "Remote calls skipped by the budget gate.",
		}, []string{"reason"}),

		SpendUnits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "spend_units_total",
			Help:      "Cost units recorded against budgets.",
		}),

		BatteryLevel: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "battery_level",
			Help:      "Current battery level.",
		}),

		Deduplicated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analysis_deduplicated_total",
			Help:      "Requests that joined an in-flight analysis.",
		}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveResult(source string) {
	if m == nil {
		return
	}
	m.AnalysisResults.WithLabelValues(source).Inc()
}

// ObserveCache records a lookup. exact distinguishes memory and store hits
// from adapted similar hits.
func (m *Metrics) ObserveCache(tier string, hit, exact bool) {
	if m == nil {
		return
	}
	kind := "miss"
	switch {
	case hit && exact:
		kind = "exact"
	case hit:
		kind = "adapted"
	}
	m.CacheLookups.WithLabelValues(kind, tier).Inc()
}

func (m *Metrics) ObserveInvalidation(reason string) {
	if m == nil {
		return
	}
	m.CacheInvalidated.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveRemote(endpoint string, d time.Duration, err error, class string) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
		m.RemoteErrors.WithLabelValues(endpoint, class).Inc()
	}
	m.RemoteLatency.WithLabelValues(endpoint, outcome).Observe(d.Seconds())
}

// SetCircuit records a breaker state by name.
func (m *Metrics) SetCircuit(endpoint, state string) {
	if m == nil {
		return
	}
	v := 0.0
	switch state {
	case "half_open":
		v = 1
	case "open":
		v = 2
	}
	m.CircuitState.WithLabelValues(endpoint).Set(v)
}

func (m *Metrics) ObserveBudgetRejection(reason string) {
	if m == nil {
		return
	}
	m.BudgetRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveSpend(units float64) {
	if m == nil || units <= 0 {
		return
	}
	m.SpendUnits.Add(units)
}

func (m *Metrics) SetBattery(level float64) {
	if m == nil {
		return
	}
	m.BatteryLevel.Set(level)
}

func (m *Metrics) ObserveDeduplicated() {
	if m == nil {
		return
	}
	m.Deduplicated.Inc()
}
