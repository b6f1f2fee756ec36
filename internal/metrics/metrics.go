package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the scanner.
type Metrics struct {
	CyclesTotal   *prometheus.CounterVec // labels: result=ok|error|cancelled
	CycleDuration prometheus.Histogram
	PairsTotal    *prometheus.CounterVec // labels: result=processed|skipped
	SignalsTotal  *prometheus.CounterVec // labels: type
	EmitErrors    prometheus.Counter
	LastCycle     prometheus.Gauge

	registry *prometheus.Registry
}

// NewMetrics registers and returns all Prometheus metrics on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		CyclesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_cycles_total",
			Help: "Completed scan cycles by result",
		}, []string{"result"}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scanner_cycle_duration_seconds",
			Help:    "Wall time of one scan cycle",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		PairsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_pairs_total",
			Help: "Pairs handled by result",
		}, []string{"result"}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_signals_total",
			Help: "Emitted signal tags by type",
		}, []string{"type"}),
		EmitErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_emit_errors_total",
			Help: "Emitter failures",
		}),
		LastCycle: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scanner_last_cycle_timestamp_seconds",
			Help: "Unix time the last cycle finished",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.CyclesTotal,
		m.CycleDuration,
		m.PairsTotal,
		m.SignalsTotal,
		m.EmitErrors,
		m.LastCycle,
		collectors.NewGoCollector(),
	)

	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the registry, mostly for tests
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}
