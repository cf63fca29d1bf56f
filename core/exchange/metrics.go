package exchange

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	solveDuration *prometheus.HistogramVec
	solvesTotal   *prometheus.CounterVec
	activeArcs    *prometheus.GaugeVec
)

func newCollectors() (*prometheus.HistogramVec, *prometheus.CounterVec, *prometheus.GaugeVec) {
	dur := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exchange_solve_duration_seconds",
			Help:    "Wall time of exchange optimizations",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		},
		[]string{"status"},
	)
	total := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exchange_solves_total",
			Help: "Number of exchange optimizations by outcome",
		},
		[]string{"status"},
	)
	arcs := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "exchange_active_links",
			Help: "Activated links in the last optimal solution",
		},
		[]string{"synergy"},
	)
	return dur, total, arcs
}

func init() {
	solveDuration, solvesTotal, activeArcs = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers the optimizer metrics on reg.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(solveDuration, solvesTotal, activeArcs)
}

// ResetMetrics recreates the collectors for tests and registers them on reg
// when it is not nil.
func ResetMetrics(reg prometheus.Registerer) {
	solveDuration, solvesTotal, activeArcs = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
