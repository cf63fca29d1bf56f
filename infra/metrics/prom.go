package metrics

import (
	"errors"

	coremetrics "github.com/kilianp07/symbiosis/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records scenario batch metrics in Prometheus collectors.
type PromSink struct {
	scenarios *prometheus.CounterVec
	objective prometheus.Histogram
	recovered *prometheus.CounterVec
	batchDur  prometheus.Histogram
	failures  prometheus.Gauge
	solves    *prometheus.CounterVec
}

// NewPromSink registers the collectors on the default Prometheus registerer.
// The HTTP endpoint is started separately with StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers the collectors on reg. A nil registerer
// defaults to the global one. Collectors already registered are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		scenarios: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uncertainty_scenarios_total",
			Help: "Scenarios solved by outcome",
		}, []string{"status"}),
		objective: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "uncertainty_scenario_objective",
			Help:    "Total cost of optimal scenarios",
			Buckets: prometheus.ExponentialBuckets(100, 4, 10),
		}),
		recovered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uncertainty_recovered_units_total",
			Help: "Waste routed through each synergy across scenarios",
		}, []string{"synergy"}),
		batchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "uncertainty_batch_duration_seconds",
			Help:    "Wall time of scenario batches",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
		failures: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "uncertainty_batch_failures",
			Help: "Non-optimal scenarios in the last batch",
		}),
		solves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "symbiosis_optimizations_total",
			Help: "Standalone optimizations by outcome",
		}, []string{"status"}),
	}
	var err error
	if s.scenarios, err = register(reg, s.scenarios); err != nil {
		return nil, err
	}
	if s.objective, err = register(reg, s.objective); err != nil {
		return nil, err
	}
	if s.recovered, err = register(reg, s.recovered); err != nil {
		return nil, err
	}
	if s.batchDur, err = register(reg, s.batchDur); err != nil {
		return nil, err
	}
	if s.failures, err = register(reg, s.failures); err != nil {
		return nil, err
	}
	if s.solves, err = register(reg, s.solves); err != nil {
		return nil, err
	}
	return s, nil
}

// register returns the collector already registered under the same
// descriptor when there is one.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordScenario counts the scenario and tracks its objective and flows.
func (s *PromSink) RecordScenario(r coremetrics.ScenarioRecord) error {
	s.scenarios.WithLabelValues(r.Status).Inc()
	if r.Status == "optimal" {
		s.objective.Observe(r.Objective)
	}
	for k, v := range r.Recovered {
		if v > 0 {
			s.recovered.WithLabelValues(k).Add(v)
		}
	}
	return nil
}

// RecordBatch observes the batch duration and failure count.
func (s *PromSink) RecordBatch(r coremetrics.BatchRecord) error {
	s.batchDur.Observe(r.Duration.Seconds())
	s.failures.Set(float64(r.Failures))
	return nil
}

// RecordSolve counts a standalone optimization.
func (s *PromSink) RecordSolve(r coremetrics.SolveRecord) error {
	s.solves.WithLabelValues(r.Status).Inc()
	return nil
}
