package metrics

import "github.com/kilianp07/symbiosis/core/factory"

// Config defines the metrics sinks and the optional Prometheus endpoint.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks" yaml:"sinks"`
	// PrometheusAddr enables the /metrics HTTP endpoint when non-empty.
	PrometheusAddr string `json:"prometheus_addr" yaml:"prometheus_addr"`
}
