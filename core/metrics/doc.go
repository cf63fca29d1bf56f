// Package metrics defines the sink interface used to record optimization and
// scenario batch metrics. Implementations such as PromSink and InfluxSink
// live in infra/metrics and are built from configuration through the factory
// registry; NewSink returns a MultiSink when several sinks are configured.
package metrics
