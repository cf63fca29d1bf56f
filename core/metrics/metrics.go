package metrics

import "time"

// ScenarioRecord is the outcome of one scenario of a batch.
type ScenarioRecord struct {
	BatchID    string
	Scenario   int
	Status     string
	Objective  float64
	ActiveArcs int
	// Recovered is the waste routed per synergy key.
	Recovered map[string]float64
	Duration  time.Duration
	Time      time.Time
}

// BatchRecord summarises a finished batch.
type BatchRecord struct {
	BatchID       string
	Scenarios     int
	Failures      int
	MeanObjective float64
	Duration      time.Duration
	Error         string
	Time          time.Time
}

// SolveRecord describes a standalone optimization.
type SolveRecord struct {
	Status     string
	Objective  float64
	ActiveArcs int
	Duration   time.Duration
	Time       time.Time
}

// Sink records scenario batch metrics.
type Sink interface {
	RecordScenario(ScenarioRecord) error
	RecordBatch(BatchRecord) error
}

// SolveRecorder is implemented by sinks able to record standalone solves.
type SolveRecorder interface {
	RecordSolve(SolveRecord) error
}

// NopSink discards every record.
type NopSink struct{}

func (NopSink) RecordScenario(ScenarioRecord) error { return nil }
func (NopSink) RecordBatch(BatchRecord) error       { return nil }
func (NopSink) RecordSolve(SolveRecord) error       { return nil }
