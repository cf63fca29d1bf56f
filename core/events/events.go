package events

import "time"

// Event is implemented by every event published on the bus.
type Event interface {
	EventName() string
}

// SolveEvent is published after a standalone optimization.
type SolveEvent struct {
	Status     string
	Objective  float64
	ActiveArcs int
	Duration   time.Duration
	Time       time.Time
}

func (SolveEvent) EventName() string { return "solve" }

// ScenarioEvent is published once per finished scenario.
type ScenarioEvent struct {
	BatchID    string
	Scenario   int
	Status     string
	Objective  float64
	ActiveArcs int
	// Recovered is the total waste routed per synergy key.
	Recovered map[string]float64
	Duration  time.Duration
	Time      time.Time
}

func (ScenarioEvent) EventName() string { return "scenario" }

// BatchEvent is published when a batch completes, including batches cut
// short by cancellation.
type BatchEvent struct {
	BatchID       string
	Scenarios     int
	Failures      int
	MeanObjective float64
	Duration      time.Duration
	Err           error
	Time          time.Time
}

func (BatchEvent) EventName() string { return "batch" }
