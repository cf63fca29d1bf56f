package uncertainty

import (
	"time"

	"github.com/kilianp07/symbiosis/core/exchange"
	"github.com/kilianp07/symbiosis/core/milp"
	"github.com/kilianp07/symbiosis/core/model"
	"gonum.org/v1/gonum/mat"
)

// RunRow summarises one scenario.
type RunRow struct {
	Scenario  int         `json:"scenario_id"`
	Status    milp.Status `json:"status"`
	Objective float64     `json:"objective_total"`
	// Recovered is the total waste routed per synergy.
	Recovered  map[model.Synergy]float64 `json:"recovered"`
	ActiveArcs int                       `json:"active_arcs"`
	Duration   time.Duration             `json:"duration"`
	Err        string                    `json:"error,omitempty"`
}

// ArcRow is one active link in one scenario.
type ArcRow struct {
	Scenario int           `json:"scenario_id"`
	From     int           `json:"i"`
	To       int           `json:"j"`
	Synergy  model.Synergy `json:"stream"`
	Flow     float64       `json:"q"`
	Distance float64       `json:"dist_km"`
}

// RobustnessRow aggregates one (i, j, synergy) link across a batch. The
// conditional quantiles are computed over the scenarios where the link was
// active; they are nil when it never was.
type RobustnessRow struct {
	From        int           `json:"i"`
	To          int           `json:"j"`
	Synergy     model.Synergy `json:"stream"`
	ActiveCount int           `json:"active_count"`
	ProbActive  float64       `json:"prob_active"`
	// MeanFlow averages over all scenarios, counting inactive ones as zero.
	MeanFlow     float64  `json:"mean_q_uncond"`
	MeanDistance float64  `json:"dist_km"`
	P10          *float64 `json:"p10_cond"`
	P50          *float64 `json:"p50_cond"`
	P90          *float64 `json:"p90_cond"`
}

// ScenarioSolution keeps the perturbed data and the full optimizer output of
// one scenario.
type ScenarioSolution struct {
	Scenario int
	Supply   *mat.Dense
	Demand   *mat.Dense
	Result   exchange.Result
}

// Batch is the output of Engine.Run.
type Batch struct {
	ID       string
	Settings Settings
	Started  time.Time
	Duration time.Duration
	// Runs has exactly one row per requested scenario, ordered by index.
	Runs []RunRow
	// Arcs lists active links ordered by scenario, synergy, source and sink.
	Arcs       []ArcRow
	Robustness []RobustnessRow
	// Solutions is filled only when Settings.KeepSolutions is set.
	Solutions []ScenarioSolution
}

// Failures counts scenarios that did not reach an optimal solution.
func (b *Batch) Failures() int {
	n := 0
	for _, r := range b.Runs {
		if r.Status != milp.StatusOptimal {
			n++
		}
	}
	return n
}

// Objectives returns the objective of every optimal scenario.
func (b *Batch) Objectives() []float64 {
	out := make([]float64, 0, len(b.Runs))
	for _, r := range b.Runs {
		if r.Status == milp.StatusOptimal {
			out = append(out, r.Objective)
		}
	}
	return out
}
