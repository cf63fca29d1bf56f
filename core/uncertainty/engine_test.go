package uncertainty

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/kilianp07/symbiosis/core/events"
	"github.com/kilianp07/symbiosis/core/exchange"
	"github.com/kilianp07/symbiosis/core/milp"
	"github.com/kilianp07/symbiosis/core/model"
)

func baseProblem() exchange.Problem {
	inst := model.Instance{
		Names:    []string{"Foundry", "Plastics", "Mill"},
		Wastes:   []model.WasteType{model.WasteHeat, model.WasteScrap},
		Inputs:   []model.InputType{model.InputElectricity, model.InputPolymer},
		Supply:   mat.NewDense(3, 2, []float64{100, 20, 0, 0, 40, 10}),
		Demand:   mat.NewDense(3, 2, []float64{0, 0, 80, 25, 30, 0}),
		Distance: mat.NewDense(3, 3, []float64{0, 10, 25, 10, 0, 15, 25, 15, 0}),
	}
	return exchange.Problem{Instance: inst, Costs: model.DefaultCostParams(), Synergies: model.DefaultSynergyConfig()}
}

type fakeSolver struct {
	solve func(ctx context.Context, p exchange.Problem) (exchange.Result, error)
}

func (f fakeSolver) Validate(exchange.Problem) error { return nil }

func (f fakeSolver) Solve(ctx context.Context, p exchange.Problem) (exchange.Result, error) {
	return f.solve(ctx, p)
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Publish(e events.Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func TestEngine_RunProducesCompleteTables(t *testing.T) {
	st := Settings{Scenarios: 12, VariationPct: 10, Seed: 7, Workers: 3}
	batch, err := NewEngine(nil, WithIDGenerator(func() string { return "b1" })).Run(context.Background(), baseProblem(), st)
	require.NoError(t, err)
	require.Equal(t, "b1", batch.ID)
	require.Len(t, batch.Runs, 12)
	for s, r := range batch.Runs {
		assert.Equal(t, s, r.Scenario)
		assert.Equal(t, milp.StatusOptimal, r.Status, "scenario %d", s)
		assert.Equal(t, r.ActiveArcs, countArcs(batch.Arcs, s))
	}
	require.NotEmpty(t, batch.Robustness)
	for _, row := range batch.Robustness {
		assert.GreaterOrEqual(t, row.ProbActive, 0.0)
		assert.LessOrEqual(t, row.ProbActive, 1.0)
		assert.InDelta(t, float64(row.ActiveCount)/12, row.ProbActive, 1e-12)
		require.NotNil(t, row.P10)
		assert.LessOrEqual(t, *row.P10, *row.P50)
		assert.LessOrEqual(t, *row.P50, *row.P90)
		assert.NotEqual(t, row.From, row.To)
	}
	assert.Empty(t, batch.Solutions)
}

func countArcs(arcs []ArcRow, s int) int {
	n := 0
	for _, a := range arcs {
		if a.Scenario == s {
			n++
		}
	}
	return n
}

func TestEngine_DeterministicAcrossWorkerCounts(t *testing.T) {
	p := baseProblem()
	e := NewEngine(nil)
	a, err := e.Run(context.Background(), p, Settings{Scenarios: 10, VariationPct: 20, Distribution: Normal, Seed: 42, Workers: 1})
	require.NoError(t, err)
	b, err := e.Run(context.Background(), p, Settings{Scenarios: 10, VariationPct: 20, Distribution: Normal, Seed: 42, Workers: 4})
	require.NoError(t, err)
	require.Len(t, b.Runs, len(a.Runs))
	for i := range a.Runs {
		assert.Equal(t, a.Runs[i].Objective, b.Runs[i].Objective)
		assert.Equal(t, a.Runs[i].ActiveArcs, b.Runs[i].ActiveArcs)
	}
	assert.Equal(t, a.Arcs, b.Arcs)
	assert.Equal(t, a.Robustness, b.Robustness)
}

func TestEngine_SeedChangesScenarios(t *testing.T) {
	p := baseProblem()
	e := NewEngine(nil)
	a, err := e.Run(context.Background(), p, Settings{Scenarios: 3, VariationPct: 10, Seed: 1})
	require.NoError(t, err)
	b, err := e.Run(context.Background(), p, Settings{Scenarios: 3, VariationPct: 10, Seed: 2})
	require.NoError(t, err)
	assert.NotEqual(t, a.Runs[0].Objective, b.Runs[0].Objective)
}

func TestEngine_FailedScenariosDoNotAbort(t *testing.T) {
	opt := exchange.NewOptimizer()
	var mu sync.Mutex
	calls := 0
	solver := fakeSolver{solve: func(ctx context.Context, p exchange.Problem) (exchange.Result, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		if p.Instance.Supply.At(0, 0) > 100 {
			return exchange.Result{}, errors.New("backend crashed")
		}
		return opt.Solve(ctx, p)
	}}
	st := Settings{Scenarios: 20, VariationPct: 10, Seed: 3, Workers: 2}
	batch, err := NewEngine(solver).Run(context.Background(), baseProblem(), st)
	require.NoError(t, err)
	assert.Equal(t, 20, calls)
	require.Len(t, batch.Runs, 20)

	failed := 0
	for _, r := range batch.Runs {
		if r.Status == milp.StatusFailed {
			failed++
			assert.Zero(t, r.Objective)
			assert.Zero(t, r.ActiveArcs)
			assert.Equal(t, "backend crashed", r.Err)
			assert.Zero(t, countArcs(batch.Arcs, r.Scenario))
		}
	}
	assert.Equal(t, failed, batch.Failures())
	assert.Positive(t, failed)
	for _, row := range batch.Robustness {
		assert.LessOrEqual(t, row.ActiveCount, 20-failed)
		assert.InDelta(t, float64(row.ActiveCount)/20, row.ProbActive, 1e-12)
	}
}

func TestEngine_PanickingSolverYieldsFailedRow(t *testing.T) {
	solver := fakeSolver{solve: func(context.Context, exchange.Problem) (exchange.Result, error) {
		panic("boom")
	}}
	batch, err := NewEngine(solver).Run(context.Background(), baseProblem(), Settings{Scenarios: 2, VariationPct: 5})
	require.NoError(t, err)
	for _, r := range batch.Runs {
		assert.Equal(t, milp.StatusFailed, r.Status)
	}
	assert.Empty(t, batch.Robustness)
}

func TestEngine_CancelledContextRecordsNotSolved(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	batch, err := NewEngine(nil).Run(ctx, baseProblem(), Settings{Scenarios: 5, VariationPct: 10})
	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, batch)
	require.Len(t, batch.Runs, 5)
	for s, r := range batch.Runs {
		assert.Equal(t, s, r.Scenario)
		assert.Equal(t, milp.StatusNotSolved, r.Status)
	}
	assert.Empty(t, batch.Arcs)
}

func TestEngine_TimeoutStopsBatch(t *testing.T) {
	solver := fakeSolver{solve: func(ctx context.Context, _ exchange.Problem) (exchange.Result, error) {
		<-ctx.Done()
		return exchange.Result{Status: milp.StatusNotSolved}, nil
	}}
	st := Settings{Scenarios: 50, VariationPct: 10, Workers: 2, Timeout: 20 * time.Millisecond}
	batch, err := NewEngine(solver).Run(context.Background(), baseProblem(), st)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Len(t, batch.Runs, 50)
	for _, r := range batch.Runs {
		assert.Equal(t, milp.StatusNotSolved, r.Status)
	}
}

func TestEngine_InvalidInputs(t *testing.T) {
	e := NewEngine(nil)
	_, err := e.Run(context.Background(), baseProblem(), Settings{Scenarios: 0})
	assert.ErrorIs(t, err, exchange.ErrInvalidConfig)

	_, err = e.Run(context.Background(), baseProblem(), Settings{Scenarios: 11, MaxScenarios: 10})
	assert.ErrorIs(t, err, exchange.ErrInvalidConfig)

	_, err = e.Run(context.Background(), baseProblem(), Settings{Scenarios: 1, VariationPct: 150})
	assert.ErrorIs(t, err, exchange.ErrInvalidConfig)

	_, err = e.Run(context.Background(), baseProblem(), Settings{Scenarios: 1, Distribution: "cauchy"})
	assert.ErrorIs(t, err, exchange.ErrInvalidConfig)

	p := baseProblem()
	p.Instance.Supply.Set(0, 0, -5)
	_, err = e.Run(context.Background(), p, Settings{Scenarios: 1})
	assert.ErrorIs(t, err, exchange.ErrInvalidConfig)
}

func TestEngine_PublishesEvents(t *testing.T) {
	rec := &recorder{}
	_, err := NewEngine(nil, WithPublisher(rec), WithIDGenerator(func() string { return "ev" })).
		Run(context.Background(), baseProblem(), Settings{Scenarios: 4, VariationPct: 10, Workers: 2})
	require.NoError(t, err)
	require.Len(t, rec.events, 5)
	seen := map[int]bool{}
	for _, ev := range rec.events[:4] {
		se, ok := ev.(events.ScenarioEvent)
		require.True(t, ok)
		assert.Equal(t, "ev", se.BatchID)
		assert.Equal(t, "optimal", se.Status)
		seen[se.Scenario] = true
	}
	assert.Len(t, seen, 4)
	be, ok := rec.events[4].(events.BatchEvent)
	require.True(t, ok)
	assert.Equal(t, 4, be.Scenarios)
	assert.Zero(t, be.Failures)
	assert.NoError(t, be.Err)
}

func TestEngine_KeepSolutions(t *testing.T) {
	st := Settings{Scenarios: 3, VariationPct: 10, Seed: 5, KeepSolutions: true}
	batch, err := NewEngine(nil).Run(context.Background(), baseProblem(), st)
	require.NoError(t, err)
	require.Len(t, batch.Solutions, 3)
	for i, sol := range batch.Solutions {
		assert.Equal(t, i, sol.Scenario)
		want := Perturb(baseProblem().Instance, batch.Settings, i)
		assert.True(t, mat.Equal(want.Supply, sol.Supply))
		assert.InDelta(t, batch.Runs[i].Objective, sol.Result.Objective, 1e-12)
	}
}

func TestPerturb_UniformBoundsAndDeterminism(t *testing.T) {
	base := baseProblem().Instance
	st := Settings{VariationPct: 10, Distribution: Uniform, Seed: 9}
	a := Perturb(base, st, 3)
	b := Perturb(base, st, 3)
	c := Perturb(base, st, 4)
	assert.True(t, mat.Equal(a.Supply, b.Supply))
	assert.True(t, mat.Equal(a.Demand, b.Demand))
	assert.False(t, mat.Equal(a.Supply, c.Supply))

	r, cols := base.Supply.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < cols; j++ {
			v0 := base.Supply.At(i, j)
			v := a.Supply.At(i, j)
			assert.GreaterOrEqual(t, v, 0.9*v0-1e-12)
			assert.LessOrEqual(t, v, 1.1*v0+1e-12)
		}
	}
	assert.Same(t, base.Distance, a.Distance)
	assert.Equal(t, 100.0, base.Supply.At(0, 0), "base must not be mutated")
}

func TestPerturb_NormalClamped(t *testing.T) {
	base := baseProblem().Instance
	st := Settings{VariationPct: 100, Distribution: Normal, Seed: 1}
	for s := 0; s < 50; s++ {
		p := Perturb(base, st, s)
		r, c := base.Demand.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				assert.GreaterOrEqual(t, p.Demand.At(i, j), minNormalFactor*base.Demand.At(i, j)-1e-12)
			}
		}
	}
}

func TestPerturb_ZeroVariationIsIdentity(t *testing.T) {
	base := baseProblem().Instance
	p := Perturb(base, Settings{VariationPct: 0, Distribution: Uniform}, 0)
	assert.True(t, mat.EqualApprox(base.Supply, p.Supply, 1e-12))
	assert.False(t, math.IsNaN(p.Demand.At(0, 0)))
}

func TestParseDistribution(t *testing.T) {
	d, err := ParseDistribution("Normal")
	require.NoError(t, err)
	assert.Equal(t, Normal, d)
	d, err = ParseDistribution("")
	require.NoError(t, err)
	assert.Equal(t, Uniform, d)
	_, err = ParseDistribution("lognormal")
	assert.ErrorIs(t, err, exchange.ErrInvalidConfig)
}
