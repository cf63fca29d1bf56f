package uncertainty

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/symbiosis/core/events"
	"github.com/kilianp07/symbiosis/core/exchange"
	"github.com/kilianp07/symbiosis/core/logger"
	"github.com/kilianp07/symbiosis/core/milp"
	"github.com/kilianp07/symbiosis/core/model"
	"gonum.org/v1/gonum/stat"
)

// Solver is the optimizer capability the engine drives once per scenario.
// *exchange.Optimizer satisfies it.
type Solver interface {
	Validate(p exchange.Problem) error
	Solve(ctx context.Context, p exchange.Problem) (exchange.Result, error)
}

// Publisher receives scenario and batch events. Publish must not block.
type Publisher interface {
	Publish(events.Event)
}

// Engine runs scenario batches over a shared base problem.
type Engine struct {
	solver Solver
	log    logger.Logger
	pub    Publisher
	newID  func() string
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger attaches a logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithPublisher sends a ScenarioEvent per scenario and a BatchEvent per batch.
func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.pub = p }
}

// WithIDGenerator overrides the batch ID generator.
func WithIDGenerator(f func() string) Option {
	return func(e *Engine) {
		if f != nil {
			e.newID = f
		}
	}
}

// NewEngine returns an engine driving solver. A nil solver selects an
// exchange.Optimizer with default options.
func NewEngine(solver Solver, opts ...Option) *Engine {
	if solver == nil {
		solver = exchange.NewOptimizer()
	}
	e := &Engine{solver: solver, log: logger.Nop{}, newID: uuid.NewString}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type scenarioOutcome struct {
	run      RunRow
	arcs     []ArcRow
	solution *ScenarioSolution
}

// Run perturbs p once per scenario, solves every scenario on a bounded
// worker pool and aggregates the results. A failing scenario yields a zero
// row and never aborts the batch. When ctx ends or the batch timeout fires,
// scenarios not yet started are recorded as not-solved and Run returns the
// complete batch together with the context error.
func (e *Engine) Run(ctx context.Context, p exchange.Problem, st Settings) (*Batch, error) {
	st.SetDefaults()
	if err := st.Validate(); err != nil {
		return nil, err
	}
	if err := e.solver.Validate(p); err != nil {
		return nil, err
	}
	if st.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, st.Timeout)
		defer cancel()
	}

	batch := &Batch{ID: e.newID(), Settings: st, Started: time.Now()}
	e.log.Infof("batch %s: %d scenarios, ±%.1f%% %s, %d workers", batch.ID, st.Scenarios, st.VariationPct, st.Distribution, st.Workers)

	outcomes := make([]*scenarioOutcome, st.Scenarios)
	var g errgroup.Group
	g.SetLimit(st.Workers)
	for s := 0; s < st.Scenarios; s++ {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			outcomes[s] = e.runScenario(ctx, batch.ID, p, st, s)
			return nil
		})
	}
	_ = g.Wait()

	err := ctx.Err()
	for s, o := range outcomes {
		if o == nil {
			outcomes[s] = &scenarioOutcome{run: zeroRun(s, milp.StatusNotSolved, fmt.Sprintf("not attempted: %v", err))}
		}
	}
	e.collect(batch, outcomes, st.KeepSolutions)
	batch.Duration = time.Since(batch.Started)

	failures := batch.Failures()
	if failures > 0 {
		e.log.Warnf("batch %s: %d of %d scenarios not optimal", batch.ID, failures, st.Scenarios)
	}
	e.log.Infof("batch %s finished in %s, %d links observed", batch.ID, batch.Duration, len(batch.Robustness))
	if e.pub != nil {
		objs := batch.Objectives()
		mean := 0.0
		if len(objs) > 0 {
			mean = stat.Mean(objs, nil)
		}
		e.pub.Publish(events.BatchEvent{
			BatchID:       batch.ID,
			Scenarios:     st.Scenarios,
			Failures:      failures,
			MeanObjective: mean,
			Duration:      batch.Duration,
			Err:           err,
			Time:          time.Now(),
		})
	}
	return batch, err
}

// collect is the single-writer fold run after every worker finished.
func (e *Engine) collect(b *Batch, outcomes []*scenarioOutcome, keep bool) {
	b.Runs = make([]RunRow, len(outcomes))
	for s, o := range outcomes {
		b.Runs[s] = o.run
		b.Arcs = append(b.Arcs, o.arcs...)
		if keep && o.solution != nil {
			b.Solutions = append(b.Solutions, *o.solution)
		}
	}
	b.Robustness = Aggregate(b.Arcs, len(outcomes))
}

func (e *Engine) runScenario(ctx context.Context, batchID string, p exchange.Problem, st Settings, s int) (out *scenarioOutcome) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			e.log.Errorf("scenario %d panicked: %v", s, r)
			out = &scenarioOutcome{run: zeroRun(s, milp.StatusFailed, fmt.Sprintf("panic: %v", r))}
		}
		out.run.Duration = time.Since(start)
		e.publishScenario(batchID, out.run)
	}()

	inst := Perturb(p.Instance, st, s)
	sp := p
	sp.Instance = inst
	res, err := e.solver.Solve(ctx, sp)
	if err != nil {
		e.log.Warnf("scenario %d: %v", s, err)
		return &scenarioOutcome{run: zeroRun(s, milp.StatusFailed, err.Error())}
	}
	if !res.IsOptimal() {
		e.log.Debugf("scenario %d finished with status %s", s, res.Status)
	}

	out = &scenarioOutcome{run: RunRow{
		Scenario:  s,
		Status:    res.Status,
		Objective: res.Objective,
		Recovered: make(map[model.Synergy]float64, len(model.Supported)),
	}}
	for _, syn := range model.Supported {
		out.run.Recovered[syn] = res.TotalFlow(syn)
	}
	for _, a := range res.ActiveArcs() {
		out.arcs = append(out.arcs, ArcRow{
			Scenario: s,
			From:     a.From,
			To:       a.To,
			Synergy:  a.Synergy,
			Flow:     a.Flow,
			Distance: inst.Distance.At(a.From, a.To),
		})
	}
	out.run.ActiveArcs = len(out.arcs)
	if st.KeepSolutions {
		out.solution = &ScenarioSolution{Scenario: s, Supply: inst.Supply, Demand: inst.Demand, Result: res}
	}
	return out
}

func (e *Engine) publishScenario(batchID string, r RunRow) {
	if e.pub == nil {
		return
	}
	rec := make(map[string]float64, len(r.Recovered))
	for syn, v := range r.Recovered {
		rec[syn.Key()] = v
	}
	e.pub.Publish(events.ScenarioEvent{
		BatchID:    batchID,
		Scenario:   r.Scenario,
		Status:     r.Status.String(),
		Objective:  r.Objective,
		ActiveArcs: r.ActiveArcs,
		Recovered:  rec,
		Duration:   r.Duration,
		Time:       time.Now(),
	})
}

func zeroRun(s int, status milp.Status, msg string) RunRow {
	rec := make(map[model.Synergy]float64, len(model.Supported))
	for _, syn := range model.Supported {
		rec[syn] = 0
	}
	return RunRow{Scenario: s, Status: status, Recovered: rec, Err: msg}
}
