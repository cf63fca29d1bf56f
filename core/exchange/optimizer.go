package exchange

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/symbiosis/core/logger"
	"github.com/kilianp07/symbiosis/core/milp"
	"github.com/kilianp07/symbiosis/core/model"
)

// Optimizer computes the minimum-cost exchange plan for one instance. It is
// safe for concurrent use: every Solve builds its own model.
type Optimizer struct {
	solver milp.Solver
	opts   Options
	log    logger.Logger
}

// Option configures an Optimizer.
type Option func(*Optimizer)

// WithSolver replaces the default branch-and-bound backend.
func WithSolver(s milp.Solver) Option {
	return func(o *Optimizer) {
		if s != nil {
			o.solver = s
		}
	}
}

// WithOptions sets the formulation constants. Zero fields keep their defaults.
func WithOptions(opts Options) Option {
	return func(o *Optimizer) {
		opts.SetDefaults()
		o.opts = opts
	}
}

// WithLogger attaches a logger.
func WithLogger(l logger.Logger) Option {
	return func(o *Optimizer) {
		if l != nil {
			o.log = l
		}
	}
}

// NewOptimizer returns an optimizer backed by milp.NewBranchAndBound unless
// WithSolver is given.
func NewOptimizer(opts ...Option) *Optimizer {
	o := &Optimizer{
		solver: milp.NewBranchAndBound(),
		opts:   DefaultOptions(),
		log:    logger.Nop{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Options returns the formulation constants in use.
func (o *Optimizer) Options() Options { return o.opts }

// Solve validates p, builds the MILP and runs the solver. Configuration
// errors are returned as errors wrapping ErrInvalidConfig. Solver errors and
// panics never escape: they yield a Result with StatusFailed and zero flows,
// alongside a nil error.
func (o *Optimizer) Solve(ctx context.Context, p Problem) (Result, error) {
	if err := p.Validate(o.opts); err != nil {
		return Result{}, err
	}
	start := time.Now()
	res := o.solve(ctx, p)
	status := res.Status.String()
	solveDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())
	solvesTotal.WithLabelValues(status).Inc()
	if res.IsOptimal() {
		for _, s := range model.Supported {
			activeArcs.WithLabelValues(s.Key()).Set(float64(countActive(res, s)))
		}
	}
	o.log.Debugw("exchange solved", map[string]any{
		"status":    status,
		"objective": res.Objective,
		"nodes":     res.Nodes,
		"duration":  time.Since(start).String(),
	})
	return res, nil
}

func (o *Optimizer) solve(ctx context.Context, p Problem) (res Result) {
	n := p.Instance.Firms()
	defer func() {
		if r := recover(); r != nil {
			o.log.Errorf("exchange solve panicked: %v", r)
			res = emptyResult(n, milp.StatusFailed)
		}
	}()

	f := buildFormulation(p, o.opts)
	sol, err := o.solver.Solve(ctx, f.model)
	if err != nil {
		o.log.Warnf("solver error: %v", err)
		return emptyResult(n, milp.StatusFailed)
	}
	if sol == nil {
		o.log.Warnf("solver returned no solution")
		return emptyResult(n, milp.StatusFailed)
	}
	if sol.Status != milp.StatusOptimal {
		o.log.Warnf("solver finished with status %s", sol.Status)
		return emptyResult(n, sol.Status)
	}
	if len(sol.ColValues) != f.model.NumVars() {
		o.log.Warnf("solver returned %d values for %d columns", len(sol.ColValues), f.model.NumVars())
		return emptyResult(n, milp.StatusFailed)
	}

	res = emptyResult(n, milp.StatusOptimal)
	res.Nodes = sol.Nodes
	f.extract(&res, sol)
	res.Costs = computeCosts(p, res)
	res.Objective = res.Costs.Total
	return res
}

func countActive(res Result, s model.Synergy) int {
	c := 0
	for _, a := range res.ActiveArcs() {
		if a.Synergy == s {
			c++
		}
	}
	return c
}

// Baseline returns the cost of the configuration with every synergy closed:
// all waste disposed of and all demand bought virgin.
func Baseline(p Problem) (CostBreakdown, error) {
	if err := p.Instance.Validate(); err != nil {
		return CostBreakdown{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := p.Costs.Validate(); err != nil {
		return CostBreakdown{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return computeCosts(p, emptyResult(p.Instance.Firms(), milp.StatusOptimal)), nil
}

// Validate checks p against the optimizer's constants without solving.
func (o *Optimizer) Validate(p Problem) error { return p.Validate(o.opts) }
