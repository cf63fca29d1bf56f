package milp

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

const (
	defaultNodeLimit  = 50000
	defaultIntTol     = 1e-9
	defaultSimplexTol = 1e-9
	defaultGap        = 1e-9
	feasTol           = 1e-7
	presolvePasses    = 8
)

// DefaultTimeLimit bounds one solve when no limit is configured.
const DefaultTimeLimit = time.Minute

// simplex points to the LP routine used for relaxations. It can be
// overridden in tests to simulate solver failures.
var simplex = lp.Simplex

// BranchAndBound is the default Solver. Binary columns are branched on
// depth first, most fractional first; every node relaxation is solved with
// the gonum simplex on a standard-form matrix.
type BranchAndBound struct {
	// NodeLimit caps explored nodes. Zero selects the default.
	NodeLimit int
	// TimeLimit caps wall time per solve. Zero means no limit.
	TimeLimit time.Duration
	// IntTol is the distance from 0/1 under which a binary counts as integral.
	IntTol float64
	// Tol is passed to the simplex as its zero tolerance.
	Tol float64
	// Gap is the relative objective gap used for pruning.
	Gap float64
}

// NewBranchAndBound returns a solver with default limits.
func NewBranchAndBound() *BranchAndBound {
	return &BranchAndBound{
		NodeLimit: defaultNodeLimit,
		TimeLimit: DefaultTimeLimit,
		IntTol:    defaultIntTol,
		Tol:       defaultSimplexTol,
		Gap:       defaultGap,
	}
}

type bbNode struct {
	lower []float64
	upper []float64
}

func (n bbNode) clone() bbNode {
	return bbNode{lower: append([]float64(nil), n.lower...), upper: append([]float64(nil), n.upper...)}
}

type sparseRow struct {
	cols []int
	vals []float64
}

// Solve implements Solver. A node or time limit hit before the tree is
// exhausted yields StatusNotSolved, with the incumbent attached when one
// was found.
//
//gocyclo:ignore
func (b *BranchAndBound) Solve(ctx context.Context, m *Model) (*Solution, error) {
	if err := m.Validate(); err != nil {
		return &Solution{Status: StatusFailed}, err
	}
	cfg := b.withDefaults()
	n := m.NumVars()
	if n == 0 {
		for i := range m.RowLower {
			if m.RowLower[i] > feasTol || m.RowUpper[i] < -feasTol {
				return &Solution{Status: StatusInfeasible}, nil
			}
		}
		return &Solution{Status: StatusOptimal, Objective: m.Offset}, nil
	}

	rows := compileRows(m)
	start := time.Now()
	stack := []bbNode{{
		lower: append([]float64(nil), m.ColLower...),
		upper: append([]float64(nil), m.ColUpper...),
	}}
	var best []float64
	bestObj := math.Inf(1)
	nodes := 0
	limited := false

	for len(stack) > 0 {
		if ctx.Err() != nil || nodes >= cfg.NodeLimit || (cfg.TimeLimit > 0 && time.Since(start) > cfg.TimeLimit) {
			limited = true
			break
		}
		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nodes++

		x, obj, st, err := cfg.relax(m, rows, nd.lower, nd.upper)
		if err != nil {
			return &Solution{Status: StatusFailed, Nodes: nodes}, err
		}
		switch st {
		case StatusInfeasible:
			continue
		case StatusUnbounded:
			return &Solution{Status: StatusUnbounded, Nodes: nodes}, nil
		}
		if cfg.prune(obj, bestObj) {
			continue
		}
		j := mostFractional(m, x, cfg.IntTol)
		if j < 0 {
			best, bestObj = x, obj
			continue
		}
		if best == nil && nodes == 1 {
			if hx, hobj, ok := cfg.roundUp(m, rows, nd, x); ok {
				best, bestObj = hx, hobj
			}
		}
		down := nd.clone()
		down.upper[j] = 0
		up := nd.clone()
		up.lower[j] = 1
		// the child nearest to the relaxed value is popped first
		if x[j] >= 0.5 {
			stack = append(stack, down, up)
		} else {
			stack = append(stack, up, down)
		}
	}

	if best == nil {
		if limited {
			return &Solution{Status: StatusNotSolved, Nodes: nodes}, nil
		}
		return &Solution{Status: StatusInfeasible, Nodes: nodes}, nil
	}
	snap(m, best)
	sol := &Solution{Status: StatusOptimal, ColValues: best, Objective: m.Objective(best), Nodes: nodes}
	if limited {
		sol.Status = StatusNotSolved
	}
	return sol, nil
}

func (b *BranchAndBound) withDefaults() BranchAndBound {
	cfg := BranchAndBound{}
	if b != nil {
		cfg = *b
	}
	if cfg.NodeLimit <= 0 {
		cfg.NodeLimit = defaultNodeLimit
	}
	if cfg.IntTol <= 0 {
		cfg.IntTol = defaultIntTol
	}
	if cfg.Tol <= 0 {
		cfg.Tol = defaultSimplexTol
	}
	if cfg.Gap < 0 {
		cfg.Gap = defaultGap
	}
	return cfg
}

func (b BranchAndBound) prune(obj, incumbent float64) bool {
	if math.IsInf(incumbent, 1) {
		return false
	}
	return obj >= incumbent-b.Gap*math.Max(1, math.Abs(incumbent))
}

// roundUp fixes every binary that is positive in the root relaxation to one
// and the rest to zero, then solves the remaining LP. A feasible result is a
// first incumbent for pruning.
func (b BranchAndBound) roundUp(m *Model, rows []sparseRow, root bbNode, x []float64) ([]float64, float64, bool) {
	nd := root.clone()
	for j, t := range m.VarTypes {
		if t != Binary {
			continue
		}
		if x[j] > b.IntTol && nd.upper[j] >= 1 {
			nd.lower[j] = 1
		} else if nd.lower[j] <= 0 {
			nd.upper[j] = 0
		} else {
			return nil, 0, false
		}
	}
	hx, obj, st, err := b.relax(m, rows, nd.lower, nd.upper)
	if err != nil || st != StatusOptimal || mostFractional(m, hx, b.IntTol) >= 0 {
		return nil, 0, false
	}
	return hx, obj, true
}

// compileRows groups the sparse matrix by row.
func compileRows(m *Model) []sparseRow {
	rows := make([]sparseRow, m.NumConstraints())
	for _, nz := range m.ConstMatrix {
		r := &rows[nz.Row]
		r.cols = append(r.cols, nz.Col)
		r.vals = append(r.vals, nz.Val)
	}
	return rows
}

func freeRow(m *Model, i int) bool {
	return math.IsInf(m.RowLower[i], -1) && math.IsInf(m.RowUpper[i], 1)
}

func tol(v float64) float64 { return feasTol * math.Max(1, math.Abs(v)) }

// tightenBounds turns every bounded row with a single open column into a
// bound on that column, repeating while bounds move. It reports false when
// the bounds become inconsistent.
//
//gocyclo:ignore
func tightenBounds(m *Model, rows []sparseRow, lo, up []float64) bool {
	for pass := 0; pass < presolvePasses; pass++ {
		changed := false
		for i, r := range rows {
			if freeRow(m, i) {
				continue
			}
			rlo, rhi := m.RowLower[i], m.RowUpper[i]
			open, nOpen := -1, 0
			var a, fixed float64
			for k, c := range r.cols {
				if up[c]-lo[c] > 0 {
					nOpen++
					open, a = c, r.vals[k]
					continue
				}
				fixed += r.vals[k] * lo[c]
			}
			switch {
			case nOpen == 0:
				if fixed > rhi+tol(rhi) || fixed < rlo-tol(rlo) {
					return false
				}
			case nOpen == 1 && a != 0:
				l, u := (rlo-fixed)/a, (rhi-fixed)/a
				if a < 0 {
					l, u = u, l
				}
				if l > lo[open]+1e-12*math.Max(1, math.Abs(l)) {
					lo[open] = l
					changed = true
				}
				if u < up[open]-1e-12*math.Max(1, math.Abs(u)) {
					up[open] = u
					changed = true
				}
				if lo[open] > up[open] {
					if lo[open] > up[open]+tol(up[open]) {
						return false
					}
					lo[open] = up[open]
				}
			}
		}
		if !changed {
			break
		}
	}
	return true
}

type leRow struct {
	idx  []int
	vals []float64
	rhs  float64
}

// relax solves the LP relaxation of m restricted to [lower, upper]. Bound
// rows of columns with a non-negative cost are first left out and only added
// when the relaxed point cannot be clamped back into its bounds.
func (b BranchAndBound) relax(m *Model, rows []sparseRow, lower, upper []float64) ([]float64, float64, Status, error) {
	x, obj, st, retry, err := b.solveLP(m, rows, lower, upper, true)
	if retry {
		x, obj, st, _, err = b.solveLP(m, rows, lower, upper, false)
	}
	return x, obj, st, err
}

// solveLP presolves singleton rows into column bounds, then hands the rows
// linking two or more open columns to the simplex. Columns are shifted by
// their lower bound so the simplex sees y = x - lower ≥ 0.
//
//gocyclo:ignore
func (b BranchAndBound) solveLP(m *Model, rows []sparseRow, lower, upper []float64, lazy bool) (x []float64, obj float64, st Status, retry bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("milp: simplex panic: %v", r)
		}
	}()

	lo := append([]float64(nil), lower...)
	up := append([]float64(nil), upper...)
	if !tightenBounds(m, rows, lo, up) {
		return nil, 0, StatusInfeasible, false, nil
	}

	n := len(lo)
	x = append([]float64(nil), lo...)
	var active []int
	inLP := make([]bool, n)
	for i, r := range rows {
		if freeRow(m, i) {
			continue
		}
		open := 0
		for _, c := range r.cols {
			if up[c]-lo[c] > 0 {
				open++
			}
		}
		if open < 2 {
			continue
		}
		active = append(active, i)
		for _, c := range r.cols {
			if up[c]-lo[c] > 0 {
				inLP[c] = true
			}
		}
	}

	freeIdx := make([]int, n)
	var free []int
	for j := 0; j < n; j++ {
		freeIdx[j] = -1
		if up[j]-lo[j] <= 0 {
			continue
		}
		if !inLP[j] {
			// isolated column: pick the cheaper end of its range
			if m.ColCosts[j] < 0 {
				if math.IsInf(up[j], 1) {
					return nil, 0, StatusUnbounded, false, nil
				}
				x[j] = up[j]
			}
			continue
		}
		freeIdx[j] = len(free)
		free = append(free, j)
	}
	nf := len(free)
	if nf == 0 {
		return x, m.Objective(x), StatusOptimal, false, nil
	}

	var cons []leRow
	for _, i := range active {
		r := rows[i]
		var fixed float64
		var idx []int
		var vals []float64
		// open columns still sit at their lower bound in x
		for k, c := range r.cols {
			fixed += r.vals[k] * x[c]
			if f := freeIdx[c]; f >= 0 {
				idx = append(idx, f)
				vals = append(vals, r.vals[k])
			}
		}
		if hi := m.RowUpper[i]; !math.IsInf(hi, 1) {
			cons = append(cons, leRow{idx: idx, vals: vals, rhs: hi - fixed})
		}
		if lw := m.RowLower[i]; !math.IsInf(lw, -1) {
			neg := make([]float64, len(vals))
			for k, v := range vals {
				neg[k] = -v
			}
			cons = append(cons, leRow{idx: idx, vals: neg, rhs: fixed - lw})
		}
	}

	implied := impliedUppers(cons, nf)
	var deferred []int
	for f, j := range free {
		if math.IsInf(up[j], 1) {
			continue
		}
		span := up[j] - lo[j]
		if implied[f] <= span+1e-12*math.Max(1, span) {
			continue
		}
		if lazy && m.ColCosts[j] >= 0 {
			deferred = append(deferred, j)
			continue
		}
		cons = append(cons, leRow{idx: []int{f}, vals: []float64{1}, rhs: span})
	}

	mr := len(cons)
	a := mat.NewDense(mr, nf+mr, nil)
	rhs := make([]float64, mr)
	flipped := false
	for i, c := range cons {
		sign := 1.0
		if c.rhs < 0 {
			sign = -1
			flipped = true
		}
		for k, f := range c.idx {
			a.Set(i, f, a.At(i, f)+sign*c.vals[k])
		}
		a.Set(i, nf+i, sign)
		rhs[i] = sign * c.rhs
	}
	cost := make([]float64, nf+mr)
	for f, j := range free {
		cost[f] = m.ColCosts[j]
	}

	// the slack columns are a feasible starting basis unless a row was negated
	var basis []int
	if !flipped {
		basis = make([]int, mr)
		for i := range basis {
			basis[i] = nf + i
		}
	}
	_, y, serr := simplex(cost, a, rhs, b.Tol, basis)
	switch {
	case errors.Is(serr, lp.ErrInfeasible):
		return nil, 0, StatusInfeasible, false, nil
	case errors.Is(serr, lp.ErrUnbounded):
		if len(deferred) > 0 {
			return nil, 0, StatusNotSolved, true, nil
		}
		return nil, 0, StatusUnbounded, false, nil
	case serr != nil:
		return nil, 0, StatusFailed, false, fmt.Errorf("milp: relaxation: %w", serr)
	}
	for f, j := range free {
		x[j] = math.Min(up[j], lo[j]+math.Max(0, y[f]))
	}
	// lowering a column of non-negative cost never raises the objective, so
	// a clamped point that still satisfies every row remains optimal
	clamped := false
	for _, j := range deferred {
		if lo[j]+math.Max(0, y[freeIdx[j]]) > up[j]+tol(up[j]) {
			clamped = true
			break
		}
	}
	if clamped && !rowsHold(m, rows, active, x) {
		return nil, 0, StatusNotSolved, true, nil
	}
	return x, m.Objective(x), StatusOptimal, false, nil
}

// impliedUppers derives y_f ≤ rhs/a from every ≤ row whose coefficients are
// all non-negative. Columns without such a row get +∞.
func impliedUppers(cons []leRow, nf int) []float64 {
	out := make([]float64, nf)
	for f := range out {
		out[f] = math.Inf(1)
	}
	for _, c := range cons {
		if c.rhs < 0 {
			continue
		}
		nonneg := true
		for _, v := range c.vals {
			if v < 0 {
				nonneg = false
				break
			}
		}
		if !nonneg {
			continue
		}
		for k, f := range c.idx {
			if v := c.vals[k]; v > 0 {
				out[f] = math.Min(out[f], c.rhs/v)
			}
		}
	}
	return out
}

func rowsHold(m *Model, rows []sparseRow, active []int, x []float64) bool {
	for _, i := range active {
		var act float64
		for k, c := range rows[i].cols {
			act += rows[i].vals[k] * x[c]
		}
		if act > m.RowUpper[i]+tol(m.RowUpper[i]) || act < m.RowLower[i]-tol(m.RowLower[i]) {
			return false
		}
	}
	return true
}

func mostFractional(m *Model, x []float64, tol float64) int {
	best := -1
	bestDist := tol
	for j, t := range m.VarTypes {
		if t != Binary {
			continue
		}
		f := x[j] - math.Floor(x[j])
		d := math.Min(f, 1-f)
		if d > bestDist {
			best, bestDist = j, d
		}
	}
	return best
}

// snap rounds binaries and clamps every column into its model bounds.
func snap(m *Model, x []float64) {
	for j := range x {
		if m.VarTypes[j] == Binary {
			x[j] = math.Round(x[j])
		}
		x[j] = math.Max(m.ColLower[j], math.Min(m.ColUpper[j], x[j]))
	}
}
