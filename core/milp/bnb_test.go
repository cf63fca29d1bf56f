package milp

import (
	"context"
	"errors"
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestBranchAndBound_BinaryPacking(t *testing.T) {
	m := &Model{}
	x := m.AddBinary("x", -1)
	y := m.AddBinary("y", -1)
	m.AddLeRow([]int{x, y}, []float64{1, 1}, 1.5)

	sol, err := NewBranchAndBound().Solve(context.Background(), m)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if sol.Status != StatusOptimal {
		t.Fatalf("expected optimal got %s", sol.Status)
	}
	if math.Abs(sol.Objective+1) > 1e-9 {
		t.Fatalf("expected objective -1 got %v", sol.Objective)
	}
	if sol.Value(x)+sol.Value(y) != 1 {
		t.Fatalf("expected exactly one selected, got %v", sol.ColValues)
	}
}

func TestBranchAndBound_FixedCharge(t *testing.T) {
	m := &Model{Offset: 100}
	q := m.AddColumn("q", -5, 0, 3, Continuous)
	z := m.AddBinary("z", 6)
	m.AddLeRow([]int{q, z}, []float64{1, -4}, 0)
	m.AddGeRow([]int{q, z}, []float64{1, -1e-6}, 0)

	sol, err := NewBranchAndBound().Solve(context.Background(), m)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if !sol.IsOptimal() {
		t.Fatalf("expected optimal got %s", sol.Status)
	}
	if math.Abs(sol.Objective-91) > 1e-6 {
		t.Fatalf("expected objective 91 got %v", sol.Objective)
	}
	if sol.Value(z) != 1 || math.Abs(sol.Value(q)-3) > 1e-6 {
		t.Fatalf("unexpected assignment %v", sol.ColValues)
	}
}

func TestBranchAndBound_FixedChargeNotWorthIt(t *testing.T) {
	m := &Model{}
	q := m.AddColumn("q", -1, 0, 3, Continuous)
	z := m.AddBinary("z", 10)
	m.AddLeRow([]int{q, z}, []float64{1, -3}, 0)

	sol, err := NewBranchAndBound().Solve(context.Background(), m)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if sol.Value(z) != 0 || sol.Value(q) != 0 {
		t.Fatalf("expected closed link, got %v", sol.ColValues)
	}
	if sol.Objective != 0 {
		t.Fatalf("expected objective 0 got %v", sol.Objective)
	}
}

func TestBranchAndBound_IntegerInfeasible(t *testing.T) {
	m := &Model{}
	x := m.AddBinary("x", 1)
	m.AddGeRow([]int{x}, []float64{1}, 0.3)
	m.AddLeRow([]int{x}, []float64{1}, 0.7)

	sol, err := NewBranchAndBound().Solve(context.Background(), m)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if sol.Status != StatusInfeasible {
		t.Fatalf("expected infeasible got %s", sol.Status)
	}
}

func TestBranchAndBound_NodeLimit(t *testing.T) {
	m := &Model{}
	x := m.AddBinary("x", -1)
	y := m.AddBinary("y", -1)
	m.AddLeRow([]int{x, y}, []float64{1, 1}, 1.5)

	sol, err := (&BranchAndBound{NodeLimit: 1}).Solve(context.Background(), m)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if sol.Status != StatusNotSolved {
		t.Fatalf("expected not-solved got %s", sol.Status)
	}
}

func TestBranchAndBound_CancelledContext(t *testing.T) {
	m := &Model{}
	m.AddBinary("x", -1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sol, err := NewBranchAndBound().Solve(ctx, m)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if sol.Status != StatusNotSolved {
		t.Fatalf("expected not-solved got %s", sol.Status)
	}
}

func TestBranchAndBound_SimplexError(t *testing.T) {
	old := simplex
	simplex = func(_ []float64, _ mat.Matrix, _ []float64, _ float64, _ []int) (float64, []float64, error) {
		return 0, nil, errors.New("boom")
	}
	defer func() { simplex = old }()

	m := &Model{}
	x := m.AddColumn("x", 1, 0, 10, Continuous)
	y := m.AddColumn("y", 1, 0, 10, Continuous)
	m.AddGeRow([]int{x, y}, []float64{1, 1}, 1)
	sol, err := NewBranchAndBound().Solve(context.Background(), m)
	if err == nil {
		t.Fatalf("expected error")
	}
	if sol.Status != StatusFailed {
		t.Fatalf("expected failed got %s", sol.Status)
	}
}

func TestBranchAndBound_EmptyModel(t *testing.T) {
	sol, err := NewBranchAndBound().Solve(context.Background(), &Model{Offset: 42})
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if !sol.IsOptimal() || sol.Objective != 42 {
		t.Fatalf("unexpected solution %+v", sol)
	}
}

func TestTightenBounds_SingletonRows(t *testing.T) {
	m := &Model{}
	q := m.AddColumn("q", -1, 0, Inf(), Continuous)
	z := m.AddBinary("z", 1)
	m.AddLeRow([]int{q, z}, []float64{1, -4}, 0)
	m.AddGeRow([]int{q, z}, []float64{1, -0.5}, 0)
	rows := compileRows(m)

	lo, up := []float64{0, 1}, []float64{Inf(), 1}
	if !tightenBounds(m, rows, lo, up) {
		t.Fatalf("unexpected infeasibility")
	}
	if lo[q] != 0.5 || up[q] != 4 {
		t.Fatalf("expected q in [0.5, 4], got [%v, %v]", lo[q], up[q])
	}

	lo, up = []float64{0, 0}, []float64{Inf(), 0}
	if !tightenBounds(m, rows, lo, up) || up[q] != 0 {
		t.Fatalf("closed link must fix q at zero, got [%v, %v]", lo[q], up[q])
	}

	m.AddLeRow([]int{q}, []float64{1}, 0.2)
	lo, up = []float64{0, 1}, []float64{Inf(), 1}
	if tightenBounds(m, compileRows(m), lo, up) {
		t.Fatalf("expected conflicting bounds to be infeasible")
	}
}

func TestBranchAndBound_FreeBinaryStaysWithinBounds(t *testing.T) {
	m := &Model{}
	q := m.AddColumn("q", -1, 0, 3, Continuous)
	z := m.AddBinary("z", 0)
	m.AddLeRow([]int{q, z}, []float64{1, -5}, 0)
	m.AddGeRow([]int{q, z}, []float64{1, -1e-6}, 0)

	sol, err := NewBranchAndBound().Solve(context.Background(), m)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if !sol.IsOptimal() || math.Abs(sol.Objective+3) > 1e-9 {
		t.Fatalf("expected objective -3, got %s %v", sol.Status, sol.Objective)
	}
	if sol.Value(z) != 1 {
		t.Fatalf("expected z = 1, got %v", sol.Value(z))
	}
}

func TestBranchAndBound_DeferredBoundRestored(t *testing.T) {
	m := &Model{}
	q := m.AddColumn("q", -1, 0, Inf(), Continuous)
	z := m.AddBinary("z", 0.1)
	m.AddLeRow([]int{q, z}, []float64{1, -2}, 0)
	m.AddLeRow([]int{q}, []float64{1}, 10)

	sol, err := NewBranchAndBound().Solve(context.Background(), m)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if !sol.IsOptimal() {
		t.Fatalf("expected optimal got %s", sol.Status)
	}
	if math.Abs(sol.Objective+1.9) > 1e-9 || math.Abs(sol.Value(q)-2) > 1e-9 || sol.Value(z) != 1 {
		t.Fatalf("expected q=2 z=1 objective -1.9, got %v (%v)", sol.ColValues, sol.Objective)
	}
}

func TestBranchAndBound_RoundUpIncumbent(t *testing.T) {
	m := &Model{Offset: 100}
	q := m.AddColumn("q", -5, 0, 3, Continuous)
	z := m.AddBinary("z", 6)
	m.AddLeRow([]int{q, z}, []float64{1, -4}, 0)
	m.AddGeRow([]int{q, z}, []float64{1, -1e-6}, 0)

	cfg := NewBranchAndBound().withDefaults()
	rows := compileRows(m)
	root := bbNode{lower: append([]float64(nil), m.ColLower...), upper: append([]float64(nil), m.ColUpper...)}
	x, obj, st, err := cfg.relax(m, rows, root.lower, root.upper)
	if err != nil || st != StatusOptimal {
		t.Fatalf("root relaxation: %s %v", st, err)
	}
	if math.Abs(x[z]-0.75) > 1e-9 || math.Abs(obj-89.5) > 1e-9 {
		t.Fatalf("unexpected root relaxation %v (%v)", x, obj)
	}
	hx, hobj, ok := cfg.roundUp(m, rows, root, x)
	if !ok {
		t.Fatalf("expected a rounded incumbent")
	}
	if hx[z] != 1 || math.Abs(hx[q]-3) > 1e-9 || math.Abs(hobj-91) > 1e-9 {
		t.Fatalf("unexpected incumbent %v (%v)", hx, hobj)
	}
}

func TestNewBranchAndBound_DefaultTimeLimit(t *testing.T) {
	if NewBranchAndBound().TimeLimit != DefaultTimeLimit || DefaultTimeLimit <= 0 {
		t.Fatalf("expected a finite default time limit")
	}
}

func TestModelValidate(t *testing.T) {
	m := &Model{}
	m.AddColumn("x", 1, 2, 1, Continuous)
	if err := m.Validate(); err == nil {
		t.Fatalf("expected error for inverted bounds")
	}
	m = &Model{}
	m.AddColumn("b", 1, 0, 2, Binary)
	if err := m.Validate(); err == nil {
		t.Fatalf("expected error for binary upper bound")
	}
	m = &Model{}
	m.AddColumn("x", 1, 0, Inf(), Continuous)
	m.ConstMatrix = append(m.ConstMatrix, Nonzero{Row: 3, Col: 0, Val: 1})
	if err := m.Validate(); err == nil {
		t.Fatalf("expected error for out of range nonzero")
	}
}

func TestStatusRoundTrip(t *testing.T) {
	for _, s := range []Status{StatusOptimal, StatusInfeasible, StatusUnbounded, StatusNotSolved, StatusFailed} {
		if ParseStatus(s.String()) != s {
			t.Fatalf("round trip failed for %s", s)
		}
	}
}
