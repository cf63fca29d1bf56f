package milp

import (
	"fmt"
	"math"
)

// VarType selects the domain of a column.
type VarType int

const (
	Continuous VarType = iota
	Binary
)

// Nonzero is one entry of the sparse constraint matrix.
type Nonzero struct {
	Row int
	Col int
	Val float64
}

// Model describes a minimisation problem
//
//	minimise   Offset + ColCosts·x
//	subject to RowLower ≤ A·x ≤ RowUpper
//	           ColLower ≤ x ≤ ColUpper
//
// where A is given by ConstMatrix. Columns marked Binary must take 0 or 1.
type Model struct {
	Name        string
	Offset      float64
	ColNames    []string
	ColCosts    []float64
	ColLower    []float64
	ColUpper    []float64
	VarTypes    []VarType
	RowLower    []float64
	RowUpper    []float64
	ConstMatrix []Nonzero
}

// Inf returns +∞ for unbounded row or column limits.
func Inf() float64 { return math.Inf(1) }

// AddColumn appends a variable and returns its index.
func (m *Model) AddColumn(name string, cost, lower, upper float64, typ VarType) int {
	m.ColNames = append(m.ColNames, name)
	m.ColCosts = append(m.ColCosts, cost)
	m.ColLower = append(m.ColLower, lower)
	m.ColUpper = append(m.ColUpper, upper)
	m.VarTypes = append(m.VarTypes, typ)
	return len(m.ColCosts) - 1
}

// AddBinary appends a 0/1 variable.
func (m *Model) AddBinary(name string, cost float64) int {
	return m.AddColumn(name, cost, 0, 1, Binary)
}

// AddSparseRow adds lower ≤ Σ vals[i]·x[cols[i]] ≤ upper and returns the row index.
// Zero coefficients are dropped.
func (m *Model) AddSparseRow(lower float64, cols []int, vals []float64, upper float64) int {
	row := len(m.RowLower)
	m.RowLower = append(m.RowLower, lower)
	m.RowUpper = append(m.RowUpper, upper)
	for i, c := range cols {
		if vals[i] != 0 {
			m.ConstMatrix = append(m.ConstMatrix, Nonzero{Row: row, Col: c, Val: vals[i]})
		}
	}
	return row
}

// AddLeRow adds Σ vals·x ≤ rhs.
func (m *Model) AddLeRow(cols []int, vals []float64, rhs float64) int {
	return m.AddSparseRow(math.Inf(-1), cols, vals, rhs)
}

// AddGeRow adds Σ vals·x ≥ rhs.
func (m *Model) AddGeRow(cols []int, vals []float64, rhs float64) int {
	return m.AddSparseRow(rhs, cols, vals, math.Inf(1))
}

// NumVars returns the number of columns.
func (m *Model) NumVars() int { return len(m.ColCosts) }

// NumConstraints returns the number of rows.
func (m *Model) NumConstraints() int { return len(m.RowLower) }

// Objective evaluates Offset + ColCosts·x.
func (m *Model) Objective(x []float64) float64 {
	obj := m.Offset
	for j, c := range m.ColCosts {
		if j < len(x) {
			obj += c * x[j]
		}
	}
	return obj
}

// RowActivity returns A·x for every row.
func (m *Model) RowActivity(x []float64) []float64 {
	act := make([]float64, m.NumConstraints())
	for _, nz := range m.ConstMatrix {
		act[nz.Row] += nz.Val * x[nz.Col]
	}
	return act
}

// Validate checks that all slices agree in length and that bounds are
// consistent. Column lower bounds must be finite and non-negative.
func (m *Model) Validate() error {
	n := len(m.ColCosts)
	if len(m.ColLower) != n || len(m.ColUpper) != n || len(m.VarTypes) != n {
		return fmt.Errorf("milp: inconsistent column data (%d costs, %d lower, %d upper, %d types)",
			n, len(m.ColLower), len(m.ColUpper), len(m.VarTypes))
	}
	if len(m.ColNames) != 0 && len(m.ColNames) != n {
		return fmt.Errorf("milp: %d column names for %d columns", len(m.ColNames), n)
	}
	if len(m.RowLower) != len(m.RowUpper) {
		return fmt.Errorf("milp: inconsistent row bounds (%d lower, %d upper)", len(m.RowLower), len(m.RowUpper))
	}
	for j := 0; j < n; j++ {
		lo, hi := m.ColLower[j], m.ColUpper[j]
		if lo < 0 || math.IsInf(lo, 0) || math.IsNaN(lo) {
			return fmt.Errorf("milp: column %d lower bound must be finite and non-negative, got %v", j, lo)
		}
		if hi < lo {
			return fmt.Errorf("milp: column %d has upper %v below lower %v", j, hi, lo)
		}
		if m.VarTypes[j] == Binary && hi > 1 {
			return fmt.Errorf("milp: binary column %d has upper bound %v", j, hi)
		}
		if math.IsNaN(m.ColCosts[j]) || math.IsInf(m.ColCosts[j], 0) {
			return fmt.Errorf("milp: column %d has non-finite cost", j)
		}
	}
	for i := range m.RowLower {
		if m.RowLower[i] > m.RowUpper[i] {
			return fmt.Errorf("milp: row %d has lower %v above upper %v", i, m.RowLower[i], m.RowUpper[i])
		}
	}
	rows := len(m.RowLower)
	for _, nz := range m.ConstMatrix {
		if nz.Row < 0 || nz.Row >= rows || nz.Col < 0 || nz.Col >= n {
			return fmt.Errorf("milp: nonzero (%d,%d) out of range", nz.Row, nz.Col)
		}
	}
	return nil
}
