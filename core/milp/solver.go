package milp

import "context"

// Status is the outcome of a solve.
type Status int

const (
	StatusNotSolved Status = iota
	StatusOptimal
	StatusInfeasible
	StatusUnbounded
	// StatusFailed marks a solve that raised an error or panicked.
	StatusFailed
)

// String returns the status label used in result tables.
func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusInfeasible:
		return "infeasible"
	case StatusUnbounded:
		return "unbounded"
	case StatusFailed:
		return "failed"
	default:
		return "not-solved"
	}
}

// ParseStatus is the inverse of String. Unknown labels map to StatusNotSolved.
func ParseStatus(s string) Status {
	switch s {
	case "optimal":
		return StatusOptimal
	case "infeasible":
		return StatusInfeasible
	case "unbounded":
		return StatusUnbounded
	case "failed":
		return StatusFailed
	default:
		return StatusNotSolved
	}
}

// Solution holds the primal values returned by a solver.
type Solution struct {
	Status    Status
	ColValues []float64
	Objective float64
	// Nodes is the number of branch-and-bound nodes explored, if known.
	Nodes int
}

// IsOptimal reports whether the solution is proven optimal.
func (s *Solution) IsOptimal() bool { return s != nil && s.Status == StatusOptimal }

// Value returns the value of column j, or 0 when out of range.
func (s *Solution) Value(j int) float64 {
	if s == nil || j < 0 || j >= len(s.ColValues) {
		return 0
	}
	return s.ColValues[j]
}

// Solver is the capability the exchange optimizer depends on. Implementations
// must not retain m after returning.
type Solver interface {
	Solve(ctx context.Context, m *Model) (*Solution, error)
}

// SolverFunc adapts a function to the Solver interface.
type SolverFunc func(ctx context.Context, m *Model) (*Solution, error)

// Solve calls f.
func (f SolverFunc) Solve(ctx context.Context, m *Model) (*Solution, error) { return f(ctx, m) }

// MarshalText encodes the status label.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText decodes a status label.
func (s *Status) UnmarshalText(b []byte) error {
	*s = ParseStatus(string(b))
	return nil
}
