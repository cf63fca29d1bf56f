package uncertainty

import (
	"fmt"
	"sort"
)

// Class labels how reliably a link is used across scenarios.
type Class string

const (
	ClassRobust     Class = "robust"
	ClassLikely     Class = "likely"
	ClassOccasional Class = "occasional"
	ClassNever      Class = "never"
)

// Thresholds are the activation probabilities separating the classes.
type Thresholds struct {
	Robust float64 `json:"robust"`
	Likely float64 `json:"likely"`
}

// DefaultThresholds returns 0.9 for robust and 0.5 for likely.
func DefaultThresholds() Thresholds { return Thresholds{Robust: 0.9, Likely: 0.5} }

// Validate requires 0 < Likely ≤ Robust ≤ 1.
func (t Thresholds) Validate() error {
	if !(t.Likely > 0 && t.Likely <= t.Robust && t.Robust <= 1) {
		return fmt.Errorf("thresholds must satisfy 0 < likely <= robust <= 1, got likely=%v robust=%v", t.Likely, t.Robust)
	}
	return nil
}

// Classify maps an activation probability to a Class.
func (t Thresholds) Classify(prob float64) Class {
	switch {
	case prob >= t.Robust:
		return ClassRobust
	case prob >= t.Likely:
		return ClassLikely
	case prob > 0:
		return ClassOccasional
	default:
		return ClassNever
	}
}

// Classify uses DefaultThresholds.
func Classify(prob float64) Class { return DefaultThresholds().Classify(prob) }

// SortByProbability orders rows by decreasing activation probability, then
// by decreasing mean flow, then by link.
func SortByProbability(rows []RobustnessRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.ProbActive != b.ProbActive {
			return a.ProbActive > b.ProbActive
		}
		if a.MeanFlow != b.MeanFlow {
			return a.MeanFlow > b.MeanFlow
		}
		return arcKey{a.From, a.To, a.Synergy}.less(arcKey{b.From, b.To, b.Synergy})
	})
}

// FilterClass returns the rows whose probability falls in class c.
func (t Thresholds) FilterClass(rows []RobustnessRow, c Class) []RobustnessRow {
	var out []RobustnessRow
	for _, r := range rows {
		if t.Classify(r.ProbActive) == c {
			out = append(out, r)
		}
	}
	return out
}
