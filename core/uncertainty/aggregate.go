package uncertainty

import (
	"sort"

	"github.com/kilianp07/symbiosis/core/model"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type arcKey struct {
	from, to int
	synergy  model.Synergy
}

func (k arcKey) less(o arcKey) bool {
	if k.synergy != o.synergy {
		return k.synergy.Rank() < o.synergy.Rank()
	}
	if k.from != o.from {
		return k.from < o.from
	}
	return k.to < o.to
}

type arcAcc struct {
	flows []float64
	dist  []float64
}

// Aggregate folds the arc table of a batch of scenarios into one row per
// link. Flows are summed in sorted order so the result does not depend on
// the order of arcs.
func Aggregate(arcs []ArcRow, scenarios int) []RobustnessRow {
	if scenarios <= 0 || len(arcs) == 0 {
		return nil
	}
	groups := make(map[arcKey]*arcAcc)
	for _, a := range arcs {
		k := arcKey{from: a.From, to: a.To, synergy: a.Synergy}
		g, ok := groups[k]
		if !ok {
			g = &arcAcc{}
			groups[k] = g
		}
		g.flows = append(g.flows, a.Flow)
		g.dist = append(g.dist, a.Distance)
	}

	keys := make([]arcKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].less(keys[j]) })

	rows := make([]RobustnessRow, 0, len(keys))
	n := float64(scenarios)
	for _, k := range keys {
		g := groups[k]
		sort.Float64s(g.flows)
		sort.Float64s(g.dist)
		row := RobustnessRow{
			From:         k.from,
			To:           k.to,
			Synergy:      k.synergy,
			ActiveCount:  len(g.flows),
			ProbActive:   float64(len(g.flows)) / n,
			MeanFlow:     floats.Sum(g.flows) / n,
			MeanDistance: stat.Mean(g.dist, nil),
		}
		row.P10 = quantile(0.1, g.flows)
		row.P50 = quantile(0.5, g.flows)
		row.P90 = quantile(0.9, g.flows)
		rows = append(rows, row)
	}
	return rows
}

// quantile expects sorted input and returns nil for an empty sample.
func quantile(p float64, sorted []float64) *float64 {
	if len(sorted) == 0 {
		return nil
	}
	v := stat.Quantile(p, stat.LinInterp, sorted, nil)
	return &v
}
