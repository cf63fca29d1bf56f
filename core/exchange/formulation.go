package exchange

import (
	"fmt"
	"math"

	"github.com/kilianp07/symbiosis/core/milp"
	"github.com/kilianp07/symbiosis/core/model"
)

// arcVars locates the q and z columns of one directed arc i→j.
type arcVars struct {
	from, to int
	q, z     int
}

// synergyLayout records where the variables of one enabled synergy live in
// the MILP model.
type synergyLayout struct {
	synergy model.Synergy
	wCol    int
	kCol    int
	arcs    []arcVars
}

// formulation is the MILP model together with the index maps needed to read
// flows back out of a solution.
type formulation struct {
	model   *milp.Model
	layouts []synergyLayout
}

// arcBound returns the tightest upper bound on q[i,j] for s: the Big-M
// constant, the source supply and the capped demand of the sink expressed in
// waste units.
func arcBound(bigM, supply, demand, r, delta float64) float64 {
	b := math.Min(bigM, supply)
	return math.Min(b, math.Min(1, delta)*demand/r)
}

// buildFormulation translates p into a MILP. Arcs whose bound falls below
// epsilon cannot carry an activated flow and are left out of the model, so
// both variables are implicitly zero.
//
//gocyclo:ignore
func buildFormulation(p Problem, opts Options) *formulation {
	inst := p.Instance
	n := inst.Firms()
	m := &milp.Model{Name: "industrial-symbiosis"}

	for _, s := range model.Supported {
		m.Offset += p.Costs.VirginCost(s.Input)*inst.TotalDemand(s.Input) +
			p.Costs.DisposalCost(s.Waste)*inst.TotalSupply(s.Waste)
	}

	f := &formulation{model: m}
	for _, s := range p.Synergies.EnabledList() {
		wCol, _ := inst.WasteColumn(s.Waste)
		kCol, _ := inst.InputColumn(s.Input)
		r := p.Synergies.RecoveryRate(s)
		delta := p.Synergies.SubstitutionLimit(s)
		cv := p.Costs.VirginCost(s.Input)
		cd := p.Costs.DisposalCost(s.Waste)
		cr := p.Costs.RecoveryCost(s.Waste)
		ct := p.Costs.TransportCost(s.Waste)
		fixed := p.Costs.FixedCost(s)

		lay := synergyLayout{synergy: s, wCol: wCol, kCol: kCol}
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if i == j {
					continue
				}
				bound := arcBound(opts.BigM, inst.Supply.At(i, wCol), inst.Demand.At(j, kCol), r, delta)
				if bound < opts.Epsilon {
					continue
				}
				cost := -cv*r - cd + cr + ct*inst.Distance.At(i, j)
				q := m.AddColumn(fmt.Sprintf("q[%s][%d,%d]", s.Key(), i, j), cost, 0, milp.Inf(), milp.Continuous)
				z := m.AddColumn(fmt.Sprintf("z[%s][%d,%d]", s.Key(), i, j), fixed, 0, 1, milp.Binary)
				m.AddLeRow([]int{q, z}, []float64{1, -bound}, 0)
				m.AddGeRow([]int{q, z}, []float64{1, -opts.Epsilon}, 0)
				lay.arcs = append(lay.arcs, arcVars{from: i, to: j, q: q, z: z})
			}
		}

		out := make([][]int, n)
		in := make([][]int, n)
		for _, a := range lay.arcs {
			out[a.from] = append(out[a.from], a.q)
			in[a.to] = append(in[a.to], a.q)
		}
		for i := 0; i < n; i++ {
			if len(out[i]) > 0 {
				m.AddLeRow(out[i], fill(len(out[i]), 1), inst.Supply.At(i, wCol))
			}
		}
		for j := 0; j < n; j++ {
			if len(in[j]) == 0 {
				continue
			}
			d := inst.Demand.At(j, kCol)
			m.AddLeRow(in[j], fill(len(in[j]), r), d)
			if delta < 1 {
				m.AddLeRow(in[j], fill(len(in[j]), r), delta*d)
			}
		}
		f.layouts = append(f.layouts, lay)
	}
	return f
}

func fill(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
