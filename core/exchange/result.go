package exchange

import (
	"sort"

	"github.com/kilianp07/symbiosis/core/milp"
	"github.com/kilianp07/symbiosis/core/model"
	"gonum.org/v1/gonum/mat"
)

// activeThreshold separates open from closed links when reading binaries.
const activeThreshold = 0.5

// ComponentCost is one line of the cost breakdown.
type ComponentCost struct {
	// BySynergy is keyed by model.Synergy.Key().
	BySynergy map[string]float64 `json:"by_synergy"`
	Total     float64            `json:"total"`
}

func (c *ComponentCost) add(s model.Synergy, v float64) {
	if c.BySynergy == nil {
		c.BySynergy = make(map[string]float64)
	}
	c.BySynergy[s.Key()] += v
	c.Total += v
}

// CostBreakdown splits the objective into its five components.
type CostBreakdown struct {
	Disposal   ComponentCost `json:"disposal"`
	Virgin     ComponentCost `json:"virgin"`
	Recovery   ComponentCost `json:"recovery"`
	Activation ComponentCost `json:"activation"`
	Transport  ComponentCost `json:"transport"`
	Total      float64       `json:"total"`
}

// Map flattens the breakdown into "<component>_<synergy>" and
// "<component>_total" keys plus "total".
func (b CostBreakdown) Map() map[string]float64 {
	out := map[string]float64{"total": b.Total}
	for name, c := range b.components() {
		for k, v := range c.BySynergy {
			out[name+"_"+k] = v
		}
		out[name+"_total"] = c.Total
	}
	return out
}

func (b CostBreakdown) components() map[string]ComponentCost {
	return map[string]ComponentCost{
		"disposal":   b.Disposal,
		"virgin":     b.Virgin,
		"recovery":   b.Recovery,
		"activation": b.Activation,
		"transport":  b.Transport,
	}
}

// Arc is one activated link of a solution.
type Arc struct {
	Synergy model.Synergy
	From    int
	To      int
	Flow    float64
}

// Result is the output of Optimizer.Solve. Flows and Activations hold one
// n×n matrix per supported synergy; disabled synergies carry zero matrices.
type Result struct {
	Status      milp.Status
	Flows       map[model.Synergy]*mat.Dense
	Activations map[model.Synergy]*mat.Dense
	// Objective is the total cost evaluated on the reported flows. It is 0
	// when Status is not optimal.
	Objective float64
	Costs     CostBreakdown
	// Nodes is the branch-and-bound node count reported by the solver.
	Nodes int
}

func emptyResult(n int, status milp.Status) Result {
	res := Result{
		Status:      status,
		Flows:       make(map[model.Synergy]*mat.Dense, len(model.Supported)),
		Activations: make(map[model.Synergy]*mat.Dense, len(model.Supported)),
	}
	if n == 0 {
		return res
	}
	for _, s := range model.Supported {
		res.Flows[s] = mat.NewDense(n, n, nil)
		res.Activations[s] = mat.NewDense(n, n, nil)
	}
	return res
}

// IsOptimal reports whether the flows come from a proven optimum.
func (r Result) IsOptimal() bool { return r.Status == milp.StatusOptimal }

// Flow returns q[s][i,j], or 0 when absent.
func (r Result) Flow(s model.Synergy, i, j int) float64 {
	m, ok := r.Flows[s]
	if !ok || m == nil {
		return 0
	}
	return m.At(i, j)
}

// Active reports whether link i→j of s is open.
func (r Result) Active(s model.Synergy, i, j int) bool {
	m, ok := r.Activations[s]
	if !ok || m == nil {
		return false
	}
	return m.At(i, j) > activeThreshold
}

// ActiveArcs lists the open links ordered by synergy, then source, then sink.
func (r Result) ActiveArcs() []Arc {
	var arcs []Arc
	for _, s := range model.Supported {
		act, ok := r.Activations[s]
		if !ok || act == nil {
			continue
		}
		n, _ := act.Dims()
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				if act.At(i, j) > activeThreshold {
					arcs = append(arcs, Arc{Synergy: s, From: i, To: j, Flow: r.Flow(s, i, j)})
				}
			}
		}
	}
	return arcs
}

// TotalFlow sums the waste routed through s.
func (r Result) TotalFlow(s model.Synergy) float64 {
	m, ok := r.Flows[s]
	if !ok || m == nil {
		return 0
	}
	return mat.Sum(m)
}

// TopArcs returns the k largest active flows, largest first.
func (r Result) TopArcs(k int) []Arc {
	arcs := r.ActiveArcs()
	sort.SliceStable(arcs, func(i, j int) bool { return arcs[i].Flow > arcs[j].Flow })
	if k >= 0 && k < len(arcs) {
		arcs = arcs[:k]
	}
	return arcs
}

// extract reads the solution back into dense matrices. A flow on a closed
// link is reported as zero so that q > 0 always implies z = 1.
func (f *formulation) extract(res *Result, sol *milp.Solution) {
	for _, lay := range f.layouts {
		q := res.Flows[lay.synergy]
		z := res.Activations[lay.synergy]
		for _, a := range lay.arcs {
			if sol.Value(a.z) <= activeThreshold {
				continue
			}
			z.Set(a.from, a.to, 1)
			if v := sol.Value(a.q); v > 0 {
				q.Set(a.from, a.to, v)
			}
		}
	}
}

// computeCosts evaluates every cost component on the reported flows. A
// disabled synergy has zero flow so its waste is fully disposed of and its
// demand fully bought virgin.
func computeCosts(p Problem, res Result) CostBreakdown {
	var b CostBreakdown
	inst := p.Instance
	for _, s := range model.Supported {
		var qsum, zsum, tkm float64
		if q, ok := res.Flows[s]; ok && q != nil {
			n, _ := q.Dims()
			for i := 0; i < n; i++ {
				for j := 0; j < n; j++ {
					v := q.At(i, j)
					qsum += v
					tkm += v * inst.Distance.At(i, j)
				}
			}
			zsum = mat.Sum(res.Activations[s])
		}
		r := 0.0
		if p.Synergies.IsEnabled(s) {
			r = p.Synergies.RecoveryRate(s)
		}
		b.Disposal.add(s, p.Costs.DisposalCost(s.Waste)*(inst.TotalSupply(s.Waste)-qsum))
		b.Virgin.add(s, p.Costs.VirginCost(s.Input)*(inst.TotalDemand(s.Input)-r*qsum))
		b.Recovery.add(s, p.Costs.RecoveryCost(s.Waste)*qsum)
		b.Activation.add(s, p.Costs.FixedCost(s)*zsum)
		b.Transport.add(s, p.Costs.TransportCost(s.Waste)*tkm)
	}
	b.Total = b.Disposal.Total + b.Virgin.Total + b.Recovery.Total + b.Activation.Total + b.Transport.Total
	return b
}
