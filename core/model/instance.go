package model

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrShapeMismatch reports matrices whose dimensions do not agree.
var ErrShapeMismatch = errors.New("shape mismatch")

// distanceSymTol is the absolute tolerance used for the symmetry check.
const distanceSymTol = 1e-6

// Instance is one realization of the network data: supply, demand and the
// precomputed distance matrix. Firms are identified by row index.
type Instance struct {
	// Names optionally labels firms for exports. len(Names) is 0 or n.
	Names []string
	// Wastes names the waste type held by each Supply column.
	Wastes []WasteType
	// Inputs names the input type held by each Demand column.
	Inputs []InputType
	// Supply is n×L: waste available per firm per period.
	Supply *mat.Dense
	// Demand is n×K: input required per firm per period.
	Demand *mat.Dense
	// Distance is n×n in km.
	Distance *mat.Dense
}

// NewInstance builds an instance using the default column orders. Rows of
// supply and demand may be shorter than the defaults; the column order is
// truncated to match.
func NewInstance(supply, demand, distance [][]float64) (Instance, error) {
	s, err := DenseFromRows(supply)
	if err != nil {
		return Instance{}, fmt.Errorf("supply: %w", err)
	}
	d, err := DenseFromRows(demand)
	if err != nil {
		return Instance{}, fmt.Errorf("demand: %w", err)
	}
	dist, err := DenseFromRows(distance)
	if err != nil {
		return Instance{}, fmt.Errorf("distance: %w", err)
	}
	_, l := s.Dims()
	_, k := d.Dims()
	if l > len(DefaultWastes) || k > len(DefaultInputs) {
		return Instance{}, fmt.Errorf("%w: too many resource columns", ErrShapeMismatch)
	}
	inst := Instance{
		Wastes:   append([]WasteType(nil), DefaultWastes[:l]...),
		Inputs:   append([]InputType(nil), DefaultInputs[:k]...),
		Supply:   s,
		Demand:   d,
		Distance: dist,
	}
	return inst, inst.Validate()
}

// DenseFromRows copies equal-length rows into a dense matrix.
func DenseFromRows(rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%w: empty matrix", ErrShapeMismatch)
	}
	c := len(rows[0])
	data := make([]float64, 0, len(rows)*c)
	for i, r := range rows {
		if len(r) != c {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", ErrShapeMismatch, i, len(r), c)
		}
		data = append(data, r...)
	}
	return mat.NewDense(len(rows), c, data), nil
}

// Firms returns the number of firms.
func (in Instance) Firms() int {
	if in.Supply == nil {
		return 0
	}
	n, _ := in.Supply.Dims()
	return n
}

// FirmName returns the label of firm i, falling back to F<i+1>.
func (in Instance) FirmName(i int) string {
	if i >= 0 && i < len(in.Names) && in.Names[i] != "" {
		return in.Names[i]
	}
	return fmt.Sprintf("F%d", i+1)
}

// WasteColumn returns the Supply column holding w.
func (in Instance) WasteColumn(w WasteType) (int, bool) {
	for c, t := range in.Wastes {
		if t == w {
			return c, true
		}
	}
	return 0, false
}

// InputColumn returns the Demand column holding k.
func (in Instance) InputColumn(k InputType) (int, bool) {
	for c, t := range in.Inputs {
		if t == k {
			return c, true
		}
	}
	return 0, false
}

// Covers reports whether both resource columns of s exist.
func (in Instance) Covers(s Synergy) bool {
	_, okW := in.WasteColumn(s.Waste)
	_, okI := in.InputColumn(s.Input)
	return okW && okI
}

// TotalSupply sums column w over all firms. Missing columns sum to zero.
func (in Instance) TotalSupply(w WasteType) float64 {
	c, ok := in.WasteColumn(w)
	if !ok {
		return 0
	}
	return mat.Sum(in.Supply.ColView(c))
}

// TotalDemand sums column k over all firms. Missing columns sum to zero.
func (in Instance) TotalDemand(k InputType) float64 {
	c, ok := in.InputColumn(k)
	if !ok {
		return 0
	}
	return mat.Sum(in.Demand.ColView(c))
}

// WithSupplyDemand returns a shallow copy carrying new supply and demand
// matrices. Distance and labels are shared.
func (in Instance) WithSupplyDemand(s, d *mat.Dense) Instance {
	out := in
	out.Supply = s
	out.Demand = d
	return out
}

// Validate checks shapes, non-negativity and the distance matrix invariants.
//
//gocyclo:ignore
func (in Instance) Validate() error {
	if in.Supply == nil || in.Demand == nil || in.Distance == nil {
		return fmt.Errorf("%w: supply, demand and distance are required", ErrShapeMismatch)
	}
	n, l := in.Supply.Dims()
	dn, k := in.Demand.Dims()
	r, c := in.Distance.Dims()
	if dn != n || r != n || c != n {
		return fmt.Errorf("%w: supply %dx%d, demand %dx%d, distance %dx%d", ErrShapeMismatch, n, l, dn, k, r, c)
	}
	if len(in.Wastes) != l {
		return fmt.Errorf("%w: %d waste labels for %d supply columns", ErrShapeMismatch, len(in.Wastes), l)
	}
	if len(in.Inputs) != k {
		return fmt.Errorf("%w: %d input labels for %d demand columns", ErrShapeMismatch, len(in.Inputs), k)
	}
	if len(in.Names) != 0 && len(in.Names) != n {
		return fmt.Errorf("%w: %d names for %d firms", ErrShapeMismatch, len(in.Names), n)
	}
	if err := checkNonNegative("supply", in.Supply); err != nil {
		return err
	}
	if err := checkNonNegative("demand", in.Demand); err != nil {
		return err
	}
	if err := checkNonNegative("distance", in.Distance); err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if in.Distance.At(i, i) != 0 {
			return fmt.Errorf("distance[%d][%d] must be zero", i, i)
		}
		for j := i + 1; j < n; j++ {
			if math.Abs(in.Distance.At(i, j)-in.Distance.At(j, i)) > distanceSymTol {
				return fmt.Errorf("distance matrix not symmetric at (%d,%d)", i, j)
			}
		}
	}
	return nil
}

func checkNonNegative(name string, m *mat.Dense) error {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.At(i, j)
			if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return fmt.Errorf("%s[%d][%d] must be a finite non-negative number, got %v", name, i, j, v)
			}
		}
	}
	return nil
}
