package uncertainty

import (
	"math"
	"math/rand/v2"

	"github.com/kilianp07/symbiosis/core/model"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// minNormalFactor keeps normally drawn factors strictly positive.
const minNormalFactor = 0.1

// scenarioSource returns the random stream of one scenario. Streams for
// different scenarios of the same seed are independent, so results do not
// depend on which worker runs which scenario. Both PCG state words are
// scrambled so neighbouring scenarios do not start from neighbouring states.
func scenarioSource(seed uint64, scenario int) rand.Source {
	hi, lo := streamSeeds(seed, scenario)
	return rand.NewPCG(hi, lo)
}

const goldenGamma = 0x9e3779b97f4a7c15

// streamSeeds maps (seed, scenario) to a PCG seed pair. hi is a bijection of
// the scenario index for a fixed seed, so distinct scenarios never share a
// stream.
func streamSeeds(seed uint64, scenario int) (hi, lo uint64) {
	hi = splitmix64(seed + uint64(scenario)*goldenGamma)
	lo = splitmix64(hi ^ seed)
	return hi, lo
}

// splitmix64 is the finalizer of the SplitMix64 generator.
func splitmix64(x uint64) uint64 {
	x += goldenGamma
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

type factorDrawer struct {
	dist  distuv.Rander
	clamp bool
}

func newFactorDrawer(d Distribution, variationPct float64, src rand.Source) factorDrawer {
	v := variationPct / 100
	if d == Normal {
		return factorDrawer{dist: distuv.Normal{Mu: 1, Sigma: v, Src: src}, clamp: true}
	}
	return factorDrawer{dist: distuv.Uniform{Min: 1 - v, Max: 1 + v, Src: src}}
}

func (f factorDrawer) draw() float64 {
	x := f.dist.Rand()
	if f.clamp {
		x = math.Max(x, minNormalFactor)
	}
	return x
}

// scale multiplies every entry of m, row-major, by a fresh factor.
func (f factorDrawer) scale(m *mat.Dense) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			out.Set(i, j, m.At(i, j)*f.draw())
		}
	}
	return out
}

// Perturb returns scenario s of the batch: supply factors are drawn first,
// then demand factors, from the stream derived from (seed, s). The distance
// matrix and labels are shared with base.
func Perturb(base model.Instance, st Settings, s int) model.Instance {
	f := newFactorDrawer(st.Distribution, st.VariationPct, scenarioSource(st.Seed, s))
	supply := f.scale(base.Supply)
	demand := f.scale(base.Demand)
	return base.WithSupplyDemand(supply, demand)
}
