package uncertainty

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func TestScenarioSource_Deterministic(t *testing.T) {
	a := rand.New(scenarioSource(42, 7))
	b := rand.New(scenarioSource(42, 7))
	for i := 0; i < 5; i++ {
		require.Equal(t, a.Uint64(), b.Uint64())
	}
	assert.NotEqual(t, rand.New(scenarioSource(42, 7)).Uint64(), rand.New(scenarioSource(43, 7)).Uint64())
}

func TestScenarioSource_NeighboursUncorrelated(t *testing.T) {
	const n = 4000
	seen := make(map[uint64]bool, n)
	first := make([]float64, n)
	for s := 0; s < n; s++ {
		hi, _ := streamSeeds(1, s)
		if seen[hi] {
			t.Fatalf("scenario %d reuses a stream", s)
		}
		seen[hi] = true
		if s > 0 {
			prev, _ := streamSeeds(1, s-1)
			if prev>>32 == hi>>32 {
				t.Fatalf("scenarios %d and %d share the high state bits", s-1, s)
			}
		}
		first[s] = rand.New(scenarioSource(1, s)).Float64()
	}
	corr := stat.Correlation(first[:n-1], first[1:], nil)
	assert.Less(t, math.Abs(corr), 0.1, "lag-1 correlation of first draws")
	assert.InDelta(t, 0.5, stat.Mean(first, nil), 0.03)
}
