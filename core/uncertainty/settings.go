package uncertainty

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/kilianp07/symbiosis/core/exchange"
)

// Distribution selects how perturbation factors are drawn.
type Distribution string

const (
	// Uniform draws factors from U(1−v, 1+v).
	Uniform Distribution = "uniform"
	// Normal draws factors from N(1, v), clamped to minNormalFactor.
	Normal Distribution = "normal"
)

// ParseDistribution maps a case-insensitive name to a Distribution.
func ParseDistribution(s string) (Distribution, error) {
	switch Distribution(strings.ToLower(strings.TrimSpace(s))) {
	case Uniform, "":
		return Uniform, nil
	case Normal, "gaussian":
		return Normal, nil
	default:
		return "", fmt.Errorf("%w: unknown distribution %q", exchange.ErrInvalidConfig, s)
	}
}

const (
	DefaultScenarios            = 100
	DefaultVariationPct float64 = 10
	DefaultMaxScenarios         = 100000
)

// Settings controls one scenario batch.
type Settings struct {
	Scenarios    int          `json:"scenarios"`
	VariationPct float64      `json:"variation_pct"`
	Distribution Distribution `json:"distribution"`
	// Seed is combined with the scenario index to derive each scenario's
	// random stream.
	Seed uint64 `json:"seed"`
	// Workers bounds concurrent solves. Zero selects GOMAXPROCS.
	Workers int `json:"workers"`
	// Timeout bounds the whole batch. Zero means no limit.
	Timeout time.Duration `json:"timeout"`
	// MaxScenarios caps Scenarios. Zero selects DefaultMaxScenarios.
	MaxScenarios int `json:"max_scenarios"`
	// KeepSolutions retains every scenario's perturbed data and full result.
	KeepSolutions bool `json:"keep_solutions"`
}

// DefaultSettings returns the reference batch: 100 scenarios, ±10 %, uniform.
func DefaultSettings() Settings {
	s := Settings{Scenarios: DefaultScenarios, VariationPct: DefaultVariationPct, Distribution: Uniform}
	s.SetDefaults()
	return s
}

// SetDefaults fills zero values other than Scenarios and VariationPct.
func (s *Settings) SetDefaults() {
	if s.Distribution == "" {
		s.Distribution = Uniform
	}
	if s.Workers <= 0 {
		s.Workers = runtime.GOMAXPROCS(0)
	}
	if s.MaxScenarios <= 0 {
		s.MaxScenarios = DefaultMaxScenarios
	}
}

// Validate checks the settings. Every failure wraps exchange.ErrInvalidConfig.
func (s Settings) Validate() error {
	if s.Scenarios < 1 {
		return fmt.Errorf("%w: scenarios must be at least 1, got %d", exchange.ErrInvalidConfig, s.Scenarios)
	}
	if s.MaxScenarios > 0 && s.Scenarios > s.MaxScenarios {
		return fmt.Errorf("%w: %d scenarios exceed the cap of %d", exchange.ErrInvalidConfig, s.Scenarios, s.MaxScenarios)
	}
	if !(s.VariationPct >= 0 && s.VariationPct <= 100) {
		return fmt.Errorf("%w: variation_pct must be in [0,100], got %v", exchange.ErrInvalidConfig, s.VariationPct)
	}
	if _, err := ParseDistribution(string(s.Distribution)); err != nil {
		return err
	}
	if s.Timeout < 0 {
		return fmt.Errorf("%w: timeout must not be negative", exchange.ErrInvalidConfig)
	}
	return nil
}
