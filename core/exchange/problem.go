package exchange

import (
	"errors"
	"fmt"
	"math"

	"github.com/kilianp07/symbiosis/core/model"
)

// ErrInvalidConfig wraps every configuration problem detected before a solve.
var ErrInvalidConfig = errors.New("invalid configuration")

const (
	// DefaultBigM is the Big-M coupling constant q ≤ M·z.
	DefaultBigM = 1e6
	// DefaultEpsilon is the minimum flow on an activated link, q ≥ ε·z.
	DefaultEpsilon = 1e-6
)

// Options holds the numerical constants of the formulation.
type Options struct {
	// BigM must exceed any feasible flow. It is clamped per arc to the
	// tightest bound implied by supply, demand and substitution limits.
	BigM float64 `json:"big_m"`
	// Epsilon is the smallest flow an activated link may carry.
	Epsilon float64 `json:"epsilon"`
	// AllowNoSynergy accepts configurations without enabled synergies and
	// returns the all-disposal, all-virgin baseline instead of an error.
	AllowNoSynergy bool `json:"allow_no_synergy"`
}

// DefaultOptions returns the reference constants.
func DefaultOptions() Options {
	return Options{BigM: DefaultBigM, Epsilon: DefaultEpsilon}
}

// SetDefaults fills zero values.
func (o *Options) SetDefaults() {
	if o.BigM == 0 {
		o.BigM = DefaultBigM
	}
	if o.Epsilon == 0 {
		o.Epsilon = DefaultEpsilon
	}
}

// Validate checks the constants are usable.
func (o Options) Validate() error {
	if !(o.BigM > 0) || math.IsInf(o.BigM, 0) {
		return fmt.Errorf("%w: big_m must be a finite positive number, got %v", ErrInvalidConfig, o.BigM)
	}
	if !(o.Epsilon > 0 && o.Epsilon < o.BigM) {
		return fmt.Errorf("%w: epsilon must be in (0, big_m)", ErrInvalidConfig)
	}
	return nil
}

// Problem is the full input of one optimization call.
type Problem struct {
	Instance  model.Instance
	Costs     model.CostParams
	Synergies model.SynergyConfig
}

// Validate checks the instance, cost table and synergy configuration. Every
// failure wraps ErrInvalidConfig.
func (p Problem) Validate(opts Options) error {
	if err := opts.Validate(); err != nil {
		return err
	}
	if err := p.Instance.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := p.Costs.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := p.Synergies.Validate(opts.AllowNoSynergy); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	for _, s := range p.Synergies.EnabledList() {
		if !p.Instance.Covers(s) {
			return fmt.Errorf("%w: synergy %s enabled but the instance has no %s supply or %s demand column",
				ErrInvalidConfig, s, s.Waste, s.Input)
		}
	}
	return nil
}
