package config

import (
	"fmt"
	"time"

	"github.com/kilianp07/symbiosis/core/exchange"
	"github.com/kilianp07/symbiosis/core/milp"
	"github.com/kilianp07/symbiosis/core/model"
	"github.com/kilianp07/symbiosis/core/uncertainty"
)

// OptimizerConfig tunes the formulation and the branch-and-bound search.
type OptimizerConfig struct {
	BigM             float64 `json:"big_m"`
	Epsilon          float64 `json:"epsilon"`
	AllowNoSynergy   bool    `json:"allow_no_synergy"`
	NodeLimit        int     `json:"node_limit"`
	TimeLimitSeconds float64 `json:"time_limit_seconds"`
}

// SetDefaults applies the formulation defaults.
func (c *OptimizerConfig) SetDefaults() {
	if c.BigM == 0 {
		c.BigM = exchange.DefaultBigM
	}
	if c.Epsilon == 0 {
		c.Epsilon = exchange.DefaultEpsilon
	}
	if c.TimeLimitSeconds == 0 {
		c.TimeLimitSeconds = milp.DefaultTimeLimit.Seconds()
	}
}

// Validate checks the numeric settings.
func (c OptimizerConfig) Validate() error {
	if err := c.Options().Validate(); err != nil {
		return err
	}
	if c.NodeLimit < 0 || c.TimeLimitSeconds < 0 {
		return fmt.Errorf("%w: node_limit and time_limit_seconds must not be negative", exchange.ErrInvalidConfig)
	}
	return nil
}

// Options returns the formulation options.
func (c OptimizerConfig) Options() exchange.Options {
	return exchange.Options{BigM: c.BigM, Epsilon: c.Epsilon, AllowNoSynergy: c.AllowNoSynergy}
}

// Solver returns the branch-and-bound backend with the configured limits.
func (c OptimizerConfig) Solver() *milp.BranchAndBound {
	s := milp.NewBranchAndBound()
	if c.NodeLimit > 0 {
		s.NodeLimit = c.NodeLimit
	}
	if c.TimeLimitSeconds > 0 {
		s.TimeLimit = time.Duration(c.TimeLimitSeconds * float64(time.Second))
	}
	return s
}

// UncertaintyConfig configures Monte Carlo batches.
type UncertaintyConfig struct {
	Scenarios      int                    `json:"scenarios"`
	VariationPct   *float64               `json:"variation_pct"`
	Distribution   string                 `json:"distribution"`
	Seed           uint64                 `json:"seed"`
	Workers        int                    `json:"workers"`
	TimeoutSeconds float64                `json:"timeout_seconds"`
	MaxScenarios   int                    `json:"max_scenarios"`
	KeepSolutions  bool                   `json:"keep_solutions"`
	Thresholds     uncertainty.Thresholds `json:"thresholds"`
}

// SetDefaults fills unset fields. An explicit variation_pct of 0 is kept.
func (c *UncertaintyConfig) SetDefaults() {
	if c.Scenarios == 0 {
		c.Scenarios = uncertainty.DefaultScenarios
	}
	if c.VariationPct == nil {
		v := uncertainty.DefaultVariationPct
		c.VariationPct = &v
	}
	if c.Distribution == "" {
		c.Distribution = string(uncertainty.Uniform)
	}
	if c.MaxScenarios == 0 {
		c.MaxScenarios = uncertainty.DefaultMaxScenarios
	}
	if c.Thresholds == (uncertainty.Thresholds{}) {
		c.Thresholds = uncertainty.DefaultThresholds()
	}
}

// Settings converts the section into validated engine settings.
func (c UncertaintyConfig) Settings() (uncertainty.Settings, error) {
	dist, err := uncertainty.ParseDistribution(c.Distribution)
	if err != nil {
		return uncertainty.Settings{}, err
	}
	variation := uncertainty.DefaultVariationPct
	if c.VariationPct != nil {
		variation = *c.VariationPct
	}
	st := uncertainty.Settings{
		Scenarios:     c.Scenarios,
		VariationPct:  variation,
		Distribution:  dist,
		Seed:          c.Seed,
		Workers:       c.Workers,
		Timeout:       time.Duration(c.TimeoutSeconds * float64(time.Second)),
		MaxScenarios:  c.MaxScenarios,
		KeepSolutions: c.KeepSolutions,
	}
	st.SetDefaults()
	return st, st.Validate()
}

// CostsConfig overrides the reference cost table. Keys are resource names
// for disposal, virgin, recovery and transport and synergy names for fixed.
type CostsConfig struct {
	Disposal  map[string]float64 `json:"disposal"`
	Virgin    map[string]float64 `json:"virgin"`
	Recovery  map[string]float64 `json:"recovery"`
	Fixed     map[string]float64 `json:"fixed"`
	Transport map[string]float64 `json:"transport"`
}

// CostParams merges the overrides into model.DefaultCostParams.
//
//gocyclo:ignore
func (c CostsConfig) CostParams() (model.CostParams, error) {
	p := model.DefaultCostParams()
	for name, v := range c.Disposal {
		w, err := model.ParseWasteType(name)
		if err != nil {
			return p, fmt.Errorf("disposal: %w", err)
		}
		p.Disposal[w] = v
	}
	for name, v := range c.Virgin {
		k, err := model.ParseInputType(name)
		if err != nil {
			return p, fmt.Errorf("virgin: %w", err)
		}
		p.Virgin[k] = v
	}
	for name, v := range c.Recovery {
		w, err := model.ParseWasteType(name)
		if err != nil {
			return p, fmt.Errorf("recovery: %w", err)
		}
		p.Recovery[w] = v
	}
	for name, v := range c.Fixed {
		s, err := model.ParseSynergy(name)
		if err != nil {
			return p, fmt.Errorf("fixed: %w", err)
		}
		p.Fixed[s] = v
	}
	for name, v := range c.Transport {
		w, err := model.ParseWasteType(name)
		if err != nil {
			return p, fmt.Errorf("transport: %w", err)
		}
		p.Transport[w] = v
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("%w: %w", exchange.ErrInvalidConfig, err)
	}
	return p, nil
}

// SynergyConfig overrides one entry of the synergy table. Nil fields keep
// the default.
type SynergyConfig struct {
	Name              string   `json:"name"`
	Enabled           *bool    `json:"enabled"`
	RecoveryRate      *float64 `json:"recovery_rate"`
	SubstitutionLimit *float64 `json:"substitution_limit"`
}

// SynergyTable merges entries into model.DefaultSynergyConfig.
func SynergyTable(entries []SynergyConfig) (model.SynergyConfig, error) {
	cfg := model.DefaultSynergyConfig()
	for i, e := range entries {
		s, err := model.ParseSynergy(e.Name)
		if err != nil {
			return cfg, fmt.Errorf("entry %d: %w", i, err)
		}
		if e.Enabled != nil {
			cfg.Enabled[s] = *e.Enabled
		}
		if e.RecoveryRate != nil {
			cfg.Recovery[s] = *e.RecoveryRate
		}
		if e.SubstitutionLimit != nil {
			cfg.Substitution[s] = *e.SubstitutionLimit
		}
	}
	return cfg, nil
}

// Problem bundles inst with the configured costs and synergies.
func (c Config) Problem(inst model.Instance) (exchange.Problem, error) {
	costs, err := c.Costs.CostParams()
	if err != nil {
		return exchange.Problem{}, err
	}
	syn, err := SynergyTable(c.Synergies)
	if err != nil {
		return exchange.Problem{}, err
	}
	return exchange.Problem{Instance: inst, Costs: costs, Synergies: syn}, nil
}
