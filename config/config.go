package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/symbiosis/core/metrics"
	"github.com/kilianp07/symbiosis/core/runlog"
)

// Config is the root configuration of the service and the CLI.
type Config struct {
	Optimizer   OptimizerConfig   `json:"optimizer"`
	Uncertainty UncertaintyConfig `json:"uncertainty"`
	Costs       CostsConfig       `json:"costs"`
	Synergies   []SynergyConfig   `json:"synergies"`
	Metrics     metrics.Config    `json:"metrics"`
	RunLog      runlog.Config     `json:"runlog"`
	Logging     LoggingConfig     `json:"logging"`
}

// Default returns a configuration holding only defaults.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

// Load reads path, applies K_ environment overrides, fills defaults and
// validates. An empty path loads defaults and the environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser
		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	// K_UNCERTAINTY__SCENARIOS=500 sets uncertainty.scenarios
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Optimizer.SetDefaults()
	c.Uncertainty.SetDefaults()
	c.RunLog.SetDefaults()
	c.Logging.SetDefaults()
}

// Validate checks every section. Cost and synergy tables are validated by
// converting them to their model form.
func (c Config) Validate() error {
	if err := c.Optimizer.Validate(); err != nil {
		return fmt.Errorf("optimizer: %w", err)
	}
	if _, err := c.Uncertainty.Settings(); err != nil {
		return fmt.Errorf("uncertainty: %w", err)
	}
	if err := c.Uncertainty.Thresholds.Validate(); err != nil {
		return fmt.Errorf("uncertainty: %w", err)
	}
	if _, err := c.Costs.CostParams(); err != nil {
		return fmt.Errorf("costs: %w", err)
	}
	syn, err := SynergyTable(c.Synergies)
	if err != nil {
		return fmt.Errorf("synergies: %w", err)
	}
	if err := syn.Validate(c.Optimizer.AllowNoSynergy); err != nil {
		return fmt.Errorf("synergies: %w", err)
	}
	if err := c.RunLog.Validate(); err != nil {
		return err
	}
	return c.Logging.Validate()
}
