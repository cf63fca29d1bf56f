package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Synergy is a permitted transformation of one firm's waste into another
// firm's input.
type Synergy struct {
	Waste WasteType
	Input InputType
}

var (
	HeatToElectricity = Synergy{Waste: WasteHeat, Input: InputElectricity}
	ScrapToPolymer    = Synergy{Waste: WasteScrap, Input: InputPolymer}
	SteamToWater      = Synergy{Waste: WasteSteam, Input: InputWater}
)

// Supported lists the synergies the optimizer can model, in canonical order.
var Supported = []Synergy{HeatToElectricity, ScrapToPolymer, SteamToWater}

var (
	// ErrUnsupportedSynergy is returned when a waste/input pair outside
	// Supported is enabled.
	ErrUnsupportedSynergy = errors.New("unsupported synergy")
	// ErrNoSynergyEnabled is returned when a configuration enables nothing.
	ErrNoSynergyEnabled = errors.New("no synergy enabled")
)

// String returns the stream label used in tables and exports.
func (s Synergy) String() string {
	switch s {
	case HeatToElectricity:
		return "heat→elec"
	case ScrapToPolymer:
		return "scrap→poly"
	case SteamToWater:
		return "steam→water"
	default:
		return s.Waste.String() + "→" + s.Input.String()
	}
}

// Key returns an ASCII identifier suitable for config keys and metric labels.
func (s Synergy) Key() string {
	return s.Waste.String() + "_" + s.Input.String()
}

// IsSupported reports whether s is one of the modelled synergies.
func (s Synergy) IsSupported() bool {
	for _, sup := range Supported {
		if sup == s {
			return true
		}
	}
	return false
}

// ParseSynergy accepts "heat→elec", "heat->electricity" or "heat_electricity".
func ParseSynergy(s string) (Synergy, error) {
	raw := strings.TrimSpace(s)
	for _, sep := range []string{"→", "->", "_", ":"} {
		if idx := strings.Index(raw, sep); idx > 0 {
			w, err := ParseWasteType(raw[:idx])
			if err != nil {
				return Synergy{}, err
			}
			in, err := ParseInputType(raw[idx+len(sep):])
			if err != nil {
				return Synergy{}, err
			}
			return Synergy{Waste: w, Input: in}, nil
		}
	}
	return Synergy{}, fmt.Errorf("malformed synergy %q", s)
}

// SynergyConfig holds the synergy enable matrix together with the per-synergy
// recovery rates and substitution limits.
type SynergyConfig struct {
	// Enabled is the boolean waste×input matrix. Missing entries are disabled.
	Enabled map[Synergy]bool
	// Recovery holds r(l,k): units of input produced per unit of waste.
	Recovery map[Synergy]float64
	// Substitution holds δ(l,k): max share of demand served by recovery.
	Substitution map[Synergy]float64
}

// DefaultSynergyConfig enables heat→electricity and scrap→polymer with the
// reference recovery rates and no substitution cap.
func DefaultSynergyConfig() SynergyConfig {
	return SynergyConfig{
		Enabled: map[Synergy]bool{
			HeatToElectricity: true,
			ScrapToPolymer:    true,
			SteamToWater:      false,
		},
		Recovery: map[Synergy]float64{
			HeatToElectricity: 0.9,
			ScrapToPolymer:    0.8,
			SteamToWater:      0.85,
		},
		Substitution: map[Synergy]float64{
			HeatToElectricity: 1,
			ScrapToPolymer:    1,
			SteamToWater:      1,
		},
	}
}

// IsEnabled reports whether s is explicitly enabled.
func (c SynergyConfig) IsEnabled(s Synergy) bool { return c.Enabled[s] }

// EnabledList returns the enabled synergies in canonical order.
func (c SynergyConfig) EnabledList() []Synergy {
	var out []Synergy
	for _, s := range Supported {
		if c.Enabled[s] {
			out = append(out, s)
		}
	}
	return out
}

// RecoveryRate returns r for s.
func (c SynergyConfig) RecoveryRate(s Synergy) float64 { return c.Recovery[s] }

// SubstitutionLimit returns δ for s. A missing entry means no cap.
func (c SynergyConfig) SubstitutionLimit(s Synergy) float64 {
	if d, ok := c.Substitution[s]; ok {
		return d
	}
	return 1
}

// Validate checks that every enabled synergy is supported and carries a
// recovery rate in (0,1] and a substitution limit in [0,1]. allowEmpty lets
// a configuration without enabled synergies through.
func (c SynergyConfig) Validate(allowEmpty bool) error {
	keys := make([]Synergy, 0, len(c.Enabled))
	for s := range c.Enabled {
		keys = append(keys, s)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Waste != keys[j].Waste {
			return keys[i].Waste < keys[j].Waste
		}
		return keys[i].Input < keys[j].Input
	})
	enabled := 0
	for _, s := range keys {
		if !c.Enabled[s] {
			continue
		}
		if !s.IsSupported() {
			return fmt.Errorf("%w: %s", ErrUnsupportedSynergy, s)
		}
		enabled++
		r, ok := c.Recovery[s]
		if !ok {
			return fmt.Errorf("recovery rate missing for %s", s)
		}
		if !(r > 0 && r <= 1) {
			return fmt.Errorf("recovery rate for %s must be in (0,1], got %v", s, r)
		}
		if d := c.SubstitutionLimit(s); !(d >= 0 && d <= 1) {
			return fmt.Errorf("substitution limit for %s must be in [0,1], got %v", s, d)
		}
	}
	if enabled == 0 && !allowEmpty {
		return ErrNoSynergyEnabled
	}
	return nil
}

// MarshalText encodes s as its Key so synergies can key JSON objects.
func (s Synergy) MarshalText() ([]byte, error) { return []byte(s.Key()), nil }

// UnmarshalText accepts any form understood by ParseSynergy.
func (s *Synergy) UnmarshalText(b []byte) error {
	v, err := ParseSynergy(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Rank returns the position of s in Supported, or len(Supported) when s is
// not supported.
func (s Synergy) Rank() int {
	for i, sup := range Supported {
		if sup == s {
			return i
		}
	}
	return len(Supported)
}
