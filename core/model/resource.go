package model

import (
	"fmt"
	"strings"
)

// WasteType identifies a recoverable waste stream emitted by a firm.
type WasteType int

const (
	WasteHeat WasteType = iota
	WasteScrap
	WasteSteam
)

// InputType identifies an input a firm has to purchase.
type InputType int

const (
	InputElectricity InputType = iota
	InputWater
	InputPolymer
)

// DefaultWastes is the supply column order used when a case file does not name one.
var DefaultWastes = []WasteType{WasteHeat, WasteScrap, WasteSteam}

// DefaultInputs is the demand column order used when a case file does not name one.
var DefaultInputs = []InputType{InputElectricity, InputWater, InputPolymer}

// String returns the configuration name of the waste type.
func (w WasteType) String() string {
	switch w {
	case WasteHeat:
		return "heat"
	case WasteScrap:
		return "scrap"
	case WasteSteam:
		return "steam"
	default:
		return "unknown"
	}
}

// String returns the configuration name of the input type.
func (k InputType) String() string {
	switch k {
	case InputElectricity:
		return "electricity"
	case InputWater:
		return "water"
	case InputPolymer:
		return "polymer"
	default:
		return "unknown"
	}
}

// ParseWasteType accepts the configuration name and a few common aliases.
func ParseWasteType(s string) (WasteType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "heat", "waste heat", "waste_heat":
		return WasteHeat, nil
	case "scrap", "plastic scrap", "plastic_scrap":
		return WasteScrap, nil
	case "steam", "steam/wastewater", "wastewater":
		return WasteSteam, nil
	default:
		return 0, fmt.Errorf("unknown waste type %q", s)
	}
}

// ParseInputType accepts the configuration name and a few common aliases.
func ParseInputType(s string) (InputType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "electricity", "elec":
		return InputElectricity, nil
	case "water":
		return InputWater, nil
	case "polymer", "virgin polymer", "virgin_polymer", "poly":
		return InputPolymer, nil
	default:
		return 0, fmt.Errorf("unknown input type %q", s)
	}
}
