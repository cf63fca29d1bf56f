package model

import (
	"fmt"
	"math"
)

// CostParams groups the unit costs used by the exchange objective. All values
// are monetary units per physical unit (or per link for Fixed).
type CostParams struct {
	// Disposal is the cost of disposing one unit of each waste type.
	Disposal map[WasteType]float64
	// Virgin is the purchase price of one unit of each input type.
	Virgin map[InputType]float64
	// Recovery is the processing cost per unit of waste recovered.
	Recovery map[WasteType]float64
	// Fixed is the cost of activating one link for a synergy.
	Fixed map[Synergy]float64
	// Transport is the cost per unit of waste per km.
	Transport map[WasteType]float64
}

// DefaultCostParams returns the reference cost table. Heat is in MWh, scrap
// and polymer in tonnes, steam and water in m³.
func DefaultCostParams() CostParams {
	return CostParams{
		Disposal: map[WasteType]float64{
			WasteHeat:  5,
			WasteScrap: 50,
			WasteSteam: 3,
		},
		Virgin: map[InputType]float64{
			InputElectricity: 80,
			InputPolymer:     1200,
			InputWater:       2.5,
		},
		Recovery: map[WasteType]float64{
			WasteHeat:  2,
			WasteScrap: 20,
			WasteSteam: 0.5,
		},
		Fixed: map[Synergy]float64{
			HeatToElectricity: 500,
			ScrapToPolymer:    800,
			SteamToWater:      300,
		},
		Transport: map[WasteType]float64{
			WasteHeat:  0.5,
			WasteScrap: 10,
			WasteSteam: 0.2,
		},
	}
}

// DisposalCost returns the disposal cost for w, zero if unset.
func (c CostParams) DisposalCost(w WasteType) float64 { return c.Disposal[w] }

// VirginCost returns the purchase price for k, zero if unset.
func (c CostParams) VirginCost(k InputType) float64 { return c.Virgin[k] }

// RecoveryCost returns the processing cost per recovered unit of w.
func (c CostParams) RecoveryCost(w WasteType) float64 { return c.Recovery[w] }

// FixedCost returns the link activation cost for s.
func (c CostParams) FixedCost(s Synergy) float64 { return c.Fixed[s] }

// TransportCost returns the cost per unit·km for w.
func (c CostParams) TransportCost(w WasteType) float64 { return c.Transport[w] }

// Validate rejects negative costs.
func (c CostParams) Validate() error {
	for w, v := range c.Disposal {
		if err := checkCost("disposal", w, v); err != nil {
			return err
		}
	}
	for k, v := range c.Virgin {
		if err := checkCost("virgin", k, v); err != nil {
			return err
		}
	}
	for w, v := range c.Recovery {
		if err := checkCost("recovery", w, v); err != nil {
			return err
		}
	}
	for s, v := range c.Fixed {
		if err := checkCost("fixed", s, v); err != nil {
			return err
		}
	}
	for w, v := range c.Transport {
		if err := checkCost("transport", w, v); err != nil {
			return err
		}
	}
	return nil
}

func checkCost(kind string, key fmt.Stringer, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%s cost for %s must be finite, got %v", kind, key, v)
	}
	if v < 0 {
		return fmt.Errorf("%s cost for %s is negative: %v", kind, key, v)
	}
	return nil
}
