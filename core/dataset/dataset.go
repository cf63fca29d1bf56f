// Package dataset loads network case files into model instances.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/symbiosis/core/model"
)

// ErrNoDistance reports a case file with neither distances nor coordinates.
var ErrNoDistance = errors.New("case has neither distance rows nor coordinates")

// Coordinate is a firm location in decimal degrees.
type Coordinate struct {
	Lat float64 `yaml:"lat" json:"lat"`
	Lon float64 `yaml:"lon" json:"lon"`
}

// Case is the on-disk form of a network instance. Supply and Demand rows are
// indexed by firm, their columns follow Wastes and Inputs. When Distance is
// omitted it is derived from Coordinates.
type Case struct {
	Name        string       `yaml:"name" json:"name"`
	Description string       `yaml:"description,omitempty" json:"description,omitempty"`
	Firms       []string     `yaml:"firms,omitempty" json:"firms,omitempty"`
	Wastes      []string     `yaml:"wastes,omitempty" json:"wastes,omitempty"`
	Inputs      []string     `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Supply      [][]float64  `yaml:"supply" json:"supply"`
	Demand      [][]float64  `yaml:"demand" json:"demand"`
	Distance    [][]float64  `yaml:"distance,omitempty" json:"distance,omitempty"`
	Coordinates []Coordinate `yaml:"coordinates,omitempty" json:"coordinates,omitempty"`
}

// Load reads a case file. Files ending in .json are decoded as JSON,
// anything else as YAML.
func Load(path string) (*Case, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Case
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = json.Unmarshal(data, &c)
	} else {
		err = yaml.Unmarshal(data, &c)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return &c, nil
}

// LoadInstance reads a case file and converts it.
func LoadInstance(path string) (model.Instance, error) {
	c, err := Load(path)
	if err != nil {
		return model.Instance{}, err
	}
	return c.ToModel()
}

// ToModel converts the case into a validated instance. Column names default
// to the standard orders truncated to the row width.
func (c Case) ToModel() (model.Instance, error) {
	supply, err := model.DenseFromRows(c.Supply)
	if err != nil {
		return model.Instance{}, fmt.Errorf("supply: %w", err)
	}
	demand, err := model.DenseFromRows(c.Demand)
	if err != nil {
		return model.Instance{}, fmt.Errorf("demand: %w", err)
	}
	rows := c.Distance
	if len(rows) == 0 {
		if len(c.Coordinates) == 0 {
			return model.Instance{}, ErrNoDistance
		}
		rows = DistanceMatrix(c.Coordinates)
	}
	dist, err := model.DenseFromRows(rows)
	if err != nil {
		return model.Instance{}, fmt.Errorf("distance: %w", err)
	}

	_, l := supply.Dims()
	_, k := demand.Dims()
	wastes, err := wasteColumns(c.Wastes, l)
	if err != nil {
		return model.Instance{}, err
	}
	inputs, err := inputColumns(c.Inputs, k)
	if err != nil {
		return model.Instance{}, err
	}
	inst := model.Instance{
		Names:    append([]string(nil), c.Firms...),
		Wastes:   wastes,
		Inputs:   inputs,
		Supply:   supply,
		Demand:   demand,
		Distance: dist,
	}
	if err := inst.Validate(); err != nil {
		return model.Instance{}, err
	}
	return inst, nil
}

func wasteColumns(names []string, width int) ([]model.WasteType, error) {
	if len(names) == 0 {
		if width > len(model.DefaultWastes) {
			return nil, fmt.Errorf("%w: %d supply columns without waste names", model.ErrShapeMismatch, width)
		}
		return append([]model.WasteType(nil), model.DefaultWastes[:width]...), nil
	}
	out := make([]model.WasteType, len(names))
	seen := make(map[model.WasteType]bool, len(names))
	for i, n := range names {
		w, err := model.ParseWasteType(n)
		if err != nil {
			return nil, fmt.Errorf("wastes[%d]: %w", i, err)
		}
		if seen[w] {
			return nil, fmt.Errorf("wastes[%d]: duplicate column %s", i, w)
		}
		seen[w] = true
		out[i] = w
	}
	return out, nil
}

func inputColumns(names []string, width int) ([]model.InputType, error) {
	if len(names) == 0 {
		if width > len(model.DefaultInputs) {
			return nil, fmt.Errorf("%w: %d demand columns without input names", model.ErrShapeMismatch, width)
		}
		return append([]model.InputType(nil), model.DefaultInputs[:width]...), nil
	}
	out := make([]model.InputType, len(names))
	seen := make(map[model.InputType]bool, len(names))
	for i, n := range names {
		k, err := model.ParseInputType(n)
		if err != nil {
			return nil, fmt.Errorf("inputs[%d]: %w", i, err)
		}
		if seen[k] {
			return nil, fmt.Errorf("inputs[%d]: duplicate column %s", i, k)
		}
		seen[k] = true
		out[i] = k
	}
	return out, nil
}
