// Package export writes optimization results and uncertainty tables as CSV
// and JSON.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"sort"
	"strconv"

	"github.com/kilianp07/symbiosis/core/exchange"
	"github.com/kilianp07/symbiosis/core/model"
	"github.com/kilianp07/symbiosis/core/uncertainty"
)

// FlowDoc is one active link of an optimization result.
type FlowDoc struct {
	From     int     `json:"i"`
	To       int     `json:"j"`
	FromName string  `json:"from"`
	ToName   string  `json:"to"`
	Stream   string  `json:"stream"`
	Flow     float64 `json:"q"`
	Distance float64 `json:"dist_km"`
}

// ResultDoc is the JSON form of an exchange.Result.
type ResultDoc struct {
	Status    string             `json:"status"`
	Objective float64            `json:"objective_total"`
	Nodes     int                `json:"nodes"`
	Flows     []FlowDoc          `json:"flows"`
	Costs     map[string]float64 `json:"costs"`
}

// NewResultDoc flattens res. inst supplies firm names and distances.
func NewResultDoc(res exchange.Result, inst model.Instance) ResultDoc {
	doc := ResultDoc{
		Status:    res.Status.String(),
		Objective: res.Objective,
		Nodes:     res.Nodes,
		Flows:     []FlowDoc{},
		Costs:     res.Costs.Map(),
	}
	for _, a := range res.ActiveArcs() {
		doc.Flows = append(doc.Flows, FlowDoc{
			From:     a.From,
			To:       a.To,
			FromName: inst.FirmName(a.From),
			ToName:   inst.FirmName(a.To),
			Stream:   a.Synergy.Key(),
			Flow:     a.Flow,
			Distance: inst.Distance.At(a.From, a.To),
		})
	}
	return doc
}

// WriteJSON writes v to w as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteResultCSV writes the active flows of res. Costs are written by
// WriteCostsCSV.
func WriteResultCSV(w io.Writer, res exchange.Result, inst model.Instance) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"i", "j", "from", "to", "stream", "q", "dist_km"}); err != nil {
		return err
	}
	for _, f := range NewResultDoc(res, inst).Flows {
		rec := []string{
			strconv.Itoa(f.From),
			strconv.Itoa(f.To),
			f.FromName,
			f.ToName,
			f.Stream,
			formatFloat(f.Flow),
			formatFloat(f.Distance),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCostsCSV writes the cost breakdown as component,value rows sorted
// by component.
func WriteCostsCSV(w io.Writer, costs exchange.CostBreakdown) error {
	m := costs.Map()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"component", "value"}); err != nil {
		return err
	}
	for _, k := range keys {
		if err := cw.Write([]string{k, formatFloat(m[k])}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteRunsCSV writes one row per scenario with a recovered_<stream> column
// per supported synergy.
func WriteRunsCSV(w io.Writer, runs []uncertainty.RunRow) error {
	cw := csv.NewWriter(w)
	header := []string{"scenario_id", "status", "objective_total"}
	for _, s := range model.Supported {
		header = append(header, "recovered_"+s.Key())
	}
	header = append(header, "active_arcs", "duration_ms", "error")
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range runs {
		rec := []string{strconv.Itoa(r.Scenario), r.Status.String(), formatFloat(r.Objective)}
		for _, s := range model.Supported {
			rec = append(rec, formatFloat(r.Recovered[s]))
		}
		rec = append(rec,
			strconv.Itoa(r.ActiveArcs),
			strconv.FormatInt(r.Duration.Milliseconds(), 10),
			r.Err,
		)
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteArcsCSV writes the active links of every scenario. names may be nil.
func WriteArcsCSV(w io.Writer, arcs []uncertainty.ArcRow, names []string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"scenario_id", "i", "j", "from", "to", "stream", "q", "dist_km"}); err != nil {
		return err
	}
	for _, a := range arcs {
		rec := []string{
			strconv.Itoa(a.Scenario),
			strconv.Itoa(a.From),
			strconv.Itoa(a.To),
			name(names, a.From),
			name(names, a.To),
			a.Synergy.Key(),
			formatFloat(a.Flow),
			formatFloat(a.Distance),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteRobustnessCSV writes one row per link with its class. Conditional
// quantiles of a link that was never active are left empty.
func WriteRobustnessCSV(w io.Writer, rows []uncertainty.RobustnessRow, names []string, th uncertainty.Thresholds) error {
	cw := csv.NewWriter(w)
	header := []string{"i", "j", "from", "to", "stream", "active_count", "prob_active",
		"mean_q_uncond", "dist_km", "p10_cond", "p50_cond", "p90_cond", "class"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			strconv.Itoa(r.From),
			strconv.Itoa(r.To),
			name(names, r.From),
			name(names, r.To),
			r.Synergy.Key(),
			strconv.Itoa(r.ActiveCount),
			formatFloat(r.ProbActive),
			formatFloat(r.MeanFlow),
			formatFloat(r.MeanDistance),
			optional(r.P10),
			optional(r.P50),
			optional(r.P90),
			string(th.Classify(r.ProbActive)),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

func optional(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

func name(names []string, i int) string {
	if i >= 0 && i < len(names) {
		return names[i]
	}
	return "F" + strconv.Itoa(i+1)
}
