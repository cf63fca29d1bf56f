// Package runlog persists one summary record per uncertainty batch.
package runlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/symbiosis/core/model"
	"github.com/kilianp07/symbiosis/core/uncertainty"
)

// DefaultTopLinks is the number of links kept in a record.
const DefaultTopLinks = 10

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("run log closed")

// Link summarizes one exchange link of a batch.
type Link struct {
	From       int           `json:"i"`
	To         int           `json:"j"`
	Synergy    model.Synergy `json:"stream"`
	ProbActive float64       `json:"prob_active"`
	MeanFlow   float64       `json:"mean_q_uncond"`
	Class      string        `json:"class"`
}

// Record captures the settings and outcome of one batch.
type Record struct {
	ID            string               `json:"id"`
	Timestamp     time.Time            `json:"timestamp"`
	Case          string               `json:"case,omitempty"`
	Settings      uncertainty.Settings `json:"settings"`
	Scenarios     int                  `json:"scenarios"`
	Failures      int                  `json:"failures"`
	MeanObjective float64              `json:"mean_objective"`
	StdObjective  float64              `json:"std_objective"`
	MinObjective  float64              `json:"min_objective"`
	MaxObjective  float64              `json:"max_objective"`
	Duration      time.Duration        `json:"duration"`
	Error         string               `json:"error,omitempty"`
	TopLinks      []Link               `json:"top_links,omitempty"`
}

// NewRecord summarizes b. At most top links are kept, ordered by
// activation probability.
func NewRecord(b *uncertainty.Batch, caseName string, top int, runErr error) Record {
	rec := Record{
		ID:        b.ID,
		Timestamp: b.Started,
		Case:      caseName,
		Settings:  b.Settings,
		Scenarios: len(b.Runs),
		Failures:  b.Failures(),
		Duration:  b.Duration,
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	if objs := b.Objectives(); len(objs) > 0 {
		rec.MinObjective = floats.Min(objs)
		rec.MaxObjective = floats.Max(objs)
		if len(objs) > 1 {
			rec.MeanObjective, rec.StdObjective = stat.MeanStdDev(objs, nil)
		} else {
			rec.MeanObjective = objs[0]
		}
	}

	rows := append([]uncertainty.RobustnessRow(nil), b.Robustness...)
	uncertainty.SortByProbability(rows)
	if top <= 0 {
		top = DefaultTopLinks
	}
	if len(rows) > top {
		rows = rows[:top]
	}
	for _, r := range rows {
		rec.TopLinks = append(rec.TopLinks, Link{
			From:       r.From,
			To:         r.To,
			Synergy:    r.Synergy,
			ProbActive: r.ProbActive,
			MeanFlow:   r.MeanFlow,
			Class:      string(uncertainty.Classify(r.ProbActive)),
		})
	}
	return rec
}

// Query filters records. Zero fields match everything.
type Query struct {
	Start time.Time
	End   time.Time
	Case  string
}

func (q Query) matches(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	return q.Case == "" || q.Case == r.Case
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// NopStore discards records.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error          { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                   { return nil }

// Config selects and configures a backend.
type Config struct {
	Backend    string `json:"backend" yaml:"backend"`
	Path       string `json:"path" yaml:"path"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
	TopLinks   int    `json:"top_links" yaml:"top_links"`
	// APIToken guards the HTTP listing of records when non-empty.
	APIToken   string `json:"api_token" yaml:"api_token"`
}

// Backend names.
const (
	BackendNone   = "none"
	BackendJSONL  = "jsonl"
	BackendSQLite = "sqlite"
)

// SetDefaults fills empty fields.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = BackendNone
	}
	if c.Path == "" {
		switch c.Backend {
		case BackendJSONL:
			c.Path = "runs/runs.jsonl"
		case BackendSQLite:
			c.Path = "runs/runs.db"
		}
	}
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = 10
	}
	if c.MaxBackups == 0 {
		c.MaxBackups = 5
	}
	if c.MaxAgeDays == 0 {
		c.MaxAgeDays = 30
	}
	if c.TopLinks == 0 {
		c.TopLinks = DefaultTopLinks
	}
}

// Validate checks the backend name and rotation settings.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendNone, BackendJSONL, BackendSQLite:
	default:
		return fmt.Errorf("runlog: unknown backend %q", c.Backend)
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 || c.TopLinks < 0 {
		return fmt.Errorf("runlog: rotation settings must be non-negative")
	}
	return nil
}

// Open returns the store selected by cfg.
func Open(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendNone:
		return NopStore{}, nil
	case BackendJSONL:
		return NewJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	case BackendSQLite:
		return NewSQLiteStore(cfg.Path)
	default:
		return nil, fmt.Errorf("runlog: unknown backend %q", cfg.Backend)
	}
}
