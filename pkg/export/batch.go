package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/kilianp07/symbiosis/core/uncertainty"
)

// Batch file names written by WriteBatchDir.
const (
	RunsFile       = "runs.csv"
	ArcsFile       = "arcs.csv"
	RobustnessFile = "robustness.csv"
	SummaryFile    = "batch.json"
)

// BatchSummary is the JSON document written next to the batch tables.
type BatchSummary struct {
	ID         string                      `json:"id"`
	Started    time.Time                   `json:"started"`
	Duration   string                      `json:"duration"`
	Settings   uncertainty.Settings        `json:"settings"`
	Scenarios  int                         `json:"scenarios"`
	Failures   int                         `json:"failures"`
	Robustness []uncertainty.RobustnessRow `json:"robustness"`
}

// WriteBatchDir writes the three tables and a JSON summary of b into dir,
// creating it when needed.
func WriteBatchDir(dir string, b *uncertainty.Batch, names []string, th uncertainty.Thresholds) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	files := []struct {
		name  string
		write func(io.Writer) error
	}{
		{RunsFile, func(w io.Writer) error { return WriteRunsCSV(w, b.Runs) }},
		{ArcsFile, func(w io.Writer) error { return WriteArcsCSV(w, b.Arcs, names) }},
		{RobustnessFile, func(w io.Writer) error { return WriteRobustnessCSV(w, b.Robustness, names, th) }},
		{SummaryFile, func(w io.Writer) error {
			rows := b.Robustness
			if rows == nil {
				rows = []uncertainty.RobustnessRow{}
			}
			return WriteJSON(w, BatchSummary{
				ID:         b.ID,
				Started:    b.Started,
				Duration:   b.Duration.String(),
				Settings:   b.Settings,
				Scenarios:  len(b.Runs),
				Failures:   b.Failures(),
				Robustness: rows,
			})
		}},
	}
	for _, f := range files {
		if err := writeFile(filepath.Join(dir, f.name), f.write); err != nil {
			return fmt.Errorf("write %s: %w", f.name, err)
		}
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return write(f)
}
