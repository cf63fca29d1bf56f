package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/symbiosis/app"
	"github.com/kilianp07/symbiosis/core/dataset"
	"github.com/kilianp07/symbiosis/core/uncertainty"
	"github.com/kilianp07/symbiosis/pkg/export"
)

var mcFlags struct {
	casePath     string
	outDir       string
	scenarios    int
	variation    float64
	distribution string
	seed         uint64
	workers      int
	timeout      time.Duration
}

var montecarloCmd = &cobra.Command{
	Use:     "montecarlo",
	Aliases: []string{"mc"},
	Short:   "Run a Monte Carlo batch and write the robustness tables",
	RunE:    runMonteCarlo,
}

func init() {
	f := montecarloCmd.Flags()
	f.StringVar(&mcFlags.casePath, "case", "", "case file (yaml or json)")
	f.StringVar(&mcFlags.outDir, "out-dir", "", "directory receiving runs.csv, arcs.csv, robustness.csv and batch.json")
	f.IntVarP(&mcFlags.scenarios, "scenarios", "n", uncertainty.DefaultScenarios, "number of scenarios")
	f.Float64Var(&mcFlags.variation, "variation", uncertainty.DefaultVariationPct, "perturbation amplitude in percent")
	f.StringVar(&mcFlags.distribution, "distribution", string(uncertainty.Uniform), "uniform or normal")
	f.Uint64Var(&mcFlags.seed, "seed", 0, "base random seed")
	f.IntVar(&mcFlags.workers, "workers", 0, "concurrent solves (0 = GOMAXPROCS)")
	f.DurationVar(&mcFlags.timeout, "timeout", 0, "batch deadline (0 = none)")
	_ = montecarloCmd.MarkFlagRequired("case")
	rootCmd.AddCommand(montecarloCmd)
}

// batchSettings starts from the configuration and applies the flags the
// user set explicitly.
func batchSettings(cmd *cobra.Command, svc *app.Service) (uncertainty.Settings, error) {
	st, err := svc.Settings()
	if err != nil {
		return st, err
	}
	f := cmd.Flags()
	if f.Changed("scenarios") {
		st.Scenarios = mcFlags.scenarios
	}
	if f.Changed("variation") {
		st.VariationPct = mcFlags.variation
	}
	if f.Changed("distribution") {
		d, err := uncertainty.ParseDistribution(mcFlags.distribution)
		if err != nil {
			return st, err
		}
		st.Distribution = d
	}
	if f.Changed("seed") {
		st.Seed = mcFlags.seed
	}
	if f.Changed("workers") {
		st.Workers = mcFlags.workers
	}
	if f.Changed("timeout") {
		st.Timeout = mcFlags.timeout
	}
	return st, nil
}

func runMonteCarlo(cmd *cobra.Command, _ []string) error {
	inst, err := dataset.LoadInstance(mcFlags.casePath)
	if err != nil {
		return fmt.Errorf("load case: %w", err)
	}
	caseName := strings.TrimSuffix(filepath.Base(mcFlags.casePath), filepath.Ext(mcFlags.casePath))
	return withService(func(ctx context.Context, svc *app.Service) error {
		st, err := batchSettings(cmd, svc)
		if err != nil {
			return err
		}
		batch, runErr := svc.RunBatch(ctx, inst, st, caseName)
		if batch == nil {
			return runErr
		}
		if runErr != nil && !errors.Is(runErr, context.DeadlineExceeded) && !errors.Is(runErr, context.Canceled) {
			return runErr
		}

		th := svc.Thresholds()
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "batch %s: %d scenarios, %d not optimal, %s\n", batch.ID, len(batch.Runs), batch.Failures(), batch.Duration.Round(time.Millisecond))
		if runErr != nil {
			fmt.Fprintf(w, "batch stopped early: %v\n", runErr)
		}
		rows := append([]uncertainty.RobustnessRow(nil), batch.Robustness...)
		uncertainty.SortByProbability(rows)
		for _, r := range rows {
			fmt.Fprintf(w, "  %-10s %-14s %s -> %s  p=%.2f  mean q=%.3f\n",
				th.Classify(r.ProbActive), r.Synergy.Key(), inst.FirmName(r.From), inst.FirmName(r.To), r.ProbActive, r.MeanFlow)
		}

		if mcFlags.outDir != "" {
			if err := export.WriteBatchDir(mcFlags.outDir, batch, inst.Names, th); err != nil {
				return err
			}
			fmt.Fprintf(w, "tables written to %s\n", mcFlags.outDir)
		}
		return runErr
	})
}
