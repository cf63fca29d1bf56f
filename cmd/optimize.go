package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kilianp07/symbiosis/app"
	"github.com/kilianp07/symbiosis/core/dataset"
	"github.com/kilianp07/symbiosis/pkg/export"
)

var optimizeFlags struct {
	casePath string
	out      string
	top      int
}

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Solve the exchange network of a case file once",
	RunE:  runOptimize,
}

func init() {
	f := optimizeCmd.Flags()
	f.StringVar(&optimizeFlags.casePath, "case", "", "case file (yaml or json)")
	f.StringVarP(&optimizeFlags.out, "out", "o", "", "write the result to this file (.json or .csv)")
	f.IntVar(&optimizeFlags.top, "top", 10, "number of links printed")
	_ = optimizeCmd.MarkFlagRequired("case")
	rootCmd.AddCommand(optimizeCmd)
}

func runOptimize(cmd *cobra.Command, _ []string) error {
	inst, err := dataset.LoadInstance(optimizeFlags.casePath)
	if err != nil {
		return fmt.Errorf("load case: %w", err)
	}
	return withService(func(ctx context.Context, svc *app.Service) error {
		res, err := svc.Optimize(ctx, inst)
		if err != nil {
			return err
		}
		base, err := svc.Baseline(inst)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "status:    %s\n", res.Status)
		fmt.Fprintf(w, "baseline:  %.2f\n", base.Total)
		if res.IsOptimal() {
			fmt.Fprintf(w, "objective: %.2f (saving %.2f)\n", res.Objective, base.Total-res.Objective)
		}
		for _, a := range res.TopArcs(optimizeFlags.top) {
			fmt.Fprintf(w, "  %-14s %s -> %s  q=%.3f\n", a.Synergy.Key(), inst.FirmName(a.From), inst.FirmName(a.To), a.Flow)
		}

		if optimizeFlags.out == "" {
			return nil
		}
		return writeTo(optimizeFlags.out, func(f io.Writer) error {
			if strings.EqualFold(filepath.Ext(optimizeFlags.out), ".csv") {
				return export.WriteResultCSV(f, res, inst)
			}
			return export.WriteJSON(f, export.NewResultDoc(res, inst))
		})
	})
}

func writeTo(path string, write func(io.Writer) error) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
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
