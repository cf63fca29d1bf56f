package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/symbiosis/app"
	"github.com/kilianp07/symbiosis/core/runlog"
)

var historyFlags struct {
	since    time.Duration
	caseName string
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List batches recorded in the run log",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withService(func(ctx context.Context, svc *app.Service) error {
			q := runlog.Query{Case: historyFlags.caseName}
			if historyFlags.since > 0 {
				q.Start = time.Now().Add(-historyFlags.since)
			}
			recs, err := svc.History(ctx, q)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, r := range recs {
				fmt.Fprintf(w, "%s  %s  %-12s n=%d failed=%d mean=%.2f std=%.2f\n",
					r.Timestamp.Format(time.RFC3339), r.ID, r.Case, r.Scenarios, r.Failures, r.MeanObjective, r.StdObjective)
			}
			return nil
		})
	},
}

func init() {
	historyCmd.Flags().DurationVar(&historyFlags.since, "since", 0, "only batches started within this window")
	historyCmd.Flags().StringVar(&historyFlags.caseName, "case", "", "only batches of this case")
	rootCmd.AddCommand(historyCmd)
}
