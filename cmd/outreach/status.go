package main

import (
	"fmt"
	"io"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/livinlefevreloca/outreach/internal/db"
	"github.com/livinlefevreloca/outreach/internal/lifecycle"
	"github.com/spf13/cobra"
)

// stateOrder lists states in lifecycle order for display
var stateOrder = []lifecycle.ProfileState{
	lifecycle.StateDiscovered,
	lifecycle.StateEnriched,
	lifecycle.StatePending,
	lifecycle.StateConnected,
	lifecycle.StateCompleted,
	lifecycle.StateFailed,
}

const (
	nextLimit   = 5
	cyclesShown = 10
)

// statusReport is everything the status command prints
type statusReport struct {
	Counts map[string]int
	Next   []string
	Run    *db.CampaignRun
	Cycles []*db.CycleStats
}

func newStatusCmd(a *app) *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show profile counts by state and the latest run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			database, err := a.openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			var report statusReport
			if report.Counts, err = database.CountByState(ctx); err != nil {
				return err
			}
			if report.Next, err = database.NextURLsToEnrich(ctx, nextLimit); err != nil {
				return err
			}

			if runID != "" {
				report.Run, err = database.GetCampaignRun(ctx, runID)
			} else {
				report.Run, err = database.LatestCampaignRun(ctx)
			}
			switch {
			case db.IsNotFound(err) && runID != "":
				return errors.WithHint(errors.Newf("campaign run %s not found", runID), "omit --run to show the latest run")
			case err != nil && !db.IsNotFound(err):
				return err
			}

			if report.Run != nil {
				if report.Cycles, err = database.GetCycleStats(ctx, report.Run.RunID); err != nil {
					return err
				}
			}

			printStatus(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "Show this run instead of the latest")
	return cmd
}

func printStatus(w io.Writer, r statusReport) {
	total := 0
	fmt.Fprintln(w, "Profiles")
	for _, state := range stateOrder {
		n := r.Counts[state.String()]
		total += n
		fmt.Fprintf(w, "  %-12s %d\n", state.String(), n)
	}
	fmt.Fprintf(w, "  %-12s %d\n", "total", total)
	fmt.Fprintln(w)

	if len(r.Next) > 0 {
		fmt.Fprintln(w, "Next to enrich")
		for _, id := range r.Next {
			fmt.Fprintf(w, "  %s\n", id)
		}
		fmt.Fprintln(w)
	}

	run := r.Run
	if run == nil {
		fmt.Fprintln(w, "No campaign runs yet")
		return
	}
	fmt.Fprintln(w, "Run")
	fmt.Fprintf(w, "  %-12s %s\n", "id", run.RunID)
	fmt.Fprintf(w, "  %-12s %s\n", "status", run.Status)
	fmt.Fprintf(w, "  %-12s %s\n", "started", run.StartedAt.Format(time.RFC3339))
	if run.EndedAt != nil {
		fmt.Fprintf(w, "  %-12s %s\n", "ended", run.EndedAt.Format(time.RFC3339))
	}
	if run.ConnectionsDisabled {
		fmt.Fprintf(w, "  %-12s %s\n", "connections", "disabled by limit")
	}

	if len(r.Cycles) == 0 {
		return
	}
	cycles := r.Cycles
	if len(cycles) > cyclesShown {
		cycles = cycles[len(cycles)-cyclesShown:]
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Cycles (%d total)\n", len(r.Cycles))
	fmt.Fprintf(w, "  %5s %7s %5s %7s %11s %7s\n", "cycle", "pending", "batch", "started", "transitions", "skipped")
	for _, c := range cycles {
		fmt.Fprintf(w, "  %5d %7d %5d %7d %11d %7d\n",
			c.Cycle, c.PendingCount, c.BatchSize, c.ProfilesStarted, c.Transitions, c.Skipped)
	}
}
