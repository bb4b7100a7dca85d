package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/rolescout/internal/model"
	"github.com/sells-group/rolescout/internal/monitoring"
	"github.com/sells-group/rolescout/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect ingestion run history",
	Long:  "Commands for listing, viewing, and summarizing ingestion runs.",
}

// -- runs list --

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List ingestion runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		status, _ := cmd.Flags().GetString("status")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status: model.RunStatus(status),
			Limit:  limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}

		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		return nil
	},
}

// -- runs show --

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show full details of a run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	},
}

// -- runs stats --

var runsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize pipeline health",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		snap, err := monitoring.NewCollector(st).Collect(ctx, cfg.Monitoring.LookbackWindowHours)
		if err != nil {
			return eris.Wrap(err, "runs stats")
		}

		formatMetrics(os.Stdout, snap)
		return nil
	},
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATUS\tTRIGGER\tFOUND\tNEW\tQUALIFIED\tERRORS\tSTARTED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t------\t-------\t-----\t---\t---------\t------\t-------\t--------")

	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\t%ds\n",
			truncateID(r.ID),
			r.Status,
			r.TriggerSource,
			r.RolesFound,
			r.NewRoles,
			r.QualifiedRoles,
			len(r.Errors),
			r.StartedAt.Format("2006-01-02 15:04"),
			r.DurationSeconds,
		)
	}
	_ = w.Flush()
}

// formatMetrics writes a metrics snapshot to w.
func formatMetrics(out io.Writer, snap *monitoring.MetricsSnapshot) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total runs:\t%d\n", snap.TotalRuns)
	_, _ = fmt.Fprintf(w, "Window (%dh):\t%d runs\n", snap.LookbackHours, snap.WindowRuns)
	_, _ = fmt.Fprintf(w, "  Completed:\t%d\n", snap.WindowCompleted)
	_, _ = fmt.Fprintf(w, "  With errors:\t%d\n", snap.WindowCompletedErrors)
	_, _ = fmt.Fprintf(w, "  Failed:\t%d\n", snap.WindowFailed)
	_, _ = fmt.Fprintf(w, "  Fail rate:\t%.1f%%\n", snap.WindowFailRate*100)
	_, _ = fmt.Fprintf(w, "Roles:\t%d total, %d active, %d qualified\n",
		snap.TotalRoles, snap.ActiveRoles, snap.QualifiedRoles)
	_, _ = fmt.Fprintf(w, "Change events:\t%d\n", snap.ChangeEvents)
	if snap.AvgDurationSecs > 0 {
		_, _ = fmt.Fprintf(w, "Avg duration:\t%.1fs\n", snap.AvgDurationSecs)
	}
	if snap.LastRunAt != nil {
		_, _ = fmt.Fprintf(w, "Last run:\t%s (%.1fh ago)\n",
			snap.LastRunAt.Format("2006-01-02 15:04"), snap.LastRunAgeHours)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	runsListCmd.Flags().String("status", "", "filter by run status")
	runsListCmd.Flags().Int("limit", 20, "maximum runs to list")
	runsCmd.AddCommand(runsListCmd, runsShowCmd, runsStatsCmd)
	rootCmd.AddCommand(runsCmd)
}
