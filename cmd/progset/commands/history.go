package commands

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/progset/pkg/stores"
)

func newHistoryCommand() *cobra.Command {
	var (
		limit     int
		vehicle   string
		component string
		status    string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs",
		Long: `List runs recorded in the history store, newest first.

Runs are recorded when history.enabled is set in the configuration file or
PROGSET_HISTORY=true.`,
		Example: `  progset history --limit 10
  progset history --component drive --status failed`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			ctx := cmd.Context()

			switch stores.RunStatus(status) {
			case "", stores.RunStatusRunning, stores.RunStatusSucceeded, stores.RunStatusFailed:
			default:
				return fmt.Errorf("unknown status %q (want running, succeeded or failed)", status)
			}

			a, err := newApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.close()

			runs, err := a.store.ListRuns(ctx, stores.RunFilter{
				Vehicle:   vehicle,
				Component: component,
				Status:    stores.RunStatus(status),
				Limit:     limit,
			})
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd.OutOrStdout(), runs)
			}
			return writeRunTable(cmd.OutOrStdout(), runs)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs to list (0 for all)")
	cmd.Flags().StringVar(&vehicle, "vehicle", "", "only runs for this vehicle")
	cmd.Flags().StringVar(&component, "component", "", "only runs for this component")
	cmd.Flags().StringVar(&status, "status", "", "only runs with this status")

	return cmd
}

func writeRunTable(w io.Writer, runs []*stores.Run) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tVEHICLE\tCOMPONENT\tSTATUS\tENTRIES\tDURATION\tERROR")
	for _, r := range runs {
		errKind := "-"
		if r.ErrorKind != nil {
			errKind = *r.ErrorKind
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			orDash(r.Vehicle),
			r.Component,
			r.Status,
			r.Entries,
			(time.Duration(r.Duration) * time.Millisecond).String(),
			errKind,
		)
	}
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func newShowCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a recorded run and its settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			ctx := cmd.Context()

			a, err := newApp(ctx, true)
			if err != nil {
				return err
			}
			defer a.close()

			run, err := a.store.GetRun(ctx, args[0])
			if err != nil {
				return err
			}

			var snap *stores.Snapshot
			if run.Status == stores.RunStatusSucceeded {
				snap, err = a.store.GetSnapshot(ctx, run.ID)
				if err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, struct {
					*stores.Run
					Settings any `json:"settings,omitempty"`
				}{Run: run, Settings: snapshotSettings(snap)})
			}

			r, err := newRenderer(a.cfg.Output, output, out)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Run:       %s\n", run.ID)
			fmt.Fprintf(out, "Script:    %s\n", run.ScriptPath)
			fmt.Fprintf(out, "Vehicle:   %s\n", orDash(run.Vehicle))
			fmt.Fprintf(out, "Component: %s\n", run.Component)
			fmt.Fprintf(out, "Status:    %s\n", run.Status)
			fmt.Fprintf(out, "Started:   %s\n", run.StartedAt.Local().Format(time.RFC3339))
			fmt.Fprintf(out, "Duration:  %s\n", time.Duration(run.Duration)*time.Millisecond)
			if run.Error != nil {
				fmt.Fprintf(out, "Error:     %s\n", *run.Error)
			}
			if snap == nil {
				return nil
			}
			fmt.Fprintln(out)
			return r.table(out, snap.Settings)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "settings format: text, flat, json or yaml")

	return cmd
}

func snapshotSettings(snap *stores.Snapshot) any {
	if snap == nil {
		return nil
	}
	return snap.Settings
}
