package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/progset/pkg/engine"
	"github.com/openfroyo/progset/pkg/watch"
)

func newWatchCommand() *cobra.Command {
	var (
		vehicle  string
		output   string
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <script> <component>",
		Short: "Re-evaluate a settings script whenever it changes",
		Long: `Evaluate a settings script, print its settings and evaluate it again
every time the file is saved. Failures are reported and watching continues.
Stop with Ctrl-C.

When telemetry.metrics_address is configured, Prometheus metrics are served
while watching.`,
		Example: `  VEHICLE_NAME=rover progset watch settings.star drive`,
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			ctx := cmd.Context()

			a, err := newApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.tel.StartMetricsServer(); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			r, err := newRenderer(a.cfg.Output, output, out)
			if err != nil {
				return err
			}

			if debounce == 0 {
				debounce = a.cfg.Watch.Debounce
			}
			w, err := watch.New(args[0], watch.Options{Debounce: debounce, Logger: a.log.Zerolog()})
			if err != nil {
				return err
			}

			vehicleName := a.vehicle(vehicle)
			component := args[1]

			a.log.WithScript(w.Path()).Infof("Watching settings script for component %s", component)

			return w.Run(ctx, func(ctx context.Context) {
				started := time.Now()
				script, err := engine.LoadScript(args[0])
				var res *engine.Result
				if err == nil {
					res, err = a.runner.Run(ctx, script, vehicleName, component)
				}
				a.record(ctx, args[0], vehicleName, component, started, res, err)
				if ferr := a.tel.Tracer.ForceFlush(ctx); ferr != nil {
					a.log.WithError(ferr).Warn("Failed to flush traces")
				}

				fmt.Fprintf(out, "--- %s ---\n", started.Format(time.TimeOnly))
				if err != nil {
					fmt.Fprintf(out, "error: %v\n", err)
					return
				}
				if err := r.result(out, res); err != nil {
					a.log.WithError(err).Error("Failed to write settings")
				}
			})
		},
	}

	cmd.Flags().StringVar(&vehicle, "vehicle", "", "vehicle name (default: $VEHICLE_NAME)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output format: text, flat, json or yaml")
	cmd.Flags().DurationVar(&debounce, "debounce", 0, "quiet period before re-running (default from config)")

	return cmd
}
