package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/openfroyo/progset/pkg/engine"
)

func newRunCommand() *cobra.Command {
	var (
		vehicle  string
		output   string
		parallel int
	)

	cmd := &cobra.Command{
		Use:   "run <script> <component> [component...]",
		Short: "Evaluate a settings script for a component",
		Long: `Evaluate a settings script and print the settings it returns.

The script's build_configuration(vehicle, component) is called with the
vehicle name from $VEHICLE_NAME (or --vehicle) and the component name.
When several components are given they are evaluated concurrently, each in
its own fresh interpreter.

Text output lists every key on its own line followed by the value with its
type tag:

  S: string   D: double   I: integer   B: boolean (1/0)   N: nil`,
		Example: `  # Print the settings of the drive component
  VEHICLE_NAME=rover progset run settings.star drive

  # Name the vehicle explicitly and emit YAML
  progset run settings.star drive --vehicle rover --output yaml

  # Evaluate several components, four at a time
  progset run settings.star drive brakes steering --parallel 4`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			ctx := cmd.Context()

			a, err := newApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.close()

			out := cmd.OutOrStdout()
			r, err := newRenderer(a.cfg.Output, output, out)
			if err != nil {
				return err
			}

			scriptPath := args[0]
			components := args[1:]
			vehicleName := a.vehicle(vehicle)

			script, err := engine.LoadScript(scriptPath)
			if err != nil {
				return err
			}

			if len(components) == 1 {
				started := time.Now()
				res, runErr := a.runner.Run(ctx, script, vehicleName, components[0])
				a.record(ctx, script.Name(), vehicleName, components[0], started, res, runErr)
				if runErr != nil {
					return runErr
				}
				return r.result(out, res)
			}

			started := time.Now()
			results := a.runner.RunBatch(ctx, script, vehicleName, components, parallel)
			failed := 0
			for _, br := range results {
				a.record(ctx, script.Name(), vehicleName, br.Component, started, br.Result, br.Err)
				if br.Err != nil {
					failed++
				}
			}
			if err := r.batch(out, results); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d components failed", failed, len(results))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&vehicle, "vehicle", "", "vehicle name (default: $VEHICLE_NAME)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output format: text, flat, json or yaml")
	cmd.Flags().IntVarP(&parallel, "parallel", "p", engine.DefaultParallel, "components evaluated concurrently")

	return cmd
}
