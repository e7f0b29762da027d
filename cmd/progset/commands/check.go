package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openfroyo/progset/pkg/engine"
)

func newCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <script>",
		Short: "Check that a settings script loads and defines its entry point",
		Long: `Load a settings script, run its top level and verify that it defines a
callable entry point. The entry point itself is not called. With --verbose
the names the script defines at top level are listed too.`,
		Example: `  progset check settings.star`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			ctx := cmd.Context()

			a, err := newApp(ctx, false)
			if err != nil {
				return err
			}
			defer a.close()

			script, err := engine.LoadScript(args[0])
			if err != nil {
				return err
			}
			names, err := a.runner.Check(ctx, script)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, map[string]any{
					"script":      script.Name(),
					"entry_point": a.runner.EntryPoint(),
					"globals":     names,
					"status":      "ok",
				})
			}
			if _, err := fmt.Fprintf(out, "%s: ok (defines %s)\n", script.Name(), a.runner.EntryPoint()); err != nil {
				return err
			}
			if verbose {
				_, err = fmt.Fprintf(out, "globals: %s\n", strings.Join(names, ", "))
			}
			return err
		},
	}

	return cmd
}
