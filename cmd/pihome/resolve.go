package main

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nerrad567/pihome/internal/entity"
)

func newResolveCommand(opts *rootOptions) *cobra.Command {
	var def string
	cmd := &cobra.Command{
		Use:   "resolve <key>",
		Short: "Resolve a key and print its value as JSON",
		Long: `Resolve a key such as Sensor/3/value or Device/2 against the database
and the configured GPIO driver. Entities print as their client projection.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := openCLIStack(cmd, opts)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck // One-shot command

			var fallback any
			if cmd.Flags().Changed("default") {
				fallback = def
			}

			value, err := st.resolver.Resolve(cmd.Context(), args[0], fallback)
			if err != nil {
				return err
			}
			if e, ok := value.(entity.Entity); ok {
				value = entity.ClientView(e)
			}
			return printJSON(cmd, map[string]any{"key": args[0], "value": value})
		},
	}
	cmd.Flags().StringVar(&def, "default", "", "value printed when the key does not resolve")
	return cmd
}

func newEvaluateCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate <rule-id>",
		Short: "Evaluate one rule and print the per-condition detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid rule id %q", args[0])
			}

			st, err := openCLIStack(cmd, opts)
			if err != nil {
				return err
			}
			defer st.Close() //nolint:errcheck // One-shot command

			rule, err := st.registry.GetRule(cmd.Context(), id)
			if err != nil {
				return err
			}
			ev, err := st.evaluator.Inspect(cmd.Context(), rule)
			if err != nil {
				return err
			}
			return printJSON(cmd, ev)
		},
	}
	return cmd
}

// openCLIStack loads the configuration and opens the entity stack with
// logging sent to stderr.
func openCLIStack(cmd *cobra.Command, opts *rootOptions) (*stack, error) {
	cfg, _, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}
	return openStack(cmd.Context(), cfg, cliLogger(cmd))
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
