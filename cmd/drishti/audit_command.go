package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bryanwahyu/drishti/internal/bootstrap"
)

func newAuditCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "audit <video-url>",
		Short: "Run one compliance audit and print the report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			comps, err := bootstrap.Build(cmd.Context(), cfg, false)
			if err != nil {
				return err
			}
			defer comps.Close()

			wf, err := bootstrap.Workflow(cfg, comps)
			if err != nil {
				return err
			}

			st, err := wf.Audit(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, st)
			}
			out := cmd.OutOrStdout()
			_, err = fmt.Fprint(out, renderReport(st, shouldColorize(out)))
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full session state as JSON")
	return cmd
}
