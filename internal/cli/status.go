package cli

import (
	"github.com/spf13/cobra"

	"github.com/codex-k8s/localaictl/internal/engine"
	"github.com/codex-k8s/localaictl/internal/ui"
)

// newUpCommand creates the "up" subcommand that starts the enabled services.
func newUpCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:     "up",
		Aliases: []string{"apply", "start"},
		Short:   "Start the enabled services for the selected profile and environment",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, opts, appNeeds{})
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.engine.Apply(cmd.Context())
			if opts.Output == outputJSON {
				if werr := writeJSON(cmd.OutOrStdout(), res); werr != nil {
					return werr
				}
				return err
			}
			p := ui.NewPrinter(cmd.OutOrStdout())
			if res.Outcome.ID != "" {
				p.Outcome(res.Outcome)
			}
			return err
		},
	}
}

// newDownCommand creates the "down" subcommand that stops services.
func newDownCommand(opts *Options) *cobra.Command {
	var stop engine.StopOptions
	cmd := &cobra.Command{
		Use:     "down",
		Aliases: []string{"stop"},
		Short:   "Stop the enabled services",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, opts, appNeeds{})
			if err != nil {
				return err
			}
			defer a.Close()

			outcome, err := a.engine.Stop(cmd.Context(), stop)
			if opts.Output == outputJSON {
				if werr := writeJSON(cmd.OutOrStdout(), outcome); werr != nil {
					return werr
				}
				return err
			}
			if outcome.ID != "" {
				ui.NewPrinter(cmd.OutOrStdout()).Outcome(outcome)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&stop.All, "all", false, "Tear down the whole compose project")
	cmd.Flags().BoolVar(&stop.RemoveVolumes, "volumes", false, "Also remove volumes and orphan containers")
	return cmd
}

// newStatusCommand creates the "status" subcommand that shows runtime state per enabled service.
func newStatusCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the runtime state of every enabled service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, opts, appNeeds{})
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.engine.Status(cmd.Context())
			if err != nil {
				return err
			}
			if opts.Output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), report)
			}
			p := ui.NewPrinter(cmd.OutOrStdout())
			p.Line("Profile: %s   Environment: %s", report.Profile, report.Environment)
			p.Status(report)
			return nil
		},
	}
}
