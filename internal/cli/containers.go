package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/localaictl/internal/engine"
	"github.com/codex-k8s/localaictl/internal/monitor"
	"github.com/codex-k8s/localaictl/internal/ui"
)

// newContainersCommand groups the container inspection and control subcommands.
func newContainersCommand(opts *Options) *cobra.Command {
	cmd := newGroupCommand("containers", "Inspect and control the containers of the compose project",
		newContainersListCommand(opts),
		newContainersStatsCommand(opts),
		newContainersLogsCommand(opts),
	)
	for _, action := range []monitor.Action{
		monitor.ActionStart,
		monitor.ActionStop,
		monitor.ActionRestart,
		monitor.ActionPause,
		monitor.ActionUnpause,
	} {
		cmd.AddCommand(newContainerActionCommand(opts, action))
	}
	cmd.Aliases = []string{"ctr"}
	return cmd
}

func newContainersListCommand(opts *Options) *cobra.Command {
	var only, skip []string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List containers with their logical service",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, opts, appNeeds{monitor: true})
			if err != nil {
				return err
			}
			defer a.Close()

			views, err := a.engine.Containers(cmd.Context(), engine.ContainerFilter{
				Only: engine.ParseFilter(only),
				Skip: engine.ParseFilter(skip),
			})
			if err != nil {
				return err
			}
			if opts.Output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), views)
			}
			ui.NewPrinter(cmd.OutOrStdout()).Containers(views)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&only, "service", nil, "Only containers of these services (logical or compose ids)")
	cmd.Flags().StringSliceVar(&skip, "skip", nil, "Hide containers of these services")
	return cmd
}

func newContainersStatsCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats [container...]",
		Short: "Sample CPU, memory, network and disk usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts, appNeeds{monitor: true})
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.engine.Stats(cmd.Context(), args)
			if err != nil {
				return err
			}
			if opts.Output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), stats)
			}
			ui.NewPrinter(cmd.OutOrStdout()).Stats(stats)
			return nil
		},
	}
}

func newContainersLogsCommand(opts *Options) *cobra.Command {
	var (
		tail  int
		since string
	)
	cmd := &cobra.Command{
		Use:   "logs <container>",
		Short: "Print container log lines with an inferred level",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if tail < 0 {
				return fmt.Errorf("--tail must not be negative")
			}
			logOpts := monitor.LogOptions{Tail: tail}
			if since != "" {
				t, err := monitor.ParseSince(since, time.Now())
				if err != nil {
					return err
				}
				logOpts.Since = t
			}

			a, err := openApp(cmd, opts, appNeeds{monitor: true})
			if err != nil {
				return err
			}
			defer a.Close()

			records, err := a.engine.Logs(cmd.Context(), args[0], logOpts)
			if err != nil {
				return err
			}
			if opts.Output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), records)
			}
			ui.NewPrinter(cmd.OutOrStdout()).Logs(records)
			return nil
		},
	}
	cmd.Flags().IntVar(&tail, "tail", 100, "Number of trailing lines, 0 for all")
	cmd.Flags().StringVar(&since, "since", "", "Only lines newer than an RFC3339 time or a duration such as 15m")
	return cmd
}

func newContainerActionCommand(opts *Options, action monitor.Action) *cobra.Command {
	return &cobra.Command{
		Use:   string(action) + " <container>",
		Short: fmt.Sprintf("Run %s on a container", action),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts, appNeeds{monitor: true})
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.engine.Act(cmd.Context(), args[0], action); err != nil {
				return err
			}
			if opts.Output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"container": args[0], "action": string(action)})
			}
			ui.NewPrinter(cmd.OutOrStdout()).Success("%s %s", action, args[0])
			return nil
		},
	}
}
