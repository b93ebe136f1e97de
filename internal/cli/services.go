package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/localaictl/internal/api"
	"github.com/codex-k8s/localaictl/internal/catalog"
	"github.com/codex-k8s/localaictl/internal/prefs"
	"github.com/codex-k8s/localaictl/internal/resolver"
	"github.com/codex-k8s/localaictl/internal/ui"
)

// newShowCommand creates the "show" subcommand that prints the merged configuration.
func newShowCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show every service with its enabled state, dependencies and dependents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, opts, appNeeds{})
			if err != nil {
				return err
			}
			defer a.Close()

			cfg := a.engine.Config(cmd.Context())
			if opts.Output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), api.NewConfigView(cfg))
			}
			ui.NewPrinter(cmd.OutOrStdout()).Config(cfg)
			return nil
		},
	}
}

// switchFlags selects the services an enable or disable acts on.
type switchFlags struct {
	category string
	all      bool
}

func (f switchFlags) validate(args []string) error {
	selectors := 0
	if len(args) > 0 {
		selectors++
	}
	if f.category != "" {
		selectors++
	}
	if f.all {
		selectors++
	}
	if selectors != 1 {
		return fmt.Errorf("pass service ids, --category or --all")
	}
	return nil
}

// switchReport is the JSON rendering of enable and disable.
type switchReport struct {
	Changes  []api.ChangeView    `json:"changes"`
	Rejected []api.RejectionView `json:"rejected,omitempty"`
	Config   *api.ConfigView     `json:"config,omitempty"`
}

// newEnableCommand creates the "enable" subcommand.
func newEnableCommand(opts *Options) *cobra.Command {
	return newSwitchCommand(opts, true)
}

// newDisableCommand creates the "disable" subcommand.
func newDisableCommand(opts *Options) *cobra.Command {
	return newSwitchCommand(opts, false)
}

func newSwitchCommand(opts *Options, enabled bool) *cobra.Command {
	var flags switchFlags
	use, short := "enable", "Enable services together with their dependencies"
	if !enabled {
		use, short = "disable", "Disable services together with the services that depend on them"
	}
	cmd := &cobra.Command{
		Use:   use + " [service...]",
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := flags.validate(args); err != nil {
				return err
			}
			a, err := openApp(cmd, opts, appNeeds{})
			if err != nil {
				return err
			}
			defer a.Close()

			if flags.all || flags.category != "" {
				category := catalog.Category(strings.ToLower(strings.TrimSpace(flags.category)))
				return runBulk(cmd, opts, a, category, enabled)
			}
			return runSwitch(cmd, opts, a, args, enabled)
		},
	}
	cmd.Flags().StringVar(&flags.category, "category", "", "Act on every service of a category")
	cmd.Flags().BoolVar(&flags.all, "all", false, "Act on every service")
	return cmd
}

// newToggleCommand creates the "toggle" subcommand that flips one service.
func newToggleCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <service>",
		Short: "Flip the enabled state of a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts, appNeeds{})
			if err != nil {
				return err
			}
			defer a.Close()

			sv, ok := a.engine.Config(cmd.Context()).Service(args[0])
			return runSwitch(cmd, opts, a, args, !(ok && sv.Enabled))
		},
	}
}

// runSwitch toggles ids in order and stops at the first failure.
// A store failure still prints the optimistic result before returning.
func runSwitch(cmd *cobra.Command, opts *Options, a *app, ids []string, enabled bool) error {
	ctx := cmd.Context()
	p := ui.NewPrinter(cmd.OutOrStdout())
	report := switchReport{Changes: []api.ChangeView{}}

	var last *resolver.Configuration
	var failure error
	for _, id := range ids {
		res, err := a.engine.Toggle(ctx, id, enabled)
		if res.Config != nil {
			last = res.Config
			report.Changes = append(report.Changes, api.NewChangeView(res.Change))
			if opts.Output != outputJSON {
				p.Change(res.Change)
				warnUnsaved(p, err)
			}
		}
		if err != nil {
			if rej := rejection(err); rej != nil {
				report.Rejected = append(report.Rejected, api.NewRejectionView(rej))
			}
			failure = err
			break
		}
	}

	if opts.Output == outputJSON {
		if last != nil {
			view := api.NewConfigView(last)
			report.Config = &view
		}
		if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
			return err
		}
	} else if last != nil {
		p.Notes(last.Notes)
	}
	return failure
}

func runBulk(cmd *cobra.Command, opts *Options, a *app, category catalog.Category, enabled bool) error {
	res, err := a.engine.Bulk(cmd.Context(), category, enabled)
	if res.Config == nil {
		return err
	}
	if opts.Output == outputJSON {
		report := switchReport{Changes: []api.ChangeView{}}
		for _, ch := range res.Bulk.Changes {
			report.Changes = append(report.Changes, api.NewChangeView(ch))
		}
		for _, rej := range res.Bulk.Rejected {
			report.Rejected = append(report.Rejected, api.NewRejectionView(rej))
		}
		view := api.NewConfigView(res.Config)
		report.Config = &view
		if werr := writeJSON(cmd.OutOrStdout(), report); werr != nil {
			return werr
		}
		return err
	}
	p := ui.NewPrinter(cmd.OutOrStdout())
	p.Bulk(res.Bulk)
	warnUnsaved(p, err)
	return err
}

// choice is one selectable profile or environment.
type choice struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Selected    bool   `json:"selected"`
}

// selection describes a named setting such as the profile.
type selection struct {
	label   string
	choices func(cat *catalog.Catalog, cfg *resolver.Configuration) []choice
	apply   func(ctx context.Context, a *app, name string) (*resolver.Configuration, error)
}

// newProfileCommand creates the "profile" subcommand.
func newProfileCommand(opts *Options) *cobra.Command {
	sel := selection{
		label: "profile",
		choices: func(cat *catalog.Catalog, cfg *resolver.Configuration) []choice {
			out := make([]choice, 0, len(cat.Profiles()))
			for _, prof := range cat.Profiles() {
				out = append(out, choice{Name: prof.Name, Description: prof.Description, Selected: prof.Name == cfg.Profile})
			}
			return out
		},
		apply: func(ctx context.Context, a *app, name string) (*resolver.Configuration, error) {
			return a.engine.SelectProfile(ctx, name)
		},
	}
	return newSelectionCommand(opts, "profile [name]", "Show or select the hardware profile", sel)
}

// newEnvironmentCommand creates the "environment" subcommand.
func newEnvironmentCommand(opts *Options) *cobra.Command {
	sel := selection{
		label: "environment",
		choices: func(cat *catalog.Catalog, cfg *resolver.Configuration) []choice {
			out := make([]choice, 0, len(cat.Environments()))
			for _, env := range cat.Environments() {
				out = append(out, choice{Name: env.Name, Description: env.Description, Selected: env.Name == cfg.Environment})
			}
			return out
		},
		apply: func(ctx context.Context, a *app, name string) (*resolver.Configuration, error) {
			return a.engine.SelectEnvironment(ctx, name)
		},
	}
	cmd := newSelectionCommand(opts, "environment [name]", "Show or select the network exposure mode", sel)
	cmd.Aliases = []string{"env"}
	return cmd
}

func newSelectionCommand(opts *Options, use, short string, sel selection) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts, appNeeds{})
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			p := ui.NewPrinter(out)
			if len(args) == 0 {
				choices := sel.choices(a.engine.Catalog(), a.engine.Config(cmd.Context()))
				if opts.Output == outputJSON {
					return writeJSON(out, choices)
				}
				rows := make([][]string, 0, len(choices))
				for _, c := range choices {
					mark := ""
					if c.Selected {
						mark = "*"
					}
					rows = append(rows, []string{mark, c.Name, c.Description})
				}
				p.Table([]string{"", strings.ToUpper(sel.label), "DESCRIPTION"}, rows)
				return nil
			}

			name := strings.ToLower(strings.TrimSpace(args[0]))
			cfg, err := sel.apply(cmd.Context(), a, name)
			if cfg == nil {
				return err
			}
			if opts.Output == outputJSON {
				if werr := writeJSON(out, api.NewConfigView(cfg)); werr != nil {
					return werr
				}
				return err
			}
			printSelected(p, sel.label, name, err)
			return err
		},
	}
}

// printSelected reports a selection; a store failure means it was not kept.
func printSelected(p *ui.Printer, label, name string, err error) {
	if prefs.IsStoreError(err) {
		p.Warn("%s %s not saved: %v", label, name, err)
		return
	}
	p.Success("%s set to %s", label, name)
}

// warnUnsaved warns that a change shown above was not persisted.
func warnUnsaved(p *ui.Printer, err error) {
	if prefs.IsStoreError(err) {
		p.Warn("change not saved: %v", err)
	}
}

// newServicesCommand creates the "services" subcommand that prints the effective service list.
func newServicesCommand(opts *Options) *cobra.Command {
	var profile string
	cmd := &cobra.Command{
		Use:   "services",
		Short: "Show the concrete compose services the current selection starts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, opts, appNeeds{})
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := a.engine.Effective(cmd.Context(), strings.TrimSpace(profile))
			if err != nil {
				return err
			}
			if opts.Output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), list)
			}
			ui.NewPrinter(cmd.OutOrStdout()).Effective(list)
			return nil
		},
	}
	cmd.Flags().StringVar(&profile, "profile", "", "Resolve for this profile instead of the selected one")
	return cmd
}
