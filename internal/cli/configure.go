package cli

import (
	"context"
	"errors"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/codex-k8s/localaictl/internal/engine"
	"github.com/codex-k8s/localaictl/internal/resolver"
	"github.com/codex-k8s/localaictl/internal/ui"
)

// newConfigureCommand creates the interactive "configure" subcommand.
func newConfigureCommand(opts *Options) *cobra.Command {
	var apply bool
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Pick services, profile and environment interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, opts, appNeeds{})
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			cfg := a.engine.Config(ctx)
			sel, err := ui.RunConfigure(a.engine.Catalog(), cfg)
			if errors.Is(err, huh.ErrUserAborted) {
				return nil
			}
			if err != nil {
				return err
			}

			p := ui.NewPrinter(cmd.OutOrStdout())
			plan := ui.PlanSelection(a.engine.Catalog(), cfg, sel)
			if plan.Empty() {
				p.Line("nothing to change")
				return nil
			}
			next, err := applyPlan(ctx, a.engine, plan, p)
			if err != nil {
				return err
			}
			if next != nil {
				p.Config(next)
			}
			if !apply {
				return nil
			}
			res, err := a.engine.Apply(ctx)
			if res.Outcome.ID != "" {
				p.Outcome(res.Outcome)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "Start the stack after saving the selection")
	return cmd
}

// applyPlan runs the planned toggles and selections in order. Rejected
// toggles are reported and skipped; store failures abort.
func applyPlan(ctx context.Context, e *engine.Engine, plan ui.Plan, p *ui.Printer) (*resolver.Configuration, error) {
	var last *resolver.Configuration
	steps := make([]func() (*resolver.Configuration, error), 0, len(plan.Disable)+len(plan.Enable)+2)
	for _, id := range plan.Disable {
		steps = append(steps, toggleStep(ctx, e, p, id, false))
	}
	for _, id := range plan.Enable {
		steps = append(steps, toggleStep(ctx, e, p, id, true))
	}
	if plan.Profile != "" {
		steps = append(steps, func() (*resolver.Configuration, error) { return e.SelectProfile(ctx, plan.Profile) })
	}
	if plan.Environment != "" {
		steps = append(steps, func() (*resolver.Configuration, error) { return e.SelectEnvironment(ctx, plan.Environment) })
	}

	for _, step := range steps {
		cfg, err := step()
		if cfg != nil {
			last = cfg
		}
		if err == nil {
			continue
		}
		if resolver.IsRejected(err) {
			p.Warn("%s", err.Error())
			continue
		}
		return last, err
	}
	return last, nil
}

func toggleStep(ctx context.Context, e *engine.Engine, p *ui.Printer, id string, enabled bool) func() (*resolver.Configuration, error) {
	return func() (*resolver.Configuration, error) {
		res, err := e.Toggle(ctx, id, enabled)
		if res.Config != nil {
			p.Change(res.Change)
			warnUnsaved(p, err)
		}
		return res.Config, err
	}
}
