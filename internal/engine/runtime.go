package engine

import (
	"context"
	"time"

	"github.com/codex-k8s/localaictl/internal/lifecycle"
	"github.com/codex-k8s/localaictl/internal/resolver"
)

// ApplyResult pairs the effective list with what the gateway did with it.
type ApplyResult struct {
	Effective resolver.EffectiveList `json:"effective"`
	Outcome   lifecycle.Outcome      `json:"outcome"`
}

// Apply resolves the effective list for the selected profile and starts it.
func (e *Engine) Apply(ctx context.Context) (ApplyResult, error) {
	if e.opts.Gateway == nil {
		return ApplyResult{}, ErrNoGateway
	}
	cfg := e.Config(ctx)
	list := resolver.Effective(e.opts.Catalog, cfg.Enabled(), cfg.Profile)
	for _, res := range list.Resolutions {
		if res.Substituted() || res.Pull != "" {
			e.logger.Debug("variant resolved", "service", res.Service, "concrete", res.Concrete, "pull", res.Pull)
		}
	}

	e.logger.Info("applying configuration",
		"profile", cfg.Profile,
		"environment", cfg.Environment,
		"services", describe(list.Services),
		"external", len(list.External),
	)
	started := time.Now()
	outcome, err := e.opts.Gateway.Start(ctx, lifecycle.StartRequest{
		Services:    list.Services,
		External:    list.External,
		Profile:     cfg.Profile,
		Environment: cfg.Environment,
	})
	e.opts.Metrics.ObserveLifecycle("start", err == nil && outcome.Accepted, time.Since(started).Seconds())
	result := ApplyResult{Effective: list, Outcome: outcome}
	if err != nil {
		e.logger.Error("apply failed", "outcome", outcome.ID, "error", err)
		return result, err
	}
	return result, nil
}

// StopOptions selects what Stop tears down.
type StopOptions struct {
	// All tears down the whole compose project instead of the enabled services.
	All bool
	// RemoveVolumes also deletes volumes and orphan containers.
	RemoveVolumes bool
}

// Stop stops the effective services of the current configuration.
func (e *Engine) Stop(ctx context.Context, opts StopOptions) (lifecycle.Outcome, error) {
	if e.opts.Gateway == nil {
		return lifecycle.Outcome{}, ErrNoGateway
	}
	cfg := e.Config(ctx)
	list := resolver.Effective(e.opts.Catalog, cfg.Enabled(), cfg.Profile)

	started := time.Now()
	outcome, err := e.opts.Gateway.Stop(ctx, lifecycle.StopRequest{
		Services:      list.Services,
		External:      list.External,
		Profile:       cfg.Profile,
		Environment:   cfg.Environment,
		All:           opts.All,
		RemoveVolumes: opts.RemoveVolumes,
	})
	e.opts.Metrics.ObserveLifecycle(outcome.Action, err == nil && outcome.Accepted, time.Since(started).Seconds())
	if err != nil {
		e.logger.Error("stop failed", "outcome", outcome.ID, "error", err)
		return outcome, err
	}
	return outcome, nil
}

// ServiceStatus is the runtime state of one enabled logical service.
type ServiceStatus struct {
	Service  string          `json:"service"`
	Category string          `json:"category"`
	Concrete string          `json:"concrete,omitempty"`
	External bool            `json:"external,omitempty"`
	State    lifecycle.State `json:"state"`
}

// StatusReport lists the state of every enabled service.
type StatusReport struct {
	Profile     string          `json:"profile"`
	Environment string          `json:"environment"`
	Services    []ServiceStatus `json:"services"`
	// Error is set when the gateway could not be queried; every state is then unknown.
	Error string `json:"error,omitempty"`
}

// Status queries the gateway for every enabled service. A gateway failure
// marks all services unknown instead of failing the call. Services with an
// external deployment are reported as unknown.
func (e *Engine) Status(ctx context.Context) (StatusReport, error) {
	if e.opts.Gateway == nil {
		return StatusReport{}, ErrNoGateway
	}
	cfg := e.Config(ctx)
	set := cfg.Enabled()
	report := StatusReport{Profile: cfg.Profile, Environment: cfg.Environment}

	var concrete []string
	for _, def := range e.opts.Catalog.All() {
		if !set.Has(def.ID) {
			continue
		}
		st := ServiceStatus{Service: def.ID, Category: string(def.Category), State: lifecycle.StateUnknown}
		if def.External != nil {
			st.External = true
		} else {
			st.Concrete = resolver.ResolveVariant(def, cfg.Profile).Concrete
			concrete = append(concrete, st.Concrete)
		}
		report.Services = append(report.Services, st)
	}
	if len(concrete) == 0 {
		return report, nil
	}

	states, err := e.opts.Gateway.Status(ctx, concrete)
	if err != nil {
		e.opts.Metrics.ObserveAdapterFailure("status")
		e.logger.Warn("status unavailable", "error", err)
		report.Error = err.Error()
		return report, nil
	}
	for i, st := range report.Services {
		if st.External {
			continue
		}
		if s, ok := states[st.Concrete]; ok {
			report.Services[i].State = s
		}
	}
	return report, nil
}
