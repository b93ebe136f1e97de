// Package engine contains the high-level orchestration logic: it loads
// preferences, runs the resolver, persists the result and hands the effective
// service list to the lifecycle gateway.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/codex-k8s/localaictl/internal/catalog"
	"github.com/codex-k8s/localaictl/internal/lifecycle"
	"github.com/codex-k8s/localaictl/internal/logging"
	"github.com/codex-k8s/localaictl/internal/metrics"
	"github.com/codex-k8s/localaictl/internal/monitor"
	"github.com/codex-k8s/localaictl/internal/prefs"
	"github.com/codex-k8s/localaictl/internal/resolver"
)

var (
	// ErrNoGateway is returned by lifecycle operations when no gateway is configured.
	ErrNoGateway = errors.New("lifecycle gateway not configured")
	// ErrNoMonitor is returned by container operations when no adapter is configured.
	ErrNoMonitor = errors.New("container monitor not configured")
)

// Options holds the collaborators of an Engine.
type Options struct {
	// Catalog is the immutable service catalog. Required.
	Catalog *catalog.Catalog
	// Store persists operator preferences. Required.
	Store prefs.Store
	// Gateway starts and stops services. Optional.
	Gateway lifecycle.Gateway
	// Monitor reads container state. Optional.
	Monitor monitor.Adapter
	// Logger receives operational logs.
	Logger *slog.Logger
	// Metrics records counters and gauges. Optional.
	Metrics *metrics.Metrics
	// StatsTimeout bounds a single container stats call.
	StatsTimeout time.Duration
	// LogsTimeout bounds a single container logs call.
	LogsTimeout time.Duration
	// StatsConcurrency caps concurrent stats calls, 0 for no limit.
	StatsConcurrency int
}

// Engine coordinates the catalog, the preference store and the runtime.
// Mutating operations are serialized so one process never interleaves its
// own load/save pairs.
type Engine struct {
	opts   Options
	logger *slog.Logger
	mu     sync.Mutex
}

// New constructs an Engine.
func New(opts Options) (*Engine, error) {
	if opts.Catalog == nil {
		return nil, errors.New("engine: catalog is required")
	}
	if opts.Store == nil {
		return nil, errors.New("engine: preference store is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Engine{opts: opts, logger: logger}, nil
}

// Catalog returns the catalog the engine resolves against.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.opts.Catalog
}

// ToggleResult is the outcome of a single enable or disable.
type ToggleResult struct {
	Change resolver.Change
	Config *resolver.Configuration
}

// BulkResult is the outcome of a category-wide enable or disable.
type BulkResult struct {
	Bulk   resolver.BulkChange
	Config *resolver.Configuration
}

// Config loads preferences and returns the merged configuration.
// A store failure degrades to the catalog defaults and is reported as a note.
func (e *Engine) Config(ctx context.Context) *resolver.Configuration {
	e.mu.Lock()
	defer e.mu.Unlock()
	cfg, _, _ := e.load(ctx)
	return cfg
}

// Toggle enables or disables id and persists the result.
// A rejection leaves stored state untouched. When the preferences cannot be
// loaded nothing is changed and the *prefs.StoreError is returned. When saving
// fails the optimistic result is returned together with the *prefs.StoreError.
func (e *Engine) Toggle(ctx context.Context, id string, enabled bool) (ToggleResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	action := actionName(enabled)
	cfg, stored, err := e.loadForUpdate(ctx)
	if err != nil {
		e.opts.Metrics.ObserveToggle(action, "store-error")
		e.logger.Warn("toggle refused, preferences unavailable", "service", id, "action", action, "error", err)
		return ToggleResult{}, err
	}
	change, err := resolver.Toggle(e.opts.Catalog, cfg.Enabled(), cfg.Auto(), id, enabled)
	if err != nil {
		e.opts.Metrics.ObserveToggle(action, "rejected")
		e.logger.Warn("toggle rejected", "service", id, "action", action, "error", err)
		return ToggleResult{}, err
	}
	e.opts.Metrics.ObserveCascade(true, len(change.AutoEnabled))
	e.opts.Metrics.ObserveCascade(false, len(change.AutoDisabled)+len(change.Released))

	next := resolver.Build(e.opts.Catalog, change.Set, change.Auto, cfg.Profile, cfg.Environment)
	e.logger.Info("service toggled",
		"service", id,
		"action", action,
		"autoEnabled", change.AutoEnabled,
		"autoDisabled", change.AutoDisabled,
		"released", change.Released,
	)
	result := ToggleResult{Change: change, Config: next}
	if err := e.save(ctx, next, stored); err != nil {
		e.opts.Metrics.ObserveToggle(action, "store-error")
		return result, err
	}
	e.opts.Metrics.ObserveToggle(action, "ok")
	return result, nil
}

// Bulk enables or disables every service of category, or all services when
// category is empty. Required services skipped on disable are listed in the
// result, not returned as an error.
func (e *Engine) Bulk(ctx context.Context, category catalog.Category, enabled bool) (BulkResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	action := "bulk-" + actionName(enabled)
	cfg, stored, err := e.loadForUpdate(ctx)
	if err != nil {
		e.opts.Metrics.ObserveToggle(action, "store-error")
		e.logger.Warn("bulk toggle refused, preferences unavailable", "category", categoryLabel(category), "error", err)
		return BulkResult{}, err
	}
	bulk, err := resolver.BulkToggle(e.opts.Catalog, cfg.Enabled(), cfg.Auto(), category, enabled)
	if err != nil {
		e.opts.Metrics.ObserveToggle(action, "rejected")
		return BulkResult{}, err
	}
	for _, ch := range bulk.Changes {
		e.opts.Metrics.ObserveCascade(true, len(ch.AutoEnabled))
		e.opts.Metrics.ObserveCascade(false, len(ch.AutoDisabled)+len(ch.Released))
	}
	for _, rej := range bulk.Rejected {
		e.logger.Warn("bulk toggle skipped service", "service", rej.Subject, "reason", rej.Reason)
	}

	next := resolver.Build(e.opts.Catalog, bulk.Set, bulk.Auto, cfg.Profile, cfg.Environment)
	e.logger.Info("category toggled", "category", categoryLabel(category), "action", action, "changes", len(bulk.Changes))
	result := BulkResult{Bulk: bulk, Config: next}
	if err := e.save(ctx, next, stored); err != nil {
		e.opts.Metrics.ObserveToggle(action, "store-error")
		return result, err
	}
	e.opts.Metrics.ObserveToggle(action, "ok")
	return result, nil
}

// SelectProfile stores the hardware profile.
func (e *Engine) SelectProfile(ctx context.Context, name string) (*resolver.Configuration, error) {
	if err := resolver.ValidateProfile(e.opts.Catalog, name); err != nil {
		return nil, err
	}
	return e.updateSelection(ctx, func(cfg *resolver.Configuration) {
		e.logger.Info("profile selected", "from", cfg.Profile, "to", name)
		cfg.Profile = name
	})
}

// SelectEnvironment stores the exposure mode.
func (e *Engine) SelectEnvironment(ctx context.Context, name string) (*resolver.Configuration, error) {
	if err := resolver.ValidateEnvironment(e.opts.Catalog, name); err != nil {
		return nil, err
	}
	return e.updateSelection(ctx, func(cfg *resolver.Configuration) {
		e.logger.Info("environment selected", "from", cfg.Environment, "to", name)
		cfg.Environment = name
	})
}

func (e *Engine) updateSelection(ctx context.Context, apply func(*resolver.Configuration)) (*resolver.Configuration, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cfg, stored, err := e.loadForUpdate(ctx)
	if err != nil {
		e.logger.Warn("selection refused, preferences unavailable", "error", err)
		return nil, err
	}
	next := resolver.Build(e.opts.Catalog, cfg.Enabled(), cfg.Auto(), cfg.Profile, cfg.Environment)
	apply(next)
	if err := e.save(ctx, next, stored); err != nil {
		return next, err
	}
	return next, nil
}

// Effective computes the concrete service list for profile, or for the
// selected profile when profile is empty.
func (e *Engine) Effective(ctx context.Context, profile string) (resolver.EffectiveList, error) {
	cfg := e.Config(ctx)
	if profile == "" {
		profile = cfg.Profile
	} else if err := resolver.ValidateProfile(e.opts.Catalog, profile); err != nil {
		return resolver.EffectiveList{}, err
	}
	return resolver.Effective(e.opts.Catalog, cfg.Enabled(), profile), nil
}

// load reads preferences and merges them. The returned state is the raw
// stored record. A store failure degrades to the catalog defaults with a note
// and is returned as a *prefs.StoreError.
func (e *Engine) load(ctx context.Context) (*resolver.Configuration, prefs.State, error) {
	state, err := e.opts.Store.Load(ctx)
	if err != nil {
		e.opts.Metrics.ObserveStoreFailure("load")
		e.logger.Warn("preferences unavailable, using defaults", "error", err)
		cfg := resolver.Merge(e.opts.Catalog, prefs.State{})
		cfg.Notes = append(cfg.Notes, resolver.Note{Kind: resolver.NoteStoreUnavailable, Subject: err.Error()})
		e.opts.Metrics.SetEnabled(len(cfg.Enabled()))
		var storeErr *prefs.StoreError
		if !errors.As(err, &storeErr) {
			err = &prefs.StoreError{Op: "load", Backend: "unknown", Err: err}
		}
		return cfg, prefs.State{}, err
	}
	cfg := resolver.Merge(e.opts.Catalog, state)
	for _, n := range cfg.Notes {
		e.logger.Debug("preferences reconciled", "kind", n.Kind, "subject", n.Subject)
	}
	e.opts.Metrics.SetEnabled(len(cfg.Enabled()))
	return cfg, state, nil
}

// loadForUpdate is load for state-changing operations. The defaults used after
// a failed load must never be saved over the unreadable record, so the load
// error is returned instead of a configuration.
func (e *Engine) loadForUpdate(ctx context.Context) (*resolver.Configuration, prefs.State, error) {
	cfg, stored, err := e.load(ctx)
	if err != nil {
		return nil, prefs.State{}, err
	}
	return cfg, stored, nil
}

// save persists cfg. Stored entries for ids the catalog no longer defines
// are carried forward untouched.
func (e *Engine) save(ctx context.Context, cfg *resolver.Configuration, stored prefs.State) error {
	state := cfg.State()
	for _, entry := range stored.Entries {
		if !e.opts.Catalog.Has(entry.ServiceID) {
			state.Entries = append(state.Entries, entry)
		}
	}
	if err := e.opts.Store.Save(ctx, state); err != nil {
		e.opts.Metrics.ObserveStoreFailure("save")
		e.logger.Error("save preferences failed", "error", err)
		var storeErr *prefs.StoreError
		if !errors.As(err, &storeErr) {
			err = &prefs.StoreError{Op: "save", Backend: "unknown", Err: err}
		}
		return err
	}
	e.opts.Metrics.SetEnabled(len(cfg.Enabled()))
	return nil
}

func actionName(enabled bool) string {
	if enabled {
		return "enable"
	}
	return "disable"
}

func categoryLabel(c catalog.Category) string {
	if c == "" {
		return "all"
	}
	return string(c)
}

// describe renders a short human summary of ids for log and error messages.
func describe(ids []string) string {
	if len(ids) == 0 {
		return "no services"
	}
	return fmt.Sprintf("%d services", len(ids))
}
