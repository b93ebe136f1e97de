package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/localaictl/internal/catalog"
	"github.com/codex-k8s/localaictl/internal/compose"
	"github.com/codex-k8s/localaictl/internal/config"
	"github.com/codex-k8s/localaictl/internal/engine"
	"github.com/codex-k8s/localaictl/internal/metrics"
	"github.com/codex-k8s/localaictl/internal/monitor"
	"github.com/codex-k8s/localaictl/internal/prefs"
)

// statsConcurrency bounds parallel stats calls against the docker daemon.
const statsConcurrency = 8

// app bundles everything a command needs to talk to the stack.
type app struct {
	cfg     *config.Config
	engine  *engine.Engine
	compose *compose.Client
	metrics *metrics.Metrics
	logger  *slog.Logger
	closers []func() error
}

// appNeeds selects the optional runtime adapters a command uses.
type appNeeds struct {
	// monitor connects the docker SDK client.
	monitor bool
}

// Close releases the store and the docker client.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", "error", err)
		}
	}
}

// loadConfig reads localaictl.yaml and applies the preference flag overrides.
func loadConfig(opts *Options) (*config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath, config.LoadOptions{Optional: !opts.configExplicit})
	if err != nil {
		return nil, err
	}
	if b := strings.TrimSpace(opts.PreferencesBackend); b != "" {
		cfg.Preferences.Backend = b
	}
	if p := strings.TrimSpace(opts.PreferencesPath); p != "" {
		cfg.Preferences.Path = p
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openStore builds the preference store for the configured backend.
func openStore(cfg *config.Config, logger *slog.Logger) (prefs.Store, func() error, error) {
	switch cfg.Preferences.Backend {
	case "badger":
		store, err := prefs.OpenBadgerStore(prefs.BadgerOptions{
			Path:       cfg.Path(cfg.Preferences.Path),
			SyncWrites: true,
			Logger:     logger,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	case "memory":
		return prefs.NewMemoryStore(prefs.State{}), nil, nil
	case "file", "":
		return prefs.NewFileStore(cfg.Path(cfg.Preferences.Path)), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown preferences backend %q", cfg.Preferences.Backend)
	}
}

// openApp loads configuration and wires the engine for a command.
func openApp(cmd *cobra.Command, opts *Options, needs appNeeds) (*app, error) {
	logger := LoggerFromContext(cmd.Context())

	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger.Debug("config loaded", "source", cfg.Source(), "project", cfg.Project, "dir", cfg.ProjectDir)

	store, closeStore, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		compose: compose.NewClient(cfg, logger),
		metrics: metrics.New(),
		logger:  logger,
	}
	if closeStore != nil {
		a.closers = append(a.closers, closeStore)
	}

	engineOpts := engine.Options{
		Catalog:          catalog.Default(),
		Store:            store,
		Gateway:          a.compose,
		Logger:           logger,
		Metrics:          a.metrics,
		StatsTimeout:     cfg.Timeouts.Stats,
		LogsTimeout:      cfg.Timeouts.Logs,
		StatsConcurrency: statsConcurrency,
	}
	if needs.monitor {
		docker, err := monitor.NewDocker(cfg.Docker.Host, cfg.Project)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect to docker: %w", err)
		}
		engineOpts.Monitor = docker
		a.closers = append(a.closers, docker.Close)
	}

	e, err := engine.New(engineOpts)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.engine = e
	return a, nil
}
