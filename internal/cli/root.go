// Package cli defines the command-line interface for localaictl.
package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/localaictl/internal/config"
	"github.com/codex-k8s/localaictl/internal/logging"
)

// Options stores global CLI options shared between commands.
type Options struct {
	ConfigPath string
	LogLevel   logging.Level
	// Output is the rendering format, table or json.
	Output string
	// PreferencesPath overrides preferences.path from the config file.
	PreferencesPath string
	// PreferencesBackend overrides preferences.backend from the config file.
	PreferencesBackend string

	// configExplicit is set when the config path was given by flag or env and must exist.
	configExplicit bool
}

// Execute builds the root command, runs it with the provided args and logger, and returns any error.
func Execute(ctx context.Context, args []string, logger *slog.Logger) error {
	if logger == nil {
		logger = logging.NewLogger(os.Stderr, logging.LevelInfo)
	}

	var base baseEnv
	if err := parseEnv(&base); err != nil {
		return err
	}
	rootOpts := &Options{
		ConfigPath:     config.DefaultPath,
		LogLevel:       logging.LevelInfo,
		Output:         outputTable,
		configExplicit: base.ConfigPath != "",
	}

	rootCmd := newRootCommand(rootOpts, logger)
	applyBaseEnv(rootCmd, base)
	rootCmd.SetArgs(args)
	return rootCmd.ExecuteContext(ctx)
}

// newRootCommand constructs the root cobra.Command with global flags and subcommands.
func newRootCommand(opts *Options, logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "localaictl",
		Short:         "localaictl manages a self-hosted AI service stack",
		Long:          "localaictl decides which services of a docker compose based AI stack run, resolves their dependencies and hardware variants, and starts, stops and inspects them.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			level := logging.ParseLevel(cmd.Flag("log-level").Value.String())
			opts.LogLevel = level
			if cmd.Flags().Changed("config") {
				opts.configExplicit = true
			}
			if err := validateOutput(opts.Output); err != nil {
				return err
			}
			logger = logging.NewLogger(os.Stderr, level)
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(context.WithValue(ctx, loggerKey{}, logger))
			logger.Debug("logger initialized", "level", level)
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", config.DefaultPath, "Path to localaictl.yaml configuration file")
	cmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVarP(&opts.Output, "output", "o", outputTable, "Output format (table, json)")
	cmd.PersistentFlags().StringVar(&opts.PreferencesPath, "preferences", "", "Preferences file or database directory override")
	cmd.PersistentFlags().StringVar(&opts.PreferencesBackend, "preferences-backend", "", "Preferences backend override (file, badger, memory)")

	cmd.AddCommand(
		newShowCommand(opts),
		newEnableCommand(opts),
		newDisableCommand(opts),
		newToggleCommand(opts),
		newProfileCommand(opts),
		newEnvironmentCommand(opts),
		newServicesCommand(opts),
		newUpCommand(opts),
		newDownCommand(opts),
		newStatusCommand(opts),
		newContainersCommand(opts),
		newCleanupCommand(opts),
		newDoctorCommand(opts),
		newConfigureCommand(opts),
		newServeCommand(opts),
	)

	return cmd
}

// loggerKey is a private context key used to store a logger in command contexts.
type loggerKey struct{}

// LoggerFromContext extracts a logger from the context or falls back to a default logger.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	if ctx == nil {
		return logging.NewLogger(os.Stderr, logging.LevelInfo)
	}
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return logging.NewLogger(os.Stderr, logging.LevelInfo)
}
