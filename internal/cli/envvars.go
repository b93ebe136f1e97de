package cli

import (
	"os"
	"strings"

	envparse "github.com/caarlos0/env/v11"
	"github.com/spf13/cobra"
)

// baseEnv defines root CLI defaults sourced from LOCALAICTL_* env vars.
type baseEnv struct {
	// ConfigPath is the localaictl.yaml path from LOCALAICTL_CONFIG.
	ConfigPath string `env:"LOCALAICTL_CONFIG"`
	// LogLevel is the logging level from LOCALAICTL_LOG_LEVEL.
	LogLevel string `env:"LOCALAICTL_LOG_LEVEL"`
	// Output is the output format from LOCALAICTL_OUTPUT.
	Output string `env:"LOCALAICTL_OUTPUT"`
}

// serveEnv captures inputs for the serve command.
type serveEnv struct {
	// Listen is the bind address from LOCALAICTL_LISTEN.
	Listen string `env:"LOCALAICTL_LISTEN"`
}

// parseEnv fills target from LOCALAICTL_* env vars via caarlos0/env.
func parseEnv(target interface{}) error {
	return envparse.Parse(target)
}

// envPresent reports whether a non-empty env var exists.
func envPresent(key string) bool {
	val, ok := os.LookupEnv(key)
	if !ok {
		return false
	}
	return strings.TrimSpace(val) != ""
}

// applyBaseEnv turns env values into flag defaults; explicit flags still win.
func applyBaseEnv(cmd *cobra.Command, base baseEnv) {
	set := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		f := cmd.PersistentFlags().Lookup(name)
		if f == nil {
			return
		}
		_ = f.Value.Set(value)
		f.DefValue = value
	}
	set("config", base.ConfigPath)
	set("log-level", base.LogLevel)
	set("output", base.Output)
}
