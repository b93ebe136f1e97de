// Package config contains the loader and strongly typed model for localaictl.yaml.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	envparse "github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/codex-k8s/localaictl/internal/env"
)

// DefaultPath is the configuration file looked up when no path is given.
const DefaultPath = "localaictl.yaml"

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "LOCALAICTL_"

// Config describes the compose project driven by localaictl.
type Config struct {
	// Project is the compose project name passed as "docker compose -p".
	Project string `yaml:"project" env:"PROJECT" validate:"required"`
	// ProjectDir is the directory holding the compose files; relative paths resolve against it.
	ProjectDir string `yaml:"projectDir,omitempty" env:"PROJECT_DIR"`
	// ComposeFiles lists the primary compose files.
	ComposeFiles []string `yaml:"composeFiles,omitempty" env:"COMPOSE_FILES" envSeparator:"," validate:"min=1,dive,required"`
	// EnvironmentOverrides lists extra compose files per environment (private, public).
	EnvironmentOverrides map[string][]string `yaml:"environmentOverrides,omitempty"`
	// ExternalOverrides lists extra compose files per external service and environment.
	ExternalOverrides map[string]map[string][]string `yaml:"externalOverrides,omitempty"`
	// EnvFile is the .env file used by compose.
	EnvFile string `yaml:"envFile,omitempty" env:"ENV_FILE"`
	// EnvExample is the template .env file used by doctor checks.
	EnvExample string `yaml:"envExample,omitempty" env:"ENV_EXAMPLE"`
	// Preferences selects the preference store backend.
	Preferences PreferencesConfig `yaml:"preferences,omitempty" envPrefix:"PREFERENCES_"`
	// Docker configures the container runtime connection.
	Docker DockerConfig `yaml:"docker,omitempty" envPrefix:"DOCKER_"`
	// Timeouts bounds external calls.
	Timeouts Timeouts `yaml:"timeouts,omitempty" envPrefix:"TIMEOUT_"`
	// API configures the HTTP server started by "serve".
	API APIConfig `yaml:"api,omitempty" envPrefix:"API_"`
	// DataPaths lists host directories removed by "cleanup".
	DataPaths *DataPaths `yaml:"dataPaths,omitempty"`

	// path is the file the configuration was read from, empty for defaults.
	path string
}

// PreferencesConfig describes where operator preferences are stored.
type PreferencesConfig struct {
	// Backend is one of file, badger or memory.
	Backend string `yaml:"backend,omitempty" env:"BACKEND" validate:"oneof=file badger memory"`
	// Path is the JSON file (file backend) or database directory (badger backend).
	Path string `yaml:"path,omitempty" env:"PATH" validate:"required_unless=Backend memory"`
}

// DockerConfig describes how to reach the container runtime.
type DockerConfig struct {
	// Binary is the docker CLI used for compose commands.
	Binary string `yaml:"binary,omitempty" env:"BINARY" validate:"required"`
	// Host overrides DOCKER_HOST for the SDK client.
	Host string `yaml:"host,omitempty" env:"HOST"`
}

// Timeouts holds durations for external operations.
type Timeouts struct {
	// Compose bounds a single docker compose invocation.
	Compose time.Duration `yaml:"compose,omitempty" env:"COMPOSE" validate:"gte=0"`
	// Stats bounds a single container stats call.
	Stats time.Duration `yaml:"stats,omitempty" env:"STATS" validate:"gte=0"`
	// Logs bounds a single container logs call.
	Logs time.Duration `yaml:"logs,omitempty" env:"LOGS" validate:"gte=0"`
	// ExternalSettle is the pause after starting external deployments.
	ExternalSettle time.Duration `yaml:"externalSettle,omitempty" env:"EXTERNAL_SETTLE" validate:"gte=0"`
}

// APIConfig configures the HTTP API.
type APIConfig struct {
	// Listen is the address the server binds to.
	Listen string `yaml:"listen,omitempty" env:"LISTEN" validate:"required"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Project:      "localai",
		ProjectDir:   ".",
		ComposeFiles: []string{"docker-compose.yml"},
		EnvironmentOverrides: map[string][]string{
			"private": {"docker-compose.override.private.yml"},
			"public":  {"docker-compose.override.public.yml"},
		},
		ExternalOverrides: map[string]map[string][]string{
			"supabase": {"public": {"docker-compose.override.public.supabase.yml"}},
		},
		EnvFile:    ".env",
		EnvExample: ".env.example",
		Preferences: PreferencesConfig{
			Backend: "file",
			Path:    filepath.Join("shared", "custom_services.json"),
		},
		Docker: DockerConfig{Binary: "docker"},
		Timeouts: Timeouts{
			Compose:        15 * time.Minute,
			Stats:          5 * time.Second,
			Logs:           10 * time.Second,
			ExternalSettle: 10 * time.Second,
		},
		API: APIConfig{Listen: "127.0.0.1:8085"},
	}
}

// LoadOptions controls how the configuration is loaded.
type LoadOptions struct {
	// Optional tolerates a missing file and falls back to defaults.
	Optional bool
	// Environ replaces the process environment for overrides and templates.
	Environ env.Vars
}

// Load reads path (rendered as a template), applies LOCALAICTL_* overrides and validates the result.
func Load(path string, opts LoadOptions) (*Config, error) {
	cfg := Default()
	vars := opts.Environ
	if vars == nil {
		vars = env.FromOS()
	}

	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	raw, err := os.ReadFile(absPath)
	switch {
	case errors.Is(err, fs.ErrNotExist) && opts.Optional:
	case err != nil:
		return nil, fmt.Errorf("read config %q: %w", absPath, err)
	default:
		rendered, err := RenderTemplate(filepath.Base(absPath), raw, vars)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(rendered, cfg); err != nil {
			return nil, fmt.Errorf("parse config %q: %w", absPath, err)
		}
		cfg.path = absPath
		if !filepath.IsAbs(cfg.ProjectDir) {
			cfg.ProjectDir = filepath.Join(filepath.Dir(absPath), cfg.ProjectDir)
		}
	}

	if err := envparse.ParseWithOptions(cfg, envparse.Options{
		Prefix:      EnvPrefix,
		Environment: vars,
	}); err != nil {
		return nil, fmt.Errorf("apply %s overrides: %w", EnvPrefix, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			parts := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				parts = append(parts, fmt.Sprintf("%s fails %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(parts, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Source returns the file the configuration was loaded from, empty for defaults.
func (c *Config) Source() string {
	return c.path
}

// Path resolves p against the project directory.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.ProjectDir, p)
}

// ComposeFilesFor returns the primary compose files plus the overrides of environment.
func (c *Config) ComposeFilesFor(environment string) []string {
	files := append([]string(nil), c.ComposeFiles...)
	return append(files, c.EnvironmentOverrides[environment]...)
}

// ExternalOverridesFor returns the extra compose files of an external service in environment.
func (c *Config) ExternalOverridesFor(service, environment string) []string {
	return append([]string(nil), c.ExternalOverrides[service][environment]...)
}

// RenderTemplate renders text with the config helpers and vars as data.
func RenderTemplate(name string, raw []byte, vars env.Vars) ([]byte, error) {
	tmpl, err := template.New(name).Funcs(buildFuncMap(vars)).Parse(string(raw))
	if err != nil {
		return nil, fmt.Errorf("parse template %q: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return nil, fmt.Errorf("execute template %q: %w", name, err)
	}
	return buf.Bytes(), nil
}

// buildFuncMap constructs the template functions available in localaictl.yaml.
func buildFuncMap(vars env.Vars) template.FuncMap {
	return template.FuncMap{
		"default": funcDef,
		"toLower": strings.ToLower,
		"envOr":   funcEnvOr(vars),
	}
}

// funcDef returns def when value is empty or whitespace, otherwise value.
func funcDef(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}

// funcEnvOr returns a function that looks up a key in vars and falls back to def.
func funcEnvOr(vars env.Vars) func(key, def string) string {
	return func(key, def string) string {
		if v, ok := vars[key]; ok && v != "" {
			return v
		}
		return def
	}
}
