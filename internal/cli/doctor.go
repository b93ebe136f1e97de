package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/localaictl/internal/catalog"
	"github.com/codex-k8s/localaictl/internal/config"
	"github.com/codex-k8s/localaictl/internal/env"
	"github.com/codex-k8s/localaictl/internal/resolver"
	"github.com/codex-k8s/localaictl/internal/ui"
)

// doctorCheck is the result of one preflight check.
type doctorCheck struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// newDoctorCommand creates the "doctor" subcommand that runs environment preflight checks.
func newDoctorCommand(opts *Options) *cobra.Command {
	var fix bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run environment preflight checks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := LoggerFromContext(cmd.Context())

			a, err := openApp(cmd, opts, appNeeds{})
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
			defer cancel()

			checks := []doctorCheck{
				checkBinary(a.cfg.Docker.Binary),
				checkComposeServices(ctx, a.engine.Catalog(), a.compose),
				checkEnvFile(logger, a.cfg, fix),
				checkPreferences(a.engine.Config(ctx)),
			}

			failed := 0
			for _, c := range checks {
				if !c.OK {
					failed++
				}
			}
			if opts.Output == outputJSON {
				if err := writeJSON(cmd.OutOrStdout(), checks); err != nil {
					return err
				}
			} else {
				p := ui.NewPrinter(cmd.OutOrStdout())
				for _, c := range checks {
					p.Check(c.OK, c.Name, c.Detail)
				}
			}
			if failed > 0 {
				return fmt.Errorf("doctor found %d problem(s)", failed)
			}
			logger.Info("doctor checks completed successfully", "config", a.cfg.Source())
			return nil
		},
	}
	cmd.Flags().BoolVar(&fix, "fix", false, "Create or complete the .env file from its template")
	return cmd
}

func checkBinary(name string) doctorCheck {
	path, err := exec.LookPath(name)
	if err != nil {
		return doctorCheck{Name: name, Detail: "not found in PATH"}
	}
	return doctorCheck{Name: name, OK: true, Detail: path}
}

// serviceDefiner reports compose services that no compose file defines.
type serviceDefiner interface {
	MissingServices(ctx context.Context, ids []string) ([]string, error)
}

// concreteServices returns every compose service id any profile can start.
// Profile none passes logical ids through and is left out.
func concreteServices(cat *catalog.Catalog) []string {
	all := resolver.NewSet(cat.IDs()...)
	seen := make(map[string]struct{})
	for _, prof := range cat.Profiles() {
		if prof.Name == catalog.ProfileNone {
			continue
		}
		for _, id := range resolver.Effective(cat, all, prof.Name).Services {
			seen[id] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func checkComposeServices(ctx context.Context, cat *catalog.Catalog, compose serviceDefiner) doctorCheck {
	check := doctorCheck{Name: "compose services"}
	ids := concreteServices(cat)
	missing, err := compose.MissingServices(ctx, ids)
	if err != nil {
		check.Detail = err.Error()
		return check
	}
	if len(missing) > 0 {
		check.Detail = "not defined: " + strings.Join(missing, ", ")
		return check
	}
	check.OK = true
	check.Detail = fmt.Sprintf("%d services defined", len(ids))
	return check
}

// checkEnvFile compares the .env file with its template. With fix the file
// is created from the template or completed with the missing keys.
func checkEnvFile(logger *slog.Logger, cfg *config.Config, fix bool) doctorCheck {
	envPath, examplePath := cfg.Path(cfg.EnvFile), cfg.Path(cfg.EnvExample)
	check := doctorCheck{Name: cfg.EnvFile}

	if _, err := os.Stat(examplePath); err != nil {
		check.Detail = fmt.Sprintf("template %s not readable: %v", cfg.EnvExample, err)
		return check
	}
	if _, err := os.Stat(envPath); errors.Is(err, fs.ErrNotExist) {
		if !fix {
			check.Detail = fmt.Sprintf("missing, copy %s or run doctor --fix", cfg.EnvExample)
			return check
		}
		raw, err := os.ReadFile(examplePath)
		if err == nil {
			err = os.WriteFile(envPath, raw, 0o600)
		}
		if err != nil {
			check.Detail = err.Error()
			return check
		}
		logger.Info("created env file from template", "path", envPath)
	}

	diff, example, err := env.CompareFiles(envPath, examplePath)
	if err != nil {
		check.Detail = err.Error()
		return check
	}
	if len(diff.Extra) > 0 {
		logger.Warn("env file has keys the template does not", "keys", strings.Join(diff.Extra, ","))
	}
	if len(diff.Missing) == 0 {
		check.OK = true
		return check
	}
	if !fix {
		check.Detail = "missing keys: " + strings.Join(diff.Missing, ", ")
		return check
	}
	if err := env.AppendMissing(envPath, diff.Missing, example); err != nil {
		check.Detail = err.Error()
		return check
	}
	check.OK = true
	check.Detail = "added " + strings.Join(diff.Missing, ", ")
	return check
}

func checkPreferences(cfg *resolver.Configuration) doctorCheck {
	check := doctorCheck{Name: "preferences", OK: true}
	for _, n := range cfg.Notes {
		switch n.Kind {
		case resolver.NoteStoreUnavailable:
			check.OK = false
			check.Detail = n.Subject
			return check
		case resolver.NoteUnknownService:
			check.Detail = strings.TrimSpace(check.Detail + " unknown entry " + n.Subject)
		}
	}
	return check
}
