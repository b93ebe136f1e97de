package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/codex-k8s/localaictl/internal/config"
	"github.com/codex-k8s/localaictl/internal/engine"
	"github.com/codex-k8s/localaictl/internal/ui"
)

type dataPathAction int

const (
	dataPathClean dataPathAction = iota
	dataPathDelete
)

// newCleanupCommand creates the "cleanup" subcommand that tears the project down and wipes its data directories.
func newCleanupCommand(opts *Options) *cobra.Command {
	var (
		yes          bool
		contentsOnly bool
		skipStop     bool
	)
	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Stop the whole project, remove its volumes and wipe the configured data directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errors.New("cleanup deletes service data; pass --yes to confirm")
			}
			a, err := openApp(cmd, opts, appNeeds{})
			if err != nil {
				return err
			}
			defer a.Close()

			p := ui.NewPrinter(cmd.OutOrStdout())
			if !skipStop {
				outcome, err := a.engine.Stop(cmd.Context(), engine.StopOptions{All: true, RemoveVolumes: true})
				if err != nil {
					return err
				}
				p.Outcome(outcome)
			}

			action := dataPathDelete
			if contentsOnly {
				action = dataPathClean
			}
			handled := handleDataPaths(a.logger, a.cfg, action)
			for _, path := range handled {
				p.Success("wiped %s", path)
			}
			if len(handled) == 0 {
				p.Line("no data directories configured")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm data removal")
	cmd.Flags().BoolVar(&contentsOnly, "contents-only", false, "Empty the data directories instead of deleting them")
	cmd.Flags().BoolVar(&skipStop, "skip-stop", false, "Do not stop the project first")
	return cmd
}

// handleDataPaths applies action to every configured data directory inside
// the project directory and returns the paths it touched.
func handleDataPaths(logger *slog.Logger, cfg *config.Config, action dataPathAction) []string {
	root, err := filepath.Abs(cfg.ProjectDir)
	if err != nil {
		logger.Warn("resolve project dir failed", "dir", cfg.ProjectDir, "error", err)
		return nil
	}

	var handled []string
	for _, path := range cfg.ResolveDataPaths() {
		abs, err := filepath.Abs(path)
		if err != nil || !safeDataPath(root, abs) {
			logger.Warn("skip data path due to safety guard", "path", path, "root", root)
			continue
		}
		switch action {
		case dataPathClean:
			err = cleanDataDir(abs)
		case dataPathDelete:
			err = os.RemoveAll(abs)
		}
		if err != nil {
			logger.Warn("failed to wipe data dir", "dir", abs, "error", err)
			continue
		}
		handled = append(handled, abs)
	}
	return handled
}

func cleanDataDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
			return fmt.Errorf("remove %q: %w", entry.Name(), err)
		}
	}
	return nil
}

// safeDataPath reports whether path lies strictly below root.
func safeDataPath(root, path string) bool {
	path = filepath.Clean(strings.TrimSpace(path))
	if path == "" || path == "." || path == string(os.PathSeparator) {
		return false
	}
	root = filepath.Clean(strings.TrimSpace(root))
	if root == "" || root == "." || root == string(os.PathSeparator) {
		return false
	}
	if path == root {
		return false
	}
	return strings.HasPrefix(path, root+string(os.PathSeparator))
}
