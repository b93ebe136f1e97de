package config

import (
	"path/filepath"
	"strings"
)

// DataPaths describes host directories that hold service data (volumes bound from the project).
type DataPaths struct {
	// Root is the base directory for data paths, relative to the project directory.
	Root string `yaml:"root,omitempty"`
	// Dirs enumerates subdirectories of Root when Paths is empty.
	Dirs []string `yaml:"dirs,omitempty"`
	// Paths defines explicit data directories to manage.
	Paths []string `yaml:"paths,omitempty"`
}

// ResolveDataPaths resolves the configured data directories to absolute, de-duplicated paths.
func (c *Config) ResolveDataPaths() []string {
	if c == nil || c.DataPaths == nil {
		return nil
	}

	var paths []string
	for _, p := range c.DataPaths.Paths {
		if p = strings.TrimSpace(p); p != "" {
			paths = append(paths, c.Path(p))
		}
	}

	root := strings.TrimSpace(c.DataPaths.Root)
	if len(paths) == 0 && root != "" {
		if len(c.DataPaths.Dirs) == 0 {
			paths = append(paths, c.Path(root))
		}
		for _, d := range c.DataPaths.Dirs {
			if d = strings.TrimSpace(d); d != "" {
				paths = append(paths, c.Path(filepath.Join(root, d)))
			}
		}
	}

	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		p = filepath.Clean(p)
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
