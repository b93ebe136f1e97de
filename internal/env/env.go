// Package env contains helpers for loading and comparing environment variable files.
package env

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/joho/godotenv"
)

// Vars represents a simple string-to-string map of variables.
type Vars map[string]string

// FromOS builds a Vars map from the current process environment.
func FromOS() Vars {
	out := make(Vars)
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 {
			continue
		}
		out[parts[0]] = parts[1]
	}
	return out
}

// Merge merges several Vars maps into one, later maps overriding earlier keys.
func Merge(sets ...Vars) Vars {
	out := make(Vars)
	for _, s := range sets {
		for k, v := range s {
			out[k] = v
		}
	}
	return out
}

// Keys returns the variable names sorted.
func (v Vars) Keys() []string {
	out := make([]string, 0, len(v))
	for k := range v {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// LoadEnvFile loads a single .env-style file into Vars.
func LoadEnvFile(path string) (Vars, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	envMap, err := godotenv.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse env file %q: %w", path, err)
	}
	return Vars(envMap), nil
}

// Diff lists the keys that differ between a .env file and its template.
type Diff struct {
	// Missing keys are in the template but not in the file.
	Missing []string
	// Extra keys are in the file but not in the template.
	Extra []string
}

// Clean reports whether both files declare the same keys.
func (d Diff) Clean() bool {
	return len(d.Missing) == 0 && len(d.Extra) == 0
}

// Compare computes the key difference between current and example.
func Compare(current, example Vars) Diff {
	var d Diff
	for _, k := range example.Keys() {
		if _, ok := current[k]; !ok {
			d.Missing = append(d.Missing, k)
		}
	}
	for _, k := range current.Keys() {
		if _, ok := example[k]; !ok {
			d.Extra = append(d.Extra, k)
		}
	}
	return d
}

// CompareFiles loads both files and compares their keys.
func CompareFiles(envPath, examplePath string) (Diff, Vars, error) {
	current, err := LoadEnvFile(envPath)
	if err != nil {
		return Diff{}, nil, fmt.Errorf("load %q: %w", envPath, err)
	}
	example, err := LoadEnvFile(examplePath)
	if err != nil {
		return Diff{}, nil, fmt.Errorf("load %q: %w", examplePath, err)
	}
	return Compare(current, example), example, nil
}

// AppendMissing appends keys with their template values to the .env file at path.
func AppendMissing(path string, keys []string, example Vars) error {
	if len(keys) == 0 {
		return nil
	}
	existing, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %q: %w", path, err)
	}

	var b strings.Builder
	if len(existing) > 0 && !strings.HasSuffix(string(existing), "\n") {
		b.WriteString("\n")
	}
	b.WriteString("\n# Added missing variables from template\n")
	for _, k := range keys {
		line, err := godotenv.Marshal(map[string]string{k: example[k]})
		if err != nil {
			return fmt.Errorf("encode %q: %w", k, err)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open %q: %w", path, err)
	}
	if _, err := f.WriteString(b.String()); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %q: %w", path, err)
	}
	return f.Close()
}
