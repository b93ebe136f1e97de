package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-k8s/localaictl/internal/catalog"
	"github.com/codex-k8s/localaictl/internal/config"
	"github.com/codex-k8s/localaictl/internal/env"
	"github.com/codex-k8s/localaictl/internal/logging"
	"github.com/codex-k8s/localaictl/internal/resolver"
)

type fakeDefiner struct {
	missing []string
	err     error
	asked   []string
}

func (f *fakeDefiner) MissingServices(_ context.Context, ids []string) ([]string, error) {
	f.asked = ids
	return f.missing, f.err
}

func projectConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.ProjectDir = t.TempDir()
	return cfg
}

func TestConcreteServices(t *testing.T) {
	ids := concreteServices(catalog.Default())
	assert.Contains(t, ids, "caddy")
	assert.Contains(t, ids, "ollama-cpu")
	assert.Contains(t, ids, "ollama-gpu")
	assert.Contains(t, ids, "ollama-pull-llama-gpu-amd")
	assert.NotContains(t, ids, "ollama")
	assert.NotContains(t, ids, "supabase")
	assert.IsNonDecreasing(t, ids)
}

func TestCheckComposeServices(t *testing.T) {
	cat := catalog.Default()

	ok := checkComposeServices(context.Background(), cat, &fakeDefiner{})
	assert.True(t, ok.OK)

	missing := checkComposeServices(context.Background(), cat, &fakeDefiner{missing: []string{"neo4j"}})
	assert.False(t, missing.OK)
	assert.Contains(t, missing.Detail, "neo4j")

	failed := checkComposeServices(context.Background(), cat, &fakeDefiner{err: errors.New("no compose file")})
	assert.False(t, failed.OK)
	assert.Equal(t, "no compose file", failed.Detail)
}

func TestCheckEnvFileMissingKeys(t *testing.T) {
	cfg := projectConfig(t)
	require.NoError(t, os.WriteFile(cfg.Path(".env.example"), []byte("A=1\nB=2\n"), 0o600))
	require.NoError(t, os.WriteFile(cfg.Path(".env"), []byte("A=1\nC=3\n"), 0o600))

	check := checkEnvFile(logging.Discard(), cfg, false)
	assert.False(t, check.OK)
	assert.Contains(t, check.Detail, "B")

	check = checkEnvFile(logging.Discard(), cfg, true)
	assert.True(t, check.OK)
	diff, _, err := env.CompareFiles(cfg.Path(".env"), cfg.Path(".env.example"))
	require.NoError(t, err)
	assert.Empty(t, diff.Missing)
	assert.Equal(t, []string{"C"}, diff.Extra)
}

func TestCheckEnvFileCreatesFromTemplate(t *testing.T) {
	cfg := projectConfig(t)
	require.NoError(t, os.WriteFile(cfg.Path(".env.example"), []byte("TOKEN=changeme\n"), 0o600))

	check := checkEnvFile(logging.Discard(), cfg, false)
	assert.False(t, check.OK)
	assert.Contains(t, check.Detail, "missing")

	check = checkEnvFile(logging.Discard(), cfg, true)
	assert.True(t, check.OK)
	raw, err := os.ReadFile(cfg.Path(".env"))
	require.NoError(t, err)
	assert.Equal(t, "TOKEN=changeme\n", string(raw))
}

func TestCheckEnvFileWithoutTemplate(t *testing.T) {
	check := checkEnvFile(logging.Discard(), projectConfig(t), true)
	assert.False(t, check.OK)
	assert.Contains(t, check.Detail, "template")
}

func TestCheckPreferences(t *testing.T) {
	cfg := &resolver.Configuration{Notes: []resolver.Note{{Kind: resolver.NoteUnknownService, Subject: "ghost"}}}
	check := checkPreferences(cfg)
	assert.True(t, check.OK)
	assert.Contains(t, check.Detail, "ghost")

	cfg.Notes = append(cfg.Notes, resolver.Note{Kind: resolver.NoteStoreUnavailable, Subject: "permission denied"})
	check = checkPreferences(cfg)
	assert.False(t, check.OK)
	assert.Equal(t, "permission denied", check.Detail)
}

func TestSafeDataPath(t *testing.T) {
	assert.True(t, safeDataPath("/srv/ai", "/srv/ai/n8n"))
	assert.False(t, safeDataPath("/srv/ai", "/srv/ai"))
	assert.False(t, safeDataPath("/srv/ai", "/srv/aix/n8n"))
	assert.False(t, safeDataPath("/", "/etc"))
	assert.False(t, safeDataPath("/srv/ai", "/"))
}

func TestHandleDataPaths(t *testing.T) {
	cfg := projectConfig(t)
	keep := filepath.Join(cfg.ProjectDir, "data", "keep")
	wipe := filepath.Join(cfg.ProjectDir, "data", "wipe")
	require.NoError(t, os.MkdirAll(keep, 0o755))
	require.NoError(t, os.MkdirAll(wipe, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(keep, "db"), []byte("x"), 0o600))

	cfg.DataPaths = &config.DataPaths{Paths: []string{"data/keep", "../outside"}}
	handled := handleDataPaths(logging.Discard(), cfg, dataPathClean)
	assert.Equal(t, []string{keep}, handled)
	entries, err := os.ReadDir(keep)
	require.NoError(t, err)
	assert.Empty(t, entries)

	cfg.DataPaths = &config.DataPaths{Root: "data", Dirs: []string{"wipe"}}
	handled = handleDataPaths(logging.Discard(), cfg, dataPathDelete)
	assert.Equal(t, []string{wipe}, handled)
	_, err = os.Stat(wipe)
	assert.True(t, os.IsNotExist(err))
}
