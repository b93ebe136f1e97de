package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-k8s/localaictl/internal/api"
	"github.com/codex-k8s/localaictl/internal/catalog"
	"github.com/codex-k8s/localaictl/internal/config"
	"github.com/codex-k8s/localaictl/internal/engine"
	"github.com/codex-k8s/localaictl/internal/logging"
	"github.com/codex-k8s/localaictl/internal/prefs"
	"github.com/codex-k8s/localaictl/internal/resolver"
	"github.com/codex-k8s/localaictl/internal/ui"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	opts := &Options{
		ConfigPath: config.DefaultPath,
		LogLevel:   logging.LevelInfo,
		Output:     outputTable,
	}
	cmd := newRootCommand(opts, logging.Discard())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func prefsPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "custom_services.json")
}

func TestEnableCascadesAndPersists(t *testing.T) {
	p := prefsPath(t)

	out, err := runCLI(t, "--preferences", p, "enable", "n8n")
	require.NoError(t, err)
	assert.Contains(t, out, "n8n enabled")
	assert.Contains(t, out, "also enabled: postgres")

	state, err := prefs.NewFileStore(p).Load(context.Background())
	require.NoError(t, err)
	assert.True(t, state.Enabled()["n8n"])
	assert.True(t, state.Enabled()["postgres"])
}

func TestDisableRequiredIsRejected(t *testing.T) {
	_, err := runCLI(t, "--preferences", prefsPath(t), "disable", "caddy")
	require.Error(t, err)
	assert.True(t, resolver.IsRejected(err))
	assert.Equal(t, ExitRejected, ExitCode(err))
}

func TestDisableCascadesToDependents(t *testing.T) {
	p := prefsPath(t)
	_, err := runCLI(t, "--preferences", p, "enable", "n8n-import")
	require.NoError(t, err)

	out, err := runCLI(t, "--preferences", p, "disable", "postgres")
	require.NoError(t, err)
	assert.Contains(t, out, "postgres disabled")
	assert.Contains(t, out, "also disabled:")
	assert.Contains(t, out, "n8n-import")
}

func TestShowJSON(t *testing.T) {
	p := prefsPath(t)
	out, err := runCLI(t, "--preferences", p, "-o", "json", "show")
	require.NoError(t, err)

	var view api.ConfigView
	require.NoError(t, json.Unmarshal([]byte(out), &view), out)
	assert.Equal(t, catalog.ProfileCPU, view.Profile)
	assert.Equal(t, catalog.EnvironmentPrivate, view.Environment)
	require.NotEmpty(t, view.Categories)
	assert.Equal(t, "caddy", view.Categories[0].Services[0].ID)
}

func TestProfileAndServices(t *testing.T) {
	p := prefsPath(t)
	_, err := runCLI(t, "--preferences", p, "enable", "ollama")
	require.NoError(t, err)

	out, err := runCLI(t, "--preferences", p, "profile", "gpu-nvidia")
	require.NoError(t, err)
	assert.Contains(t, out, "profile set to gpu-nvidia")

	out, err = runCLI(t, "--preferences", p, "-o", "json", "services")
	require.NoError(t, err)
	var list resolver.EffectiveList
	require.NoError(t, json.Unmarshal([]byte(out), &list), out)
	assert.Equal(t, catalog.ProfileGPUNvidia, list.Profile)
	assert.Contains(t, list.Services, "ollama-gpu")
	assert.Contains(t, list.Services, "ollama-pull-llama-gpu")

	out, err = runCLI(t, "--preferences", p, "-o", "json", "services", "--profile", "cpu")
	require.NoError(t, err)
	assert.Contains(t, out, `"ollama-cpu"`)

	out, err = runCLI(t, "--preferences", p, "profile")
	require.NoError(t, err)
	assert.Contains(t, out, "gpu-amd")

	_, err = runCLI(t, "--preferences", p, "profile", "tpu")
	assert.Equal(t, ExitRejected, ExitCode(err))
}

func TestEnvironmentSelection(t *testing.T) {
	p := prefsPath(t)
	out, err := runCLI(t, "--preferences", p, "-o", "json", "environment", "public")
	require.NoError(t, err)

	var view api.ConfigView
	require.NoError(t, json.Unmarshal([]byte(out), &view), out)
	assert.Equal(t, catalog.EnvironmentPublic, view.Environment)

	state, err := prefs.NewFileStore(p).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, catalog.EnvironmentPublic, state.Environment)
}

func TestToggleFlips(t *testing.T) {
	p := prefsPath(t)
	out, err := runCLI(t, "--preferences", p, "toggle", "flowise")
	require.NoError(t, err)
	assert.Contains(t, out, "flowise enabled")

	out, err = runCLI(t, "--preferences", p, "toggle", "flowise")
	require.NoError(t, err)
	assert.Contains(t, out, "flowise disabled")
}

func TestBulkJSON(t *testing.T) {
	p := prefsPath(t)
	out, err := runCLI(t, "--preferences", p, "-o", "json", "enable", "--category", "database")
	require.NoError(t, err)
	var report switchReport
	require.NoError(t, json.Unmarshal([]byte(out), &report), out)
	assert.Len(t, report.Changes, 6)
	require.NotNil(t, report.Config)

	out, err = runCLI(t, "--preferences", p, "-o", "json", "disable", "--all")
	require.NoError(t, err)
	report = switchReport{}
	require.NoError(t, json.Unmarshal([]byte(out), &report), out)
	require.Len(t, report.Rejected, 1)
	assert.Equal(t, "caddy", report.Rejected[0].Subject)

	_, err = runCLI(t, "--preferences", p, "enable", "--category", "games")
	assert.Equal(t, ExitRejected, ExitCode(err))
}

func TestSwitchSelectorValidation(t *testing.T) {
	p := prefsPath(t)
	_, err := runCLI(t, "--preferences", p, "enable")
	assert.Error(t, err)
	_, err = runCLI(t, "--preferences", p, "enable", "--all", "n8n")
	assert.Error(t, err)
	_, err = runCLI(t, "--preferences", p, "-o", "yaml", "show")
	assert.Error(t, err)
}

func TestUnreadablePreferencesRefuseChanges(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	out, err := runCLI(t, "--preferences", filepath.Join(blocker, "prefs.json"), "enable", "flowise")
	require.Error(t, err)
	assert.True(t, prefs.IsStoreError(err))
	assert.Equal(t, ExitStore, ExitCode(err))
	assert.NotContains(t, out, "flowise enabled")

	raw, err := os.ReadFile(blocker)
	require.NoError(t, err)
	assert.Equal(t, "x", string(raw))
}

func TestUnsavedChangesWarn(t *testing.T) {
	storeErr := &prefs.StoreError{Op: "save", Backend: "file", Err: errors.New("disk full")}

	var buf bytes.Buffer
	p := ui.NewPrinter(&buf)
	printSelected(p, "profile", "gpu-nvidia", storeErr)
	assert.Contains(t, buf.String(), "profile gpu-nvidia not saved")
	assert.NotContains(t, buf.String(), "set to")

	buf.Reset()
	printSelected(p, "profile", "gpu-nvidia", nil)
	assert.Contains(t, buf.String(), "profile set to gpu-nvidia")

	buf.Reset()
	warnUnsaved(p, storeErr)
	assert.Contains(t, buf.String(), "change not saved")
	buf.Reset()
	warnUnsaved(p, errors.New("other"))
	assert.Empty(t, buf.String())
}

func TestMemoryBackend(t *testing.T) {
	out, err := runCLI(t, "--preferences-backend", "memory", "enable", "searxng")
	require.NoError(t, err)
	assert.Contains(t, out, "also enabled: redis")
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitFailure, ExitCode(errors.New("boom")))
	assert.Equal(t, ExitRejected, ExitCode(fmt.Errorf("wrap: %w", &resolver.RejectedError{Subject: "x", Reason: resolver.ReasonUnknownService})))
	assert.Equal(t, ExitStore, ExitCode(&prefs.StoreError{Op: "save", Backend: "file", Err: errors.New("disk full")}))
}

func TestApplyPlan(t *testing.T) {
	ctx := context.Background()
	store := prefs.NewMemoryStore(prefs.State{Entries: []prefs.Entry{
		{ServiceID: "n8n", Enabled: true},
		{ServiceID: "postgres", Enabled: true},
		{ServiceID: "qdrant", Enabled: true},
	}})
	e, err := engine.New(engine.Options{Catalog: catalog.Default(), Store: store})
	require.NoError(t, err)

	cfg := e.Config(ctx)
	plan := ui.PlanSelection(e.Catalog(), cfg, ui.Selection{
		Environment: catalog.EnvironmentPublic,
		Enabled:     map[string]bool{"n8n": true, "flowise": true},
	})

	var buf bytes.Buffer
	next, err := applyPlan(ctx, e, plan, ui.NewPrinter(&buf))
	require.NoError(t, err)
	require.NotNil(t, next)

	set := next.Enabled()
	assert.True(t, set.Has("n8n"))
	assert.True(t, set.Has("postgres"))
	assert.True(t, set.Has("flowise"))
	assert.False(t, set.Has("qdrant"))
	assert.Equal(t, catalog.EnvironmentPublic, next.Environment)
	assert.Equal(t, catalog.EnvironmentPublic, store.Snapshot().Environment)
	assert.Contains(t, buf.String(), "qdrant disabled")
}
