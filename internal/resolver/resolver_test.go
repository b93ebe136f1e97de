package resolver

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codex-k8s/localaictl/internal/catalog"
	"github.com/codex-k8s/localaictl/internal/prefs"
)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]catalog.ServiceDefinition{
		{ID: "A", Category: catalog.CategoryAIPlatform, Dependencies: []string{"B"}},
		{ID: "B", Category: catalog.CategoryDatabase, Dependencies: []string{"C"}},
		{ID: "C", Category: catalog.CategoryDatabase},
		{
			ID:              "D",
			Category:        catalog.CategoryLLM,
			ProfileVariants: map[string]string{"cpu": "D-cpu", "gpu-nvidia": "D-gpu"},
			PullVariants:    map[string]string{"cpu": "D-pull-cpu"},
		},
		{ID: "E", Category: catalog.CategoryAIPlatform, Dependencies: []string{"D"}},
		{ID: "proxy", Category: catalog.CategoryInfrastructure, Required: true},
		{ID: "ext", Category: catalog.CategoryDatabase, External: &catalog.ExternalDeployment{ComposeFile: "ext/docker-compose.yml"}},
	}, []catalog.Profile{
		{Name: "cpu", Default: true},
		{Name: "gpu-nvidia"},
		{Name: "none"},
	}, []catalog.Environment{
		{Name: "private", Default: true},
		{Name: "public"},
	})
	require.NoError(t, err)
	return c
}

func TestMergeFirstRun(t *testing.T) {
	cat := testCatalog(t)
	cfg := Merge(cat, prefs.State{})

	assert.Equal(t, []string{"proxy"}, cfg.Enabled().IDs())
	assert.Equal(t, "cpu", cfg.Profile)
	assert.Equal(t, "private", cfg.Environment)
	assert.Empty(t, cfg.Notes)
}

func TestMergeFirstRunBuiltinCatalog(t *testing.T) {
	cat := catalog.Default()
	cfg := Merge(cat, prefs.State{})

	var required []string
	for _, def := range cat.All() {
		if def.Required {
			required = append(required, def.ID)
		}
	}
	assert.Equal(t, required, cfg.Enabled().IDs())
}

func TestMergeReconciles(t *testing.T) {
	cat := testCatalog(t)
	cfg := Merge(cat, prefs.State{
		Entries: []prefs.Entry{
			{ServiceID: "A", Enabled: true},
			{ServiceID: "proxy", Enabled: false},
			{ServiceID: "gone", Enabled: true},
		},
		Profile:     "tpu",
		Environment: "public",
	})

	assert.Equal(t, []string{"A", "B", "C", "proxy"}, cfg.Enabled().IDs())
	assert.Equal(t, "cpu", cfg.Profile)
	assert.Equal(t, "public", cfg.Environment)
	assert.ElementsMatch(t, []Note{
		{Kind: NoteUnknownService, Subject: "gone"},
		{Kind: NoteImpliedDependency, Subject: "B"},
		{Kind: NoteImpliedDependency, Subject: "C"},
		{Kind: NoteDefaultProfile, Subject: "tpu"},
	}, cfg.Notes)

	c, ok := cfg.Service("C")
	require.True(t, ok)
	assert.Equal(t, []string{"B"}, c.RequiredBy)
	b, ok := cfg.Service("B")
	require.True(t, ok)
	assert.Equal(t, []string{"A"}, b.RequiredBy)
}

func TestConfigurationState(t *testing.T) {
	cat := testCatalog(t)
	cfg := Build(cat, NewSet("A", "B", "C", "proxy"), NewSet("B", "C"), "gpu-nvidia", "public")
	state := cfg.State()

	assert.Equal(t, "gpu-nvidia", state.Profile)
	assert.Equal(t, "public", state.Environment)
	assert.Len(t, state.Entries, len(cat.IDs()))

	again := Merge(cat, state)
	assert.Equal(t, cfg.Enabled(), again.Enabled())
	assert.Equal(t, []string{"B", "C"}, again.Auto().IDs())
	assert.Empty(t, again.Notes)
}

func TestEnableCascadeScenario(t *testing.T) {
	cat := testCatalog(t)

	change, err := Enable(cat, NewSet(), nil, "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, change.Set.IDs())
	assert.Equal(t, []string{"B", "C"}, change.AutoEnabled)
	assert.Equal(t, []string{"B", "C"}, change.Auto.IDs())
	assert.Equal(t, []string{"A", "B", "C"}, change.Affected())

	disabled, err := Disable(cat, change.Set, change.Auto, "C")
	require.NoError(t, err)
	assert.Empty(t, disabled.Set.IDs())
	assert.Equal(t, []string{"B", "A"}, disabled.AutoDisabled)
}

func TestEnableDoesNotMutateInput(t *testing.T) {
	cat := testCatalog(t)
	in := NewSet("proxy")

	_, err := Enable(cat, in, nil, "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"proxy"}, in.IDs())
}

func TestEnableAlreadyEnabledDependencies(t *testing.T) {
	cat := testCatalog(t)

	change, err := Enable(cat, NewSet("C"), nil, "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, change.AutoEnabled)
}

func TestDisableRequiredRejected(t *testing.T) {
	cat := testCatalog(t)
	set := NewSet("proxy", "A", "B", "C")

	_, err := Disable(cat, set, nil, "proxy")
	require.Error(t, err)

	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, ReasonRequired, rejected.Reason)
	assert.Equal(t, "proxy", rejected.Subject)
	assert.Equal(t, []string{"A", "B", "C", "proxy"}, set.IDs())
}

func TestDisableBlockedByRequiredDependent(t *testing.T) {
	c, err := catalog.New([]catalog.ServiceDefinition{
		{ID: "proxy", Category: catalog.CategoryInfrastructure, Required: true, Dependencies: []string{"certs"}},
		{ID: "certs", Category: catalog.CategoryUtility},
	}, []catalog.Profile{{Name: "cpu", Default: true}}, []catalog.Environment{{Name: "private", Default: true}})
	require.NoError(t, err)

	cfg := Merge(c, prefs.State{})
	assert.Equal(t, []string{"certs", "proxy"}, cfg.Enabled().IDs())

	_, err = Disable(c, cfg.Enabled(), cfg.Auto(), "certs")
	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, ReasonRequiredDependent, rejected.Reason)
	assert.Equal(t, []string{"proxy"}, rejected.Affected)
}

func TestToggleUnknown(t *testing.T) {
	cat := testCatalog(t)
	for _, enabled := range []bool{true, false} {
		_, err := Toggle(cat, NewSet(), nil, "nope", enabled)
		require.Error(t, err)
		assert.True(t, IsRejected(err))
		assert.True(t, IsUnknown(err))
	}
}

func TestForwardClosureAfterAnyEnable(t *testing.T) {
	for _, cat := range []*catalog.Catalog{testCatalog(t), catalog.Default()} {
		for _, id := range cat.IDs() {
			cfg := Merge(cat, prefs.State{})
			change, err := Enable(cat, cfg.Enabled(), cfg.Auto(), id)
			require.NoError(t, err)
			for enabled := range change.Set {
				for _, dep := range dependencyClosure(cat, enabled) {
					assert.True(t, change.Set.Has(dep), "%s enabled without dependency %s", enabled, dep)
				}
			}
		}
	}
}

func TestNoEnabledDependentAfterDisable(t *testing.T) {
	cat := catalog.Default()
	all, err := BulkToggle(cat, NewSet(), nil, "", true)
	require.NoError(t, err)

	for _, id := range cat.IDs() {
		change, err := Disable(cat, all.Set, all.Auto, id)
		if IsRejected(err) {
			assert.True(t, all.Set.Has(id))
			continue
		}
		require.NoError(t, err)
		assert.False(t, change.Set.Has(id))
		for enabled := range change.Set {
			def, err := cat.Get(enabled)
			require.NoError(t, err)
			assert.False(t, def.DependsOn(id), "%s still enabled but depends on %s", enabled, id)
		}
	}
}

func TestEnableDisableRoundTrip(t *testing.T) {
	cat := catalog.Default()
	base := Merge(cat, prefs.State{Entries: []prefs.Entry{
		{ServiceID: "redis", Enabled: true},
		{ServiceID: "n8n", Enabled: true},
	}})
	require.Equal(t, []string{"caddy", "n8n", "postgres", "redis"}, base.Enabled().IDs())
	require.Equal(t, []string{"postgres"}, base.Auto().IDs())

	for _, id := range cat.IDs() {
		if base.Enabled().Has(id) {
			continue
		}
		enabled, err := Enable(cat, base.Enabled(), base.Auto(), id)
		require.NoError(t, err)
		disabled, err := Disable(cat, enabled.Set, enabled.Auto, id)
		require.NoError(t, err)

		assert.Equal(t, base.Enabled().IDs(), disabled.Set.IDs(), "round trip of %s", id)
		assert.Equal(t, base.Auto().IDs(), disabled.Auto.IDs(), "round trip of %s", id)
		assert.ElementsMatch(t, enabled.AutoEnabled, disabled.Released, "round trip of %s", id)
		assert.Empty(t, disabled.AutoDisabled)
	}
}

func TestDisableReleasesFirstRunDependency(t *testing.T) {
	cat := catalog.Default()
	first := Merge(cat, prefs.State{})

	enabled, err := Enable(cat, first.Enabled(), first.Auto(), "open-webui")
	require.NoError(t, err)
	assert.Equal(t, []string{"caddy", "ollama", "open-webui"}, enabled.Set.IDs())

	disabled, err := Disable(cat, enabled.Set, enabled.Auto, "open-webui")
	require.NoError(t, err)
	assert.Equal(t, first.Enabled().IDs(), disabled.Set.IDs())
	assert.Equal(t, []string{"ollama"}, disabled.Released)
	assert.Contains(t, disabled.Affected(), "ollama")
}

func TestDisableKeepsExplicitDependencies(t *testing.T) {
	cat := testCatalog(t)

	explicit, err := Enable(cat, NewSet("proxy"), nil, "C")
	require.NoError(t, err)
	enabled, err := Enable(cat, explicit.Set, explicit.Auto, "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, enabled.Auto.IDs())

	disabled, err := Disable(cat, enabled.Set, enabled.Auto, "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"C", "proxy"}, disabled.Set.IDs())
	assert.Equal(t, []string{"B"}, disabled.Released)

	// Enabling an auto-enabled dependency makes it explicit.
	enabled, err = Enable(cat, NewSet("proxy"), nil, "A")
	require.NoError(t, err)
	promoted, err := Enable(cat, enabled.Set, enabled.Auto, "B")
	require.NoError(t, err)
	assert.Equal(t, []string{"C"}, promoted.Auto.IDs())
	disabled, err = Disable(cat, promoted.Set, promoted.Auto, "A")
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C", "proxy"}, disabled.Set.IDs())
	assert.Empty(t, disabled.Released)
}

func TestDisableKeepsSharedDependency(t *testing.T) {
	c, err := catalog.New([]catalog.ServiceDefinition{
		{ID: "x", Category: catalog.CategoryAIPlatform, Dependencies: []string{"shared"}},
		{ID: "y", Category: catalog.CategoryAIPlatform, Dependencies: []string{"shared"}},
		{ID: "shared", Category: catalog.CategoryDatabase},
	}, []catalog.Profile{{Name: "cpu", Default: true}}, []catalog.Environment{{Name: "private", Default: true}})
	require.NoError(t, err)

	x, err := Enable(c, NewSet(), nil, "x")
	require.NoError(t, err)
	y, err := Enable(c, x.Set, x.Auto, "y")
	require.NoError(t, err)
	assert.Empty(t, y.AutoEnabled)

	offX, err := Disable(c, y.Set, y.Auto, "x")
	require.NoError(t, err)
	assert.Equal(t, []string{"shared", "y"}, offX.Set.IDs())
	assert.Empty(t, offX.Released)

	offY, err := Disable(c, offX.Set, offX.Auto, "y")
	require.NoError(t, err)
	assert.Empty(t, offY.Set.IDs())
	assert.Equal(t, []string{"shared"}, offY.Released)
}

func TestMergeKeepsStoredAutoFlags(t *testing.T) {
	cat := testCatalog(t)
	cfg := Merge(cat, prefs.State{Entries: []prefs.Entry{
		{ServiceID: "E", Enabled: true},
		{ServiceID: "D", Enabled: true, Auto: true},
		{ServiceID: "proxy", Enabled: true, Auto: true},
	}})
	assert.Equal(t, []string{"D"}, cfg.Auto().IDs())
	d, ok := cfg.Service("D")
	require.True(t, ok)
	assert.True(t, d.Auto)

	state := cfg.State()
	assert.Equal(t, map[string]bool{"D": true}, state.Auto())
}

func TestBulkToggleOrderIndependent(t *testing.T) {
	cat := catalog.Default()
	start := Merge(cat, prefs.State{}).Enabled()

	forward, forwardAuto := start.Clone(), NewSet()
	for _, c := range catalog.Categories() {
		b, err := BulkToggle(cat, forward, forwardAuto, c, true)
		require.NoError(t, err)
		forward, forwardAuto = b.Set, b.Auto
	}
	assert.Empty(t, forwardAuto.IDs())
	for _, c := range catalog.Categories() {
		b, err := BulkToggle(cat, forward, forwardAuto, c, false)
		require.NoError(t, err)
		forward, forwardAuto = b.Set, b.Auto
	}

	reverse, reverseAuto := start.Clone(), NewSet()
	cats := catalog.Categories()
	for i := len(cats) - 1; i >= 0; i-- {
		b, err := BulkToggle(cat, reverse, reverseAuto, cats[i], true)
		require.NoError(t, err)
		reverse, reverseAuto = b.Set, b.Auto
	}
	for i := len(cats) - 1; i >= 0; i-- {
		b, err := BulkToggle(cat, reverse, reverseAuto, cats[i], false)
		require.NoError(t, err)
		reverse, reverseAuto = b.Set, b.Auto
	}

	assert.Equal(t, forward.IDs(), reverse.IDs())
	assert.Equal(t, []string{"caddy"}, forward.IDs())
}

func TestBulkToggleAll(t *testing.T) {
	cat := testCatalog(t)

	on, err := BulkToggle(cat, NewSet("proxy"), nil, "", true)
	require.NoError(t, err)
	assert.Equal(t, cat.IDs(), sortedByCatalog(cat, on.Set))

	off, err := BulkToggle(cat, on.Set, on.Auto, "", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"proxy"}, off.Set.IDs())
	require.Len(t, off.Rejected, 1)
	assert.Equal(t, ReasonRequired, off.Rejected[0].Reason)
}

func TestBulkToggleCategoryCascadesAcrossCategories(t *testing.T) {
	cat := testCatalog(t)

	b, err := BulkToggle(cat, NewSet("proxy"), nil, catalog.CategoryAIPlatform, true)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C", "D", "E", "proxy"}, b.Set.IDs())
	assert.Equal(t, []string{"B", "C", "D"}, b.Auto.IDs())
	require.Len(t, b.Changes, 2)

	off, err := BulkToggle(cat, b.Set, b.Auto, catalog.CategoryDatabase, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"D", "E", "proxy"}, off.Set.IDs())
	require.Len(t, off.Changes, 1)
	assert.Equal(t, []string{"A"}, off.Changes[0].AutoDisabled)
	assert.Equal(t, []string{"C"}, off.Changes[0].Released)
}

func TestBulkToggleUnknownCategory(t *testing.T) {
	_, err := BulkToggle(testCatalog(t), NewSet(), nil, "misc", true)
	var rejected *RejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, ReasonUnknownCategory, rejected.Reason)
}

func TestProfileResolution(t *testing.T) {
	cat := testCatalog(t)
	set := NewSet("D", "proxy", "ext")

	cpu := Effective(cat, set, "cpu")
	assert.Equal(t, []string{"D-cpu", "D-pull-cpu", "proxy"}, cpu.Services)
	assert.NotContains(t, cpu.Services, "D")
	assert.Equal(t, []ExternalDeployment{{Service: "ext", ComposeFile: "ext/docker-compose.yml"}}, cpu.External)

	gpu := Effective(cat, set, "gpu-nvidia")
	assert.Equal(t, []string{"D-gpu", "proxy"}, gpu.Services)
	assert.NotContains(t, gpu.Services, "D-cpu")

	none := Effective(cat, set, "none")
	assert.Equal(t, []string{"D", "proxy"}, none.Services)
}

func TestResolveVariant(t *testing.T) {
	def, err := catalog.Default().Get("ollama")
	require.NoError(t, err)

	res := ResolveVariant(def, catalog.ProfileGPUAMD)
	assert.Equal(t, VariantResolution{Service: "ollama", Concrete: "ollama-gpu-amd", Pull: "ollama-pull-llama-gpu-amd"}, res)
	assert.True(t, res.Substituted())

	passthrough := ResolveVariant(def, catalog.ProfileNone)
	assert.Equal(t, "ollama", passthrough.Concrete)
	assert.Empty(t, passthrough.Pull)
	assert.False(t, passthrough.Substituted())
}

func TestEffectiveEmpty(t *testing.T) {
	list := Effective(testCatalog(t), NewSet(), "cpu")
	assert.True(t, list.Empty())
}

func TestValidateSelections(t *testing.T) {
	cat := testCatalog(t)
	assert.NoError(t, ValidateProfile(cat, "gpu-nvidia"))
	assert.NoError(t, ValidateEnvironment(cat, "public"))

	err := ValidateProfile(cat, "tpu")
	assert.True(t, IsUnknown(err))
	assert.EqualError(t, err, `unknown profile "tpu"`)
	assert.True(t, IsUnknown(ValidateEnvironment(cat, "staging")))
}

func sortedByCatalog(cat *catalog.Catalog, set Set) []string {
	var out []string
	for _, id := range cat.IDs() {
		if set.Has(id) {
			out = append(out, id)
		}
	}
	return out
}
