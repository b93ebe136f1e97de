package catalog

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testProfiles() []Profile {
	return []Profile{{Name: "cpu", Default: true}, {Name: "gpu-nvidia"}}
}

func testEnvironments() []Environment {
	return []Environment{{Name: "private", Default: true}, {Name: "public"}}
}

func TestDefaultCatalogIsValid(t *testing.T) {
	c := Default()

	assert.Equal(t, ProfileCPU, c.DefaultProfile())
	assert.Equal(t, EnvironmentPrivate, c.DefaultEnvironment())

	caddy, err := c.Get("caddy")
	require.NoError(t, err)
	assert.True(t, caddy.Required)

	ollama, err := c.Get("ollama")
	require.NoError(t, err)
	assert.Equal(t, "ollama-gpu", ollama.ProfileVariants[ProfileGPUNvidia])

	supabase, err := c.Get("supabase")
	require.NoError(t, err)
	require.NotNil(t, supabase.External)
}

func TestGetUnknown(t *testing.T) {
	_, err := Default().Get("nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Contains(t, err.Error(), `"nope"`)
}

func TestByCategoryOrder(t *testing.T) {
	groups := Default().ByCategory()
	require.NotEmpty(t, groups)

	var got []Category
	for _, g := range groups {
		got = append(got, g.Category)
		for i := 1; i < len(g.Services); i++ {
			assert.Less(t, g.Services[i-1].ID, g.Services[i].ID)
		}
	}
	assert.Equal(t, Categories(), got)
}

func TestAccessorsReturnCopies(t *testing.T) {
	c := Default()
	def, err := c.Get("n8n")
	require.NoError(t, err)
	def.Dependencies[0] = "mutated"

	again, err := c.Get("n8n")
	require.NoError(t, err)
	assert.Equal(t, []string{"postgres"}, again.Dependencies)
}

func TestDependents(t *testing.T) {
	c := Default()
	assert.Equal(t, []string{"langfuse-web", "langfuse-worker", "n8n", "n8n-import"}, c.Dependents("postgres"))
	assert.Empty(t, c.Dependents("caddy"))
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name     string
		defs     []ServiceDefinition
		profiles []Profile
		envs     []Environment
		contains string
	}{
		{
			name:     "unknown dependency",
			defs:     []ServiceDefinition{{ID: "a", Category: CategoryUtility, Dependencies: []string{"b"}}},
			contains: `unknown dependency "b"`,
		},
		{
			name: "cycle",
			defs: []ServiceDefinition{
				{ID: "a", Category: CategoryUtility, Dependencies: []string{"b"}},
				{ID: "b", Category: CategoryUtility, Dependencies: []string{"c"}},
				{ID: "c", Category: CategoryUtility, Dependencies: []string{"a"}},
			},
			contains: "dependency cycle a -> b -> c -> a",
		},
		{
			name:     "self dependency",
			defs:     []ServiceDefinition{{ID: "a", Category: CategoryUtility, Dependencies: []string{"a"}}},
			contains: "depends on itself",
		},
		{
			name: "non-canonical dependency spelling",
			defs: []ServiceDefinition{
				{ID: "postgres", Category: CategoryDatabase},
				{ID: "n8n", Category: CategoryAIPlatform, Dependencies: []string{"Postgres"}},
			},
			contains: `dependency "Postgres" is a non-canonical spelling of "postgres"`,
		},
		{
			name: "colliding ids",
			defs: []ServiceDefinition{
				{ID: "open-webui", Category: CategoryAIPlatform},
				{ID: "open_webui", Category: CategoryAIPlatform},
			},
			contains: `conflicts with "open-webui"`,
		},
		{
			name: "duplicate id",
			defs: []ServiceDefinition{
				{ID: "a", Category: CategoryUtility},
				{ID: "a", Category: CategoryUtility},
			},
			contains: "duplicate service id",
		},
		{
			name:     "unknown category",
			defs:     []ServiceDefinition{{ID: "a", Category: "misc"}},
			contains: `unknown category "misc"`,
		},
		{
			name: "variant for unknown profile",
			defs: []ServiceDefinition{{
				ID:              "a",
				Category:        CategoryLLM,
				ProfileVariants: map[string]string{"tpu": "a-tpu"},
			}},
			contains: `profile variant for unknown profile "tpu"`,
		},
		{
			name:     "two default profiles",
			defs:     []ServiceDefinition{{ID: "a", Category: CategoryUtility}},
			profiles: []Profile{{Name: "cpu", Default: true}, {Name: "gpu", Default: true}},
			contains: "exactly one default profile required, found 2",
		},
		{
			name:     "no default environment",
			defs:     []ServiceDefinition{{ID: "a", Category: CategoryUtility}},
			envs:     []Environment{{Name: "private"}},
			contains: "exactly one default environment required, found 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profiles := tt.profiles
			if profiles == nil {
				profiles = testProfiles()
			}
			envs := tt.envs
			if envs == nil {
				envs = testEnvironments()
			}
			c, err := New(tt.defs, profiles, envs)
			require.Error(t, err)
			assert.Nil(t, c)
			assert.True(t, IsValidationError(err))
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestNewCollectsAllProblems(t *testing.T) {
	_, err := New([]ServiceDefinition{
		{ID: "a", Category: CategoryUtility, Dependencies: []string{"x"}},
		{ID: "b", Category: CategoryUtility, Dependencies: []string{"y"}},
	}, testProfiles(), testEnvironments())

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Problems, 2)
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" LLM ")
	require.NoError(t, err)
	assert.Equal(t, CategoryLLM, c)

	_, err = ParseCategory("databases")
	assert.Error(t, err)
}

func TestNormalizeID(t *testing.T) {
	assert.Equal(t, "open-webui", NormalizeID("Open_WebUI"))
	assert.Equal(t, NormalizeID("langfuse-web"), NormalizeID("langfuse_web"))
}
