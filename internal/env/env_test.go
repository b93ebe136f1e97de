package env

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMerge(t *testing.T) {
	got := Merge(Vars{"A": "1", "B": "1"}, nil, Vars{"B": "2"})
	assert.Equal(t, Vars{"A": "1", "B": "2"}, got)
}

func TestCompareFiles(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	examplePath := filepath.Join(dir, ".env.example")
	require.NoError(t, os.WriteFile(envPath, []byte("N8N_ENCRYPTION_KEY=abc\nLOCAL_ONLY=1\n# comment\n"), 0o644))
	require.NoError(t, os.WriteFile(examplePath, []byte(
		"N8N_ENCRYPTION_KEY=change-me\nPOSTGRES_PASSWORD=\"secret value\"\nJWT_SECRET=jwt\n"), 0o644))

	diff, example, err := CompareFiles(envPath, examplePath)
	require.NoError(t, err)
	assert.Equal(t, []string{"JWT_SECRET", "POSTGRES_PASSWORD"}, diff.Missing)
	assert.Equal(t, []string{"LOCAL_ONLY"}, diff.Extra)
	assert.False(t, diff.Clean())

	require.NoError(t, AppendMissing(envPath, diff.Missing, example))

	after, _, err := CompareFiles(envPath, examplePath)
	require.NoError(t, err)
	assert.Empty(t, after.Missing)

	current, err := LoadEnvFile(envPath)
	require.NoError(t, err)
	assert.Equal(t, "secret value", current["POSTGRES_PASSWORD"])
	assert.Equal(t, "abc", current["N8N_ENCRYPTION_KEY"])
}

func TestCompareFilesMissing(t *testing.T) {
	_, _, err := CompareFiles(filepath.Join(t.TempDir(), ".env"), "nope")
	assert.Error(t, err)
}

func TestAppendMissingNoop(t *testing.T) {
	assert.NoError(t, AppendMissing("/does/not/exist", nil, nil))
}
