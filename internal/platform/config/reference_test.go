package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReference(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reference.toml")
	content := `
version = "2026.1"

[validation]
placeholder_prefixes = ["test", "demo", "dummy"]
numeric_id_types = ["sample", "record"]

[matching]
similarity_threshold = 0.85

[[centers]]
id = 5
name = "University Hospital North"

[[centers]]
id = 7
name = "Regional Clinic South"

[[aliases]]
alias = "LEGACY-001"
gsid = "0123456789ABCDEF"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	ref, err := LoadReference(path)
	require.NoError(t, err)
	assert.Equal(t, "2026.1", ref.Version)
	assert.Equal(t, []string{"test", "demo", "dummy"}, ref.Validation.PlaceholderPrefixes)
	assert.Equal(t, []string{"sample", "record"}, ref.Validation.NumericIDTypes)
	assert.InDelta(t, 0.85, ref.Matching.SimilarityThreshold, 1e-9)
	require.Len(t, ref.Centers, 2)
	assert.Equal(t, "University Hospital North", ref.Centers[0].Name)
	require.Len(t, ref.Aliases, 1)
	assert.Equal(t, "LEGACY-001", ref.Aliases[0].Alias)
}

func TestLoadReferenceEmptyPath(t *testing.T) {
	ref, err := LoadReference("")
	require.NoError(t, err)
	assert.Empty(t, ref.Centers)
}

func TestLoadReferenceMissingFile(t *testing.T) {
	_, err := LoadReference(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("GSID_ADDR", "")
	t.Setenv("DATABASE_URL", "postgres://localhost/gsid")

	cfg := FromEnv()
	assert.Equal(t, ":8080", cfg.Addr)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "gsid.resolution-decisions", cfg.KafkaTopic)
}

func TestValidateRequiresDatabase(t *testing.T) {
	var cfg Server
	require.Error(t, cfg.Validate())
}
