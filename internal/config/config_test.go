package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 128, cfg.Model.HiddenDim)
	assert.Equal(t, 3, cfg.Model.NumLayers)
	assert.Equal(t, 64, cfg.Model.FeatureDim)
	assert.InDelta(t, 0.3, cfg.Model.Dropout, 1e-9)
	assert.Equal(t, 30, cfg.Training.Epochs)
	assert.InDelta(t, 0.001, cfg.Training.LearningRate, 1e-9)
	assert.Equal(t, 5000, cfg.Training.InteractionCap)
	assert.Equal(t, 7, cfg.Staleness.MaxAgeDays)
	assert.InDelta(t, 1.2, cfg.Staleness.GrowthFactor, 1e-9)
	assert.Equal(t, "ml_models", cfg.Artifacts.Dir)
	assert.Equal(t, "8080", cfg.Server.Port)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[neo4j]
uri = "bolt://graph:7687"

[model]
hidden_dim = 64

[training]
epochs = 5
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "bolt://graph:7687", cfg.Neo4j.URI)
	assert.Equal(t, 64, cfg.Model.HiddenDim)
	assert.Equal(t, 5, cfg.Training.Epochs)
	// Unset fields keep their defaults.
	assert.Equal(t, 3, cfg.Model.NumLayers)
	assert.Equal(t, 5000, cfg.Training.InteractionCap)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestLoadOrDefaultMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Model, cfg.Model)
}

func TestLoadOrDefaultEnvOverrides(t *testing.T) {
	t.Setenv("NEO4J_URI", "bolt://env:7687")
	t.Setenv("NEO4J_USER", "envuser")
	t.Setenv("NEO4J_PASSWORD", "envpass")
	t.Setenv("RELATIONAL_DSN", "env.db")

	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)

	assert.Equal(t, "bolt://env:7687", cfg.Neo4j.URI)
	assert.Equal(t, "envuser", cfg.Neo4j.User)
	assert.Equal(t, "envpass", cfg.Neo4j.Password)
	assert.Equal(t, "env.db", cfg.Relational.DSN)
}

func TestLoadInvalidTOMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("not valid = [toml"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
