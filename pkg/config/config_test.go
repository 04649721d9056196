package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValues_TypedAccessors(t *testing.T) {
	v := NewValues(map[string]any{
		"name":    "athletedesk",
		"enabled": true,
		"count":   3,
		"big":     int64(9),
		"ratio":   0.5,
		"wait":    "90s",
		"seconds": 30,
	})

	assert.Equal(t, "athletedesk", v.String("name", "fallback"))
	assert.Equal(t, "fallback", v.String("missing", "fallback"))
	assert.True(t, v.Bool("enabled", false))
	assert.False(t, v.Bool("missing", false))
	assert.Equal(t, 3, v.Int("count", 0))
	assert.Equal(t, 9, v.Int("big", 0))
	assert.Equal(t, 0.5, v.Float("ratio", 0))
	assert.Equal(t, 3.0, v.Float("count", 0))
	assert.Equal(t, 90*time.Second, v.Duration("wait", 0))
	assert.Equal(t, 30*time.Second, v.Duration("seconds", 0))
	assert.Equal(t, time.Minute, v.Duration("missing", time.Minute))
}

func TestValues_WrongTypeFallsBackToDefault(t *testing.T) {
	v := NewValues(map[string]any{"count": "three", "wait": "not a duration"})

	assert.Equal(t, 7, v.Int("count", 7))
	assert.Equal(t, time.Minute, v.Duration("wait", time.Minute))
}

func TestValuesFromFile_MissingFileIsEmpty(t *testing.T) {
	v, err := ValuesFromFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "def", v.String("anything", "def"))
}

func TestValuesFromFile_ParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte("feature_query_planner: true\nretrieval_top_k: 8\n"), 0o644))

	v, err := ValuesFromFile(path)
	require.NoError(t, err)
	assert.True(t, v.Bool("feature_query_planner", false))
	assert.Equal(t, 8, v.Int("retrieval_top_k", 5))
}

func TestLoad_DefaultsAndValidation(t *testing.T) {
	t.Setenv("POSTGRES_URL", "postgres://localhost/athletedesk")
	t.Setenv("GOOGLE_API_KEY", "test-key")
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("SERVER_ADDR", "")
	t.Setenv("DOCUMENT_TABLE", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "governance_chunks", cfg.Postgres.DocumentTable)
	assert.Equal(t, "googleai", cfg.LLM.Provider)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 1, cfg.Features.MaxQualityRetries)
	assert.True(t, cfg.Features.QualityCheck)
	assert.True(t, cfg.Checkpoint.Enabled)
	assert.Equal(t, 7*24*time.Hour, cfg.Checkpoint.Retention)
}

func TestLoad_RequiresPostgresURL(t *testing.T) {
	t.Setenv("POSTGRES_URL", "")
	t.Setenv("GOOGLE_API_KEY", "test-key")

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POSTGRES_URL")
}

func TestLoad_RequiresProviderKey(t *testing.T) {
	t.Setenv("POSTGRES_URL", "postgres://localhost/athletedesk")
	t.Setenv("LLM_PROVIDER", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "g-key")

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ANTHROPIC_API_KEY")
}
