package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 384, cfg.Embedding.Dimensions)
	assert.Equal(t, 15, cfg.LoopDetector.TopK)
	assert.Equal(t, 10, cfg.Cluster.K)
	assert.InDelta(t, 1.0, cfg.Scoring.SemanticWeight+cfg.Scoring.KeywordWeight, 1e-9)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Embedding.Provider, cfg.Embedding.Provider)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlContent := "embedding:\n  provider: genai\n  genai_model: custom-model\n"
	require.NoError(t, os.WriteFile(path, []byte(yamlContent), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "genai", cfg.Embedding.Provider)
	assert.Equal(t, "custom-model", cfg.Embedding.GenAIModel)
	// Unset fields retain defaults only when starting from DefaultConfig();
	// yaml.Unmarshal into a pre-populated struct leaves omitted scalars be.
	assert.Equal(t, DefaultConfig().LoopDetector.TopK, cfg.LoopDetector.TopK)
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Run("CORPUS_PATH and ARTIFACTS_DIR", func(t *testing.T) {
		t.Setenv("CORPUS_PATH", "/tmp/corpus.db")
		t.Setenv("ARTIFACTS_DIR", "/tmp/artifacts")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "/tmp/corpus.db", cfg.CorpusPath)
		assert.Equal(t, "/tmp/artifacts", cfg.ArtifactsDir)
	})

	t.Run("MODEL_ID overrides embedding model", func(t *testing.T) {
		t.Setenv("MODEL_ID", "custom-embed")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "custom-embed", cfg.Embedding.ModelID)
		assert.Equal(t, "custom-embed", cfg.Embedding.OllamaModel)
	})

	t.Run("LOOP_TOP_K and CLUSTER_K must be positive ints", func(t *testing.T) {
		t.Setenv("LOOP_TOP_K", "not-a-number")
		t.Setenv("CLUSTER_K", "7")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, DefaultConfig().LoopDetector.TopK, cfg.LoopDetector.TopK, "invalid int is ignored")
		assert.Equal(t, 7, cfg.Cluster.K)
	})
}

func TestValidate_RejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Embedding.Dimensions = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Scoring.SemanticWeight = 0
	cfg.Scoring.KeywordWeight = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.ArtifactsDir = ""
	assert.Error(t, cfg.Validate())
}

func TestArtifactPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ArtifactsDir = "out"
	assert.Equal(t, filepath.Join("out", "cognitive_state.json"), cfg.ArtifactPath("cognitive_state.json"))
}
