package main

import (
	"cogsensor/internal/config"
	"cogsensor/internal/embedding"
	"cogsensor/internal/store"
)

// buildConfig loads configuration from configPath (applying CORPUS_PATH,
// ARTIFACTS_DIR, MODEL_ID, LOOP_TOP_K, CLUSTER_K env overrides per spec §6),
// then applies the --corpus/--artifacts-dir flags on top since an explicit
// flag should win over both the file and the environment.
func buildConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if corpusPath != "" {
		cfg.CorpusPath = corpusPath
	}
	if artifactsDir != "" {
		cfg.ArtifactsDir = artifactsDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (*store.LocalStore, error) {
	return store.NewLocalStore(cfg.CorpusPath)
}

// buildEngine is a var, not a plain func, so tests can substitute a fake
// engine without reaching out to a real Ollama/GenAI endpoint.
var buildEngine = func(cfg *config.Config) (embedding.EmbeddingEngine, error) {
	return embedding.NewEngine(cfg.Embedding)
}
