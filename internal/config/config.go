// Package config loads and validates Cognitive Sensor configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all Cognitive Sensor configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Corpus / artifact locations
	CorpusPath   string `yaml:"corpus_path"`
	ArtifactsDir string `yaml:"artifacts_dir"`

	// Embedding engine configuration
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Lexicon configuration
	Lexicon LexiconConfig `yaml:"lexicon"`

	// Scoring weights (spec §9: must be configurable, not hard-coded)
	Scoring ScoringConfig `yaml:"scoring"`

	// Loop detector configuration
	LoopDetector LoopDetectorConfig `yaml:"loop_detector"`

	// Router threshold table
	Router RouterConfig `yaml:"router"`

	// Topic clusterer configuration
	Cluster ClusterConfig `yaml:"cluster"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:         "cogsensor",
		Version:      "1.0.0",
		CorpusPath:   "data/corpus.db",
		ArtifactsDir: "artifacts",

		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
			TaskType:       "SEMANTIC_SIMILARITY",
			Dimensions:     384,
			ModelID:        "embeddinggemma",
			BatchSize:      32,
		},

		Lexicon: LexiconConfig{
			IntentPhrases: DefaultIntentPhrases(),
			CompletionPhrases: DefaultCompletionPhrases(),
			Stopwords:     DefaultStopwords(),
			VocabularyTopN: 500,
		},

		Scoring: ScoringConfig{
			IntentHitWeight:     30,
			CompletionHitWeight: 50,
			SemanticWeight:      0.6,
			KeywordWeight:       0.4,
		},

		LoopDetector: LoopDetectorConfig{
			TopK:                     15,
			CompletionSimilarityCap:  0.70,
			MinIntentSimilarity:      0.30,
			StrongIntentThreshold:    0.50,
			MediumIntentThreshold:    0.30,
			EvidenceSnippetChars:     200,
		},

		Router: RouterConfig{
			ClosureRatioFloor: 0.15,
			OpenLoopCeiling:   20,
			MaintenanceCeiling: 10,
		},

		Cluster: ClusterConfig{
			K:                10,
			Seed:             42,
			MaxIterations:    300,
			ConvergenceDelta: 1e-4,
			MinClusterSize:   3,
			SummaryKeywords:  5,
		},

		Logging: LoggingConfig{
			Level:     "info",
			DebugMode: false,
		},
	}
}

// Load reads a YAML config file, falling back to defaults for any field left
// unset, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides applies the environment variables named in spec §6:
// CORPUS_PATH, ARTIFACTS_DIR, MODEL_ID, LOOP_TOP_K, CLUSTER_K.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CORPUS_PATH"); v != "" {
		c.CorpusPath = v
	}
	if v := os.Getenv("ARTIFACTS_DIR"); v != "" {
		c.ArtifactsDir = v
	}
	if v := os.Getenv("MODEL_ID"); v != "" {
		c.Embedding.ModelID = v
		c.Embedding.OllamaModel = v
	}
	if v := os.Getenv("LOOP_TOP_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.LoopDetector.TopK = n
		}
	}
	if v := os.Getenv("CLUSTER_K"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Cluster.K = n
		}
	}
}

// Validate checks structural invariants of the loaded configuration.
func (c *Config) Validate() error {
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive")
	}
	if c.Scoring.SemanticWeight+c.Scoring.KeywordWeight == 0 {
		return fmt.Errorf("scoring weights cannot both be zero")
	}
	if c.LoopDetector.TopK <= 0 {
		return fmt.Errorf("loop_detector.top_k must be positive")
	}
	if c.Cluster.K <= 0 {
		return fmt.Errorf("cluster.k must be positive")
	}
	if c.ArtifactsDir == "" {
		return fmt.Errorf("artifacts_dir must not be empty")
	}
	return nil
}

// ArtifactPath joins the artifacts directory with a relative artifact name.
func (c *Config) ArtifactPath(name string) string {
	return filepath.Join(c.ArtifactsDir, name)
}
