package config

// EmbeddingConfig configures the vector embedding engine.
// Supports Ollama (local) and GenAI (cloud) backends, per spec §4.2.
type EmbeddingConfig struct {
	// Provider: "ollama" or "genai"
	Provider string `yaml:"provider" json:"provider"`

	// Ollama configuration (local embedding server)
	OllamaEndpoint string `yaml:"ollama_endpoint" json:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model" json:"ollama_model"`

	// GenAI configuration (Google cloud embedding)
	GenAIAPIKey string `yaml:"genai_api_key" json:"genai_api_key"`
	GenAIModel  string `yaml:"genai_model" json:"genai_model"`

	// TaskType is the GenAI engine's default task type for plain
	// Embed/EmbedBatch calls (SEMANTIC_SIMILARITY when empty). Index and
	// prototype embedding select a per-content task type instead.
	TaskType string `yaml:"task_type" json:"task_type"`

	// ModelID is the contract identifier persisted alongside each vector
	// (spec §3 Embedding.model_id) — regenerated only when this changes.
	ModelID string `yaml:"model_id" json:"model_id"`

	// Dimensions is the fixed dimensionality d the spec requires (384).
	Dimensions int `yaml:"dimensions" json:"dimensions"`

	// BatchSize bounds batch_ensure concurrency/grouping (spec §4.2: 32).
	BatchSize int `yaml:"batch_size" json:"batch_size"`
}
