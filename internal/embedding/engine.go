// Package embedding generates and validates the fixed-dimension, unit-norm
// vectors the Embedding Index persists (spec §4.2). Supports two backends:
// Ollama (local) and Google GenAI (cloud).
package embedding

import (
	"context"
	"math"
	"time"

	"cogsensor/internal/cogerr"
	"cogsensor/internal/config"
	"cogsensor/internal/logging"
)

// =============================================================================
// EMBEDDING ENGINE INTERFACE
// =============================================================================

// EmbeddingEngine generates vector embeddings for text.
type EmbeddingEngine interface {
	// Embed generates an embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the dimensionality this engine natively produces.
	Dimensions() int

	// Name returns the engine name, persisted as part of the model identifier.
	Name() string
}

// HealthChecker is an optional interface for engines that can verify
// availability before a batch run. The refresh pipeline uses this to fail
// fast with ModelUnavailable instead of partway through batch_ensure.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// TaskTypeAwareEngine is an optional capability for engines that can bias
// the embedding space toward a particular downstream use per call. GenAI
// supports this natively; Ollama has no equivalent and does not implement
// it, so callers fall back to the plain Embed/EmbedBatch methods.
type TaskTypeAwareEngine interface {
	EmbedWithTask(ctx context.Context, text, taskType string) ([]float32, error)
	EmbedBatchWithTask(ctx context.Context, texts []string, taskType string) ([][]float32, error)
}

// EmbedWithTaskType embeds text biased toward taskType when engine supports
// TaskTypeAwareEngine, otherwise falls back to engine.Embed unchanged.
func EmbedWithTaskType(ctx context.Context, engine EmbeddingEngine, text, taskType string) ([]float32, error) {
	if taskAware, ok := engine.(TaskTypeAwareEngine); ok && taskType != "" {
		return taskAware.EmbedWithTask(ctx, text, taskType)
	}
	return engine.Embed(ctx, text)
}

// EmbedBatchWithTaskType is EmbedWithTaskType for a batch of texts.
func EmbedBatchWithTaskType(ctx context.Context, engine EmbeddingEngine, texts []string, taskType string) ([][]float32, error) {
	if taskAware, ok := engine.(TaskTypeAwareEngine); ok && taskType != "" {
		return taskAware.EmbedBatchWithTask(ctx, texts, taskType)
	}
	return engine.EmbedBatch(ctx, texts)
}

// =============================================================================
// FACTORY
// =============================================================================

// NewEngine creates an embedding engine from configuration.
func NewEngine(cfg config.EmbeddingConfig) (EmbeddingEngine, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "NewEngine")
	defer timer.Stop()

	logging.Embedding("creating embedding engine with provider=%s", cfg.Provider)
	logging.EmbeddingDebug("engine config: provider=%s ollama_endpoint=%s ollama_model=%s genai_model=%s task_type=%s dimensions=%d",
		cfg.Provider, cfg.OllamaEndpoint, cfg.OllamaModel, cfg.GenAIModel, cfg.TaskType, cfg.Dimensions)

	var engine EmbeddingEngine
	var err error

	switch cfg.Provider {
	case "ollama":
		engine, err = NewOllamaEngine(cfg.OllamaEndpoint, cfg.OllamaModel, cfg.Dimensions)
	case "genai":
		engine, err = NewGenAIEngine(cfg.GenAIAPIKey, cfg.GenAIModel, cfg.TaskType, cfg.Dimensions)
	default:
		err = cogerr.Wrap(cogerr.KindModelUnavailable, "NewEngine", "unsupported embedding provider: %s (use 'ollama' or 'genai')", cfg.Provider)
	}

	if err != nil {
		logging.Get(logging.CategoryEmbedding).Error("failed to create embedding engine: %v", err)
		return nil, err
	}

	logging.Embedding("embedding engine created: name=%s dimensions=%d", engine.Name(), engine.Dimensions())
	return engine, nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// Validate enforces the fixed-dimension, unit-norm contract (spec §4.2) that
// every stored vector must satisfy before it is written to the index.
// Every vector of the right dimension is renormalized to unit norm in place,
// whatever its incoming norm; a dimension mismatch against want is always a
// DimensionMismatch error.
func Validate(vec []float32, want int) error {
	if len(vec) != want {
		return cogerr.Wrap(cogerr.KindDimensionMismatch, "embedding.Validate",
			"vector has %d dimensions, want %d", len(vec), want)
	}
	Normalize(vec)
	return nil
}

// Normalize rescales vec to unit L2 norm in place. A zero vector is left
// unchanged since it has no direction to normalize toward.
func Normalize(vec []float32) {
	var sumSquares float64
	for _, v := range vec {
		sumSquares += float64(v) * float64(v)
	}
	if sumSquares == 0 {
		return
	}
	norm := math.Sqrt(sumSquares)
	for i, v := range vec {
		vec[i] = float32(float64(v) / norm)
	}
}

// =============================================================================
// COSINE SIMILARITY
// =============================================================================

// CosineSimilarity calculates the cosine similarity between two vectors.
// Returns a value between -1 and 1, where 1 means identical, 0 means
// orthogonal.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, cogerr.Wrap(cogerr.KindDimensionMismatch, "CosineSimilarity",
			"vectors have different lengths: %d != %d", len(a), len(b))
	}

	var dotProduct, aMagnitude, bMagnitude float64
	for i := 0; i < len(a); i++ {
		dotProduct += float64(a[i] * b[i])
		aMagnitude += float64(a[i] * a[i])
		bMagnitude += float64(b[i] * b[i])
	}

	if aMagnitude == 0 || bMagnitude == 0 {
		return 0, nil
	}

	return dotProduct / (math.Sqrt(aMagnitude) * math.Sqrt(bMagnitude)), nil
}

// FindTopK returns the K most similar vectors to query, sorted by
// descending cosine similarity.
func FindTopK(query []float32, corpus [][]float32, k int) ([]SimilarityResult, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "FindTopK")
	defer timer.Stop()

	if k <= 0 {
		k = 10
	}

	results := make([]SimilarityResult, 0, len(corpus))
	skipped := 0

	for i, vec := range corpus {
		similarity, err := CosineSimilarity(query, vec)
		if err != nil {
			skipped++
			continue
		}
		results = append(results, SimilarityResult{Index: i, Similarity: similarity})
	}

	if skipped > 0 {
		logging.Get(logging.CategoryEmbedding).Warn("FindTopK: skipped %d vectors due to dimension mismatch", skipped)
	}

	sortStart := time.Now()
	for i := 0; i < len(results) && i < k; i++ {
		for j := i + 1; j < len(results); j++ {
			if results[j].Similarity > results[i].Similarity {
				results[i], results[j] = results[j], results[i]
			}
		}
	}
	logging.EmbeddingDebug("FindTopK: sorted %d results in %v", len(results), time.Since(sortStart))

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// SimilarityResult represents a single similarity search hit.
type SimilarityResult struct {
	Index      int
	Similarity float64
}
