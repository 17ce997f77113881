package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"cogsensor/internal/cogerr"
	"cogsensor/internal/logging"
)

// =============================================================================
// OLLAMA EMBEDDING ENGINE
// =============================================================================

// OllamaEngine generates embeddings using a local Ollama server.
// embeddinggemma and similar Matryoshka-trained models natively emit 768
// dimensions; the engine truncates (and renormalizes) to the configured
// dimensionality so every stored vector satisfies the fixed-dimension
// contract regardless of which model produced it.
type OllamaEngine struct {
	endpoint   string
	model      string
	dimensions int
	client     *http.Client
}

// NewOllamaEngine creates a new Ollama embedding engine targeting the given
// dimensionality.
func NewOllamaEngine(endpoint, model string, dimensions int) (*OllamaEngine, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "NewOllamaEngine")
	defer timer.Stop()

	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	if model == "" {
		model = "embeddinggemma"
	}
	if dimensions <= 0 {
		dimensions = 384
	}

	logging.Embedding("creating ollama engine: endpoint=%s model=%s dimensions=%d", endpoint, model, dimensions)

	return &OllamaEngine{
		endpoint:   endpoint,
		model:      model,
		dimensions: dimensions,
		client:     &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// HealthCheck verifies the Ollama server is reachable.
func (e *OllamaEngine) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.endpoint+"/api/tags", nil)
	if err != nil {
		return cogerr.New(cogerr.KindModelUnavailable, "Ollama.HealthCheck", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return cogerr.New(cogerr.KindModelUnavailable, "Ollama.HealthCheck", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return cogerr.Wrap(cogerr.KindModelUnavailable, "Ollama.HealthCheck", "ollama returned status %d", resp.StatusCode)
	}
	return nil
}

// Embed generates an embedding for a single text, truncated and
// renormalized to e.dimensions.
func (e *OllamaEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "Ollama.Embed")
	defer timer.Stop()

	req := ollamaEmbedRequest{Model: e.model, Prompt: text}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, cogerr.New(cogerr.KindModelUnavailable, "Ollama.Embed", fmt.Errorf("marshal request: %w", err))
	}

	apiStart := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, cogerr.New(cogerr.KindModelUnavailable, "Ollama.Embed", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(httpReq)
	apiLatency := time.Since(apiStart)
	if err != nil {
		logging.Get(logging.CategoryEmbedding).Error("Ollama.Embed: request failed after %v: %v", apiLatency, err)
		return nil, cogerr.New(cogerr.KindModelUnavailable, "Ollama.Embed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, cogerr.Wrap(cogerr.KindModelUnavailable, "Ollama.Embed", "ollama returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, cogerr.New(cogerr.KindModelUnavailable, "Ollama.Embed", fmt.Errorf("decode response: %w", err))
	}

	vec, err := e.shape(result.Embedding)
	if err != nil {
		return nil, err
	}

	logging.EmbeddingDebug("Ollama.Embed: completed, native_dims=%d shaped_dims=%d latency=%v", len(result.Embedding), len(vec), apiLatency)
	return vec, nil
}

// shape truncates a native embedding to e.dimensions and renormalizes. A
// native embedding shorter than e.dimensions cannot be shaped and is a
// DimensionMismatch.
func (e *OllamaEngine) shape(native []float32) ([]float32, error) {
	if len(native) < e.dimensions {
		return nil, cogerr.Wrap(cogerr.KindDimensionMismatch, "Ollama.Embed",
			"model %s produced %d dimensions, cannot shape to %d", e.model, len(native), e.dimensions)
	}
	vec := make([]float32, e.dimensions)
	copy(vec, native[:e.dimensions])
	Normalize(vec)
	return vec, nil
}

// EmbedBatch generates embeddings for multiple texts. Ollama has no native
// batch endpoint, so texts are embedded sequentially.
func (e *OllamaEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "Ollama.EmbedBatch")
	defer timer.Stop()

	if len(texts) == 0 {
		return nil, nil
	}

	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d/%d: %w", i+1, len(texts), err)
		}
		embeddings[i] = vec
	}

	logging.Embedding("Ollama.EmbedBatch: embedded %d texts", len(texts))
	return embeddings, nil
}

// Dimensions returns the shaped dimensionality this engine was configured for.
func (e *OllamaEngine) Dimensions() int {
	return e.dimensions
}

// Name returns the engine name, used as part of the persisted model identifier.
func (e *OllamaEngine) Name() string {
	return fmt.Sprintf("ollama:%s", e.model)
}

// =============================================================================
// OLLAMA API TYPES
// =============================================================================

type ollamaEmbedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResponse struct {
	Embedding []float32 `json:"embedding"`
}
