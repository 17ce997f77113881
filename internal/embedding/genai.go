package embedding

import (
	"context"
	"fmt"
	"time"

	"cogsensor/internal/cogerr"
	"cogsensor/internal/logging"

	"google.golang.org/genai"
)

// =============================================================================
// GOOGLE GENAI EMBEDDING ENGINE
// =============================================================================

// maxBatchSize is the maximum number of texts allowed in a single GenAI batch request.
// The API returns error 400 if more than 100 requests are in one batch.
const maxBatchSize = 100

func int32Ptr(i int32) *int32 {
	return &i
}

// GenAIEngine generates embeddings using Google's Gemini API. gemini-embedding-001
// accepts an explicit OutputDimensionality, so the engine requests the
// configured dimensionality directly rather than truncating after the fact.
type GenAIEngine struct {
	client     *genai.Client
	model      string
	taskType   string
	dimensions int
}

// NewGenAIEngine creates a new GenAI embedding engine targeting the given
// dimensionality.
func NewGenAIEngine(apiKey, model, taskType string, dimensions int) (*GenAIEngine, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "NewGenAIEngine")
	defer timer.Stop()

	if apiKey == "" {
		return nil, cogerr.Wrap(cogerr.KindModelUnavailable, "NewGenAIEngine", "GenAI API key is required")
	}
	if model == "" {
		model = "gemini-embedding-001"
	}
	if taskType == "" {
		taskType = "SEMANTIC_SIMILARITY"
	}
	if dimensions <= 0 {
		dimensions = 384
	}

	logging.Embedding("initializing GenAI client: model=%s task_type=%s dimensions=%d", model, taskType, dimensions)

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, cogerr.New(cogerr.KindModelUnavailable, "NewGenAIEngine", fmt.Errorf("create GenAI client: %w", err))
	}

	return &GenAIEngine{
		client:     client,
		model:      model,
		taskType:   taskType,
		dimensions: dimensions,
	}, nil
}

// HealthCheck embeds a short probe string to verify the API key and model
// are usable.
func (e *GenAIEngine) HealthCheck(ctx context.Context) error {
	_, err := e.Embed(ctx, "health check")
	if err != nil {
		return cogerr.New(cogerr.KindModelUnavailable, "GenAI.HealthCheck", err)
	}
	return nil
}

// Embed generates an embedding for a single text, biased by the engine's
// configured default task type.
func (e *GenAIEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.embedSingle(ctx, text, e.taskType)
}

// EmbedWithTask generates an embedding for a single text, biased by an
// explicit task type overriding the engine's configured default. Satisfies
// TaskTypeAwareEngine.
func (e *GenAIEngine) EmbedWithTask(ctx context.Context, text, taskType string) ([]float32, error) {
	if taskType == "" {
		taskType = e.taskType
	}
	return e.embedSingle(ctx, text, taskType)
}

func (e *GenAIEngine) embedSingle(ctx context.Context, text, taskType string) ([]float32, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "GenAI.Embed")
	defer timer.Stop()

	embeddings, err := e.embedBatchChunk(ctx, []string{text}, taskType)
	if err != nil {
		return nil, err
	}
	if len(embeddings) == 0 {
		return nil, cogerr.Wrap(cogerr.KindModelUnavailable, "GenAI.Embed", "no embeddings returned")
	}
	return embeddings[0], nil
}

// EmbedBatch generates embeddings for multiple texts, biased by the
// engine's configured default task type. GenAI has native batch support but
// limits batches to maxBatchSize items; larger inputs are chunked and
// processed sequentially.
func (e *GenAIEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return e.embedBatch(ctx, texts, e.taskType)
}

// EmbedBatchWithTask is EmbedBatch with an explicit task type overriding
// the engine's configured default. Satisfies TaskTypeAwareEngine.
func (e *GenAIEngine) EmbedBatchWithTask(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if taskType == "" {
		taskType = e.taskType
	}
	return e.embedBatch(ctx, texts, taskType)
}

func (e *GenAIEngine) embedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	timer := logging.StartTimer(logging.CategoryEmbedding, "GenAI.EmbedBatch")
	defer timer.Stop()

	if len(texts) == 0 {
		return nil, nil
	}

	if len(texts) <= maxBatchSize {
		return e.embedBatchChunk(ctx, texts, taskType)
	}

	numBatches := (len(texts) + maxBatchSize - 1) / maxBatchSize
	logging.Embedding("GenAI.EmbedBatch: chunking %d texts into %d batches", len(texts), numBatches)

	all := make([][]float32, 0, len(texts))
	for batchIdx := 0; batchIdx < numBatches; batchIdx++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		start := batchIdx * maxBatchSize
		end := start + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		chunk, err := e.embedBatchChunk(ctx, texts[start:end], taskType)
		if err != nil {
			return nil, fmt.Errorf("batch %d/%d: %w", batchIdx+1, numBatches, err)
		}
		all = append(all, chunk...)
	}

	return all, nil
}

// embedBatchChunk processes a single batch chunk (must be <= maxBatchSize).
func (e *GenAIEngine) embedBatchChunk(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	apiStart := time.Now()
	result, err := e.client.Models.EmbedContent(ctx,
		e.model,
		contents,
		&genai.EmbedContentConfig{
			OutputDimensionality: int32Ptr(int32(e.dimensions)),
			TaskType:             taskType,
		},
	)
	apiLatency := time.Since(apiStart)

	if err != nil {
		return nil, cogerr.New(cogerr.KindModelUnavailable, "GenAI.embedBatchChunk", err)
	}

	logging.EmbeddingDebug("GenAI.embedBatchChunk: %d embeddings in %v", len(result.Embeddings), apiLatency)

	embeddings := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		vec := emb.Values
		if len(vec) != e.dimensions {
			return nil, cogerr.Wrap(cogerr.KindDimensionMismatch, "GenAI.embedBatchChunk",
				"model %s returned %d dimensions, want %d", e.model, len(vec), e.dimensions)
		}
		Normalize(vec)
		embeddings[i] = vec
	}

	return embeddings, nil
}

// Dimensions returns the configured output dimensionality.
func (e *GenAIEngine) Dimensions() int {
	return e.dimensions
}

// Name returns the engine name, used as part of the persisted model identifier.
func (e *GenAIEngine) Name() string {
	return fmt.Sprintf("genai:%s", e.model)
}

// Close is a no-op; the GenAI client holds no resources requiring cleanup.
func (e *GenAIEngine) Close() error {
	return nil
}
