package embedding

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"cogsensor/internal/cogerr"
	"cogsensor/internal/logging"
)

// =============================================================================
// EMBEDDING INDEX
// =============================================================================

// Embedding is one persisted vector: one row per conversation, regenerated
// only when ModelID changes.
type Embedding struct {
	ConversationID string
	Vector         []float32
	ModelID        string
	TextLength     int
	CreatedAt      time.Time
}

// Store is the persistence boundary the Embedding Index writes through.
// internal/store implements this against the corpus database.
type Store interface {
	GetEmbedding(ctx context.Context, conversationID, modelID string) (*Embedding, error)
	PutEmbedding(ctx context.Context, e Embedding) error
	AllEmbeddings(ctx context.Context, modelID string) ([]Embedding, error)
	DropEmbeddingsByModel(ctx context.Context, modelID string) error
}

// Item is one (conversation_id, text) pair submitted to BatchEnsure.
// ContentType selects the task-type bias (spec §4.2's engine is task-type
// aware for GenAI); the zero value behaves as ContentTypeConversation. A
// single BatchEnsure call is expected to carry a homogeneous ContentType
// across all its items, since task type is resolved once per call.
type Item struct {
	ConversationID string
	Text           string
	ContentType    ContentType
}

// Index implements spec §4.2: ensure/batch_ensure/get/all/drop_by_model over
// a fixed embedding model.
type Index struct {
	engine     EmbeddingEngine
	store      Store
	modelID    string
	dimensions int
	batchSize  int
	// maxConcurrency bounds the number of in-flight batch_ensure groups,
	// mirroring the teacher's errgroup.SetLimit batching pattern.
	maxConcurrency int
}

// NewIndex constructs an Embedding Index. batchSize and maxConcurrency fall
// back to spec defaults (32, 4) when non-positive.
func NewIndex(engine EmbeddingEngine, store Store, modelID string, dimensions, batchSize, maxConcurrency int) *Index {
	if batchSize <= 0 {
		batchSize = 32
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &Index{
		engine:         engine,
		store:          store,
		modelID:        modelID,
		dimensions:     dimensions,
		batchSize:      batchSize,
		maxConcurrency: maxConcurrency,
	}
}

// Ensure returns the existing embedding for (conversationID, index.modelID)
// if present, otherwise computes, persists, and returns it. Idempotent.
func (idx *Index) Ensure(ctx context.Context, conversationID, text string) (Embedding, error) {
	existing, err := idx.store.GetEmbedding(ctx, conversationID, idx.modelID)
	if err != nil {
		return Embedding{}, cogerr.New(cogerr.KindCorpusError, "Index.Ensure", err)
	}
	if existing != nil {
		return *existing, nil
	}

	if hc, ok := idx.engine.(HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return Embedding{}, err
		}
	}

	taskType := SelectTaskType(ContentTypeConversation, false)
	vec, err := EmbedWithTaskType(ctx, idx.engine, text, taskType)
	if err != nil {
		return Embedding{}, err
	}
	if err := Validate(vec, idx.dimensions); err != nil {
		return Embedding{}, err
	}

	e := Embedding{
		ConversationID: conversationID,
		Vector:         vec,
		ModelID:        idx.modelID,
		TextLength:     len(text),
		CreatedAt:      time.Now(),
	}
	if err := idx.store.PutEmbedding(ctx, e); err != nil {
		return Embedding{}, cogerr.New(cogerr.KindCorpusError, "Index.Ensure", err)
	}

	logging.EmbeddingDebug("Index.Ensure: computed embedding for conversation=%s model=%s", conversationID, idx.modelID)
	return e, nil
}

// BatchEnsure ensures embeddings for all items, returning them in input
// order. Items already present are read from the store without an engine
// call; the remainder are embedded in groups of idx.batchSize, with up to
// idx.maxConcurrency groups in flight.
func (idx *Index) BatchEnsure(ctx context.Context, items []Item) ([]Embedding, error) {
	results := make([]Embedding, len(items))
	var missing []int

	for i, item := range items {
		existing, err := idx.store.GetEmbedding(ctx, item.ConversationID, idx.modelID)
		if err != nil {
			return nil, cogerr.New(cogerr.KindCorpusError, "Index.BatchEnsure", err)
		}
		if existing != nil {
			results[i] = *existing
			continue
		}
		missing = append(missing, i)
	}

	if len(missing) == 0 {
		return results, nil
	}

	if hc, ok := idx.engine.(HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return nil, err
		}
	}

	taskType := SelectTaskType(items[missing[0]].ContentType, false)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.maxConcurrency)

	numBatches := (len(missing) + idx.batchSize - 1) / idx.batchSize
	logging.Embedding("Index.BatchEnsure: embedding %d/%d missing conversations in %d batches, task_type=%s", len(missing), len(items), numBatches, taskType)

	for start := 0; start < len(missing); start += idx.batchSize {
		start := start
		end := start + idx.batchSize
		if end > len(missing) {
			end = len(missing)
		}

		g.Go(func() error {
			batchIndices := missing[start:end]
			texts := make([]string, len(batchIndices))
			for i, resultIdx := range batchIndices {
				texts[i] = items[resultIdx].Text
			}

			vecs, err := EmbedBatchWithTaskType(gctx, idx.engine, texts, taskType)
			if err != nil {
				return err
			}
			if len(vecs) != len(texts) {
				return cogerr.Wrap(cogerr.KindModelUnavailable, "Index.BatchEnsure",
					"engine returned %d embeddings for %d texts", len(vecs), len(texts))
			}

			now := time.Now()
			batch := make([]Embedding, len(batchIndices))
			for i, resultIdx := range batchIndices {
				vec := vecs[i]
				if err := Validate(vec, idx.dimensions); err != nil {
					return err
				}
				batch[i] = Embedding{
					ConversationID: items[resultIdx].ConversationID,
					Vector:         vec,
					ModelID:        idx.modelID,
					TextLength:     len(items[resultIdx].Text),
					CreatedAt:      now,
				}
			}

			mu.Lock()
			defer mu.Unlock()
			for i, resultIdx := range batchIndices {
				if err := idx.store.PutEmbedding(gctx, batch[i]); err != nil {
					return cogerr.New(cogerr.KindCorpusError, "Index.BatchEnsure", err)
				}
				results[resultIdx] = batch[i]
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}

// Get returns the stored embedding for conversationID, or nil if absent.
func (idx *Index) Get(ctx context.Context, conversationID string) (*Embedding, error) {
	e, err := idx.store.GetEmbedding(ctx, conversationID, idx.modelID)
	if err != nil {
		return nil, cogerr.New(cogerr.KindCorpusError, "Index.Get", err)
	}
	return e, nil
}

// All returns every embedding for the index's current model.
func (idx *Index) All(ctx context.Context) ([]Embedding, error) {
	all, err := idx.store.AllEmbeddings(ctx, idx.modelID)
	if err != nil {
		return nil, cogerr.New(cogerr.KindCorpusError, "Index.All", err)
	}
	return all, nil
}

// DropByModel removes all rows for a stale model identifier.
func (idx *Index) DropByModel(ctx context.Context, modelID string) error {
	if err := idx.store.DropEmbeddingsByModel(ctx, modelID); err != nil {
		return cogerr.New(cogerr.KindCorpusError, "Index.DropByModel", err)
	}
	return nil
}

// ModelID returns the model identifier this index ensures embeddings against.
func (idx *Index) ModelID() string { return idx.modelID }

// Dimensions returns the fixed vector dimensionality this index enforces.
func (idx *Index) Dimensions() int { return idx.dimensions }

// CheckNotStale compares the number of embeddings on hand against the
// expected conversation count, per spec §5 ordering guarantee 2: embedding
// ensure must complete for every conversation before scoring begins.
func (idx *Index) CheckNotStale(ctx context.Context, expectedConversations int) error {
	all, err := idx.All(ctx)
	if err != nil {
		return err
	}
	if len(all) < expectedConversations {
		return cogerr.Wrap(cogerr.KindIndexStale, "Index.CheckNotStale",
			"index has %d embeddings, expected %d", len(all), expectedConversations)
	}
	return nil
}
