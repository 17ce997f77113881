package scoring

import (
	"context"
	"fmt"

	"cogsensor/internal/embedding"
	"cogsensor/internal/lexicon"
)

// semanticScale is the fixed multiplier in semantic_score = 100·intent_sim
// − 100·completion_sim (spec §4.5); unlike the keyword weights this is not
// operator-configurable.
const semanticScale = 100.0

// Prototypes holds the intent and completion prototype vectors, each the
// unit-normalized mean embedding of its phrase list.
type Prototypes struct {
	Intent     []float32
	Completion []float32
}

// ComputePrototypes embeds every intent and completion phrase and
// mean-then-normalizes each set into a single prototype vector. Recomputed
// once per refresh (spec §4.5), never cached across runs since it's cheap
// (tens of phrases, not thousands of conversations).
func ComputePrototypes(ctx context.Context, engine embedding.EmbeddingEngine, lex *lexicon.Lexicon) (Prototypes, error) {
	// Prototype phrases are fixed reference documents compared against many
	// conversation vectors, not queries themselves, so isQuery is false.
	taskType := embedding.SelectTaskType(embedding.ContentTypeQuery, false)

	intentVecs, err := embedding.EmbedBatchWithTaskType(ctx, engine, lex.IntentPhrases(), taskType)
	if err != nil {
		return Prototypes{}, fmt.Errorf("embed intent phrases: %w", err)
	}
	completionVecs, err := embedding.EmbedBatchWithTaskType(ctx, engine, lex.CompletionPhrases(), taskType)
	if err != nil {
		return Prototypes{}, fmt.Errorf("embed completion phrases: %w", err)
	}

	intent := meanVector(intentVecs)
	embedding.Normalize(intent)
	completion := meanVector(completionVecs)
	embedding.Normalize(completion)

	return Prototypes{Intent: intent, Completion: completion}, nil
}

func meanVector(vectors [][]float32) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	mean := make([]float32, dim)
	for _, v := range vectors {
		for i, f := range v {
			if i >= dim {
				break
			}
			mean[i] += f
		}
	}
	n := float32(len(vectors))
	for i := range mean {
		mean[i] /= n
	}
	return mean
}

// SemanticScore is one conversation's vector-similarity score.
type SemanticScore struct {
	ConversationID       string
	IntentSimilarity     float64
	CompletionSimilarity float64
	Score                float64
}

// SemanticScorer computes SemanticScore from a conversation's embedding
// vector and the fixed prototype pair.
type SemanticScorer struct {
	prototypes Prototypes
}

// NewSemanticScorer builds a SemanticScorer against prototypes computed
// once per refresh via ComputePrototypes.
func NewSemanticScorer(prototypes Prototypes) *SemanticScorer {
	return &SemanticScorer{prototypes: prototypes}
}

// Score computes semantic_score = 100·intent_similarity −
// 100·completion_similarity.
func (s *SemanticScorer) Score(conversationID string, vector []float32) (SemanticScore, error) {
	intentSim, err := embedding.CosineSimilarity(vector, s.prototypes.Intent)
	if err != nil {
		return SemanticScore{}, fmt.Errorf("intent similarity for %s: %w", conversationID, err)
	}
	completionSim, err := embedding.CosineSimilarity(vector, s.prototypes.Completion)
	if err != nil {
		return SemanticScore{}, fmt.Errorf("completion similarity for %s: %w", conversationID, err)
	}

	return SemanticScore{
		ConversationID:       conversationID,
		IntentSimilarity:     intentSim,
		CompletionSimilarity: completionSim,
		Score:                semanticScale*intentSim - semanticScale*completionSim,
	}, nil
}
