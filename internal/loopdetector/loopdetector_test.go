package loopdetector

import (
	"testing"
	"time"

	"cogsensor/internal/config"
	"cogsensor/internal/scoring"

	"github.com/stretchr/testify/require"
)

func testCfg() (config.ScoringConfig, config.LoopDetectorConfig) {
	return config.ScoringConfig{
			IntentHitWeight:     30,
			CompletionHitWeight: 50,
			SemanticWeight:      0.6,
			KeywordWeight:       0.4,
		}, config.LoopDetectorConfig{
			TopK:                    15,
			CompletionSimilarityCap: 0.70,
			MinIntentSimilarity:     0.30,
			StrongIntentThreshold:   0.50,
			MediumIntentThreshold:   0.30,
			EvidenceSnippetChars:    200,
		}
}

func TestDetect_EmptyCorpusYieldsEmptyList(t *testing.T) {
	scoringCfg, cfg := testCfg()
	d := NewDetector([]string{"want to"}, scoringCfg, cfg)
	got := d.Detect(nil)
	require.Empty(t, got)
}

func TestDetect_FiltersHighCompletionSimilarity(t *testing.T) {
	scoringCfg, cfg := testCfg()
	d := NewDetector([]string{"want to"}, scoringCfg, cfg)

	inputs := []ConversationInput{
		{
			ConversationID: "conv-done",
			Keyword:        scoring.KeywordScore{IntentHits: 1},
			Semantic:       scoring.SemanticScore{IntentSimilarity: 0.8, CompletionSimilarity: 0.9},
		},
	}
	got := d.Detect(inputs)
	require.Empty(t, got)
}

func TestDetect_FiltersPureNoise(t *testing.T) {
	scoringCfg, cfg := testCfg()
	d := NewDetector([]string{"want to"}, scoringCfg, cfg)

	inputs := []ConversationInput{
		{
			ConversationID: "conv-noise",
			Keyword:        scoring.KeywordScore{IntentHits: 0},
			Semantic:       scoring.SemanticScore{IntentSimilarity: 0.1, CompletionSimilarity: 0.1},
		},
	}
	got := d.Detect(inputs)
	require.Empty(t, got)
}

func TestDetect_ClassificationBands(t *testing.T) {
	scoringCfg, cfg := testCfg()
	d := NewDetector(nil, scoringCfg, cfg)

	inputs := []ConversationInput{
		{ConversationID: "strong", Keyword: scoring.KeywordScore{IntentHits: 1}, Semantic: scoring.SemanticScore{IntentSimilarity: 0.6}},
		{ConversationID: "medium", Keyword: scoring.KeywordScore{IntentHits: 1}, Semantic: scoring.SemanticScore{IntentSimilarity: 0.4}},
		{ConversationID: "weak-but-kept", Keyword: scoring.KeywordScore{IntentHits: 1}, Semantic: scoring.SemanticScore{IntentSimilarity: 0.05}},
	}
	got := d.Detect(inputs)
	require.Len(t, got, 3)

	byID := map[string]LoopCandidate{}
	for _, c := range got {
		byID[c.ConversationID] = c
	}
	require.Equal(t, ClassificationStrong, byID["strong"].Classification)
	require.Equal(t, ClassificationMedium, byID["medium"].Classification)
	require.Equal(t, ClassificationWeak, byID["weak-but-kept"].Classification)
}

func TestDetect_TruncatesToTopK(t *testing.T) {
	scoringCfg, cfg := testCfg()
	cfg.TopK = 2
	d := NewDetector(nil, scoringCfg, cfg)

	var inputs []ConversationInput
	for i := 0; i < 5; i++ {
		inputs = append(inputs, ConversationInput{
			ConversationID: string(rune('a' + i)),
			Keyword:        scoring.KeywordScore{IntentHits: 1, Score: float64(i)},
			Semantic:       scoring.SemanticScore{IntentSimilarity: 0.9, Score: float64(i)},
		})
	}
	got := d.Detect(inputs)
	require.Len(t, got, 2)
	require.Equal(t, "e", got[0].ConversationID) // highest fused score
}

func TestDetect_DeterministicTieBreak(t *testing.T) {
	scoringCfg, cfg := testCfg()
	now := time.Now()
	d := NewDetector(nil, scoringCfg, cfg)

	inputs := []ConversationInput{
		{ConversationID: "b", LastAt: now, Keyword: scoring.KeywordScore{IntentHits: 1, Score: 10}, Semantic: scoring.SemanticScore{IntentSimilarity: 0.9, Score: 10}},
		{ConversationID: "a", LastAt: now, Keyword: scoring.KeywordScore{IntentHits: 1, Score: 10}, Semantic: scoring.SemanticScore{IntentSimilarity: 0.9, Score: 10}},
	}
	got := d.Detect(inputs)
	require.Len(t, got, 2)
	require.Equal(t, "a", got[0].ConversationID)
}

func TestExtractEvidence_FallsBackToFirstUserMessage(t *testing.T) {
	snippet := extractEvidence("no markers here", "leading text of the first message", []string{"want to"}, 200)
	require.Equal(t, "leading text of the first message", snippet)
}

func TestExtractEvidence_WindowsAroundPhrase(t *testing.T) {
	text := "some preamble words here I want to refactor the whole scheduler subsystem and it matters a lot"
	snippet := extractEvidence(text, "fallback", []string{"want to"}, 20)
	require.Contains(t, snippet, "want to")
	require.LessOrEqual(t, len([]rune(snippet)), 20)
}
