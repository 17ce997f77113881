package scoring

import (
	"testing"
	"time"

	"cogsensor/internal/config"
	"cogsensor/internal/lexicon"

	"github.com/stretchr/testify/require"
)

func TestKeywordScorer_AppliesWeights(t *testing.T) {
	lex := lexicon.New(config.LexiconConfig{
		IntentPhrases:     []string{"want to"},
		CompletionPhrases: []string{"done"},
		Stopwords:         config.DefaultStopwords(),
	})
	cfg := config.ScoringConfig{IntentHitWeight: 30, CompletionHitWeight: 50}
	scorer := NewKeywordScorer(lex, cfg)

	userText := "I want to refactor the scheduler module today"
	allText := JoinAllText([]string{userText, "assistant reply acknowledging"})

	got := scorer.Score("conv-1", time.Time{}, userText, allText)
	require.Equal(t, 1, got.IntentHits)
	require.Equal(t, 0, got.CompletionHits)
	require.Greater(t, got.Score, 0.0)
}

func TestKeywordScorer_CompletionOutweighsIntent(t *testing.T) {
	lex := lexicon.New(config.LexiconConfig{
		IntentPhrases:     []string{"want to"},
		CompletionPhrases: []string{"done"},
		Stopwords:         config.DefaultStopwords(),
	})
	cfg := config.ScoringConfig{IntentHitWeight: 30, CompletionHitWeight: 50}
	scorer := NewKeywordScorer(lex, cfg)

	userText := "I want to finish this"
	allText := JoinAllText([]string{userText, "it's done, all done"})

	got := scorer.Score("conv-1", time.Time{}, userText, allText)
	require.Equal(t, 1, got.IntentHits)
	require.Equal(t, 2, got.CompletionHits)
	require.Less(t, got.Score, float64(got.UserWordCount))
}

func TestLessDeterministic_TieBreaksOnLastAtThenID(t *testing.T) {
	now := time.Now()
	a := KeywordScore{ConversationID: "b", Score: 5, LastAt: now}
	b := KeywordScore{ConversationID: "a", Score: 5, LastAt: now.Add(time.Minute)}
	require.True(t, LessDeterministic(b, a), "more recent last_at should sort first on equal score")

	c := KeywordScore{ConversationID: "a", Score: 5, LastAt: now}
	d := KeywordScore{ConversationID: "b", Score: 5, LastAt: now}
	require.True(t, LessDeterministic(c, d), "equal score and last_at should tie-break by conversation_id ascending")
}

func TestLessDeterministic_HigherScoreFirst(t *testing.T) {
	a := KeywordScore{ConversationID: "a", Score: 10}
	b := KeywordScore{ConversationID: "b", Score: 20}
	require.True(t, LessDeterministic(b, a))
}
