// Package scoring implements the Keyword and Semantic Scorers (spec
// §4.4-4.5): per-conversation textual and vector-similarity signals that
// the Loop Detector later fuses.
package scoring

import (
	"strings"
	"time"

	"cogsensor/internal/config"
	"cogsensor/internal/lexicon"
)

// KeywordScore is one conversation's textual-evidence score.
type KeywordScore struct {
	ConversationID string
	UserWordCount  int
	IntentHits     int
	CompletionHits int
	Score          float64
	LastAt         time.Time
}

// KeywordScorer computes KeywordScore from a conversation's user text and
// full (all-roles) text.
type KeywordScorer struct {
	lex *lexicon.Lexicon
	cfg config.ScoringConfig
}

// NewKeywordScorer builds a KeywordScorer against lex and the configured
// hit weights.
func NewKeywordScorer(lex *lexicon.Lexicon, cfg config.ScoringConfig) *KeywordScorer {
	return &KeywordScorer{lex: lex, cfg: cfg}
}

// Score computes keyword_score = user_word_count + weight·intent_hits −
// weight·completion_hits. userText is user-role text only; allText is the
// conversation's full text across every role (completion evidence counts
// "anywhere in the conversation", spec §4.4).
func (k *KeywordScorer) Score(conversationID string, lastAt time.Time, userText, allText string) KeywordScore {
	wordCount := countNonStopwordTokens(k.lex, userText)
	intentHits := lexicon.CountPhraseHits(userText, k.lex.IntentPhrases())
	completionHits := lexicon.CountPhraseHits(allText, k.lex.CompletionPhrases())

	score := float64(wordCount) +
		k.cfg.IntentHitWeight*float64(intentHits) -
		k.cfg.CompletionHitWeight*float64(completionHits)

	return KeywordScore{
		ConversationID: conversationID,
		UserWordCount:  wordCount,
		IntentHits:     intentHits,
		CompletionHits: completionHits,
		Score:          score,
		LastAt:         lastAt,
	}
}

// JoinAllText concatenates message texts in order, regardless of role, for
// completion-hit scanning over the whole conversation.
func JoinAllText(texts []string) string {
	return strings.Join(texts, "\n")
}

func countNonStopwordTokens(lex *lexicon.Lexicon, text string) int {
	count := 0
	for _, token := range strings.Fields(strings.ToLower(text)) {
		token = strings.Trim(token, ".,!?;:\"'()[]{}")
		if token == "" || lex.IsStopword(token) {
			continue
		}
		count++
	}
	return count
}

// LessDeterministic orders two KeywordScores by the spec's tie-break rule:
// higher score first, then last_at descending, then conversation_id
// ascending. Equal-score ties are common (e.g. two conversations with zero
// hits), so this ordering is what makes ranking output stable across runs.
func LessDeterministic(a, b KeywordScore) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if !a.LastAt.Equal(b.LastAt) {
		return a.LastAt.After(b.LastAt)
	}
	return a.ConversationID < b.ConversationID
}
