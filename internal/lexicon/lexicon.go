// Package lexicon provides the word- and phrase-level signals the Keyword
// and Semantic Scorers match against: intent/completion phrase lists, a
// stopword set, and the corpus-derived user vocabulary.
package lexicon

import (
	"strings"

	"cogsensor/internal/config"
)

// Lexicon holds the phrase sets used to match user turns. Matching is
// case-insensitive, whitespace-normalized, and phrase-level: a phrase like
// "thinking about" only matches when its words appear contiguously.
type Lexicon struct {
	intentPhrases     []string
	completionPhrases []string
	stopwords         map[string]struct{}
}

// New builds a Lexicon from configured (or default) phrase lists.
// Phrases are lowercased and whitespace-normalized once at construction so
// every later match is a literal substring check.
func New(cfg config.LexiconConfig) *Lexicon {
	intent := cfg.IntentPhrases
	if len(intent) == 0 {
		intent = config.DefaultIntentPhrases()
	}
	completion := cfg.CompletionPhrases
	if len(completion) == 0 {
		completion = config.DefaultCompletionPhrases()
	}
	stop := cfg.Stopwords
	if len(stop) == 0 {
		stop = config.DefaultStopwords()
	}

	stopSet := make(map[string]struct{}, len(stop))
	for _, w := range stop {
		stopSet[normalize(w)] = struct{}{}
	}

	return &Lexicon{
		intentPhrases:     normalizeAll(intent),
		completionPhrases: normalizeAll(completion),
		stopwords:         stopSet,
	}
}

// IntentPhrases returns the ordered intent phrase list.
func (l *Lexicon) IntentPhrases() []string { return l.intentPhrases }

// CompletionPhrases returns the ordered completion phrase list.
func (l *Lexicon) CompletionPhrases() []string { return l.completionPhrases }

// IsStopword reports whether token is a stopword, case-insensitively.
func (l *Lexicon) IsStopword(token string) bool {
	_, ok := l.stopwords[normalize(token)]
	return ok
}

// CountPhraseHits counts the (possibly overlapping-free, left-to-right)
// non-overlapping occurrences of each phrase in phrases within text.
func CountPhraseHits(text string, phrases []string) int {
	normalized := normalize(text)
	hits := 0
	for _, phrase := range phrases {
		hits += strings.Count(normalized, phrase)
	}
	return hits
}

// normalize lowercases and collapses internal whitespace runs to a single
// space, so phrase matching is robust to multi-space/tab/newline input
// without being token-level.
func normalize(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	return strings.Join(fields, " ")
}

func normalizeAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = normalize(s)
	}
	return out
}
