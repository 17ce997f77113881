package config

// LexiconConfig configures the Lexicon (spec §4.3). Default phrase lists
// are embedded; operators may override via YAML, mirroring the teacher's
// "empty path triggers embedded defaults" convention for Mangle schemas.
type LexiconConfig struct {
	IntentPhrases     []string `yaml:"intent_phrases"`
	CompletionPhrases []string `yaml:"completion_phrases"`
	Stopwords         []string `yaml:"stopwords"`
	VocabularyTopN    int      `yaml:"vocabulary_top_n"`
}

// DefaultIntentPhrases returns the built-in intent phrase list.
func DefaultIntentPhrases() []string {
	return []string{
		"want to", "need to", "thinking about", "trying to", "plan to",
		"planning to", "going to", "should probably", "i should",
		"i'd like to", "would like to", "hoping to", "intend to",
		"meaning to", "supposed to", "have to", "got to", "gonna",
		"considering", "exploring the idea of", "looking into",
		"working on", "about to start", "want to figure out",
		"need to figure out", "still need to", "haven't yet",
	}
}

// DefaultCompletionPhrases returns the built-in completion phrase list.
func DefaultCompletionPhrases() []string {
	return []string{
		"done", "finished", "completed", "resolved", "gave up on",
		"wrapped up", "closed out", "fixed", "shipped", "merged",
		"deployed", "all set", "sorted", "handled", "taken care of",
		"no longer need", "decided not to", "abandoned", "dropped it",
		"moved on from", "that's settled", "it's working now",
		"solved", "nailed it",
	}
}

// DefaultStopwords returns the built-in stopword list: pronouns, articles,
// fillers.
func DefaultStopwords() []string {
	return []string{
		"a", "an", "the", "i", "you", "he", "she", "it", "we", "they",
		"me", "him", "her", "us", "them", "my", "your", "his", "its",
		"our", "their", "this", "that", "these", "those", "is", "am",
		"are", "was", "were", "be", "been", "being", "have", "has",
		"had", "do", "does", "did", "will", "would", "could", "should",
		"can", "may", "might", "must", "shall", "to", "of", "in", "on",
		"at", "by", "for", "with", "about", "against", "between", "into",
		"through", "during", "before", "after", "above", "below", "from",
		"up", "down", "out", "off", "over", "under", "again", "further",
		"then", "once", "and", "but", "or", "so", "if", "than", "too",
		"very", "just", "like", "um", "uh", "okay", "ok", "well", "yeah",
		"no", "not", "s", "t", "re", "ve", "ll", "d", "m",
	}
}
