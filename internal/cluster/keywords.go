package cluster

import (
	"math"
	"sort"
	"strings"

	"cogsensor/internal/lexicon"
)

// docFrequency counts, for every non-stopword token, how many corpus
// documents (conversations) it appears in at least once — the IDF half of
// the per-cluster keyword summary.
func docFrequency(lex *lexicon.Lexicon, corpusTexts []string) (map[string]int, int) {
	df := make(map[string]int)
	for _, text := range corpusTexts {
		for token := range uniqueTokens(lex, text) {
			df[token]++
		}
	}
	return df, len(corpusTexts)
}

// topKeywords ranks tokens appearing in memberTexts by TF(cluster) *
// IDF(corpus), returning the top n. Ties break on the token string so
// output is deterministic.
func topKeywords(lex *lexicon.Lexicon, memberTexts []string, df map[string]int, totalDocs, n int) []string {
	tf := make(map[string]int)
	for _, text := range memberTexts {
		for _, token := range tokenize(lex, text) {
			tf[token]++
		}
	}

	type scored struct {
		token string
		score float64
	}
	scores := make([]scored, 0, len(tf))
	for token, count := range tf {
		idf := inverseDocFrequency(df[token], totalDocs)
		scores = append(scores, scored{token: token, score: float64(count) * idf})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].token < scores[j].token
	})

	if n > len(scores) {
		n = len(scores)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = scores[i].token
	}
	return out
}

// inverseDocFrequency uses a smoothed log so a token present in every
// document (idf -> 0) doesn't zero out every score identically, and a
// token absent from the corpus index (df=0, shouldn't happen but cheap to
// guard) doesn't divide by zero.
func inverseDocFrequency(df, totalDocs int) float64 {
	if totalDocs == 0 {
		return 0
	}
	if df == 0 {
		df = 1
	}
	return math.Log(1.0 + float64(totalDocs)/float64(df))
}

func tokenize(lex *lexicon.Lexicon, text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		token := trimPunct(f)
		if token == "" || lex.IsStopword(token) {
			continue
		}
		out = append(out, token)
	}
	return out
}

func uniqueTokens(lex *lexicon.Lexicon, text string) map[string]struct{} {
	seen := make(map[string]struct{})
	for _, token := range tokenize(lex, text) {
		seen[token] = struct{}{}
	}
	return seen
}

func trimPunct(s string) string {
	return strings.Trim(s, ".,!?;:\"'()[]{}`~")
}
