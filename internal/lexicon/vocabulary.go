package lexicon

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"cogsensor/internal/cogerr"
)

const defaultVocabularyTopN = 500

// VocabularyCache persists the corpus-derived user vocabulary, keyed by a
// content hash of the corpus it was computed from, so a refresh over an
// unchanged corpus skips recomputation — ported from the teacher's
// content_hash dedup column convention (internal/store/migrations.go).
type VocabularyCache struct {
	db *sql.DB
}

// NewVocabularyCache wraps a database handle and ensures the cache table
// exists.
func NewVocabularyCache(db *sql.DB) (*VocabularyCache, error) {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS lexicon_cache (
		content_hash TEXT PRIMARY KEY,
		vocabulary_json TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return nil, cogerr.Wrap(cogerr.KindCorpusError, "NewVocabularyCache", "create lexicon_cache table: %v", err)
	}
	return &VocabularyCache{db: db}, nil
}

// Get returns the cached vocabulary for contentHash, if present.
func (c *VocabularyCache) Get(ctx context.Context, contentHash string) ([]string, bool, error) {
	var vocabJSON string
	err := c.db.QueryRowContext(ctx,
		`SELECT vocabulary_json FROM lexicon_cache WHERE content_hash = ?`, contentHash).Scan(&vocabJSON)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, cogerr.Wrap(cogerr.KindCorpusError, "VocabularyCache.Get", "query cache: %v", err)
	}
	var vocab []string
	if err := json.Unmarshal([]byte(vocabJSON), &vocab); err != nil {
		return nil, false, cogerr.Wrap(cogerr.KindCorpusError, "VocabularyCache.Get", "decode cached vocabulary: %v", err)
	}
	return vocab, true, nil
}

// Put stores vocabulary under contentHash, replacing any prior entry for a
// different hash (only one corpus snapshot's vocabulary is kept live).
func (c *VocabularyCache) Put(ctx context.Context, contentHash string, vocabulary []string) error {
	vocabJSON, err := json.Marshal(vocabulary)
	if err != nil {
		return cogerr.Wrap(cogerr.KindCorpusError, "VocabularyCache.Put", "encode vocabulary: %v", err)
	}
	if _, err := c.db.ExecContext(ctx, `DELETE FROM lexicon_cache`); err != nil {
		return cogerr.Wrap(cogerr.KindCorpusError, "VocabularyCache.Put", "clear stale cache: %v", err)
	}
	if _, err := c.db.ExecContext(ctx,
		`INSERT INTO lexicon_cache (content_hash, vocabulary_json) VALUES (?, ?)`,
		contentHash, string(vocabJSON)); err != nil {
		return cogerr.Wrap(cogerr.KindCorpusError, "VocabularyCache.Put", "insert cache entry: %v", err)
	}
	return nil
}

// ContentHash deterministically hashes a corpus snapshot (conversation id
// paired with its user text), independent of iteration order.
func ContentHash(userTextsByConversation map[string]string) string {
	ids := make([]string, 0, len(userTextsByConversation))
	for id := range userTextsByConversation {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	h := sha256.New()
	for _, id := range ids {
		fmt.Fprintf(h, "%s\x00%s\x01", id, userTextsByConversation[id])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// UserVocabulary computes the top-N most frequent non-stopword tokens
// across the given user texts. Ties break by token ascending, for a
// deterministic ordering.
func UserVocabulary(lex *Lexicon, userTexts []string, topN int) []string {
	if topN <= 0 {
		topN = defaultVocabularyTopN
	}

	counts := make(map[string]int)
	for _, text := range userTexts {
		for _, token := range strings.Fields(strings.ToLower(text)) {
			token = trimPunct(token)
			if token == "" || lex.IsStopword(token) {
				continue
			}
			counts[token]++
		}
	}

	type tokenCount struct {
		token string
		count int
	}
	ranked := make([]tokenCount, 0, len(counts))
	for token, count := range counts {
		ranked = append(ranked, tokenCount{token, count})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].count != ranked[j].count {
			return ranked[i].count > ranked[j].count
		}
		return ranked[i].token < ranked[j].token
	})

	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	out := make([]string, len(ranked))
	for i, tc := range ranked {
		out[i] = tc.token
	}
	return out
}

func trimPunct(s string) string {
	return strings.Trim(s, ".,!?;:\"'()[]{}")
}
