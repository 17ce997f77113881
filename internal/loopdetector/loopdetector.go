// Package loopdetector fuses the Keyword and Semantic Scorer outputs,
// ranks conversations, and emits the top-K open loops (spec §4.6).
package loopdetector

import (
	"sort"
	"time"

	"cogsensor/internal/config"
	"cogsensor/internal/scoring"
)

// Classification is the semantic-confidence band a loop candidate falls
// into, derived from intent_similarity.
type Classification string

const (
	ClassificationStrong Classification = "strong"
	ClassificationMedium Classification = "medium"
	ClassificationWeak   Classification = "weak"
)

// LoopCandidate is one ranked open-loop conversation.
type LoopCandidate struct {
	ConversationID       string
	Title                string
	Score                float64
	KeywordComponent     float64
	SemanticComponent    float64
	IntentSimilarity     float64
	CompletionSimilarity float64
	EvidenceSnippet      string
	LastAt               time.Time
	Classification       Classification
}

// ConversationInput bundles one conversation's scorer outputs and the raw
// text needed for evidence-snippet extraction.
type ConversationInput struct {
	ConversationID   string
	Title            string
	LastAt           time.Time
	Keyword          scoring.KeywordScore
	Semantic         scoring.SemanticScore
	UserText         string
	FirstUserMessage string
}

// Detector fuses scores and ranks conversations into open loops.
type Detector struct {
	intentPhrases []string
	scoringCfg    config.ScoringConfig
	cfg           config.LoopDetectorConfig
}

// NewDetector builds a Detector. intentPhrases is used only for evidence
// snippet extraction (the scorers have already consumed it for hit/
// similarity counts).
func NewDetector(intentPhrases []string, scoringCfg config.ScoringConfig, cfg config.LoopDetectorConfig) *Detector {
	return &Detector{intentPhrases: intentPhrases, scoringCfg: scoringCfg, cfg: cfg}
}

// Detect fuses, filters, ranks, and truncates inputs to the top-K open
// loops. An empty corpus yields an empty list — not an error (spec §4.6).
// Callers are responsible for the upstream IndexStale check (spec requires
// the detector "refuses to run" on a stale index; that belongs to
// internal/embedding.Index.CheckNotStale, invoked before Detect by the
// refresh pipeline, since Detect itself has no access to the Message
// Store's conversation count).
func (d *Detector) Detect(inputs []ConversationInput) []LoopCandidate {
	candidates := make([]LoopCandidate, 0, len(inputs))

	for _, in := range inputs {
		fused := d.scoringCfg.SemanticWeight*in.Semantic.Score + d.scoringCfg.KeywordWeight*in.Keyword.Score

		if in.Semantic.CompletionSimilarity >= d.cfg.CompletionSimilarityCap {
			continue
		}
		if in.Keyword.IntentHits < 1 && in.Semantic.IntentSimilarity < d.cfg.MinIntentSimilarity {
			continue
		}

		candidates = append(candidates, LoopCandidate{
			ConversationID:       in.ConversationID,
			Title:                in.Title,
			Score:                fused,
			KeywordComponent:     in.Keyword.Score,
			SemanticComponent:    in.Semantic.Score,
			IntentSimilarity:     in.Semantic.IntentSimilarity,
			CompletionSimilarity: in.Semantic.CompletionSimilarity,
			EvidenceSnippet:      extractEvidence(in.UserText, in.FirstUserMessage, d.intentPhrases, d.cfg.EvidenceSnippetChars),
			LastAt:               in.LastAt,
			Classification:       d.classify(in.Semantic.IntentSimilarity),
		})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return lessDeterministic(candidates[i], candidates[j])
	})

	topK := d.cfg.TopK
	if topK <= 0 || topK > len(candidates) {
		topK = len(candidates)
	}
	return candidates[:topK]
}

func (d *Detector) classify(intentSimilarity float64) Classification {
	switch {
	case intentSimilarity >= d.cfg.StrongIntentThreshold:
		return ClassificationStrong
	case intentSimilarity >= d.cfg.MediumIntentThreshold:
		return ClassificationMedium
	default:
		return ClassificationWeak
	}
}

// lessDeterministic orders candidates by fused score descending, then
// last_at descending, then conversation_id ascending — the same
// deterministic tie-break rule as the Keyword Scorer's ordering (§4.4),
// applied here to the fused score instead.
func lessDeterministic(a, b LoopCandidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if !a.LastAt.Equal(b.LastAt) {
		return a.LastAt.After(b.LastAt)
	}
	return a.ConversationID < b.ConversationID
}
