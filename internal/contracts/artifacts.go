package contracts

import (
	"fmt"
	"time"
)

// ClosureSummary is the `closure` block of CognitiveMetricsComputed.
type ClosureSummary struct {
	Open     int     `json:"open"`
	Closed   int     `json:"closed"`
	Archived int     `json:"archived"`
	Ratio    float64 `json:"ratio"`
}

// LoopSummary is one entry of CognitiveMetricsComputed's `loops` list.
type LoopSummary struct {
	Title          string    `json:"title"`
	Score          float64   `json:"score"`
	Classification string    `json:"classification"`
	LastAt         time.Time `json:"last_at"`
}

// StreakSummary is the additive, non-contractual block threaded through
// from the closure registry's own stats (spec §6's registry schema) — it
// does not change CognitiveMetricsComputed's contractual fields.
type StreakSummary struct {
	TotalClosures int        `json:"total_closures"`
	LastClosureAt *time.Time `json:"last_closure_at"`
	StreakDays    int        `json:"streak_days"`
	BestStreak    int        `json:"best_streak"`
}

// CognitiveMetricsComputed is cognitive_state.json.
type CognitiveMetricsComputed struct {
	Closure     ClosureSummary `json:"closure"`
	Loops       []LoopSummary  `json:"loops"`
	Streak      *StreakSummary `json:"streak,omitempty"`
	GeneratedAt time.Time      `json:"generated_at"`
}

func (c CognitiveMetricsComputed) Validate() error {
	if c.Closure.Open < 0 || c.Closure.Closed < 0 || c.Closure.Archived < 0 {
		return fmt.Errorf("closure counts must be non-negative: %+v", c.Closure)
	}
	if c.Closure.Ratio < 0 || c.Closure.Ratio > 1 {
		return fmt.Errorf("closure.ratio must be in [0,1], got %v", c.Closure.Ratio)
	}
	for i, l := range c.Loops {
		if l.Title == "" {
			return fmt.Errorf("loops[%d].title must not be empty", i)
		}
		switch l.Classification {
		case "strong", "medium", "weak":
		default:
			return fmt.Errorf("loops[%d].classification invalid: %q", i, l.Classification)
		}
	}
	if c.GeneratedAt.IsZero() {
		return fmt.Errorf("generated_at must be set")
	}
	return nil
}

// DailyPayload is daily_payload.json (DailyPayload.v1).
type DailyPayload struct {
	Mode          string    `json:"mode"`
	BuildAllowed  bool      `json:"build_allowed"`
	PrimaryAction string    `json:"primary_action"`
	OpenLoops     []string  `json:"open_loops"`
	OpenLoopCount int       `json:"open_loop_count"`
	ClosureRatio  float64   `json:"closure_ratio"`
	Risk          string    `json:"risk"`
	GeneratedAt   time.Time `json:"generated_at"`
}

func (p DailyPayload) Validate() error {
	switch p.Mode {
	case "CLOSURE", "MAINTENANCE", "BUILD":
	default:
		return fmt.Errorf("mode invalid: %q", p.Mode)
	}
	switch p.Risk {
	case "HIGH", "MEDIUM", "LOW":
	default:
		return fmt.Errorf("risk invalid: %q", p.Risk)
	}
	if p.PrimaryAction == "" {
		return fmt.Errorf("primary_action must not be empty")
	}
	if p.OpenLoopCount != len(p.OpenLoops) {
		return fmt.Errorf("open_loop_count (%d) does not match len(open_loops) (%d)", p.OpenLoopCount, len(p.OpenLoops))
	}
	if p.ClosureRatio < 0 || p.ClosureRatio > 1 {
		return fmt.Errorf("closure_ratio must be in [0,1], got %v", p.ClosureRatio)
	}
	if p.GeneratedAt.IsZero() {
		return fmt.Errorf("generated_at must be set")
	}
	return nil
}

// DailyDirectiveText renders the plain-text, machine-parseable
// daily_directive.txt artifact.
func DailyDirectiveText(mode, action, risk string) string {
	return fmt.Sprintf("MODE=%s\nACTION=%s\nRISK=%s\n", mode, action, risk)
}

// LoopCandidateSummary is one entry of loops_latest.json's ranked list.
type LoopCandidateSummary struct {
	ConversationID       string    `json:"conversation_id"`
	Title                string    `json:"title"`
	Score                float64   `json:"score"`
	Classification       string    `json:"classification"`
	IntentSimilarity     float64   `json:"intent_similarity"`
	CompletionSimilarity float64   `json:"completion_similarity"`
	EvidenceSnippet      string    `json:"evidence_snippet"`
	LastAt               time.Time `json:"last_at"`
}

// LoopsLatest is loops_latest.json. It carries no declared contract (spec
// §6 leaves its Contract column blank) but still validates structurally:
// rank order and the completion-similarity ceiling are invariants (spec §8
// property 5) that a caller can check independent of any named schema.
type LoopsLatest struct {
	Loops []LoopCandidateSummary `json:"loops"`
}

func (l LoopsLatest) Validate() error {
	prev := -1.0
	first := true
	for i, c := range l.Loops {
		if c.ConversationID == "" {
			return fmt.Errorf("loops[%d].conversation_id must not be empty", i)
		}
		if c.CompletionSimilarity >= 0.70 {
			return fmt.Errorf("loops[%d] completion_similarity %v >= 0.70 ceiling", i, c.CompletionSimilarity)
		}
		if !first && c.Score > prev {
			return fmt.Errorf("loops[%d] score %v out of rank order (previous %v)", i, c.Score, prev)
		}
		prev, first = c.Score, false
	}
	return nil
}

// DailyProjection is daily_projection.json (DailyProjection.v1): the
// cognitive metrics and the directive the router derived from them,
// bundled for downstream UI consumers that want both in one fetch.
type DailyProjection struct {
	Date      string                   `json:"date"`
	Cognitive CognitiveMetricsComputed `json:"cognitive"`
	Directive DailyPayload             `json:"directive"`
}

func (p DailyProjection) Validate() error {
	if p.Date == "" {
		return fmt.Errorf("date must not be empty")
	}
	if err := p.Cognitive.Validate(); err != nil {
		return fmt.Errorf("cognitive: %w", err)
	}
	if err := p.Directive.Validate(); err != nil {
		return fmt.Errorf("directive: %w", err)
	}
	return nil
}

// ClusterGroupSummary is one cluster entry of ClusterSummary's list. Centroid
// is the converged k-means centroid (spec §3's TopicCluster.centroid), the
// same dimensionality as the embedding index's vectors.
type ClusterGroupSummary struct {
	ClusterID int       `json:"cluster_id"`
	Size      int       `json:"size"`
	Keywords  []string  `json:"keywords"`
	MemberIDs []string  `json:"member_ids"`
	Centroid  []float32 `json:"centroid"`
}

// ClusterSummary is clusters_latest.json, emitted by the `cluster` command.
// Spec §6 names no fixed filename or contract type for the Topic
// Clusterer's output the way it does for the other 5 artifacts; this
// mirrors their validate-then-atomic-write shape since nothing about
// clustering output exempts it from the same corruption guarantee.
type ClusterSummary struct {
	Clusters    []ClusterGroupSummary `json:"clusters"`
	GeneratedAt time.Time             `json:"generated_at"`
}

func (s ClusterSummary) Validate() error {
	seen := make(map[int]struct{}, len(s.Clusters))
	for i, c := range s.Clusters {
		if c.ClusterID < 0 {
			return fmt.Errorf("clusters[%d].cluster_id must be non-negative", i)
		}
		if _, dup := seen[c.ClusterID]; dup {
			return fmt.Errorf("clusters[%d].cluster_id %d is duplicated", i, c.ClusterID)
		}
		seen[c.ClusterID] = struct{}{}
		if len(c.Centroid) == 0 {
			return fmt.Errorf("clusters[%d].centroid must not be empty", i)
		}
		if c.Size != len(c.MemberIDs) {
			return fmt.Errorf("clusters[%d].size (%d) does not match len(member_ids) (%d)", i, c.Size, len(c.MemberIDs))
		}
	}
	if s.GeneratedAt.IsZero() {
		return fmt.Errorf("generated_at must be set")
	}
	return nil
}
