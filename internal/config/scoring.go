package config

// ScoringConfig exposes the keyword/semantic weighting constants from spec
// §4.4/§4.5/§9 as configuration rather than hard-coded literals.
type ScoringConfig struct {
	// IntentHitWeight / CompletionHitWeight are the keyword_score constants
	// (spec default: 30 / 50).
	IntentHitWeight     float64 `yaml:"intent_hit_weight"`
	CompletionHitWeight float64 `yaml:"completion_hit_weight"`

	// SemanticWeight / KeywordWeight are the fused-score weights (spec
	// default: 0.6 / 0.4).
	SemanticWeight float64 `yaml:"semantic_weight"`
	KeywordWeight  float64 `yaml:"keyword_weight"`
}

// LoopDetectorConfig configures the Loop Detector (spec §4.6).
type LoopDetectorConfig struct {
	TopK                    int     `yaml:"top_k"`
	CompletionSimilarityCap float64 `yaml:"completion_similarity_cap"`
	MinIntentSimilarity     float64 `yaml:"min_intent_similarity"`
	StrongIntentThreshold   float64 `yaml:"strong_intent_threshold"`
	MediumIntentThreshold   float64 `yaml:"medium_intent_threshold"`
	EvidenceSnippetChars    int     `yaml:"evidence_snippet_chars"`
}

// RouterConfig configures the Router threshold table (spec §4.8).
type RouterConfig struct {
	ClosureRatioFloor  float64 `yaml:"closure_ratio_floor"`
	OpenLoopCeiling    int     `yaml:"open_loop_ceiling"`
	MaintenanceCeiling int     `yaml:"maintenance_ceiling"`
}

// ClusterConfig configures the Topic Clusterer (spec §4.9).
type ClusterConfig struct {
	K                int     `yaml:"k"`
	Seed             int64   `yaml:"seed"`
	MaxIterations    int     `yaml:"max_iterations"`
	ConvergenceDelta float64 `yaml:"convergence_delta"`
	MinClusterSize   int     `yaml:"min_cluster_size"`
	SummaryKeywords  int     `yaml:"summary_keywords"`
}

// LoggingConfig configures internal categorized file logging.
type LoggingConfig struct {
	Level      string          `yaml:"level" json:"level"`
	DebugMode  bool            `yaml:"debug_mode" json:"debug_mode"`
	JSONFormat bool            `yaml:"json_format" json:"json_format"`
	Categories map[string]bool `yaml:"categories" json:"categories"`
}
