// Package closure reads the externally-authored closure registry and
// aggregates it with the Loop Detector's output into ClosureStats
// (spec §4.7).
package closure

import (
	"encoding/json"
	"os"

	"cogsensor/internal/cogerr"
)

// Outcome is the terminal state a closed loop entry records.
type Outcome string

const (
	OutcomeClosed   Outcome = "closed"
	OutcomeArchived Outcome = "archived"
)

// Entry is one row of the closure registry, written by the external state
// kernel (spec §6).
type Entry struct {
	TimestampMs int64   `json:"ts"`
	LoopID      string  `json:"loop_id"`
	Title       string  `json:"title"`
	Outcome     Outcome `json:"outcome"`
}

// RegistryStats is the registry's own bookkeeping block. StreakDays/
// BestStreak are threaded into the daily state artifact as an additive
// "streak" block (SPEC_FULL.md's supplement over the distilled spec); the
// contractual closure fields never depend on them.
type RegistryStats struct {
	TotalClosures   int    `json:"total_closures"`
	LastClosureAtMs *int64 `json:"last_closure_at"`
	StreakDays      int    `json:"streak_days"`
	BestStreak      int    `json:"best_streak"`
}

// Registry is the parsed closures.json contents.
type Registry struct {
	Closures []Entry       `json:"closures"`
	Stats    RegistryStats `json:"stats"`
}

// LoadRegistry reads and parses the closure registry at path. A missing
// file is not an error: a fresh deployment has no closures yet, so this
// returns an empty Registry.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Registry{}, nil
		}
		return nil, cogerr.Wrap(cogerr.KindCorpusError, "LoadRegistry", "read closure registry %s: %v", path, err)
	}

	var reg Registry
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, cogerr.Wrap(cogerr.KindCorpusError, "LoadRegistry", "parse closure registry %s: %v", path, err)
	}
	return &reg, nil
}
