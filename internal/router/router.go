// Package router computes the daily mode directive from closure statistics
// (spec §4.8): a table-driven function with no side effects, so a fixed
// ClosureStats, top-loop title and config always produce the same mode,
// action, rationale, risk and build flag; only GeneratedAt reads the clock.
package router

import (
	"fmt"
	"time"

	"cogsensor/internal/closure"
	"cogsensor/internal/config"
)

// Mode is the daily operating mode the directive gates downstream
// behavior on.
type Mode string

const (
	ModeClosure     Mode = "CLOSURE"
	ModeMaintenance Mode = "MAINTENANCE"
	ModeBuild       Mode = "BUILD"
)

// Risk is the directive's risk band.
type Risk string

const (
	RiskHigh   Risk = "HIGH"
	RiskMedium Risk = "MEDIUM"
	RiskLow    Risk = "LOW"
)

// Directive is the router's output (spec §3).
type Directive struct {
	Mode          Mode      `json:"mode"`
	PrimaryAction string    `json:"primary_action"`
	Rationale     string    `json:"rationale"`
	Risk          Risk      `json:"risk"`
	BuildAllowed  bool      `json:"build_allowed"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// Route computes the directive for stats, with topLoopTitle used to
// synthesize primary_action when the top loop is the subject of the
// action (CLOSURE/MAINTENANCE modes). Ties between rows are resolved by
// the earlier row winning — each condition below is checked in order and
// the first match wins.
func Route(stats closure.Stats, topLoopTitle string, cfg config.RouterConfig) Directive {
	now := time.Now().UTC()

	switch {
	case stats.ClosureRatio < cfg.ClosureRatioFloor || stats.Open > cfg.OpenLoopCeiling:
		return Directive{
			Mode:          ModeClosure,
			PrimaryAction: fmt.Sprintf("Close or archive '%s'", topLoopTitle),
			Rationale: fmt.Sprintf("closure_ratio=%.2f (floor %.2f), open=%d (ceiling %d)",
				stats.ClosureRatio, cfg.ClosureRatioFloor, stats.Open, cfg.OpenLoopCeiling),
			Risk:         RiskHigh,
			BuildAllowed: false,
			GeneratedAt:  now,
		}

	case stats.Open > cfg.MaintenanceCeiling && stats.Open <= cfg.OpenLoopCeiling && stats.ClosureRatio >= cfg.ClosureRatioFloor:
		return Directive{
			Mode:          ModeMaintenance,
			PrimaryAction: fmt.Sprintf("Review '%s'", topLoopTitle),
			Rationale: fmt.Sprintf("open=%d (%d < open <= %d), closure_ratio=%.2f (>= floor %.2f)",
				stats.Open, cfg.MaintenanceCeiling, cfg.OpenLoopCeiling, stats.ClosureRatio, cfg.ClosureRatioFloor),
			Risk:         RiskMedium,
			BuildAllowed: false,
			GeneratedAt:  now,
		}

	default: // open <= MaintenanceCeiling && closure_ratio >= floor
		return Directive{
			Mode:          ModeBuild,
			PrimaryAction: "Ship one new outcome today",
			Rationale: fmt.Sprintf("open=%d (<= %d), closure_ratio=%.2f (>= floor %.2f)",
				stats.Open, cfg.MaintenanceCeiling, stats.ClosureRatio, cfg.ClosureRatioFloor),
			Risk:         RiskLow,
			BuildAllowed: true,
			GeneratedAt:  now,
		}
	}
}
