package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"cogsensor/internal/refresh"
)

// refreshCmd runs the full pipeline: embedding ensure, scoring, loop
// detection, closure statistics, routing, clustering, and atomic artifact
// writes (spec §5's ordering guarantees).
var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run the full refresh pipeline and write the daily artifacts",
	Args:  cobra.NoArgs,
	RunE:  runRefresh,
}

func runRefresh(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig()
	if err != nil {
		return err
	}

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	engine, err := buildEngine(cfg)
	if err != nil {
		return err
	}

	baseCtx := cmd.Context()
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	ctx, cancel := context.WithTimeout(baseCtx, timeout)
	defer cancel()

	result, err := refresh.Run(ctx, cfg, refresh.Deps{DB: db, Engine: engine})
	if err != nil {
		return err
	}

	fmt.Printf("refresh %s: mode=%s open=%d closed=%d archived=%d ratio=%.2f clusters=%d\n",
		result.RunID, result.Directive.Mode, result.Stats.Open, result.Stats.Closed,
		result.Stats.Archived, result.Stats.ClosureRatio, len(result.Clusters))
	return nil
}
