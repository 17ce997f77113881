// Package main implements the cogsensor CLI - the batch analytical pipeline
// that reads the conversation corpus, scores open loops, and emits the
// daily directive artifacts.
//
// This file is the entry point and command registration hub. Individual
// subcommands are split across cmd_*.go files, one per concern.
//
// # File Index
//
//   - main.go             - entry point, rootCmd, global flags, init()
//   - cmd_refresh.go      - refreshCmd, runRefresh()
//   - cmd_init_embeddings.go - initEmbeddingsCmd, runInitEmbeddings()
//   - cmd_search.go       - searchCmd, runSearch()
//   - cmd_cluster.go      - clusterCmd, runCluster()
//   - deps.go             - buildConfig(), openStore(), buildEngine() shared bootstrap
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"cogsensor/internal/cogerr"
	"cogsensor/internal/logging"
)

var (
	// Global flags
	verbose      bool
	workspace    string
	timeout      time.Duration
	configPath   string
	corpusPath   string
	artifactsDir string

	// Logger
	logger *zap.Logger
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "cogsensor",
	Short: "Cognitive Sensor - batch analytical pipeline over a conversation corpus",
	Long: `cogsensor reads a conversation corpus, scores open loops by blending
keyword and semantic signals, computes closure statistics, and emits the
daily directive artifacts a governance layer consumes.

Run a subcommand; there is no interactive mode.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := zap.NewProductionConfig()
		if verbose {
			cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = cfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		ws := workspace
		if ws == "" {
			ws, _ = os.Getwd()
		}
		if err := logging.Initialize(ws); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to initialize file logging: %v\n", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAll()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "Operation timeout")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (optional)")
	rootCmd.PersistentFlags().StringVar(&corpusPath, "corpus", "", "Override corpus_path (or set CORPUS_PATH)")
	rootCmd.PersistentFlags().StringVar(&artifactsDir, "artifacts-dir", "", "Override artifacts_dir (or set ARTIFACTS_DIR)")

	rootCmd.AddCommand(
		refreshCmd,
		initEmbeddingsCmd,
		searchCmd,
		clusterCmd,
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if kind, ok := cogerr.KindOf(err); ok {
			os.Exit(kind.ExitCode())
		}
		os.Exit(1)
	}
}
