package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"cogsensor/internal/corpus"
	"cogsensor/internal/embedding"
)

// initEmbeddingsCmd performs a one-shot embedding backfill: it only runs
// step 2 of the refresh pipeline (embedding ensure), skipping scoring, loop
// detection, routing, clustering, and artifact writes entirely. Idempotent:
// conversations already embedded under the current model_id are untouched.
var initEmbeddingsCmd = &cobra.Command{
	Use:   "init-embeddings",
	Short: "Backfill embeddings for every conversation missing one (idempotent)",
	Args:  cobra.NoArgs,
	RunE:  runInitEmbeddings,
}

func runInitEmbeddings(cmd *cobra.Command, args []string) error {
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

	corpusStore := corpus.NewStore(db.DB())
	conversations, err := corpusStore.ListConversations(ctx)
	if err != nil {
		return err
	}

	items := make([]embedding.Item, len(conversations))
	for i, c := range conversations {
		fullText, err := corpusStore.FullText(ctx, c.ConversationID, 0)
		if err != nil {
			return err
		}
		items[i] = embedding.Item{ConversationID: c.ConversationID, Text: fullText, ContentType: embedding.ContentTypeConversation}
	}

	index := embedding.NewIndex(engine, db, cfg.Embedding.ModelID, cfg.Embedding.Dimensions, cfg.Embedding.BatchSize, 4)
	embeddings, err := index.BatchEnsure(ctx, items)
	if err != nil {
		return err
	}

	fmt.Printf("init-embeddings: %d conversations, %d embeddings ensured under model %s\n",
		len(conversations), len(embeddings), cfg.Embedding.ModelID)
	return nil
}
