package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"cogsensor/internal/corpus"
	"cogsensor/internal/embedding"
)

const searchTopK = 20

// searchCmd embeds the query and returns the 20 most similar conversations
// by cosine similarity (spec §6 — a fixed top-20, not configurable).
var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Return the top-20 conversations by cosine similarity to a query",
	Args:  cobra.ExactArgs(1),
	RunE:  runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

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

	queryVector, err := engine.Embed(ctx, query)
	if err != nil {
		return err
	}

	index := embedding.NewIndex(engine, db, cfg.Embedding.ModelID, cfg.Embedding.Dimensions, cfg.Embedding.BatchSize, 4)
	all, err := index.All(ctx)
	if err != nil {
		return err
	}

	corpusVectors := make([][]float32, len(all))
	for i, e := range all {
		corpusVectors[i] = e.Vector
	}

	hits, err := embedding.FindTopK(queryVector, corpusVectors, searchTopK)
	if err != nil {
		return err
	}

	corpusStore := corpus.NewStore(db.DB())
	conversations, err := corpusStore.ListConversations(ctx)
	if err != nil {
		return err
	}
	titleByID := make(map[string]string, len(conversations))
	for _, c := range conversations {
		titleByID[c.ConversationID] = c.Title
	}

	for rank, hit := range hits {
		conversationID := all[hit.Index].ConversationID
		fmt.Printf("%2d. %.4f  %s  %s\n", rank+1, hit.Similarity, conversationID, titleByID[conversationID])
	}
	return nil
}
