package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"cogsensor/internal/cluster"
	"cogsensor/internal/contracts"
	"cogsensor/internal/corpus"
	"cogsensor/internal/embedding"
	"cogsensor/internal/lexicon"
)

const clusterSummaryFilename = "clusters_latest.json"

// clusterCmd runs the Topic Clusterer against the current embedding index
// and emits a cluster summary artifact. Spec §6 names no fixed filename for
// this; clusters_latest.json follows the other artifacts' "_latest" naming.
var clusterCmd = &cobra.Command{
	Use:   "cluster",
	Short: "Run the topic clusterer and emit a cluster summary artifact",
	Args:  cobra.NoArgs,
	RunE:  runCluster,
}

func runCluster(cmd *cobra.Command, args []string) error {
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

	userTextByID := make(map[string]string, len(conversations))
	corpusTexts := make([]string, 0, len(conversations))
	for _, c := range conversations {
		userText, err := corpusStore.UserText(ctx, c.ConversationID)
		if err != nil {
			return err
		}
		userTextByID[c.ConversationID] = userText
		corpusTexts = append(corpusTexts, userText)
	}

	// Clustering wants vectors biased toward CLUSTERING, not the
	// SEMANTIC_SIMILARITY vectors the scoring pipeline stores; a distinct
	// model id keeps the two from colliding in the embedding index.
	clusterModelID := cfg.Embedding.ModelID + "-clustering"
	index := embedding.NewIndex(engine, db, clusterModelID, cfg.Embedding.Dimensions, cfg.Embedding.BatchSize, 4)

	items := make([]embedding.Item, len(conversations))
	for i, c := range conversations {
		items[i] = embedding.Item{
			ConversationID: c.ConversationID,
			Text:           userTextByID[c.ConversationID],
			ContentType:    embedding.ContentTypeClustering,
		}
	}
	embeddings, err := index.BatchEnsure(ctx, items)
	if err != nil {
		return err
	}

	points := make([]cluster.Point, len(embeddings))
	for i, e := range embeddings {
		points[i] = cluster.Point{ConversationID: e.ConversationID, Vector: e.Vector}
	}

	lex := lexicon.New(cfg.Lexicon)
	clusters := cluster.Run(points, userTextByID, corpusTexts, lex, cfg.Cluster)

	groups := make([]contracts.ClusterGroupSummary, len(clusters))
	for i, c := range clusters {
		groups[i] = contracts.ClusterGroupSummary{
			ClusterID: c.ClusterID,
			Size:      c.Size,
			Keywords:  c.Keywords,
			MemberIDs: c.MemberIDs,
			Centroid:  c.Centroid,
		}
	}

	summary := contracts.ClusterSummary{Clusters: groups, GeneratedAt: time.Now().UTC()}
	if err := contracts.AtomicWriteJSON(cfg.ArtifactPath(clusterSummaryFilename), summary); err != nil {
		return err
	}

	fmt.Printf("cluster: %d clusters over %d embedded conversations\n", len(clusters), len(embeddings))
	return nil
}
