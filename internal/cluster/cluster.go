package cluster

import (
	"sort"

	"cogsensor/internal/config"
	"cogsensor/internal/lexicon"
)

// Cluster is one surviving topic cluster (spec §3, TopicCluster): members
// below MinClusterSize are suppressed before this type is ever constructed,
// so every Cluster returned by Run has at least cfg.MinClusterSize members.
type Cluster struct {
	ClusterID int       `json:"cluster_id"`
	Size      int       `json:"size"`
	Keywords  []string  `json:"keywords"`
	MemberIDs []string  `json:"member_ids"`
	Centroid  []float32 `json:"centroid"`
}

// Run clusters points into up to cfg.K topics and summarizes each with its
// top cfg.SummaryKeywords TF/IDF terms, computed against corpusTexts (every
// conversation's user text, not just cluster members, so IDF reflects the
// whole corpus).
//
// Per spec §4.9, clustering is skipped entirely (returns an empty, non-nil
// slice — not an error) when there are fewer than 2*cfg.K points: k-means
// over too few vectors relative to k produces degenerate, unstable clusters.
func Run(points []Point, userTextByID map[string]string, corpusTexts []string, lex *lexicon.Lexicon, cfg config.ClusterConfig) []Cluster {
	if cfg.K <= 0 || len(points) < 2*cfg.K {
		return []Cluster{}
	}

	result := kmeans(points, cfg.K, cfg.MaxIterations, cfg.ConvergenceDelta, cfg.Seed)
	df, totalDocs := docFrequency(lex, corpusTexts)

	membersByCluster := make(map[int][]string, cfg.K)
	for i, p := range points {
		c := result.labels[i]
		membersByCluster[c] = append(membersByCluster[c], p.ConversationID)
	}

	clusters := make([]Cluster, 0, cfg.K)
	for c := 0; c < cfg.K; c++ {
		members := membersByCluster[c]
		if len(members) < cfg.MinClusterSize {
			continue
		}
		sort.Strings(members)

		memberTexts := make([]string, 0, len(members))
		for _, id := range members {
			memberTexts = append(memberTexts, userTextByID[id])
		}

		clusters = append(clusters, Cluster{
			ClusterID: c,
			Size:      len(members),
			Keywords:  topKeywords(lex, memberTexts, df, totalDocs, cfg.SummaryKeywords),
			MemberIDs: members,
			Centroid:  toFloat32(result.centroids[c]),
		})
	}

	// Renumber sequentially so suppressed clusters don't leave gaps in the
	// ids a caller persists to clusters_latest.json.
	for i := range clusters {
		clusters[i].ClusterID = i
	}
	return clusters
}
