// Package refresh is the top-level orchestration glue (spec §5, §9): it has
// no spec §4 section of its own because it is the linear sequence that
// calls every scored component in the ordering guarantees' exact order, not
// a scored component itself.
package refresh

import (
	"context"
	"database/sql"
	"path/filepath"
	"time"

	"cogsensor/internal/cluster"
	"cogsensor/internal/closure"
	"cogsensor/internal/config"
	"cogsensor/internal/contracts"
	"cogsensor/internal/corpus"
	"cogsensor/internal/embedding"
	"cogsensor/internal/lexicon"
	"cogsensor/internal/loopdetector"
	"cogsensor/internal/logging"
	"cogsensor/internal/router"
	"cogsensor/internal/scoring"
	"cogsensor/internal/store"

	"github.com/google/uuid"
)

const closureRegistryFilename = "closures.json"

// Result is what a completed refresh produced, returned to the CLI layer
// for verbose/diagnostic output. The artifacts on disk are the contract;
// this is a convenience mirror of them plus the run id.
type Result struct {
	RunID      string
	Directive  router.Directive
	Stats      closure.Stats
	Candidates []loopdetector.LoopCandidate
	Clusters   []cluster.Cluster
}

// Deps bundles the constructed collaborators a Run call needs. Kept
// separate from cfg so callers (tests, the CLI) can substitute a fake
// embedding engine without touching configuration.
type Deps struct {
	DB     *store.LocalStore
	Engine embedding.EmbeddingEngine
}

// Run executes one full refresh: quiesced corpus read, embedding ensure,
// keyword+semantic scoring, loop detection, closure statistics, routing,
// clustering, and atomic contract-validated writes — in the order spec §5
// mandates. It acquires the refresh lock for its duration and releases it
// on any return path, including error.
func Run(ctx context.Context, cfg *config.Config, deps Deps) (*Result, error) {
	runID := uuid.NewString()
	logging.Refresh("run %s: starting", runID)

	lockPath := filepath.Join(cfg.ArtifactsDir, "refresh.lock")
	lock, err := AcquireLock(lockPath)
	if err != nil {
		return nil, err
	}
	defer func() {
		if releaseErr := lock.Release(); releaseErr != nil {
			logging.Get(logging.CategoryRefresh).Error("run %s: failed to release lock: %v", runID, releaseErr)
		}
	}()

	// 1. Message Store is quiesced (snapshot read of list_conversations).
	corpusStore := corpus.NewStore(deps.DB.DB())
	conversations, err := corpusStore.ListConversations(ctx)
	if err != nil {
		return nil, err
	}
	logging.Refresh("run %s: %d conversations in corpus", runID, len(conversations))

	// 2. Embedding ensure completes for every conversation before scoring.
	index := embedding.NewIndex(deps.Engine, deps.DB, cfg.Embedding.ModelID, cfg.Embedding.Dimensions, cfg.Embedding.BatchSize, 4)

	items := make([]embedding.Item, len(conversations))
	userTextByID := make(map[string]string, len(conversations))
	allTextByID := make(map[string]string, len(conversations))
	for i, c := range conversations {
		fullText, err := corpusStore.FullText(ctx, c.ConversationID, 0)
		if err != nil {
			return nil, err
		}
		items[i] = embedding.Item{ConversationID: c.ConversationID, Text: fullText, ContentType: embedding.ContentTypeConversation}

		userText, err := corpusStore.UserText(ctx, c.ConversationID)
		if err != nil {
			return nil, err
		}
		userTextByID[c.ConversationID] = userText

		messages, err := corpusStore.GetMessages(ctx, c.ConversationID)
		if err != nil {
			return nil, err
		}
		texts := make([]string, len(messages))
		for j, m := range messages {
			texts[j] = m.Text
		}
		allTextByID[c.ConversationID] = scoring.JoinAllText(texts)
	}

	embeddings, err := index.BatchEnsure(ctx, items)
	if err != nil {
		return nil, err
	}
	if err := index.CheckNotStale(ctx, len(conversations)); err != nil {
		return nil, err
	}
	vectorByID := make(map[string][]float32, len(embeddings))
	for _, e := range embeddings {
		vectorByID[e.ConversationID] = e.Vector
	}

	lex := lexicon.New(cfg.Lexicon)
	if err := refreshVocabularyCache(ctx, deps.DB.DB(), lex, cfg.Lexicon.VocabularyTopN, userTextByID); err != nil {
		logging.Get(logging.CategoryLexicon).Warn("run %s: vocabulary cache refresh failed (non-fatal): %v", runID, err)
	}

	// 3. Keyword and semantic scoring may interleave but both complete
	// before the Loop Detector runs.
	prototypes, err := scoring.ComputePrototypes(ctx, deps.Engine, lex)
	if err != nil {
		return nil, err
	}
	keywordScorer := scoring.NewKeywordScorer(lex, cfg.Scoring)
	semanticScorer := scoring.NewSemanticScorer(prototypes)

	inputs := make([]loopdetector.ConversationInput, 0, len(conversations))
	for _, c := range conversations {
		userText := userTextByID[c.ConversationID]
		keywordScore := keywordScorer.Score(c.ConversationID, c.LastAt, userText, allTextByID[c.ConversationID])

		semanticScore, err := semanticScorer.Score(c.ConversationID, vectorByID[c.ConversationID])
		if err != nil {
			return nil, err
		}

		firstUserMessage := userText
		if idx := indexOfFirstLine(userText); idx >= 0 {
			firstUserMessage = userText[:idx]
		}

		inputs = append(inputs, loopdetector.ConversationInput{
			ConversationID:   c.ConversationID,
			Title:            c.Title,
			LastAt:           c.LastAt,
			Keyword:          keywordScore,
			Semantic:         semanticScore,
			UserText:         userText,
			FirstUserMessage: firstUserMessage,
		})
	}

	detector := loopdetector.NewDetector(lex.IntentPhrases(), cfg.Scoring, cfg.LoopDetector)
	candidates := detector.Detect(inputs)
	logging.Refresh("run %s: %d open loop candidates after filtering", runID, len(candidates))

	// 4. Closure Statistics read the persisted closure registry after the
	// Loop Detector emits its set.
	registry, err := closure.LoadRegistry(filepath.Join(cfg.ArtifactsDir, closureRegistryFilename))
	if err != nil {
		return nil, err
	}
	openLoopIDs := make([]string, len(candidates))
	for i, c := range candidates {
		openLoopIDs[i] = c.ConversationID
	}
	stats := closure.ComputeStats(openLoopIDs, registry)

	// 5. Router runs after ClosureStats.
	topLoopTitle := ""
	if len(candidates) > 0 {
		topLoopTitle = candidates[0].Title
	}
	directive := router.Route(stats, topLoopTitle, cfg.Router)

	// Topic clustering is orthogonal to the scoring/routing chain and may
	// run any time after embeddings are ensured.
	points := make([]cluster.Point, 0, len(conversations))
	corpusTexts := make([]string, 0, len(conversations))
	for _, c := range conversations {
		vec, ok := vectorByID[c.ConversationID]
		if !ok {
			continue
		}
		points = append(points, cluster.Point{ConversationID: c.ConversationID, Vector: vec})
		corpusTexts = append(corpusTexts, userTextByID[c.ConversationID])
	}
	clusters := cluster.Run(points, userTextByID, corpusTexts, lex, cfg.Cluster)

	// 6. Contract validation runs immediately before each write; writes are
	// atomic (write-to-temp, rename). Cluster summaries are written by the
	// `cluster` CLI command, not here — refresh's fixed artifact set
	// (spec §6) doesn't include one.
	if err := writeArtifacts(cfg, stats, registry.Stats, candidates, directive); err != nil {
		return nil, err
	}

	logging.Refresh("run %s: complete, mode=%s", runID, directive.Mode)
	return &Result{RunID: runID, Directive: directive, Stats: stats, Candidates: candidates, Clusters: clusters}, nil
}

func writeArtifacts(cfg *config.Config, stats closure.Stats, registryStats closure.RegistryStats, candidates []loopdetector.LoopCandidate, directive router.Directive) error {
	generatedAt := time.Now().UTC()

	var lastClosureAt *time.Time
	if registryStats.LastClosureAtMs != nil {
		t := time.UnixMilli(*registryStats.LastClosureAtMs).UTC()
		lastClosureAt = &t
	}

	loops := make([]contracts.LoopSummary, len(candidates))
	loopTitles := make([]string, len(candidates))
	for i, c := range candidates {
		loops[i] = contracts.LoopSummary{
			Title:          c.Title,
			Score:          c.Score,
			Classification: string(c.Classification),
			LastAt:         c.LastAt,
		}
		loopTitles[i] = c.Title
	}

	metrics := contracts.CognitiveMetricsComputed{
		Closure: contracts.ClosureSummary{
			Open:     stats.Open,
			Closed:   stats.Closed,
			Archived: stats.Archived,
			Ratio:    stats.ClosureRatio,
		},
		Loops: loops,
		Streak: &contracts.StreakSummary{
			TotalClosures: registryStats.TotalClosures,
			LastClosureAt: lastClosureAt,
			StreakDays:    registryStats.StreakDays,
			BestStreak:    registryStats.BestStreak,
		},
		GeneratedAt: generatedAt,
	}
	if err := contracts.AtomicWriteJSON(cfg.ArtifactPath("cognitive_state.json"), metrics); err != nil {
		return err
	}

	payload := contracts.DailyPayload{
		Mode:          string(directive.Mode),
		BuildAllowed:  directive.BuildAllowed,
		PrimaryAction: directive.PrimaryAction,
		OpenLoops:     loopTitles,
		OpenLoopCount: len(loopTitles),
		ClosureRatio:  stats.ClosureRatio,
		Risk:          string(directive.Risk),
		GeneratedAt:   generatedAt,
	}
	if err := contracts.AtomicWriteJSON(cfg.ArtifactPath("daily_payload.json"), payload); err != nil {
		return err
	}

	if err := contracts.AtomicWriteText(cfg.ArtifactPath("daily_directive.txt"),
		contracts.DailyDirectiveText(string(directive.Mode), directive.PrimaryAction, string(directive.Risk))); err != nil {
		return err
	}

	loopSummaries := make([]contracts.LoopCandidateSummary, len(candidates))
	for i, c := range candidates {
		loopSummaries[i] = contracts.LoopCandidateSummary{
			ConversationID:       c.ConversationID,
			Title:                c.Title,
			Score:                c.Score,
			Classification:       string(c.Classification),
			IntentSimilarity:     c.IntentSimilarity,
			CompletionSimilarity: c.CompletionSimilarity,
			EvidenceSnippet:      c.EvidenceSnippet,
			LastAt:               c.LastAt,
		}
	}
	if err := contracts.AtomicWriteJSON(cfg.ArtifactPath("loops_latest.json"), contracts.LoopsLatest{Loops: loopSummaries}); err != nil {
		return err
	}

	projection := contracts.DailyProjection{
		Date:      generatedAt.Format("2006-01-02"),
		Cognitive: metrics,
		Directive: payload,
	}
	if err := contracts.AtomicWriteJSON(cfg.ArtifactPath("daily_projection.json"), projection); err != nil {
		return err
	}

	return nil
}

func indexOfFirstLine(s string) int {
	for i, r := range s {
		if r == '\n' {
			return i
		}
	}
	return -1
}

// refreshVocabularyCache recomputes user_vocabulary only when the corpus
// content hash has changed since the last refresh (spec §4.3's
// content-hash-keyed cache, ported from the teacher's content_hash dedup
// column convention). The vocabulary itself is diagnostic — no scorer reads
// it back — so a cache error here is logged and swallowed by the caller
// rather than failing the refresh.
func refreshVocabularyCache(ctx context.Context, db *sql.DB, lex *lexicon.Lexicon, topN int, userTextByID map[string]string) error {
	cache, err := lexicon.NewVocabularyCache(db)
	if err != nil {
		return err
	}
	hash := lexicon.ContentHash(userTextByID)
	if _, hit, err := cache.Get(ctx, hash); err != nil {
		return err
	} else if hit {
		return nil
	}

	userTexts := make([]string, 0, len(userTextByID))
	for _, t := range userTextByID {
		userTexts = append(userTexts, t)
	}
	vocabulary := lexicon.UserVocabulary(lex, userTexts, topN)
	return cache.Put(ctx, hash, vocabulary)
}
