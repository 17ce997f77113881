package refresh

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"cogsensor/internal/config"
	"cogsensor/internal/contracts"
	"cogsensor/internal/store"

	"github.com/google/go-cmp/cmp"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	dims int
}

// vecFor puts text containing an intent phrase and text containing a
// completion phrase on separate axes, so prototype similarities separate
// open-loop text from completed text the way a semantic model would.
func (e *fakeEngine) vecFor(text string) []float32 {
	vec := make([]float32, e.dims)
	lower := strings.ToLower(text)
	for _, p := range config.DefaultIntentPhrases() {
		if strings.Contains(lower, p) {
			vec[0] = 1
		}
	}
	for _, p := range config.DefaultCompletionPhrases() {
		if strings.Contains(lower, p) {
			vec[1] = 1
		}
	}
	return vec
}

func (e *fakeEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.vecFor(text), nil
}

func (e *fakeEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vecFor(t)
	}
	return out, nil
}

func (e *fakeEngine) Dimensions() int { return e.dims }
func (e *fakeEngine) Name() string    { return "fake" }

func seedMessages(t *testing.T, db *store.LocalStore, conversationID string, turns [][2]string) {
	t.Helper()
	base := time.Date(2026, 7, 20, 9, 0, 0, 0, time.UTC)
	for i, turn := range turns {
		_, err := db.DB().Exec(
			`INSERT INTO messages (conversation_id, message_index, role, text, created_at) VALUES (?, ?, ?, ?, ?)`,
			conversationID, i, turn[0], turn[1], base.Add(time.Duration(i)*time.Minute),
		)
		require.NoError(t, err)
	}
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.DefaultConfig()
	cfg.ArtifactsDir = t.TempDir()
	cfg.Embedding.Dimensions = 8
	cfg.Cluster.K = 1
	cfg.Cluster.MinClusterSize = 1
	return cfg
}

func TestRun_EmptyCorpusProducesBuildModeWithZeroOpen(t *testing.T) {
	cfg := testConfig(t)
	db, err := store.NewLocalStore(filepath.Join(t.TempDir(), "corpus.db"))
	require.NoError(t, err)
	defer db.Close()

	result, err := Run(context.Background(), cfg, Deps{DB: db, Engine: &fakeEngine{dims: cfg.Embedding.Dimensions}})
	require.NoError(t, err)
	require.Equal(t, 0, result.Stats.Open)
	require.Equal(t, 1.0, result.Stats.ClosureRatio)
	require.Equal(t, "BUILD", string(result.Directive.Mode))

	for _, name := range []string{"cognitive_state.json", "daily_payload.json", "daily_directive.txt", "loops_latest.json", "daily_projection.json"} {
		_, err := os.Stat(cfg.ArtifactPath(name))
		require.NoError(t, err, "expected artifact %s to exist", name)
	}
}

func TestRun_OpenLoopConversationProducesClosureMode(t *testing.T) {
	cfg := testConfig(t)
	db, err := store.NewLocalStore(filepath.Join(t.TempDir(), "corpus.db"))
	require.NoError(t, err)
	defer db.Close()

	seedMessages(t, db, "conv-1", [][2]string{
		{"user", "I need to finish the quarterly report"},
	})

	result, err := Run(context.Background(), cfg, Deps{DB: db, Engine: &fakeEngine{dims: cfg.Embedding.Dimensions}})
	require.NoError(t, err)
	require.Len(t, result.Candidates, 1)
	require.Equal(t, "conv-1", result.Candidates[0].ConversationID)
	require.Equal(t, "CLOSURE", string(result.Directive.Mode))
}

func TestRun_ConcurrentRefreshFailsWithRefreshInProgress(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.ArtifactsDir, 0755))
	lock, err := AcquireLock(filepath.Join(cfg.ArtifactsDir, "refresh.lock"))
	require.NoError(t, err)
	defer lock.Release()

	db, err := store.NewLocalStore(filepath.Join(t.TempDir(), "corpus.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = Run(context.Background(), cfg, Deps{DB: db, Engine: &fakeEngine{dims: cfg.Embedding.Dimensions}})
	require.Error(t, err)
}

func TestRun_SecondRunAfterFirstReleasesLockSucceeds(t *testing.T) {
	cfg := testConfig(t)
	db, err := store.NewLocalStore(filepath.Join(t.TempDir(), "corpus.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = Run(context.Background(), cfg, Deps{DB: db, Engine: &fakeEngine{dims: cfg.Embedding.Dimensions}})
	require.NoError(t, err)

	_, err = Run(context.Background(), cfg, Deps{DB: db, Engine: &fakeEngine{dims: cfg.Embedding.Dimensions}})
	require.NoError(t, err)
}

// TestRun_SecondRunWithNoCorpusChangeProducesByteIdenticalArtifacts exercises
// spec §8 property 6: two back-to-back refreshes over an unchanged corpus
// must produce byte-identical artifacts modulo generated_at.
func TestRun_SecondRunWithNoCorpusChangeProducesByteIdenticalArtifacts(t *testing.T) {
	cfg := testConfig(t)
	db, err := store.NewLocalStore(filepath.Join(t.TempDir(), "corpus.db"))
	require.NoError(t, err)
	defer db.Close()

	seedMessages(t, db, "conv-1", [][2]string{
		{"user", "I need to finish the quarterly report"},
	})

	_, err = Run(context.Background(), cfg, Deps{DB: db, Engine: &fakeEngine{dims: cfg.Embedding.Dimensions}})
	require.NoError(t, err)
	firstState, firstPayload, firstLoops, firstProjection := readArtifacts(t, cfg)

	_, err = Run(context.Background(), cfg, Deps{DB: db, Engine: &fakeEngine{dims: cfg.Embedding.Dimensions}})
	require.NoError(t, err)
	secondState, secondPayload, secondLoops, secondProjection := readArtifacts(t, cfg)

	// generated_at is the one field the property explicitly exempts.
	firstState.GeneratedAt, secondState.GeneratedAt = time.Time{}, time.Time{}
	firstPayload.GeneratedAt, secondPayload.GeneratedAt = time.Time{}, time.Time{}
	firstProjection.Cognitive.GeneratedAt, secondProjection.Cognitive.GeneratedAt = time.Time{}, time.Time{}
	firstProjection.Directive.GeneratedAt, secondProjection.Directive.GeneratedAt = time.Time{}, time.Time{}

	if diff := cmp.Diff(firstState, secondState); diff != "" {
		t.Errorf("cognitive_state.json changed across identical refreshes (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(firstPayload, secondPayload); diff != "" {
		t.Errorf("daily_payload.json changed across identical refreshes (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(firstLoops, secondLoops); diff != "" {
		t.Errorf("loops_latest.json changed across identical refreshes (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(firstProjection, secondProjection); diff != "" {
		t.Errorf("daily_projection.json changed across identical refreshes (-first +second):\n%s", diff)
	}
}

func readArtifacts(t *testing.T, cfg *config.Config) (contracts.CognitiveMetricsComputed, contracts.DailyPayload, contracts.LoopsLatest, contracts.DailyProjection) {
	t.Helper()
	var state contracts.CognitiveMetricsComputed
	readJSONFile(t, cfg.ArtifactPath("cognitive_state.json"), &state)
	var payload contracts.DailyPayload
	readJSONFile(t, cfg.ArtifactPath("daily_payload.json"), &payload)
	var loops contracts.LoopsLatest
	readJSONFile(t, cfg.ArtifactPath("loops_latest.json"), &loops)
	var projection contracts.DailyProjection
	readJSONFile(t, cfg.ArtifactPath("daily_projection.json"), &projection)
	return state, payload, loops, projection
}

func readJSONFile(t *testing.T, path string, v interface{}) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}
