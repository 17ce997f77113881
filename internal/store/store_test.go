package store_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"cogsensor/internal/embedding"
	"cogsensor/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *store.LocalStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.db")
	s, err := store.NewLocalStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewLocalStore_CreatesSchema(t *testing.T) {
	s := openTestStore(t)

	stats, err := s.GetStats()
	require.NoError(t, err)
	require.Equal(t, int64(0), stats["messages"])
	require.Equal(t, int64(0), stats["embeddings"])
}

func TestNewLocalStore_RequireVecSucceedsWithCompatLayer(t *testing.T) {
	// The modernc vec0 compat layer registers unconditionally via
	// vec_compat.go's init(), so requiring it should succeed here; this
	// guards against that registration silently regressing.
	path := filepath.Join(t.TempDir(), "corpus.db")
	s, err := store.NewLocalStore(path, store.WithRequireVec(true))
	require.NoError(t, err)
	defer s.Close()
	require.True(t, s.VectorSearchEnabled())
}

func TestSchemaVersion_MigratesToCurrent(t *testing.T) {
	s := openTestStore(t)

	version := store.GetSchemaVersion(s.DB())
	require.Equal(t, store.CurrentSchemaVersion, version)
}

func TestPutAndGetEmbedding_RoundTrips(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	e := embedding.Embedding{
		ConversationID: "conv-1",
		Vector:         []float32{0.6, 0.8},
		ModelID:        "test-model",
		TextLength:     42,
		CreatedAt:      time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.PutEmbedding(ctx, e))

	got, err := s.GetEmbedding(ctx, "conv-1", "test-model")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, e.ConversationID, got.ConversationID)
	require.Equal(t, e.ModelID, got.ModelID)
	require.Equal(t, e.TextLength, got.TextLength)
	require.InDeltaSlice(t, e.Vector, got.Vector, 1e-6)
}

func TestGetEmbedding_MissingReturnsNil(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	got, err := s.GetEmbedding(ctx, "nope", "test-model")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestPutEmbedding_UpsertsOnConflict(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := embedding.Embedding{ConversationID: "conv-1", Vector: []float32{1, 0}, ModelID: "m", TextLength: 10, CreatedAt: time.Now().UTC()}
	require.NoError(t, s.PutEmbedding(ctx, first))

	second := embedding.Embedding{ConversationID: "conv-1", Vector: []float32{0, 1}, ModelID: "m", TextLength: 20, CreatedAt: time.Now().UTC()}
	require.NoError(t, s.PutEmbedding(ctx, second))

	got, err := s.GetEmbedding(ctx, "conv-1", "m")
	require.NoError(t, err)
	require.Equal(t, 20, got.TextLength)
	require.InDeltaSlice(t, []float32{0, 1}, got.Vector, 1e-6)

	all, err := s.AllEmbeddings(ctx, "m")
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestAllEmbeddings_FiltersByModel(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutEmbedding(ctx, embedding.Embedding{ConversationID: "a", Vector: []float32{1, 0}, ModelID: "m1", CreatedAt: time.Now().UTC()}))
	require.NoError(t, s.PutEmbedding(ctx, embedding.Embedding{ConversationID: "b", Vector: []float32{0, 1}, ModelID: "m1", CreatedAt: time.Now().UTC()}))
	require.NoError(t, s.PutEmbedding(ctx, embedding.Embedding{ConversationID: "c", Vector: []float32{1, 1}, ModelID: "m2", CreatedAt: time.Now().UTC()}))

	got, err := s.AllEmbeddings(ctx, "m1")
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestDropEmbeddingsByModel_RemovesOnlyThatModel(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutEmbedding(ctx, embedding.Embedding{ConversationID: "a", Vector: []float32{1, 0}, ModelID: "stale", CreatedAt: time.Now().UTC()}))
	require.NoError(t, s.PutEmbedding(ctx, embedding.Embedding{ConversationID: "b", Vector: []float32{0, 1}, ModelID: "current", CreatedAt: time.Now().UTC()}))

	require.NoError(t, s.DropEmbeddingsByModel(ctx, "stale"))

	stale, err := s.AllEmbeddings(ctx, "stale")
	require.NoError(t, err)
	require.Empty(t, stale)

	current, err := s.AllEmbeddings(ctx, "current")
	require.NoError(t, err)
	require.Len(t, current, 1)
}
