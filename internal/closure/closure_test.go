package closure

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"cogsensor/internal/cogerr"

	"github.com/stretchr/testify/require"
)

func TestLoadRegistry_MissingFileIsEmptyNotError(t *testing.T) {
	reg, err := LoadRegistry(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	require.Empty(t, reg.Closures)
}

func TestLoadRegistry_ParsesEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "closures.json")
	body := `{"closures":[{"ts":1000,"loop_id":"conv-1","title":"x","outcome":"closed"}],"stats":{"total_closures":1,"streak_days":3,"best_streak":5}}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	require.Len(t, reg.Closures, 1)
	require.Equal(t, OutcomeClosed, reg.Closures[0].Outcome)
	require.Equal(t, 3, reg.Stats.StreakDays)
}

func TestLoadRegistry_MalformedJSONIsCorpusError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "closures.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	_, err := LoadRegistry(path)
	require.Error(t, err)
	require.True(t, cogerr.Is(err, cogerr.KindCorpusError))
}

func TestComputeStats_ZeroDenominatorIsOne(t *testing.T) {
	stats := ComputeStats(nil, &Registry{})
	require.Equal(t, 1.0, stats.ClosureRatio)
}

func TestComputeStats_ArchivedExcludedFromDenominator(t *testing.T) {
	registry := &Registry{Closures: []Entry{
		{LoopID: "conv-archived", Outcome: OutcomeArchived, TimestampMs: 1000},
	}}
	stats := ComputeStats([]string{"conv-open"}, registry)
	require.Equal(t, 1, stats.Open)
	require.Equal(t, 0, stats.Closed)
	require.Equal(t, 1, stats.Archived)
	require.Equal(t, 0.0, stats.ClosureRatio) // closed=0, open=1 -> 0/(1+0)
}

func TestComputeStats_RegistryTakesPrecedenceOverOpenSignal(t *testing.T) {
	registry := &Registry{Closures: []Entry{
		{LoopID: "conv-1", Outcome: OutcomeClosed, TimestampMs: 2000},
	}}
	stats := ComputeStats([]string{"conv-1", "conv-2"}, registry)
	require.Equal(t, 1, stats.Open) // conv-2 only
	require.Equal(t, 1, stats.Closed)
}

func TestComputeStats_LastClosureAtIsMostRecent(t *testing.T) {
	registry := &Registry{Closures: []Entry{
		{LoopID: "a", Outcome: OutcomeClosed, TimestampMs: 1000},
		{LoopID: "b", Outcome: OutcomeClosed, TimestampMs: 5000},
		{LoopID: "c", Outcome: OutcomeClosed, TimestampMs: 3000},
	}}
	stats := ComputeStats(nil, registry)
	require.NotNil(t, stats.LastClosureAt)
	require.Equal(t, int64(5000), stats.LastClosureAt.UnixMilli())
}

func TestClassify_AssignsEachConversationExactlyOneBucket(t *testing.T) {
	registry := &Registry{Closures: []Entry{
		{LoopID: "conv-closed", Outcome: OutcomeClosed},
		{LoopID: "conv-archived", Outcome: OutcomeArchived},
	}}
	got := Classify([]string{"conv-open", "conv-closed"}, registry)
	require.Equal(t, ClassificationOpen, got["conv-open"])
	require.Equal(t, ClassificationClosed, got["conv-closed"])
	require.Equal(t, ClassificationArchived, got["conv-archived"])
}

func TestEntry_JSONRoundTrip(t *testing.T) {
	e := Entry{TimestampMs: 123, LoopID: "conv-1", Title: "x", Outcome: OutcomeClosed}
	data, err := json.Marshal(e)
	require.NoError(t, err)
	var got Entry
	require.NoError(t, json.Unmarshal(data, &got))
	require.Equal(t, e, got)
}
