package scoring

import (
	"context"
	"strings"
	"testing"

	"cogsensor/internal/cogerr"
	"cogsensor/internal/config"
	"cogsensor/internal/lexicon"

	"github.com/stretchr/testify/require"
)

// fakeEngine embeds deterministically: vector[0] counts intent-ish words,
// vector[1] counts completion-ish words, rest zero.
type fakeEngine struct{ dims int }

func (f *fakeEngine) Embed(ctx context.Context, text string) ([]float32, error) {
	vs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vs[0], nil
}

func (f *fakeEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v := make([]float32, f.dims)
		lower := strings.ToLower(text)
		if strings.Contains(lower, "want") || strings.Contains(lower, "need") {
			v[0] = 1
		}
		if strings.Contains(lower, "done") || strings.Contains(lower, "finished") {
			v[1] = 1
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEngine) Dimensions() int { return f.dims }
func (f *fakeEngine) Name() string    { return "fake" }

// taskAwareFakeEngine records the task type ComputePrototypes resolved, to
// verify the prototype phrases are embedded with a task type rather than
// going through plain EmbedBatch.
type taskAwareFakeEngine struct {
	fakeEngine
	lastTaskType string
}

func (f *taskAwareFakeEngine) EmbedWithTask(ctx context.Context, text, taskType string) ([]float32, error) {
	f.lastTaskType = taskType
	return f.Embed(ctx, text)
}

func (f *taskAwareFakeEngine) EmbedBatchWithTask(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	f.lastTaskType = taskType
	return f.EmbedBatch(ctx, texts)
}

func TestComputePrototypes_UsesRetrievalDocumentTaskType(t *testing.T) {
	lex := lexicon.New(config.LexiconConfig{
		IntentPhrases:     []string{"want to"},
		CompletionPhrases: []string{"done"},
		Stopwords:         config.DefaultStopwords(),
	})
	engine := &taskAwareFakeEngine{fakeEngine: fakeEngine{dims: 4}}

	_, err := ComputePrototypes(context.Background(), engine, lex)
	require.NoError(t, err)
	require.Equal(t, "RETRIEVAL_DOCUMENT", engine.lastTaskType)
}

func TestComputePrototypes_MeanThenNormalized(t *testing.T) {
	lex := lexicon.New(config.LexiconConfig{
		IntentPhrases:     []string{"want to", "need to"},
		CompletionPhrases: []string{"done", "finished"},
		Stopwords:         config.DefaultStopwords(),
	})
	engine := &fakeEngine{dims: 4}

	protos, err := ComputePrototypes(context.Background(), engine, lex)
	require.NoError(t, err)

	var normSq float64
	for _, f := range protos.Intent {
		normSq += float64(f) * float64(f)
	}
	require.InDelta(t, 1.0, normSq, 1e-5)
}

func TestSemanticScorer_FormulaMatchesSpec(t *testing.T) {
	protos := Prototypes{
		Intent:     []float32{1, 0},
		Completion: []float32{0, 1},
	}
	scorer := NewSemanticScorer(protos)

	got, err := scorer.Score("conv-1", []float32{1, 0})
	require.NoError(t, err)
	require.InDelta(t, 1.0, got.IntentSimilarity, 1e-6)
	require.InDelta(t, 0.0, got.CompletionSimilarity, 1e-6)
	require.InDelta(t, 100.0, got.Score, 1e-6)
}

func TestSemanticScorer_DimensionMismatchErrors(t *testing.T) {
	protos := Prototypes{Intent: []float32{1, 0, 0}, Completion: []float32{0, 1, 0}}
	scorer := NewSemanticScorer(protos)

	_, err := scorer.Score("conv-1", []float32{1, 0})
	require.Error(t, err)
	require.True(t, cogerr.Is(err, cogerr.KindDimensionMismatch))
}
