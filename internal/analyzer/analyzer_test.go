package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptlab/promptlab/internal/llm"
	"github.com/promptlab/promptlab/internal/rubric"
	"github.com/promptlab/promptlab/internal/store"
)

// scriptedCompleter replies to each analysis prompt with the dimension's
// score line, based on which template the prompt was built from.
type scriptedCompleter struct {
	scores  map[rubric.Dimension]string // dimension -> reply body
	err     error
	prompts []string
}

func (c *scriptedCompleter) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	c.prompts = append(c.prompts, req.Prompt)
	if c.err != nil {
		return "", c.err
	}
	for dim, reply := range c.scores {
		if strings.Contains(req.Prompt, dim.ScoreLabel()+": [0-100]") {
			return reply, nil
		}
	}
	return "no verdict", nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
}

func TestAnalyzeDimensionParsesAndPersists(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	p, err := st.CreatePrompt(ctx, "p", "", "Summarize the text.")
	require.NoError(t, err)
	v, err := st.GetCurrentVersion(ctx, p.ID)
	require.NoError(t, err)

	oracle := &scriptedCompleter{scores: map[rubric.Dimension]string{
		rubric.Clarity: "CLARITY SCORE: 82\n\nISSUES FOUND:\nnone",
	}}
	a := New(oracle, st, "test-model", testLogger())

	res, err := a.AnalyzeDimension(ctx, "Summarize the text.", rubric.Clarity, &v.ID)
	require.NoError(t, err)
	require.NotNil(t, res.Score)
	assert.Equal(t, 82, *res.Score)
	assert.Contains(t, res.Content, "ISSUES FOUND")

	saved, err := st.GetAnalyses(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "clarity", saved[0].AnalysisType)
	require.NotNil(t, saved[0].Score)
	assert.Equal(t, 82, *saved[0].Score)
}

func TestAnalyzeDimensionUnscoredReplyIsNotAnError(t *testing.T) {
	ctx := context.Background()
	oracle := &scriptedCompleter{} // replies "no verdict" for everything
	a := New(oracle, store.NewMemory(), "test-model", testLogger())

	res, err := a.AnalyzeDimension(ctx, "content", rubric.Safety, nil)
	require.NoError(t, err)
	assert.Nil(t, res.Score)
	assert.Equal(t, "no verdict", res.Content)
}

func TestAnalyzeAllRunsDimensionsInOrder(t *testing.T) {
	ctx := context.Background()
	oracle := &scriptedCompleter{scores: map[rubric.Dimension]string{
		rubric.Clarity:      "CLARITY SCORE: 80",
		rubric.Completeness: "COMPLETENESS SCORE: 85",
		rubric.Efficiency:   "EFFICIENCY SCORE: 75",
		rubric.Safety:       "SAFETY SCORE: 95",
		rubric.General:      "OVERALL SCORE: 90",
	}}
	a := New(oracle, store.NewMemory(), "test-model", testLogger())

	results, err := a.AnalyzeAll(ctx, "content", nil)
	require.NoError(t, err)
	require.Len(t, results, 5)

	want := rubric.Dimensions()
	for i, res := range results {
		assert.Equal(t, want[i], res.Dimension)
		require.NotNil(t, res.Score)
	}
	assert.Equal(t, 80, *results[0].Score)
	assert.Equal(t, 90, *results[4].Score)
}

func TestAnalyzeAllStopsOnOracleFailure(t *testing.T) {
	ctx := context.Background()
	oracle := &scriptedCompleter{err: fmt.Errorf("%w: boom", llm.ErrUnavailable)}
	a := New(oracle, store.NewMemory(), "test-model", testLogger())

	_, err := a.AnalyzeAll(ctx, "content", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrUnavailable)
	assert.Len(t, oracle.prompts, 1)
}

func TestAnalyzeVersionMissingVersion(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	a := New(&scriptedCompleter{}, st, "test-model", testLogger())

	_, err := a.AnalyzeVersion(ctx, uuid.New())
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestSummarizeExcludesGeneralFromAverage(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	p, err := st.CreatePrompt(ctx, "p", "", "content")
	require.NoError(t, err)
	v, err := st.GetCurrentVersion(ctx, p.ID)
	require.NoError(t, err)

	scores := map[string]int{
		"clarity":      80,
		"completeness": 85,
		"efficiency":   75,
		"safety":       95,
		"general":      90,
	}
	for typ, s := range scores {
		s := s
		_, err = st.SaveAnalysis(ctx, v.ID, typ, "text", &s)
		require.NoError(t, err)
	}

	a := New(&scriptedCompleter{}, st, "test-model", testLogger())
	summary, err := a.Summarize(ctx, v.ID)
	require.NoError(t, err)

	assert.Equal(t, 5, summary.TotalAnalyses)
	require.NotNil(t, summary.AverageScore)
	assert.InDelta(t, 83.75, *summary.AverageScore, 1e-9)
	assert.Equal(t, 90, summary.DimensionScores[rubric.General])
}

func TestSummarizeAllNilScores(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	p, err := st.CreatePrompt(ctx, "p", "", "content")
	require.NoError(t, err)
	v, err := st.GetCurrentVersion(ctx, p.ID)
	require.NoError(t, err)

	for _, dim := range rubric.Dimensions() {
		_, err = st.SaveAnalysis(ctx, v.ID, string(dim), "unscored text", nil)
		require.NoError(t, err)
	}

	a := New(&scriptedCompleter{}, st, "test-model", testLogger())
	summary, err := a.Summarize(ctx, v.ID)
	require.NoError(t, err)

	assert.Equal(t, 5, summary.TotalAnalyses)
	assert.Nil(t, summary.AverageScore)
	assert.Empty(t, summary.DimensionScores)
}

func TestSummarizeOmitsUnscoredDimensions(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	p, err := st.CreatePrompt(ctx, "p", "", "content")
	require.NoError(t, err)
	v, err := st.GetCurrentVersion(ctx, p.ID)
	require.NoError(t, err)

	clarity := 70
	_, err = st.SaveAnalysis(ctx, v.ID, "clarity", "scored", &clarity)
	require.NoError(t, err)
	_, err = st.SaveAnalysis(ctx, v.ID, "safety", "no score line", nil)
	require.NoError(t, err)

	a := New(&scriptedCompleter{}, st, "test-model", testLogger())
	summary, err := a.Summarize(ctx, v.ID)
	require.NoError(t, err)

	// Only scored dimensions appear; unscored ones are absent, not null.
	assert.Equal(t, map[rubric.Dimension]int{rubric.Clarity: 70}, summary.DimensionScores)
	_, present := summary.DimensionScores[rubric.Safety]
	assert.False(t, present)
	require.NotNil(t, summary.AverageScore)
	assert.InDelta(t, 70.0, *summary.AverageScore, 1e-9)
}

func TestSummarizeUsesLatestPerDimension(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	p, err := st.CreatePrompt(ctx, "p", "", "content")
	require.NoError(t, err)
	v, err := st.GetCurrentVersion(ctx, p.ID)
	require.NoError(t, err)

	old, newer := 40, 70
	_, err = st.SaveAnalysis(ctx, v.ID, "clarity", "old", &old)
	require.NoError(t, err)
	_, err = st.SaveAnalysis(ctx, v.ID, "clarity", "new", &newer)
	require.NoError(t, err)

	a := New(&scriptedCompleter{}, st, "test-model", testLogger())
	summary, err := a.Summarize(ctx, v.ID)
	require.NoError(t, err)

	require.NotNil(t, summary.AverageScore)
	assert.InDelta(t, 70.0, *summary.AverageScore, 1e-9)
	assert.Equal(t, 2, summary.TotalAnalyses)
}
