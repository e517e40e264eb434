package tester

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptlab/promptlab/internal/llm"
	"github.com/promptlab/promptlab/internal/store"
)

// routingCompleter answers execution calls (those carrying a system prompt)
// and judge calls (bare meta-prompts) from separate scripts.
type routingCompleter struct {
	executions map[string]string // system prompt -> output
	judgeReply string
	calls      []llm.CompletionRequest
}

func (c *routingCompleter) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	c.calls = append(c.calls, req)
	if req.SystemPrompt != "" {
		if out, ok := c.executions[req.SystemPrompt]; ok {
			return out, nil
		}
		return "default output", nil
	}
	return c.judgeReply, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
}

func seed(t *testing.T) (store.Store, uuid.UUID, uuid.UUID) {
	t.Helper()
	ctx := context.Background()
	st := store.NewMemory()
	p, err := st.CreatePrompt(ctx, "translator", "", "Translate to French.")
	require.NoError(t, err)
	v, err := st.GetCurrentVersion(ctx, p.ID)
	require.NoError(t, err)
	tc, err := st.CreateTestCase(ctx, p.ID, "greeting", "Hello", "Accurate French translation", nil)
	require.NoError(t, err)
	return st, tc.ID, v.ID
}

func TestRunTestGradesAndPersists(t *testing.T) {
	ctx := context.Background()
	st, tcID, vID := seed(t)

	oracle := &routingCompleter{
		executions: map[string]string{"Translate to French.": "Bonjour"},
		judgeReply: "SCORE: 95\n\nSTRENGTHS:\naccurate",
	}
	tr := New(oracle, st, "test-model", "judge-model", testLogger())

	res, err := tr.RunTest(ctx, tcID, vID, true)
	require.NoError(t, err)
	assert.Equal(t, "Bonjour", res.Output)
	require.NotNil(t, res.Score)
	assert.Equal(t, 95.0, *res.Score)
	assert.True(t, res.Passed)
	require.Len(t, oracle.calls, 2)
	assert.Contains(t, oracle.calls[1].Prompt, "Bonjour")
	assert.Equal(t, "test-model", oracle.calls[0].Model)
	assert.Equal(t, "judge-model", oracle.calls[1].Model)

	saved, err := st.GetTestResults(ctx, vID)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "Bonjour", saved[0].Output)
}

func TestRunTestWithoutPersist(t *testing.T) {
	ctx := context.Background()
	st, tcID, vID := seed(t)

	oracle := &routingCompleter{judgeReply: "SCORE: 50"}
	tr := New(oracle, st, "test-model", "judge-model", testLogger())

	res, err := tr.RunTest(ctx, tcID, vID, false)
	require.NoError(t, err)
	require.NotNil(t, res.Score)
	assert.False(t, res.Passed)

	saved, err := st.GetTestResults(ctx, vID)
	require.NoError(t, err)
	assert.Empty(t, saved)
}

func TestRunTestUnscoredJudgeReply(t *testing.T) {
	ctx := context.Background()
	st, tcID, vID := seed(t)

	oracle := &routingCompleter{judgeReply: "The output looks fine to me."}
	tr := New(oracle, st, "test-model", "judge-model", testLogger())

	res, err := tr.RunTest(ctx, tcID, vID, true)
	require.NoError(t, err)
	assert.Nil(t, res.Score)
	assert.False(t, res.Passed)
}

func TestRunTestMissingCase(t *testing.T) {
	ctx := context.Background()
	st, _, vID := seed(t)
	tr := New(&routingCompleter{}, st, "test-model", "judge-model", testLogger())

	_, err := tr.RunTest(ctx, uuid.New(), vID, false)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRunAllTestsEmptySuite(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	p, err := st.CreatePrompt(ctx, "p", "", "content")
	require.NoError(t, err)
	v, err := st.GetCurrentVersion(ctx, p.ID)
	require.NoError(t, err)

	tr := New(&routingCompleter{}, st, "test-model", "judge-model", testLogger())
	results, err := tr.RunAllTests(ctx, v.ID)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRunAllTestsPersistsEverything(t *testing.T) {
	ctx := context.Background()
	st, _, vID := seed(t)
	v, err := st.GetVersion(ctx, vID)
	require.NoError(t, err)
	_, err = st.CreateTestCase(ctx, v.PromptID, "second", "Goodbye", "accuracy", nil)
	require.NoError(t, err)

	oracle := &routingCompleter{judgeReply: "SCORE: 80"}
	tr := New(oracle, st, "test-model", "judge-model", testLogger())

	results, err := tr.RunAllTests(ctx, vID)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	saved, err := st.GetTestResults(ctx, vID)
	require.NoError(t, err)
	assert.Len(t, saved, 2)
}

func TestCompareVersionsSkipsMissing(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	p, err := st.CreatePrompt(ctx, "p", "", "v1 content")
	require.NoError(t, err)
	v1, err := st.GetCurrentVersion(ctx, p.ID)
	require.NoError(t, err)
	v2, err := st.CreateVersion(ctx, p.ID, "v2 content", "", nil)
	require.NoError(t, err)
	tc, err := st.CreateTestCase(ctx, p.ID, "case", "input", "accuracy", nil)
	require.NoError(t, err)
	missing := uuid.New()

	oracle := &routingCompleter{
		executions: map[string]string{
			"v1 content": "answer one",
			"v2 content": "answer two",
		},
		judgeReply: "RANKING:\n1. Version 2 - tighter",
	}
	tr := New(oracle, st, "test-model", "judge-model", testLogger())

	cmp, err := tr.CompareVersions(ctx, []uuid.UUID{v1.ID, missing, v2.ID}, tc.ID)
	require.NoError(t, err)
	require.Len(t, cmp.Responses, 2)
	assert.Equal(t, "Version 1", cmp.Responses[0].Name)
	assert.Equal(t, "Version 2", cmp.Responses[1].Name)
	assert.Equal(t, v1.ID, cmp.Responses[0].VersionID)
	assert.Equal(t, v2.ID, cmp.Responses[1].VersionID)
	assert.Equal(t, []uuid.UUID{missing}, cmp.Skipped)
	assert.Contains(t, cmp.Verdict, "RANKING")
	assert.Equal(t, tc.ID, cmp.TestCaseID)

	// The verdict pass runs on the judge model, executions on the test model.
	require.Len(t, oracle.calls, 3)
	assert.Equal(t, "test-model", oracle.calls[0].Model)
	assert.Equal(t, "test-model", oracle.calls[1].Model)
	assert.Equal(t, "judge-model", oracle.calls[2].Model)
}

func TestCompareVersionsAllMissing(t *testing.T) {
	ctx := context.Background()
	st, tcID, _ := seed(t)
	tr := New(&routingCompleter{}, st, "test-model", "judge-model", testLogger())

	_, err := tr.CompareVersions(ctx, []uuid.UUID{uuid.New(), uuid.New()}, tcID)
	assert.ErrorIs(t, err, ErrNoValidVersions)
}

func TestCompareVersionsMissingTestCase(t *testing.T) {
	ctx := context.Background()
	st, _, vID := seed(t)
	tr := New(&routingCompleter{}, st, "test-model", "judge-model", testLogger())

	_, err := tr.CompareVersions(ctx, []uuid.UUID{vID}, uuid.New())
	assert.ErrorIs(t, err, ErrNoValidVersions)
}

func TestSummarizeCounts(t *testing.T) {
	ctx := context.Background()
	st, tcID, vID := seed(t)

	scores := []*float64{f(95), f(60), f(70), nil}
	for _, s := range scores {
		_, err := st.SaveTestResult(ctx, tcID, vID, "output", s, "eval")
		require.NoError(t, err)
	}

	tr := New(&routingCompleter{}, st, "test-model", "judge-model", testLogger())
	summary, err := tr.Summarize(ctx, vID)
	require.NoError(t, err)

	assert.Equal(t, 4, summary.TotalTests)
	assert.Equal(t, 2, summary.Passed)
	assert.Equal(t, 1, summary.Failed)
	require.NotNil(t, summary.AverageScore)
	assert.InDelta(t, 75.0, *summary.AverageScore, 1e-9)
}

func TestSummarizeNoResults(t *testing.T) {
	ctx := context.Background()
	st, _, vID := seed(t)

	tr := New(&routingCompleter{}, st, "test-model", "judge-model", testLogger())
	summary, err := tr.Summarize(ctx, vID)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.TotalTests)
	assert.Nil(t, summary.AverageScore)
}

func TestGenerateReportExcerptsOutput(t *testing.T) {
	ctx := context.Background()
	st, tcID, vID := seed(t)

	long := strings.Repeat("a", 150)
	_, err := st.SaveTestResult(ctx, tcID, vID, long, f(88), "eval")
	require.NoError(t, err)

	oracle := &routingCompleter{}
	tr := New(oracle, st, "test-model", "judge-model", testLogger())

	report, err := tr.GenerateReport(ctx, vID)
	require.NoError(t, err)
	assert.Contains(t, report, "Version 1")
	assert.Contains(t, report, "Total tests: 1")
	assert.Contains(t, report, "score 88.0")
	assert.Contains(t, report, strings.Repeat("a", 100)+"...")
	assert.NotContains(t, report, strings.Repeat("a", 101))
	assert.Empty(t, oracle.calls)
}

func f(v float64) *float64 { return &v }
