package store

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePromptSeedsVersionOne(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	p, err := s.CreatePrompt(ctx, "summarizer", "summarizes text", "Summarize: {input}")
	require.NoError(t, err)
	assert.Equal(t, 1, p.CurrentVersion)

	v, err := s.GetCurrentVersion(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, v.Version)
	assert.Equal(t, "Summarize: {input}", v.Content)
}

func TestVersionNumbersAreSequential(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	p, err := s.CreatePrompt(ctx, "p", "", "v1 content")
	require.NoError(t, err)

	v2, err := s.CreateVersion(ctx, p.ID, "v2 content", "tightened wording", nil)
	require.NoError(t, err)
	v3, err := s.CreateVersion(ctx, p.ID, "v3 content", "", []string{"candidate"})
	require.NoError(t, err)

	assert.Equal(t, 2, v2.Version)
	assert.Equal(t, 3, v3.Version)

	got, err := s.GetPrompt(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.CurrentVersion)

	cur, err := s.GetCurrentVersion(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, v3.ID, cur.ID)
}

func TestListVersionsNewestFirstWithPreview(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	long := strings.Repeat("x", 150)
	p, err := s.CreatePrompt(ctx, "p", "", long)
	require.NoError(t, err)
	_, err = s.CreateVersion(ctx, p.ID, "short", "", nil)
	require.NoError(t, err)

	versions, err := s.ListVersions(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, versions, 2)

	assert.Equal(t, 2, versions[0].Version)
	assert.Equal(t, "short", versions[0].Content)
	assert.Equal(t, 1, versions[1].Version)
	assert.Equal(t, strings.Repeat("x", 100)+"...", versions[1].Content)

	// Full content still comes back through GetVersion.
	full, err := s.GetVersion(ctx, versions[1].ID)
	require.NoError(t, err)
	assert.Equal(t, long, full.Content)
}

func TestDeletePromptCascades(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	p, err := s.CreatePrompt(ctx, "p", "", "content")
	require.NoError(t, err)
	v, err := s.GetCurrentVersion(ctx, p.ID)
	require.NoError(t, err)

	score := 80
	_, err = s.SaveAnalysis(ctx, v.ID, "clarity", "CLARITY SCORE: 80", &score)
	require.NoError(t, err)

	tc, err := s.CreateTestCase(ctx, p.ID, "case", "input", "accuracy", nil)
	require.NoError(t, err)
	fscore := 90.0
	_, err = s.SaveTestResult(ctx, tc.ID, v.ID, "output", &fscore, "SCORE: 90")
	require.NoError(t, err)

	require.NoError(t, s.DeletePrompt(ctx, p.ID))

	_, err = s.GetPrompt(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetVersion(ctx, v.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetTestCase(ctx, tc.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	analyses, err := s.GetAnalyses(ctx, v.ID)
	require.NoError(t, err)
	assert.Empty(t, analyses)
	results, err := s.GetTestResults(ctx, v.ID)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDeletePromptCascadesToCrossPromptResults(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	// A result may link one prompt's test case to another prompt's version;
	// deleting the case's prompt must still remove it.
	pa, err := s.CreatePrompt(ctx, "a", "", "content a")
	require.NoError(t, err)
	pb, err := s.CreatePrompt(ctx, "b", "", "content b")
	require.NoError(t, err)
	vb, err := s.GetCurrentVersion(ctx, pb.ID)
	require.NoError(t, err)

	tca, err := s.CreateTestCase(ctx, pa.ID, "case", "input", "crit", nil)
	require.NoError(t, err)
	score := 80.0
	_, err = s.SaveTestResult(ctx, tca.ID, vb.ID, "output", &score, "eval")
	require.NoError(t, err)

	require.NoError(t, s.DeletePrompt(ctx, pa.ID))

	results, err := s.GetTestResults(ctx, vb.ID)
	require.NoError(t, err)
	assert.Empty(t, results)

	// Prompt B and its version are untouched.
	_, err = s.GetVersion(ctx, vb.ID)
	assert.NoError(t, err)
}

func TestDeleteTestCaseCascadesToResults(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	p, err := s.CreatePrompt(ctx, "p", "", "content")
	require.NoError(t, err)
	v, err := s.GetCurrentVersion(ctx, p.ID)
	require.NoError(t, err)

	tc1, err := s.CreateTestCase(ctx, p.ID, "keep", "in", "crit", nil)
	require.NoError(t, err)
	tc2, err := s.CreateTestCase(ctx, p.ID, "drop", "in", "crit", nil)
	require.NoError(t, err)

	_, err = s.SaveTestResult(ctx, tc1.ID, v.ID, "a", nil, "")
	require.NoError(t, err)
	_, err = s.SaveTestResult(ctx, tc2.ID, v.ID, "b", nil, "")
	require.NoError(t, err)

	require.NoError(t, s.DeleteTestCase(ctx, tc2.ID))

	results, err := s.GetTestResults(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, tc1.ID, results[0].TestCaseID)

	cases, err := s.GetTestCases(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, "keep", cases[0].Name)
}

func TestGetAnalysesNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	p, err := s.CreatePrompt(ctx, "p", "", "content")
	require.NoError(t, err)
	v, err := s.GetCurrentVersion(ctx, p.ID)
	require.NoError(t, err)

	for _, typ := range []string{"clarity", "safety", "general"} {
		_, err = s.SaveAnalysis(ctx, v.ID, typ, "text", nil)
		require.NoError(t, err)
	}

	analyses, err := s.GetAnalyses(ctx, v.ID)
	require.NoError(t, err)
	require.Len(t, analyses, 3)
	assert.Equal(t, "general", analyses[0].AnalysisType)
	assert.Equal(t, "clarity", analyses[2].AnalysisType)
}

func TestNotFoundSentinels(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()
	missing := uuid.New()

	_, err := s.GetPrompt(ctx, missing)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.CreateVersion(ctx, missing, "c", "", nil)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.SaveAnalysis(ctx, missing, "clarity", "", nil)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.CreateTestCase(ctx, missing, "n", "i", "c", nil)
	assert.ErrorIs(t, err, ErrNotFound)
	err = s.UpdatePrompt(ctx, missing, UpdatePromptFields{})
	assert.ErrorIs(t, err, ErrNotFound)
	err = s.DeletePrompt(ctx, missing)
	assert.ErrorIs(t, err, ErrNotFound)
	err = s.DeleteTestCase(ctx, missing)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdatePromptPartialFields(t *testing.T) {
	ctx := context.Background()
	s := NewMemory()

	p, err := s.CreatePrompt(ctx, "old name", "old desc", "content")
	require.NoError(t, err)

	name := "new name"
	require.NoError(t, s.UpdatePrompt(ctx, p.ID, UpdatePromptFields{Name: &name}))

	got, err := s.GetPrompt(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "new name", got.Name)
	assert.Equal(t, "old desc", got.Description)
}
