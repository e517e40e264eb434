// Package tester executes stored test cases against prompt versions and has
// an LLM judge grade the outputs. Each run is two oracle round trips: the
// candidate prompt answers the input, then the judge scores that answer.
package tester

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/promptlab/promptlab/internal/llm"
	"github.com/promptlab/promptlab/internal/rubric"
	"github.com/promptlab/promptlab/internal/store"
)

// PassThreshold is the judge score at or above which a test counts as passed.
const PassThreshold = 70.0

const (
	executionMaxTokens  = 4096
	judgeMaxTokens      = 1024
	judgeTemperature    = 0.2
	reportOutputExcerpt = 100
)

// ErrNoValidVersions is returned by CompareVersions when none of the
// requested versions produced a response.
var ErrNoValidVersions = errors.New("tester: no valid versions to compare")

type Tester struct {
	llm   llm.Completer
	store store.Store
	// model answers test inputs; judgeModel runs the evaluation and
	// comparison passes.
	model      string
	judgeModel string
	logger     *slog.Logger
}

func New(completer llm.Completer, st store.Store, model, judgeModel string, logger *slog.Logger) *Tester {
	return &Tester{
		llm:        completer,
		store:      st,
		model:      model,
		judgeModel: judgeModel,
		logger:     logger,
	}
}

// Result is one graded test execution. Score is nil when the judge's reply
// carried no parseable score; that is a data point, not a failure.
type Result struct {
	TestCaseID uuid.UUID `json:"test_case_id"`
	TestName   string    `json:"test_name"`
	VersionID  uuid.UUID `json:"version_id"`
	Output     string    `json:"output"`
	Score      *float64  `json:"score,omitempty"`
	Evaluation string    `json:"evaluation"`
	Passed     bool      `json:"passed"`
}

// RunTest executes one test case against one version. With persist set the
// graded result is appended to the version's history.
func (t *Tester) RunTest(ctx context.Context, testCaseID, versionID uuid.UUID, persist bool) (*Result, error) {
	tc, err := t.store.GetTestCase(ctx, testCaseID)
	if err != nil {
		return nil, fmt.Errorf("load test case: %w", err)
	}
	v, err := t.store.GetVersion(ctx, versionID)
	if err != nil {
		return nil, fmt.Errorf("load version: %w", err)
	}

	output, err := t.llm.Complete(ctx, llm.CompletionRequest{
		Prompt:       tc.InputText,
		SystemPrompt: v.Content,
		Model:        t.model,
		MaxTokens:    executionMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("execute test %q: %w", tc.Name, err)
	}

	evaluation, err := t.llm.Complete(ctx, llm.CompletionRequest{
		Prompt:      rubric.BuildJudgeEvaluationPrompt(output, tc.ExpectedOutput, tc.EvaluationCriteria),
		Model:       t.judgeModel,
		MaxTokens:   judgeMaxTokens,
		Temperature: judgeTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("judge test %q: %w", tc.Name, err)
	}

	score := rubric.ExtractScoreFloat(evaluation, rubric.EvalScorePattern)
	if score == nil {
		t.logger.Warn("judge reply carried no score", "test", tc.Name)
	}

	if persist {
		if _, err := t.store.SaveTestResult(ctx, tc.ID, v.ID, output, score, evaluation); err != nil {
			return nil, fmt.Errorf("save test result: %w", err)
		}
	}

	return &Result{
		TestCaseID: tc.ID,
		TestName:   tc.Name,
		VersionID:  v.ID,
		Output:     output,
		Score:      score,
		Evaluation: evaluation,
		Passed:     score != nil && *score >= PassThreshold,
	}, nil
}

// RunAllTests executes every test case of the version's prompt against that
// version, persisting each result. A prompt with no test cases yields an
// empty slice, not an error.
func (t *Tester) RunAllTests(ctx context.Context, versionID uuid.UUID) ([]Result, error) {
	v, err := t.store.GetVersion(ctx, versionID)
	if err != nil {
		return nil, fmt.Errorf("load version: %w", err)
	}
	cases, err := t.store.GetTestCases(ctx, v.PromptID)
	if err != nil {
		return nil, fmt.Errorf("load test cases: %w", err)
	}

	results := make([]Result, 0, len(cases))
	for _, tc := range cases {
		res, err := t.RunTest(ctx, tc.ID, versionID, true)
		if err != nil {
			return nil, err
		}
		results = append(results, *res)
	}
	return results, nil
}

// Comparison is the outcome of running one test case's input through several
// versions and asking the judge to rank the responses.
type Comparison struct {
	TestCaseID uuid.UUID              `json:"test_case_id"`
	Responses  []rubric.NamedResponse `json:"responses"`
	Verdict    string                 `json:"verdict"`
	Skipped    []uuid.UUID            `json:"skipped,omitempty"`
}

// CompareVersions runs the test case's input through each version and has
// the judge rank the outputs against its criteria. A version or test case
// that cannot be loaded mid-loop, or a version that fails to respond, skips
// that one iteration; only zero survivors is an error.
func (t *Tester) CompareVersions(ctx context.Context, versionIDs []uuid.UUID, testCaseID uuid.UUID) (*Comparison, error) {
	cmp := &Comparison{TestCaseID: testCaseID}
	var criteria string
	for _, id := range versionIDs {
		v, err := t.store.GetVersion(ctx, id)
		if err != nil {
			t.logger.Warn("skipping version in comparison", "version_id", id, "error", err)
			cmp.Skipped = append(cmp.Skipped, id)
			continue
		}
		tc, err := t.store.GetTestCase(ctx, testCaseID)
		if err != nil {
			t.logger.Warn("test case unavailable for comparison target", "version_id", id, "error", err)
			cmp.Skipped = append(cmp.Skipped, id)
			continue
		}
		criteria = tc.EvaluationCriteria

		output, err := t.llm.Complete(ctx, llm.CompletionRequest{
			Prompt:       tc.InputText,
			SystemPrompt: v.Content,
			Model:        t.model,
			MaxTokens:    executionMaxTokens,
		})
		if err != nil {
			t.logger.Warn("version failed to respond in comparison", "version_id", id, "error", err)
			cmp.Skipped = append(cmp.Skipped, id)
			continue
		}

		cmp.Responses = append(cmp.Responses, rubric.NamedResponse{
			Name:      fmt.Sprintf("Version %d", v.Version),
			Response:  output,
			VersionID: v.ID,
		})
	}

	if len(cmp.Responses) == 0 {
		return nil, ErrNoValidVersions
	}

	verdict, err := t.llm.Complete(ctx, llm.CompletionRequest{
		Prompt:      rubric.BuildComparisonPrompt(cmp.Responses, criteria),
		Model:       t.judgeModel,
		MaxTokens:   judgeMaxTokens,
		Temperature: judgeTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("judge comparison: %w", err)
	}
	cmp.Verdict = verdict
	return cmp, nil
}

// Summary aggregates a version's stored test results. Unscored results count
// toward TotalTests but toward neither Passed nor Failed, and are excluded
// from AverageScore.
type Summary struct {
	VersionID    uuid.UUID `json:"version_id"`
	TotalTests   int       `json:"total_tests"`
	Passed       int       `json:"passed"`
	Failed       int       `json:"failed"`
	AverageScore *float64  `json:"average_score,omitempty"`
}

// Summarize computes pass/fail counts and the mean score over a version's
// stored results.
func (t *Tester) Summarize(ctx context.Context, versionID uuid.UUID) (*Summary, error) {
	results, err := t.store.GetTestResults(ctx, versionID)
	if err != nil {
		return nil, fmt.Errorf("load test results: %w", err)
	}

	summary := &Summary{VersionID: versionID, TotalTests: len(results)}
	var sum float64
	var scored int
	for _, r := range results {
		if r.Score == nil {
			continue
		}
		scored++
		sum += *r.Score
		if *r.Score >= PassThreshold {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}
	if scored > 0 {
		avg := sum / float64(scored)
		summary.AverageScore = &avg
	}
	return summary, nil
}

// GenerateReport renders a version's test history as a single text report:
// version metadata, the aggregate summary, and a ~100-character excerpt of
// each output. A pure presentation transform over stored data; no oracle
// calls.
func (t *Tester) GenerateReport(ctx context.Context, versionID uuid.UUID) (string, error) {
	v, err := t.store.GetVersion(ctx, versionID)
	if err != nil {
		return "", fmt.Errorf("load version: %w", err)
	}
	summary, err := t.Summarize(ctx, versionID)
	if err != nil {
		return "", err
	}
	results, err := t.store.GetTestResults(ctx, versionID)
	if err != nil {
		return "", fmt.Errorf("load test results: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Test Report: Version %d\n\n", v.Version)
	fmt.Fprintf(&b, "Version ID: %s\n", v.ID)
	fmt.Fprintf(&b, "Created:    %s\n", v.CreatedAt.Format(time.RFC3339))
	if v.Notes != "" {
		fmt.Fprintf(&b, "Notes:      %s\n", v.Notes)
	}

	fmt.Fprintf(&b, "\n## Summary\n\n")
	fmt.Fprintf(&b, "Total tests: %d\n", summary.TotalTests)
	fmt.Fprintf(&b, "Passed:      %d\n", summary.Passed)
	fmt.Fprintf(&b, "Failed:      %d\n", summary.Failed)
	if summary.AverageScore != nil {
		fmt.Fprintf(&b, "Average:     %.1f\n", *summary.AverageScore)
	} else {
		fmt.Fprintf(&b, "Average:     n/a\n")
	}

	if len(results) > 0 {
		fmt.Fprintf(&b, "\n## Results\n\n")
		for i, r := range results {
			score := "n/a"
			if r.Score != nil {
				score = fmt.Sprintf("%.1f", *r.Score)
			}
			fmt.Fprintf(&b, "%d. score %s: %s\n", i+1, score, excerpt(r.Output))
		}
	}
	return b.String(), nil
}

func excerpt(s string) string {
	runes := []rune(s)
	if len(runes) <= reportOutputExcerpt {
		return s
	}
	return string(runes[:reportOutputExcerpt]) + "..."
}
