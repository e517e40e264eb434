// Package analyzer scores prompt content on fixed quality dimensions by
// sending meta-prompts to an LLM judge and parsing the scored replies.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/promptlab/promptlab/internal/llm"
	"github.com/promptlab/promptlab/internal/rubric"
	"github.com/promptlab/promptlab/internal/store"
)

const (
	analysisMaxTokens   = 2048
	analysisTemperature = 0.3
)

type Analyzer struct {
	llm    llm.Completer
	store  store.Store
	model  string
	logger *slog.Logger
}

func New(completer llm.Completer, st store.Store, model string, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		llm:    completer,
		store:  st,
		model:  model,
		logger: logger,
	}
}

// Analysis is one judge verdict on one dimension. Score is nil when the
// judge's reply carried no parseable score line; the narrative Content is
// still valuable on its own.
type Analysis struct {
	Dimension rubric.Dimension `json:"dimension"`
	Score     *int             `json:"score,omitempty"`
	Content   string           `json:"content"`
}

// AnalyzeDimension runs a single-dimension analysis of content. When
// versionID is set the result is persisted against that version; pass nil
// for ad-hoc analysis of unsaved text.
func (a *Analyzer) AnalyzeDimension(ctx context.Context, content string, dim rubric.Dimension, versionID *uuid.UUID) (*Analysis, error) {
	prompt := rubric.BuildAnalysisPrompt(content, dim)

	reply, err := a.llm.Complete(ctx, llm.CompletionRequest{
		Prompt:      prompt,
		Model:       a.model,
		MaxTokens:   analysisMaxTokens,
		Temperature: analysisTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", dim, err)
	}

	score := rubric.ExtractScore(reply, dim.ScorePattern())
	if score == nil {
		a.logger.Warn("analysis reply carried no score", "dimension", dim)
	}

	if versionID != nil {
		if _, err := a.store.SaveAnalysis(ctx, *versionID, string(dim), reply, score); err != nil {
			return nil, fmt.Errorf("save %s analysis: %w", dim, err)
		}
	}

	return &Analysis{Dimension: dim, Score: score, Content: reply}, nil
}

// AnalyzeAll runs every dimension in fixed order, sequentially. The first
// oracle or store failure aborts the run; results already persisted stay.
func (a *Analyzer) AnalyzeAll(ctx context.Context, content string, versionID *uuid.UUID) ([]Analysis, error) {
	analyses := make([]Analysis, 0, len(rubric.Dimensions()))
	for _, dim := range rubric.Dimensions() {
		res, err := a.AnalyzeDimension(ctx, content, dim, versionID)
		if err != nil {
			return nil, err
		}
		analyses = append(analyses, *res)
	}
	return analyses, nil
}

// AnalyzeVersion loads the version's full content and runs all dimensions
// against it, persisting each result.
func (a *Analyzer) AnalyzeVersion(ctx context.Context, versionID uuid.UUID) ([]Analysis, error) {
	v, err := a.store.GetVersion(ctx, versionID)
	if err != nil {
		return nil, fmt.Errorf("load version: %w", err)
	}
	return a.AnalyzeAll(ctx, v.Content, &v.ID)
}

// Summary aggregates a version's stored analyses. DimensionScores holds the
// latest scored result per dimension; unscored dimensions are simply absent.
// AverageScore covers the specific dimensions only; general is a composite
// view and is excluded so it cannot double-count the axes it summarizes.
type Summary struct {
	VersionID       uuid.UUID                `json:"version_id"`
	TotalAnalyses   int                      `json:"total_analyses"`
	DimensionScores map[rubric.Dimension]int `json:"dimension_scores"`
	AverageScore    *float64                 `json:"average_score,omitempty"`
}

// Summarize computes the quality summary for a version from its stored
// analyses. AverageScore is nil when no specific dimension has a score.
func (a *Analyzer) Summarize(ctx context.Context, versionID uuid.UUID) (*Summary, error) {
	analyses, err := a.store.GetAnalyses(ctx, versionID)
	if err != nil {
		return nil, fmt.Errorf("load analyses: %w", err)
	}

	summary := &Summary{
		VersionID:       versionID,
		TotalAnalyses:   len(analyses),
		DimensionScores: make(map[rubric.Dimension]int),
	}

	// Analyses arrive newest-first; keep the latest scored result per
	// dimension and skip unscored rows entirely.
	for _, res := range analyses {
		if res.Score == nil {
			continue
		}
		dim := rubric.ParseDimension(res.AnalysisType)
		if _, seen := summary.DimensionScores[dim]; seen {
			continue
		}
		summary.DimensionScores[dim] = *res.Score
	}

	var sum, n int
	for dim, score := range summary.DimensionScores {
		if dim == rubric.General {
			continue
		}
		sum += score
		n++
	}
	if n > 0 {
		avg := float64(sum) / float64(n)
		summary.AverageScore = &avg
	}
	return summary, nil
}
