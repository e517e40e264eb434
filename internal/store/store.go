// Package store owns persistence and referential integrity for prompts,
// versions, analyses, test cases and test results.
package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/promptlab/promptlab/internal/models"
)

// ErrNotFound is returned when a referenced entity does not exist. Callers
// fail fast on it; it is never silently substituted.
var ErrNotFound = errors.New("store: not found")

// listContentPreview is the display truncation applied by ListVersions.
// Full content is always returned by GetVersion/GetCurrentVersion; scoring
// never sees truncated text.
const listContentPreview = 100

// UpdatePromptFields carries the mutable prompt metadata. Nil fields are
// left unchanged.
type UpdatePromptFields struct {
	Name        *string
	Description *string
	Metadata    json.RawMessage
}

// Store is the version store: five entity types, append-only results, and
// transactional version-number allocation.
type Store interface {
	// CreatePrompt creates a prompt together with version 1 holding the
	// initial content.
	CreatePrompt(ctx context.Context, name, description, content string) (*models.Prompt, error)
	GetPrompt(ctx context.Context, id uuid.UUID) (*models.Prompt, error)
	// ListPrompts returns prompts ordered by most recently updated.
	ListPrompts(ctx context.Context) ([]models.Prompt, error)
	UpdatePrompt(ctx context.Context, id uuid.UUID, fields UpdatePromptFields) error
	// DeletePrompt removes the prompt and everything it owns: versions,
	// their analyses, test cases, and their results.
	DeletePrompt(ctx context.Context, id uuid.UUID) error

	// CreateVersion allocates the next sequential version number for the
	// prompt as one atomic read-increment-insert.
	CreateVersion(ctx context.Context, promptID uuid.UUID, content, notes string, tags []string) (*models.PromptVersion, error)
	GetVersion(ctx context.Context, id uuid.UUID) (*models.PromptVersion, error)
	GetCurrentVersion(ctx context.Context, promptID uuid.UUID) (*models.PromptVersion, error)
	// ListVersions returns versions newest-first with content truncated
	// for display.
	ListVersions(ctx context.Context, promptID uuid.UUID) ([]models.PromptVersion, error)

	SaveAnalysis(ctx context.Context, versionID uuid.UUID, analysisType, content string, score *int) (*models.AnalysisResult, error)
	// GetAnalyses returns analyses newest-first.
	GetAnalyses(ctx context.Context, versionID uuid.UUID) ([]models.AnalysisResult, error)

	CreateTestCase(ctx context.Context, promptID uuid.UUID, name, inputText, criteria string, expected *string) (*models.TestCase, error)
	GetTestCase(ctx context.Context, id uuid.UUID) (*models.TestCase, error)
	GetTestCases(ctx context.Context, promptID uuid.UUID) ([]models.TestCase, error)
	DeleteTestCase(ctx context.Context, id uuid.UUID) error

	SaveTestResult(ctx context.Context, testCaseID, versionID uuid.UUID, output string, score *float64, evaluation string) (*models.TestResult, error)
	GetTestResults(ctx context.Context, versionID uuid.UUID) ([]models.TestResult, error)
}

func previewContent(content string) string {
	runes := []rune(content)
	if len(runes) <= listContentPreview {
		return content
	}
	return string(runes[:listContentPreview]) + "..."
}
