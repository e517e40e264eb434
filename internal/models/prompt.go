package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Prompt is the root entity. Deleting a prompt cascades to its versions,
// their analyses, its test cases, and their results.
type Prompt struct {
	ID             uuid.UUID       `json:"id" db:"id"`
	Name           string          `json:"name" db:"name"`
	Description    string          `json:"description,omitempty" db:"description"`
	CurrentVersion int             `json:"current_version" db:"current_version"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
	Metadata       json.RawMessage `json:"metadata,omitempty" db:"metadata"`
}

// PromptVersion is an immutable snapshot of a prompt's content. Version
// numbers per prompt are contiguous starting at 1 and never reused.
type PromptVersion struct {
	ID        uuid.UUID `json:"id" db:"id"`
	PromptID  uuid.UUID `json:"prompt_id" db:"prompt_id"`
	Version   int       `json:"version" db:"version"`
	Content   string    `json:"content" db:"content"`
	Notes     string    `json:"notes,omitempty" db:"notes"`
	Tags      []string  `json:"tags,omitempty" db:"tags"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// AnalysisResult is one judge pass over a version. Append-only: rows are
// never updated or merged. Score is nil when the judge response carried no
// parseable score line.
type AnalysisResult struct {
	ID           uuid.UUID `json:"id" db:"id"`
	VersionID    uuid.UUID `json:"version_id" db:"version_id"`
	AnalysisType string    `json:"analysis_type" db:"analysis_type"`
	Score        *int      `json:"score,omitempty" db:"score"`
	Content      string    `json:"content" db:"content"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// TestCase is an input/criteria pair owned by a prompt. Immutable after
// creation; deletable independently (cascades to its results).
type TestCase struct {
	ID                 uuid.UUID `json:"id" db:"id"`
	PromptID           uuid.UUID `json:"prompt_id" db:"prompt_id"`
	Name               string    `json:"name" db:"name"`
	InputText          string    `json:"input_text" db:"input_text"`
	ExpectedOutput     *string   `json:"expected_output,omitempty" db:"expected_output"`
	EvaluationCriteria string    `json:"evaluation_criteria" db:"evaluation_criteria"`
	CreatedAt          time.Time `json:"created_at" db:"created_at"`
}

// TestResult links a test case and a version (many-to-many through results).
// Score is a float because the judge may be asked for finer granularity than
// the integer dimension scores.
type TestResult struct {
	ID         uuid.UUID `json:"id" db:"id"`
	TestCaseID uuid.UUID `json:"test_case_id" db:"test_case_id"`
	VersionID  uuid.UUID `json:"version_id" db:"version_id"`
	Output     string    `json:"output" db:"output"`
	Score      *float64  `json:"score,omitempty" db:"score"`
	Evaluation string    `json:"evaluation,omitempty" db:"evaluation"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
