package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/promptlab/promptlab/internal/models"
)

// Postgres is the pgx-backed store. Every operation is a single implicit or
// explicit transaction; the ON DELETE CASCADE constraints in the schema
// enforce the ownership graph.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

const promptCols = "id, name, description, current_version, created_at, updated_at, metadata"
const versionCols = "id, prompt_id, version, content, notes, tags, created_at"

func (s *Postgres) CreatePrompt(ctx context.Context, name, description, content string) (*models.Prompt, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var p models.Prompt
	err = tx.QueryRow(ctx,
		`INSERT INTO prompts (name, description, current_version)
		 VALUES ($1, $2, 1)
		 RETURNING `+promptCols,
		name, description,
	).Scan(&p.ID, &p.Name, &p.Description, &p.CurrentVersion, &p.CreatedAt, &p.UpdatedAt, &p.Metadata)
	if err != nil {
		return nil, fmt.Errorf("insert prompt: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO prompt_versions (prompt_id, version, content) VALUES ($1, 1, $2)`,
		p.ID, content,
	)
	if err != nil {
		return nil, fmt.Errorf("insert initial version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &p, nil
}

func (s *Postgres) GetPrompt(ctx context.Context, id uuid.UUID) (*models.Prompt, error) {
	var p models.Prompt
	err := s.db.QueryRow(ctx,
		`SELECT `+promptCols+` FROM prompts WHERE id = $1`, id,
	).Scan(&p.ID, &p.Name, &p.Description, &p.CurrentVersion, &p.CreatedAt, &p.UpdatedAt, &p.Metadata)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get prompt: %w", err)
	}
	return &p, nil
}

func (s *Postgres) ListPrompts(ctx context.Context) ([]models.Prompt, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+promptCols+` FROM prompts ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	defer rows.Close()

	var prompts []models.Prompt
	for rows.Next() {
		var p models.Prompt
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.CurrentVersion, &p.CreatedAt, &p.UpdatedAt, &p.Metadata); err != nil {
			return nil, fmt.Errorf("scan prompt: %w", err)
		}
		prompts = append(prompts, p)
	}
	return prompts, rows.Err()
}

func (s *Postgres) UpdatePrompt(ctx context.Context, id uuid.UUID, fields UpdatePromptFields) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE prompts SET
			name = COALESCE($2, name),
			description = COALESCE($3, description),
			metadata = COALESCE($4, metadata),
			updated_at = now()
		 WHERE id = $1`,
		id, fields.Name, fields.Description, fields.Metadata,
	)
	if err != nil {
		return fmt.Errorf("update prompt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) DeletePrompt(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM prompts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete prompt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) CreateVersion(ctx context.Context, promptID uuid.UUID, content, notes string, tags []string) (*models.PromptVersion, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Row lock serializes concurrent allocations for the same prompt so
	// version numbers stay contiguous.
	var currentVersion int
	err = tx.QueryRow(ctx,
		`SELECT current_version FROM prompts WHERE id = $1 FOR UPDATE`, promptID,
	).Scan(&currentVersion)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get current version: %w", err)
	}

	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("marshal tags: %w", err)
	}

	newVersion := currentVersion + 1
	var v models.PromptVersion
	var rawTags []byte
	err = tx.QueryRow(ctx,
		`INSERT INTO prompt_versions (prompt_id, version, content, notes, tags)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING `+versionCols,
		promptID, newVersion, content, notes, tagsJSON,
	).Scan(&v.ID, &v.PromptID, &v.Version, &v.Content, &v.Notes, &rawTags, &v.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert version: %w", err)
	}
	if err := json.Unmarshal(rawTags, &v.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE prompts SET current_version = $1, updated_at = now() WHERE id = $2`,
		newVersion, promptID,
	)
	if err != nil {
		return nil, fmt.Errorf("update current version: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &v, nil
}

func (s *Postgres) scanVersion(row pgx.Row) (*models.PromptVersion, error) {
	var v models.PromptVersion
	var rawTags []byte
	err := row.Scan(&v.ID, &v.PromptID, &v.Version, &v.Content, &v.Notes, &rawTags, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan version: %w", err)
	}
	if err := json.Unmarshal(rawTags, &v.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	return &v, nil
}

func (s *Postgres) GetVersion(ctx context.Context, id uuid.UUID) (*models.PromptVersion, error) {
	return s.scanVersion(s.db.QueryRow(ctx,
		`SELECT `+versionCols+` FROM prompt_versions WHERE id = $1`, id))
}

func (s *Postgres) GetCurrentVersion(ctx context.Context, promptID uuid.UUID) (*models.PromptVersion, error) {
	return s.scanVersion(s.db.QueryRow(ctx,
		`SELECT `+versionCols+` FROM prompt_versions
		 WHERE prompt_id = $1
		   AND version = (SELECT current_version FROM prompts WHERE id = $1)`,
		promptID))
}

func (s *Postgres) ListVersions(ctx context.Context, promptID uuid.UUID) ([]models.PromptVersion, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+versionCols+` FROM prompt_versions
		 WHERE prompt_id = $1 ORDER BY version DESC`,
		promptID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var versions []models.PromptVersion
	for rows.Next() {
		v, err := s.scanVersion(rows)
		if err != nil {
			return nil, err
		}
		v.Content = previewContent(v.Content)
		versions = append(versions, *v)
	}
	return versions, rows.Err()
}

func (s *Postgres) SaveAnalysis(ctx context.Context, versionID uuid.UUID, analysisType, content string, score *int) (*models.AnalysisResult, error) {
	var a models.AnalysisResult
	err := s.db.QueryRow(ctx,
		`INSERT INTO analysis_results (version_id, analysis_type, score, content)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, version_id, analysis_type, score, content, created_at`,
		versionID, analysisType, score, content,
	).Scan(&a.ID, &a.VersionID, &a.AnalysisType, &a.Score, &a.Content, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert analysis: %w", err)
	}
	return &a, nil
}

func (s *Postgres) GetAnalyses(ctx context.Context, versionID uuid.UUID) ([]models.AnalysisResult, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, version_id, analysis_type, score, content, created_at
		 FROM analysis_results WHERE version_id = $1 ORDER BY created_at DESC`,
		versionID)
	if err != nil {
		return nil, fmt.Errorf("get analyses: %w", err)
	}
	defer rows.Close()

	var analyses []models.AnalysisResult
	for rows.Next() {
		var a models.AnalysisResult
		if err := rows.Scan(&a.ID, &a.VersionID, &a.AnalysisType, &a.Score, &a.Content, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
		}
		analyses = append(analyses, a)
	}
	return analyses, rows.Err()
}

func (s *Postgres) CreateTestCase(ctx context.Context, promptID uuid.UUID, name, inputText, criteria string, expected *string) (*models.TestCase, error) {
	var tc models.TestCase
	err := s.db.QueryRow(ctx,
		`INSERT INTO test_cases (prompt_id, name, input_text, expected_output, evaluation_criteria)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, prompt_id, name, input_text, expected_output, evaluation_criteria, created_at`,
		promptID, name, inputText, expected, criteria,
	).Scan(&tc.ID, &tc.PromptID, &tc.Name, &tc.InputText, &tc.ExpectedOutput, &tc.EvaluationCriteria, &tc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert test case: %w", err)
	}
	return &tc, nil
}

func (s *Postgres) GetTestCase(ctx context.Context, id uuid.UUID) (*models.TestCase, error) {
	var tc models.TestCase
	err := s.db.QueryRow(ctx,
		`SELECT id, prompt_id, name, input_text, expected_output, evaluation_criteria, created_at
		 FROM test_cases WHERE id = $1`, id,
	).Scan(&tc.ID, &tc.PromptID, &tc.Name, &tc.InputText, &tc.ExpectedOutput, &tc.EvaluationCriteria, &tc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get test case: %w", err)
	}
	return &tc, nil
}

func (s *Postgres) GetTestCases(ctx context.Context, promptID uuid.UUID) ([]models.TestCase, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, prompt_id, name, input_text, expected_output, evaluation_criteria, created_at
		 FROM test_cases WHERE prompt_id = $1 ORDER BY created_at`,
		promptID)
	if err != nil {
		return nil, fmt.Errorf("get test cases: %w", err)
	}
	defer rows.Close()

	var cases []models.TestCase
	for rows.Next() {
		var tc models.TestCase
		if err := rows.Scan(&tc.ID, &tc.PromptID, &tc.Name, &tc.InputText, &tc.ExpectedOutput, &tc.EvaluationCriteria, &tc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan test case: %w", err)
		}
		cases = append(cases, tc)
	}
	return cases, rows.Err()
}

func (s *Postgres) DeleteTestCase(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM test_cases WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete test case: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) SaveTestResult(ctx context.Context, testCaseID, versionID uuid.UUID, output string, score *float64, evaluation string) (*models.TestResult, error) {
	var r models.TestResult
	err := s.db.QueryRow(ctx,
		`INSERT INTO test_results (test_case_id, version_id, output, score, evaluation)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, test_case_id, version_id, output, score, evaluation, created_at`,
		testCaseID, versionID, output, score, evaluation,
	).Scan(&r.ID, &r.TestCaseID, &r.VersionID, &r.Output, &r.Score, &r.Evaluation, &r.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert test result: %w", err)
	}
	return &r, nil
}

func (s *Postgres) GetTestResults(ctx context.Context, versionID uuid.UUID) ([]models.TestResult, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, test_case_id, version_id, output, score, evaluation, created_at
		 FROM test_results WHERE version_id = $1 ORDER BY created_at`,
		versionID)
	if err != nil {
		return nil, fmt.Errorf("get test results: %w", err)
	}
	defer rows.Close()

	var results []models.TestResult
	for rows.Next() {
		var r models.TestResult
		if err := rows.Scan(&r.ID, &r.TestCaseID, &r.VersionID, &r.Output, &r.Score, &r.Evaluation, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan test result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
