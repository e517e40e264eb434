package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/promptlab/promptlab/internal/models"
)

// Memory is a mutex-guarded in-memory store. It backs tests and lets the
// server run without DATABASE_URL; the single mutex also serializes version
// allocation, preserving the contiguous-numbering invariant.
type Memory struct {
	mu sync.Mutex

	prompts     map[uuid.UUID]*models.Prompt
	versions    map[uuid.UUID]*models.PromptVersion
	analyses    map[uuid.UUID]*models.AnalysisResult
	testCases   map[uuid.UUID]*models.TestCase
	testResults map[uuid.UUID]*models.TestResult

	// Insertion order per owner, so listings are deterministic even when
	// timestamps collide.
	versionOrder  map[uuid.UUID][]uuid.UUID // promptID -> version ids
	analysisOrder map[uuid.UUID][]uuid.UUID // versionID -> analysis ids
	caseOrder     map[uuid.UUID][]uuid.UUID // promptID -> test case ids
	resultOrder   map[uuid.UUID][]uuid.UUID // versionID -> result ids
}

func NewMemory() *Memory {
	return &Memory{
		prompts:       make(map[uuid.UUID]*models.Prompt),
		versions:      make(map[uuid.UUID]*models.PromptVersion),
		analyses:      make(map[uuid.UUID]*models.AnalysisResult),
		testCases:     make(map[uuid.UUID]*models.TestCase),
		testResults:   make(map[uuid.UUID]*models.TestResult),
		versionOrder:  make(map[uuid.UUID][]uuid.UUID),
		analysisOrder: make(map[uuid.UUID][]uuid.UUID),
		caseOrder:     make(map[uuid.UUID][]uuid.UUID),
		resultOrder:   make(map[uuid.UUID][]uuid.UUID),
	}
}

func (m *Memory) CreatePrompt(_ context.Context, name, description, content string) (*models.Prompt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	p := &models.Prompt{
		ID:             uuid.New(),
		Name:           name,
		Description:    description,
		CurrentVersion: 1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	m.prompts[p.ID] = p

	v := &models.PromptVersion{
		ID:        uuid.New(),
		PromptID:  p.ID,
		Version:   1,
		Content:   content,
		CreatedAt: now,
	}
	m.versions[v.ID] = v
	m.versionOrder[p.ID] = append(m.versionOrder[p.ID], v.ID)

	cp := *p
	return &cp, nil
}

func (m *Memory) GetPrompt(_ context.Context, id uuid.UUID) (*models.Prompt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.prompts[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *Memory) ListPrompts(_ context.Context) ([]models.Prompt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	prompts := make([]models.Prompt, 0, len(m.prompts))
	for _, p := range m.prompts {
		prompts = append(prompts, *p)
	}
	sort.Slice(prompts, func(i, j int) bool {
		return prompts[i].UpdatedAt.After(prompts[j].UpdatedAt)
	})
	return prompts, nil
}

func (m *Memory) UpdatePrompt(_ context.Context, id uuid.UUID, fields UpdatePromptFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.prompts[id]
	if !ok {
		return ErrNotFound
	}
	if fields.Name != nil {
		p.Name = *fields.Name
	}
	if fields.Description != nil {
		p.Description = *fields.Description
	}
	if fields.Metadata != nil {
		p.Metadata = fields.Metadata
	}
	p.UpdatedAt = time.Now()
	return nil
}

func (m *Memory) DeletePrompt(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.prompts[id]; !ok {
		return ErrNotFound
	}

	for _, vid := range m.versionOrder[id] {
		for _, aid := range m.analysisOrder[vid] {
			delete(m.analyses, aid)
		}
		delete(m.analysisOrder, vid)
		for _, rid := range m.resultOrder[vid] {
			delete(m.testResults, rid)
		}
		delete(m.resultOrder, vid)
		delete(m.versions, vid)
	}
	delete(m.versionOrder, id)

	// Results of this prompt's cases may hang off other prompts' versions;
	// the case cascade has to sweep all version buckets, not just ours.
	doomed := make(map[uuid.UUID]bool, len(m.caseOrder[id]))
	for _, cid := range m.caseOrder[id] {
		doomed[cid] = true
		delete(m.testCases, cid)
	}
	delete(m.caseOrder, id)
	for vid, order := range m.resultOrder {
		kept := order[:0]
		for _, rid := range order {
			if doomed[m.testResults[rid].TestCaseID] {
				delete(m.testResults, rid)
			} else {
				kept = append(kept, rid)
			}
		}
		m.resultOrder[vid] = kept
	}

	delete(m.prompts, id)
	return nil
}

func (m *Memory) CreateVersion(_ context.Context, promptID uuid.UUID, content, notes string, tags []string) (*models.PromptVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.prompts[promptID]
	if !ok {
		return nil, ErrNotFound
	}

	now := time.Now()
	v := &models.PromptVersion{
		ID:        uuid.New(),
		PromptID:  promptID,
		Version:   p.CurrentVersion + 1,
		Content:   content,
		Notes:     notes,
		Tags:      tags,
		CreatedAt: now,
	}
	m.versions[v.ID] = v
	m.versionOrder[promptID] = append(m.versionOrder[promptID], v.ID)

	p.CurrentVersion = v.Version
	p.UpdatedAt = now

	cp := *v
	return &cp, nil
}

func (m *Memory) GetVersion(_ context.Context, id uuid.UUID) (*models.PromptVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.versions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (m *Memory) GetCurrentVersion(_ context.Context, promptID uuid.UUID) (*models.PromptVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.prompts[promptID]
	if !ok {
		return nil, ErrNotFound
	}
	for _, vid := range m.versionOrder[promptID] {
		if v := m.versions[vid]; v.Version == p.CurrentVersion {
			cp := *v
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListVersions(_ context.Context, promptID uuid.UUID) ([]models.PromptVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order := m.versionOrder[promptID]
	versions := make([]models.PromptVersion, 0, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		v := *m.versions[order[i]]
		v.Content = previewContent(v.Content)
		versions = append(versions, v)
	}
	return versions, nil
}

func (m *Memory) SaveAnalysis(_ context.Context, versionID uuid.UUID, analysisType, content string, score *int) (*models.AnalysisResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.versions[versionID]; !ok {
		return nil, ErrNotFound
	}

	a := &models.AnalysisResult{
		ID:           uuid.New(),
		VersionID:    versionID,
		AnalysisType: analysisType,
		Score:        score,
		Content:      content,
		CreatedAt:    time.Now(),
	}
	m.analyses[a.ID] = a
	m.analysisOrder[versionID] = append(m.analysisOrder[versionID], a.ID)

	cp := *a
	return &cp, nil
}

func (m *Memory) GetAnalyses(_ context.Context, versionID uuid.UUID) ([]models.AnalysisResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order := m.analysisOrder[versionID]
	analyses := make([]models.AnalysisResult, 0, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		analyses = append(analyses, *m.analyses[order[i]])
	}
	return analyses, nil
}

func (m *Memory) CreateTestCase(_ context.Context, promptID uuid.UUID, name, inputText, criteria string, expected *string) (*models.TestCase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.prompts[promptID]; !ok {
		return nil, ErrNotFound
	}

	tc := &models.TestCase{
		ID:                 uuid.New(),
		PromptID:           promptID,
		Name:               name,
		InputText:          inputText,
		ExpectedOutput:     expected,
		EvaluationCriteria: criteria,
		CreatedAt:          time.Now(),
	}
	m.testCases[tc.ID] = tc
	m.caseOrder[promptID] = append(m.caseOrder[promptID], tc.ID)

	cp := *tc
	return &cp, nil
}

func (m *Memory) GetTestCase(_ context.Context, id uuid.UUID) (*models.TestCase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	tc, ok := m.testCases[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *tc
	return &cp, nil
}

func (m *Memory) GetTestCases(_ context.Context, promptID uuid.UUID) ([]models.TestCase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order := m.caseOrder[promptID]
	cases := make([]models.TestCase, 0, len(order))
	for _, cid := range order {
		cases = append(cases, *m.testCases[cid])
	}
	return cases, nil
}

func (m *Memory) DeleteTestCase(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tc, ok := m.testCases[id]
	if !ok {
		return ErrNotFound
	}

	// Cascade to the case's results across all versions.
	for vid, order := range m.resultOrder {
		kept := order[:0]
		for _, rid := range order {
			if m.testResults[rid].TestCaseID == id {
				delete(m.testResults, rid)
			} else {
				kept = append(kept, rid)
			}
		}
		m.resultOrder[vid] = kept
	}

	order := m.caseOrder[tc.PromptID]
	for i, cid := range order {
		if cid == id {
			m.caseOrder[tc.PromptID] = append(order[:i], order[i+1:]...)
			break
		}
	}
	delete(m.testCases, id)
	return nil
}

func (m *Memory) SaveTestResult(_ context.Context, testCaseID, versionID uuid.UUID, output string, score *float64, evaluation string) (*models.TestResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.testCases[testCaseID]; !ok {
		return nil, ErrNotFound
	}
	if _, ok := m.versions[versionID]; !ok {
		return nil, ErrNotFound
	}

	r := &models.TestResult{
		ID:         uuid.New(),
		TestCaseID: testCaseID,
		VersionID:  versionID,
		Output:     output,
		Score:      score,
		Evaluation: evaluation,
		CreatedAt:  time.Now(),
	}
	m.testResults[r.ID] = r
	m.resultOrder[versionID] = append(m.resultOrder[versionID], r.ID)

	cp := *r
	return &cp, nil
}

func (m *Memory) GetTestResults(_ context.Context, versionID uuid.UUID) ([]models.TestResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	order := m.resultOrder[versionID]
	results := make([]models.TestResult, 0, len(order))
	for _, rid := range order {
		results = append(results, *m.testResults[rid])
	}
	return results, nil
}
