package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/promptlab/promptlab/internal/cache"
	"github.com/promptlab/promptlab/internal/queue"
	"github.com/promptlab/promptlab/internal/store"
	"github.com/promptlab/promptlab/internal/tester"
)

type TestHandler struct {
	store  store.Store
	tester *tester.Tester
	cache  *cache.Cache
	queue  *queue.Client
}

func NewTestHandler(st store.Store, t *tester.Tester, c *cache.Cache, q *queue.Client) *TestHandler {
	return &TestHandler{store: st, tester: t, cache: c, queue: q}
}

type createTestCaseRequest struct {
	Name               string  `json:"name"`
	InputText          string  `json:"input_text"`
	ExpectedOutput     *string `json:"expected_output,omitempty"`
	EvaluationCriteria string  `json:"evaluation_criteria"`
}

func (h *TestHandler) CreateCase(w http.ResponseWriter, r *http.Request) {
	promptID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid prompt ID"})
		return
	}

	var req createTestCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Name == "" || req.InputText == "" || req.EvaluationCriteria == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name, input_text and evaluation_criteria required"})
		return
	}

	tc, err := h.store.CreateTestCase(r.Context(), promptID, req.Name, req.InputText, req.EvaluationCriteria, req.ExpectedOutput)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tc)
}

func (h *TestHandler) ListCases(w http.ResponseWriter, r *http.Request) {
	promptID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid prompt ID"})
		return
	}

	cases, err := h.store.GetTestCases(r.Context(), promptID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"test_cases": cases, "count": len(cases)})
}

func (h *TestHandler) DeleteCase(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid test case ID"})
		return
	}

	if err := h.store.DeleteTestCase(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type runCaseRequest struct {
	VersionID string `json:"version_id"`
	Persist   *bool  `json:"persist,omitempty"` // defaults to true
}

func (h *TestHandler) RunCase(w http.ResponseWriter, r *http.Request) {
	caseID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid test case ID"})
		return
	}

	var req runCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	versionID, err := uuid.Parse(req.VersionID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid version_id"})
		return
	}

	persist := req.Persist == nil || *req.Persist
	res, err := h.tester.RunTest(r.Context(), caseID, versionID, persist)
	if err != nil {
		writeError(w, err)
		return
	}
	if persist {
		h.invalidate(r, versionID)
	}
	writeJSON(w, http.StatusOK, res)
}

// RunAll executes the version's whole suite. With ?async=true the run is
// queued and 202 returned.
func (h *TestHandler) RunAll(w http.ResponseWriter, r *http.Request) {
	versionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid version ID"})
		return
	}

	if r.URL.Query().Get("async") == "true" {
		if h.queue == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "async runs unavailable: queue not configured"})
			return
		}
		if _, err := h.store.GetVersion(r.Context(), versionID); err != nil {
			writeError(w, err)
			return
		}
		if err := h.queue.EnqueueTestsRun(queue.TestsRunPayload{VersionID: versionID.String()}); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "version_id": versionID.String()})
		return
	}

	results, err := h.tester.RunAllTests(r.Context(), versionID)
	if err != nil {
		writeError(w, err)
		return
	}
	h.invalidate(r, versionID)
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results, "count": len(results)})
}

func (h *TestHandler) Results(w http.ResponseWriter, r *http.Request) {
	versionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid version ID"})
		return
	}

	results, err := h.store.GetTestResults(r.Context(), versionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results, "count": len(results)})
}

// TestSummary serves the pass/fail aggregate, from cache when possible.
func (h *TestHandler) TestSummary(w http.ResponseWriter, r *http.Request) {
	versionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid version ID"})
		return
	}

	if h.cache != nil {
		var cached tester.Summary
		if err := h.cache.Get(r.Context(), cache.TestSummaryKey(versionID), &cached); err == nil {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	if _, err := h.store.GetVersion(r.Context(), versionID); err != nil {
		writeError(w, err)
		return
	}
	summary, err := h.tester.Summarize(r.Context(), versionID)
	if err != nil {
		writeError(w, err)
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(r.Context(), cache.TestSummaryKey(versionID), summary, cache.SummaryTTL); err != nil {
			slog.Warn("failed to cache test summary", "version_id", versionID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *TestHandler) Report(w http.ResponseWriter, r *http.Request) {
	versionID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid version ID"})
		return
	}

	report, err := h.tester.GenerateReport(r.Context(), versionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"report": report})
}

type compareRequest struct {
	VersionIDs []string `json:"version_ids"`
	TestCaseID string   `json:"test_case_id"`
}

func (h *TestHandler) Compare(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(req.VersionIDs) < 2 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "at least two version_ids required"})
		return
	}
	caseID, err := uuid.Parse(req.TestCaseID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid test_case_id"})
		return
	}

	ids := make([]uuid.UUID, 0, len(req.VersionIDs))
	for _, s := range req.VersionIDs {
		id, err := uuid.Parse(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid version ID: " + s})
			return
		}
		ids = append(ids, id)
	}

	cmp, err := h.tester.CompareVersions(r.Context(), ids, caseID)
	if err != nil {
		if errors.Is(err, tester.ErrNoValidVersions) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cmp)
}

func (h *TestHandler) invalidate(r *http.Request, versionID uuid.UUID) {
	if h.cache == nil {
		return
	}
	if err := h.cache.InvalidateVersion(r.Context(), versionID); err != nil {
		slog.Warn("failed to invalidate summary cache", "version_id", versionID, "error", err)
	}
}
