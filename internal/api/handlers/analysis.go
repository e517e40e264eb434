package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/promptlab/promptlab/internal/analyzer"
	"github.com/promptlab/promptlab/internal/rubric"
)

// AnalysisHandler scores ad-hoc prompt text that has not been saved yet.
type AnalysisHandler struct {
	analyzer *analyzer.Analyzer
}

func NewAnalysisHandler(a *analyzer.Analyzer) *AnalysisHandler {
	return &AnalysisHandler{analyzer: a}
}

type analyzeRequest struct {
	Content   string `json:"content"`
	Dimension string `json:"dimension,omitempty"` // empty runs all dimensions
}

func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "content required"})
		return
	}

	if req.Dimension != "" {
		res, err := h.analyzer.AnalyzeDimension(r.Context(), req.Content, rubric.ParseDimension(req.Dimension), nil)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}

	results, err := h.analyzer.AnalyzeAll(r.Context(), req.Content, nil)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"analyses": results, "count": len(results)})
}
