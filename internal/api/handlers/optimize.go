package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/promptlab/promptlab/internal/optimizer"
)

type OptimizeHandler struct {
	optimizer *optimizer.Optimizer
}

func NewOptimizeHandler(o *optimizer.Optimizer) *OptimizeHandler {
	return &OptimizeHandler{optimizer: o}
}

type optimizeRequest struct {
	// Exactly one of VersionID or Content supplies the prompt to improve.
	VersionID string `json:"version_id,omitempty"`
	Content   string `json:"content,omitempty"`
	Focus     string `json:"focus,omitempty"`
	Count     int    `json:"count,omitempty"`
}

func (h *OptimizeHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req optimizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if (req.VersionID == "") == (req.Content == "") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "exactly one of version_id or content required"})
		return
	}

	var variants []string
	var err error
	if req.VersionID != "" {
		id, perr := uuid.Parse(req.VersionID)
		if perr != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid version_id"})
			return
		}
		variants, err = h.optimizer.GenerateForVersion(r.Context(), id, req.Focus, req.Count)
	} else {
		variants, err = h.optimizer.GenerateVariants(r.Context(), req.Content, req.Focus, req.Count)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"variants": variants, "count": len(variants)})
}

type saveVariantRequest struct {
	PromptID string `json:"prompt_id"`
	Content  string `json:"content"`
	Focus    string `json:"focus,omitempty"`
}

// SaveVariant records a chosen variant as the prompt's next version.
func (h *OptimizeHandler) SaveVariant(w http.ResponseWriter, r *http.Request) {
	var req saveVariantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	promptID, err := uuid.Parse(req.PromptID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid prompt_id"})
		return
	}
	if req.Content == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "content required"})
		return
	}

	v, err := h.optimizer.SaveVariant(r.Context(), promptID, req.Content, req.Focus)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, v)
}
