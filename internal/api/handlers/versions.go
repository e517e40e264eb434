package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/promptlab/promptlab/internal/analyzer"
	"github.com/promptlab/promptlab/internal/cache"
	"github.com/promptlab/promptlab/internal/queue"
	"github.com/promptlab/promptlab/internal/rubric"
	"github.com/promptlab/promptlab/internal/store"
)

type VersionHandler struct {
	store    store.Store
	analyzer *analyzer.Analyzer
	cache    *cache.Cache
	queue    *queue.Client
}

func NewVersionHandler(st store.Store, a *analyzer.Analyzer, c *cache.Cache, q *queue.Client) *VersionHandler {
	return &VersionHandler{store: st, analyzer: a, cache: c, queue: q}
}

func (h *VersionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid version ID"})
		return
	}

	v, err := h.store.GetVersion(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

type analyzeVersionRequest struct {
	Dimension string `json:"dimension,omitempty"` // empty runs all dimensions
}

// Analyze runs dimension analysis against a stored version. With
// ?async=true the full run is queued instead and 202 returned.
func (h *VersionHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid version ID"})
		return
	}

	var req analyzeVersionRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}
	}

	if r.URL.Query().Get("async") == "true" {
		if h.queue == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "async runs unavailable: queue not configured"})
			return
		}
		if _, err := h.store.GetVersion(r.Context(), id); err != nil {
			writeError(w, err)
			return
		}
		if err := h.queue.EnqueueAnalysisRun(queue.AnalysisRunPayload{VersionID: id.String()}); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued", "version_id": id.String()})
		return
	}

	if req.Dimension != "" {
		v, err := h.store.GetVersion(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		res, err := h.analyzer.AnalyzeDimension(r.Context(), v.Content, rubric.ParseDimension(req.Dimension), &v.ID)
		if err != nil {
			writeError(w, err)
			return
		}
		h.invalidate(r, id)
		writeJSON(w, http.StatusOK, res)
		return
	}

	results, err := h.analyzer.AnalyzeVersion(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	h.invalidate(r, id)
	writeJSON(w, http.StatusOK, map[string]interface{}{"analyses": results, "count": len(results)})
}

func (h *VersionHandler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid version ID"})
		return
	}

	analyses, err := h.store.GetAnalyses(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"analyses": analyses, "count": len(analyses)})
}

// Summary serves the aggregated dimension scores, from cache when possible.
func (h *VersionHandler) Summary(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid version ID"})
		return
	}

	if h.cache != nil {
		var cached analyzer.Summary
		if err := h.cache.Get(r.Context(), cache.AnalysisSummaryKey(id), &cached); err == nil {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	if _, err := h.store.GetVersion(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	summary, err := h.analyzer.Summarize(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(r.Context(), cache.AnalysisSummaryKey(id), summary, cache.SummaryTTL); err != nil {
			slog.Warn("failed to cache analysis summary", "version_id", id, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *VersionHandler) invalidate(r *http.Request, id uuid.UUID) {
	if h.cache == nil {
		return
	}
	if err := h.cache.InvalidateVersion(r.Context(), id); err != nil {
		slog.Warn("failed to invalidate summary cache", "version_id", id, "error", err)
	}
}
