package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/promptlab/promptlab/internal/llm"
)

type LLMHandler struct {
	gateway llm.Gateway
}

func NewLLMHandler(gw llm.Gateway) *LLMHandler {
	return &LLMHandler{gateway: gw}
}

func (h *LLMHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req llm.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if len(req.Messages) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "messages required"})
		return
	}

	resp, err := h.gateway.Chat(r.Context(), req)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *LLMHandler) Models(w http.ResponseWriter, r *http.Request) {
	models := h.gateway.ListModels()
	writeJSON(w, http.StatusOK, map[string]interface{}{"models": models, "count": len(models)})
}
