package handlers

import (
	"net/http"

	"github.com/empire-labs/chad/internal/api"
)

type HealthHandler struct {
	ragEnabled bool
	chatModel  string
}

func NewHealthHandler(ragEnabled bool, chatModel string) *HealthHandler {
	return &HealthHandler{ragEnabled: ragEnabled, chatModel: chatModel}
}

type HealthResponse struct {
	Status string `json:"status"`
	Model  string `json:"model"`
	RAG    bool   `json:"rag"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	api.JSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Model:  h.chatModel,
		RAG:    h.ragEnabled,
	})
}
