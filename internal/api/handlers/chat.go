package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/empire-labs/chad/internal/api"
	"github.com/empire-labs/chad/internal/service"
)

// DebugSourcesHeader asks for the grounding source list in the reply.
// It is honored only when DebugAdminHeader carries the admin key.
const (
	DebugSourcesHeader = "x-debug-sources"
	DebugAdminHeader   = "x-admin-key"
)

type ChatService interface {
	Handle(ctx context.Context, input service.ChatInput) (*service.ChatOutput, error)
}

type ChatHandler struct {
	svc      ChatService
	adminKey string
}

func NewChatHandler(svc ChatService, adminKey string) *ChatHandler {
	return &ChatHandler{svc: svc, adminKey: adminKey}
}

type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

type ChatResponse struct {
	Reply     string   `json:"reply"`
	SessionID string   `json:"session_id"`
	Sources   []string `json:"sources,omitempty"`
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Message) == "" {
		api.Error(w, http.StatusBadRequest, "message is required")
		return
	}

	out, err := h.svc.Handle(r.Context(), service.ChatInput{
		Message:        req.Message,
		SessionID:      req.SessionID,
		IncludeSources: h.debugSourcesRequested(r),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusOK, ChatResponse{
		Reply:     out.Reply,
		SessionID: out.SessionID,
		Sources:   out.Sources,
	})
}

func (h *ChatHandler) debugSourcesRequested(r *http.Request) bool {
	if h.adminKey == "" {
		return false
	}
	switch strings.ToLower(r.Header.Get(DebugSourcesHeader)) {
	case "1", "true", "yes":
	default:
		return false
	}
	presented := r.Header.Get(DebugAdminHeader)
	return subtle.ConstantTimeCompare([]byte(presented), []byte(h.adminKey)) == 1
}
