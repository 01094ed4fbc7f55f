package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mnemo-ai/mnemo/internal/agent"
	"github.com/mnemo-ai/mnemo/internal/api"
)

type AgentService interface {
	Respond(ctx context.Context, conversationID, userMessage string) (*agent.TurnResult, error)
}

type ChatHandler struct {
	svc AgentService
}

func NewChatHandler(svc AgentService) *ChatHandler {
	return &ChatHandler{svc: svc}
}

type ChatRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

type ChatResponse struct {
	Answer      string   `json:"answer"`
	Invocations []string `json:"invocations,omitempty"`
	Hops        int      `json:"hops"`
	Degraded    bool     `json:"degraded"`
}

func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ConversationID == "" {
		api.Error(w, http.StatusBadRequest, "conversation_id is required")
		return
	}
	if req.Message == "" {
		api.Error(w, http.StatusBadRequest, "message is required")
		return
	}

	result, err := h.svc.Respond(r.Context(), req.ConversationID, req.Message)
	if err != nil {
		if errors.Is(err, agent.ErrTurnCancelled) {
			// 499 is the de-facto client-closed-request status.
			api.Error(w, 499, "turn cancelled")
			return
		}
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, ChatResponse{
		Answer:      result.Answer,
		Invocations: result.Invocations,
		Hops:        result.Hops,
		Degraded:    result.Degraded,
	})
}
