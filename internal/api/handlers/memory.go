package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mnemo-ai/mnemo/internal/api"
	"github.com/mnemo-ai/mnemo/internal/domain"
)

type MemoryAPI interface {
	Window(ctx context.Context, conversationID string) ([]*domain.ConversationTurn, error)
}

type MemoryHandler struct {
	svc MemoryAPI
}

func NewMemoryHandler(svc MemoryAPI) *MemoryHandler {
	return &MemoryHandler{svc: svc}
}

type TurnResponse struct {
	TurnID      int64    `json:"turn_id"`
	Role        string   `json:"role"`
	Content     string   `json:"content"`
	Invocations []string `json:"invocations,omitempty"`
	Timestamp   string   `json:"timestamp"`
}

func (h *MemoryHandler) Window(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	if conversationID == "" {
		api.Error(w, http.StatusBadRequest, "conversation ID is required")
		return
	}

	window, err := h.svc.Window(r.Context(), conversationID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	turns := make([]*TurnResponse, len(window))
	for i, turn := range window {
		turns[i] = &TurnResponse{
			TurnID:      turn.TurnID,
			Role:        string(turn.Role),
			Content:     turn.Content,
			Invocations: turn.ToolInvocations,
			Timestamp:   turn.Timestamp.Format(time.RFC3339),
		}
	}

	api.Success(w, http.StatusOK, map[string]any{
		"conversation_id": conversationID,
		"turns":           turns,
	})
}
