package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/mnemo-ai/mnemo/internal/api"
	"github.com/mnemo-ai/mnemo/internal/domain"
	"github.com/mnemo-ai/mnemo/internal/tools"
)

type ToolDispatcher interface {
	Dispatch(ctx context.Context, toolName string, args json.RawMessage) (*domain.ToolInvocation, error)
}

type ToolSource interface {
	Descriptors() []tools.Descriptor
}

type ToolsHandler struct {
	dispatcher ToolDispatcher
	source     ToolSource
}

func NewToolsHandler(dispatcher ToolDispatcher, source ToolSource) *ToolsHandler {
	return &ToolsHandler{dispatcher: dispatcher, source: source}
}

type ToolDescriptorResponse struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

func (h *ToolsHandler) List(w http.ResponseWriter, r *http.Request) {
	descriptors := h.source.Descriptors()
	responses := make([]*ToolDescriptorResponse, len(descriptors))
	for i, d := range descriptors {
		resp := &ToolDescriptorResponse{Name: d.Name, Description: d.Description}
		if d.InputSchema != nil {
			if data, err := json.Marshal(d.InputSchema); err == nil {
				resp.InputSchema = data
			}
		}
		responses[i] = resp
	}

	api.Success(w, http.StatusOK, map[string]any{"tools": responses})
}

type DispatchRequest struct {
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
}

type InvocationResponse struct {
	ID         string          `json:"id"`
	Tool       string          `json:"tool"`
	Status     string          `json:"status"`
	Result     json.RawMessage `json:"result,omitempty"`
	ErrorKind  string          `json:"error_kind,omitempty"`
	ErrorMsg   string          `json:"error,omitempty"`
	StartedAt  string          `json:"started_at"`
	FinishedAt string          `json:"finished_at,omitempty"`
}

func invocationToResponse(inv *domain.ToolInvocation) *InvocationResponse {
	resp := &InvocationResponse{
		ID:        inv.ID,
		Tool:      inv.ToolName,
		Status:    string(inv.Status),
		Result:    inv.Result,
		ErrorKind: inv.ErrorKind,
		ErrorMsg:  inv.ErrorMsg,
		StartedAt: inv.StartedAt.Format(time.RFC3339),
	}
	if inv.FinishedAt != nil {
		resp.FinishedAt = inv.FinishedAt.Format(time.RFC3339)
	}
	return resp
}

// Dispatch runs one tool call directly, outside an orchestrated turn. The
// invocation record is returned even when the call failed; the HTTP status
// reflects the failure kind.
func (h *ToolsHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var req DispatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Tool == "" {
		api.Error(w, http.StatusBadRequest, "tool is required")
		return
	}

	inv, err := h.dispatcher.Dispatch(r.Context(), req.Tool, req.Arguments)
	if inv == nil {
		api.HandleError(w, err)
		return
	}
	if err != nil {
		api.JSON(w, api.DomainErrorToHTTP(err), map[string]any{
			"error":      err.Error(),
			"invocation": invocationToResponse(inv),
		})
		return
	}

	api.Success(w, http.StatusOK, invocationToResponse(inv))
}
