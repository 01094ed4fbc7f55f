package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mnemo-ai/mnemo/internal/api"
	"github.com/mnemo-ai/mnemo/internal/domain"
	"github.com/mnemo-ai/mnemo/internal/service"
)

type KnowledgeService interface {
	CreateItem(ctx context.Context, input service.CreateItemInput) (*domain.KnowledgeItem, error)
	GetItem(ctx context.Context, id string) (*domain.KnowledgeItem, error)
	UpdateItem(ctx context.Context, input service.UpdateItemInput) (*domain.KnowledgeItem, error)
	DeleteItem(ctx context.Context, id string, expectedVersion int64) error
	ListItems(ctx context.Context, input service.ListItemsInput) (*service.ListItemsOutput, error)
	TagCounts(ctx context.Context) (map[string]int, error)
}

type ItemHandler struct {
	svc KnowledgeService
}

func NewItemHandler(svc KnowledgeService) *ItemHandler {
	return &ItemHandler{svc: svc}
}

type CreateItemRequest struct {
	Kind     string            `json:"kind"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Tags     []string          `json:"tags"`
	Metadata map[string]string `json:"metadata"`
}

type UpdateItemRequest struct {
	Version  int64             `json:"version"`
	Title    *string           `json:"title"`
	Body     *string           `json:"body"`
	Tags     []string          `json:"tags"`
	Metadata map[string]string `json:"metadata"`
}

type ItemResponse struct {
	ID        string            `json:"id"`
	Kind      string            `json:"kind"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Tags      []string          `json:"tags"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt string            `json:"created_at"`
	UpdatedAt string            `json:"updated_at"`
	Version   int64             `json:"version"`
}

func itemToResponse(item *domain.KnowledgeItem) *ItemResponse {
	return &ItemResponse{
		ID:        item.ID,
		Kind:      string(item.Kind),
		Title:     item.Title,
		Body:      item.Body,
		Tags:      item.Tags,
		Metadata:  item.Metadata,
		CreatedAt: item.CreatedAt.Format(time.RFC3339),
		UpdatedAt: item.UpdatedAt.Format(time.RFC3339),
		Version:   item.Version,
	}
}

func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Title == "" {
		api.Error(w, http.StatusBadRequest, "title is required")
		return
	}
	kind := domain.ItemKind(req.Kind)
	if !domain.IsValidItemKind(kind) {
		api.Error(w, http.StatusBadRequest, "invalid item kind")
		return
	}

	item, err := h.svc.CreateItem(r.Context(), service.CreateItemInput{
		Kind:     kind,
		Title:    req.Title,
		Body:     req.Body,
		Tags:     req.Tags,
		Metadata: req.Metadata,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, itemToResponse(item))
}

func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	item, err := h.svc.GetItem(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, itemToResponse(item))
}

func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	var req UpdateItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Version <= 0 {
		api.Error(w, http.StatusBadRequest, "version is required")
		return
	}

	item, err := h.svc.UpdateItem(r.Context(), service.UpdateItemInput{
		ItemID:          id,
		ExpectedVersion: req.Version,
		Patch: domain.ItemPatch{
			Title:    req.Title,
			Body:     req.Body,
			Tags:     req.Tags,
			Metadata: req.Metadata,
		},
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, itemToResponse(item))
}

func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	versionStr := r.URL.Query().Get("version")
	version, err := strconv.ParseInt(versionStr, 10, 64)
	if err != nil || version <= 0 {
		api.Error(w, http.StatusBadRequest, "version query parameter is required")
		return
	}

	if err := h.svc.DeleteItem(r.Context(), id, version); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]string{"deleted": id})
}

type ItemListResponse struct {
	Items   []*ItemResponse `json:"items"`
	Cursor  string          `json:"cursor,omitempty"`
	HasMore bool            `json:"has_more"`
}

func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	if kind != "" && !domain.IsValidItemKind(domain.ItemKind(kind)) {
		api.Error(w, http.StatusBadRequest, "invalid item kind")
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	output, err := h.svc.ListItems(r.Context(), service.ListItemsInput{
		Kind:   domain.ItemKind(kind),
		Tag:    r.URL.Query().Get("tag"),
		Cursor: r.URL.Query().Get("cursor"),
		Limit:  limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*ItemResponse, len(output.Items))
	for i, item := range output.Items {
		responses[i] = itemToResponse(item)
	}

	api.Success(w, http.StatusOK, ItemListResponse{
		Items:   responses,
		Cursor:  output.Cursor,
		HasMore: output.HasMore,
	})
}

func (h *ItemHandler) Tags(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.TagCounts(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, map[string]any{"tags": counts})
}
