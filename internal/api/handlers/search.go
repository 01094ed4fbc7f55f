package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/mnemo-ai/mnemo/internal/api"
	"github.com/mnemo-ai/mnemo/internal/domain"
	"github.com/mnemo-ai/mnemo/internal/service"
)

type SearchService interface {
	Search(ctx context.Context, input service.SearchInput) ([]*service.SearchResult, error)
}

type SearchHandler struct {
	svc SearchService
}

func NewSearchHandler(svc SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

type SearchRequest struct {
	Query string   `json:"query"`
	Kinds []string `json:"kinds"`
	Tags  []string `json:"tags"`
	Limit int      `json:"limit"`
}

type SearchResultResponse struct {
	Item       *ItemResponse `json:"item"`
	Score      float64       `json:"score"`
	Similarity float64       `json:"similarity"`
	Recency    float64       `json:"recency"`
	TagOverlap float64       `json:"tag_overlap"`
	Embedded   bool          `json:"embedded"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	kinds := make([]domain.ItemKind, 0, len(req.Kinds))
	for _, k := range req.Kinds {
		kind := domain.ItemKind(k)
		if !domain.IsValidItemKind(kind) {
			api.Error(w, http.StatusBadRequest, "invalid item kind "+k)
			return
		}
		kinds = append(kinds, kind)
	}

	results, err := h.svc.Search(r.Context(), service.SearchInput{
		Query: req.Query,
		Kinds: kinds,
		Tags:  req.Tags,
		Limit: req.Limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*SearchResultResponse, len(results))
	for i, res := range results {
		responses[i] = &SearchResultResponse{
			Item:       itemToResponse(res.Item),
			Score:      res.Score,
			Similarity: res.Similarity,
			Recency:    res.Recency,
			TagOverlap: res.TagOverlap,
			Embedded:   res.Embedded,
		}
	}

	api.Success(w, http.StatusOK, map[string]any{"results": responses})
}
