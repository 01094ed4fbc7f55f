package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mnemo-ai/mnemo/internal/api"
	"github.com/mnemo-ai/mnemo/internal/domain"
	"github.com/mnemo-ai/mnemo/internal/service"
)

type IngestService interface {
	IngestDocument(ctx context.Context, input service.IngestDocumentInput) (*domain.KnowledgeItem, error)
}

type DownloadURLSource interface {
	GenerateDownloadURL(ctx context.Context, key string) (string, error)
}

type DocumentHandler struct {
	ingest    IngestService
	knowledge KnowledgeService
	archive   DownloadURLSource
}

func NewDocumentHandler(ingest IngestService, knowledge KnowledgeService, archive DownloadURLSource) *DocumentHandler {
	return &DocumentHandler{ingest: ingest, knowledge: knowledge, archive: archive}
}

// Ingest accepts a multipart upload, parses it into a document item, and
// queues it for embedding.
func (h *DocumentHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		api.Error(w, http.StatusBadRequest, "file form field is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	var tags []string
	if raw := r.FormValue("tags"); raw != "" {
		for _, tag := range strings.Split(raw, ",") {
			tags = append(tags, strings.TrimSpace(tag))
		}
	}

	item, err := h.ingest.IngestDocument(r.Context(), service.IngestDocumentInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
		Tags:        tags,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, itemToResponse(item))
}

type DownloadURLResponse struct {
	DownloadURL string `json:"download_url"`
}

func (h *DocumentHandler) GetDownloadURL(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	item, err := h.knowledge.GetItem(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	if item.Kind != domain.ItemKindDocument {
		api.Error(w, http.StatusBadRequest, "item is not a document")
		return
	}

	key := item.Metadata[domain.MetaStorageKey]
	if key == "" || h.archive == nil {
		api.Error(w, http.StatusNotFound, "document has no archived file")
		return
	}

	url, err := h.archive.GenerateDownloadURL(r.Context(), key)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, DownloadURLResponse{DownloadURL: url})
}
