package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mnemo-ai/mnemo/internal/domain"
	"github.com/mnemo-ai/mnemo/internal/openai"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingService computes and stores item embeddings. It is driven by the
// background worker consuming change events, never by request handlers.
type EmbeddingService struct {
	client     EmbeddingClient
	itemRepo   ItemRepositoryInterface
	embRepo    EmbeddingRepositoryInterface
	dimensions int
}

// NewEmbeddingService creates a new EmbeddingService instance
func NewEmbeddingService(client EmbeddingClient, itemRepo ItemRepositoryInterface, embRepo EmbeddingRepositoryInterface) *EmbeddingService {
	return &EmbeddingService{
		client:     client,
		itemRepo:   itemRepo,
		embRepo:    embRepo,
		dimensions: openai.DefaultEmbeddingDimensions,
	}
}

// EmbedItem vectorizes the item's current text and upserts the index record
// stamped with the item's version. When the text cannot be vectorized the
// item is stored with a zero vector and the unembedded flag, keeping it
// reachable through tag and recency scoring.
func (s *EmbeddingService) EmbedItem(ctx context.Context, itemID string, itemVersion int64) error {
	item, err := s.itemRepo.GetByID(ctx, itemID)
	if err != nil {
		return err
	}

	// The item moved on since this event was queued. A newer event is
	// already behind us in the queue; skip the wasted API call.
	if item.Version != itemVersion {
		return nil
	}

	text := strings.TrimSpace(item.EmbeddingText())
	now := time.Now().UTC()

	if text == "" {
		return s.embRepo.Upsert(ctx, s.unembeddedRecord(item, now))
	}

	vector, err := s.client.GenerateEmbedding(ctx, text)
	if err != nil {
		if errors.Is(err, openai.ErrEmptyText) {
			return s.embRepo.Upsert(ctx, s.unembeddedRecord(item, now))
		}
		return fmt.Errorf("failed to generate embedding: %w", err)
	}

	return s.embRepo.Upsert(ctx, &domain.EmbeddingRecord{
		ItemID:      item.ID,
		Vector:      vector,
		ItemVersion: item.Version,
		CreatedAt:   now,
	})
}

// RemoveItem drops the index entry after a delete event.
func (s *EmbeddingService) RemoveItem(ctx context.Context, itemID string) error {
	return s.embRepo.Remove(ctx, itemID)
}

func (s *EmbeddingService) unembeddedRecord(item *domain.KnowledgeItem, now time.Time) *domain.EmbeddingRecord {
	return &domain.EmbeddingRecord{
		ItemID:      item.ID,
		Vector:      make([]float32, s.dimensions),
		ItemVersion: item.Version,
		Unembedded:  true,
		CreatedAt:   now,
	}
}
