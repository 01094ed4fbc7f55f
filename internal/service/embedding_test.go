package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-ai/mnemo/internal/domain"
)

func TestEmbeddingService_EmbedItem(t *testing.T) {
	client := new(MockEmbeddingClient)
	itemRepo := new(MockItemRepo)
	embRepo := new(MockEmbeddingRepo)
	svc := NewEmbeddingService(client, itemRepo, embRepo)

	item := domain.NewKnowledgeItem("item-1", domain.ItemKindNote, "Title", "Body", []string{"tag"}, nil, mustTime("2026-01-10T10:00:00Z"))
	vector := []float32{0.1, 0.2, 0.3}

	itemRepo.On("GetByID", mock.Anything, "item-1").Return(item, nil)
	client.On("GenerateEmbedding", mock.Anything, "Title\nBody\ntag").Return(vector, nil)
	embRepo.On("Upsert", mock.Anything, mock.MatchedBy(func(rec *domain.EmbeddingRecord) bool {
		return rec.ItemID == "item-1" && rec.ItemVersion == 1 && !rec.Unembedded
	})).Return(nil)

	err := svc.EmbedItem(context.Background(), "item-1", 1)

	require.NoError(t, err)
	client.AssertExpectations(t)
	embRepo.AssertExpectations(t)
}

func TestEmbeddingService_EmbedItem_VersionMovedOn(t *testing.T) {
	client := new(MockEmbeddingClient)
	itemRepo := new(MockItemRepo)
	embRepo := new(MockEmbeddingRepo)
	svc := NewEmbeddingService(client, itemRepo, embRepo)

	item := domain.NewKnowledgeItem("item-1", domain.ItemKindNote, "Title", "Body", nil, nil, mustTime("2026-01-10T10:00:00Z"))
	item.Version = 3

	itemRepo.On("GetByID", mock.Anything, "item-1").Return(item, nil)

	// Event for version 2 is obsolete: no API call, no write.
	err := svc.EmbedItem(context.Background(), "item-1", 2)

	require.NoError(t, err)
	client.AssertNotCalled(t, "GenerateEmbedding", mock.Anything, mock.Anything)
	embRepo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

func TestEmbeddingService_EmbedItem_MissingItem(t *testing.T) {
	client := new(MockEmbeddingClient)
	itemRepo := new(MockItemRepo)
	embRepo := new(MockEmbeddingRepo)
	svc := NewEmbeddingService(client, itemRepo, embRepo)

	itemRepo.On("GetByID", mock.Anything, "gone").Return(nil, domain.ErrItemNotFound)

	err := svc.EmbedItem(context.Background(), "gone", 1)

	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestEmbeddingService_RemoveItem(t *testing.T) {
	embRepo := new(MockEmbeddingRepo)
	svc := NewEmbeddingService(nil, nil, embRepo)

	embRepo.On("Remove", mock.Anything, "item-1").Return(nil)

	require.NoError(t, svc.RemoveItem(context.Background(), "item-1"))
	embRepo.AssertExpectations(t)
}
