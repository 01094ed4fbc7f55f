//go:build integration

package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-ai/mnemo/internal/domain"
	"github.com/mnemo-ai/mnemo/internal/openai"
	"github.com/mnemo-ai/mnemo/internal/testutil"
)

func testVector(seed float32) []float32 {
	vec := make([]float32, openai.DefaultEmbeddingDimensions)
	vec[0] = seed
	vec[1] = 1 - seed
	return vec
}

func TestEmbeddingRepository_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewEmbeddingRepository(pool)

	rec := &domain.EmbeddingRecord{
		ItemID:      uuid.NewString(),
		Vector:      testVector(0.9),
		ItemVersion: 1,
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, repo.Upsert(ctx, rec))

	retrieved, err := repo.Get(ctx, rec.ItemID)
	require.NoError(t, err)
	assert.Equal(t, rec.ItemID, retrieved.ItemID)
	assert.Equal(t, int64(1), retrieved.ItemVersion)
	assert.False(t, retrieved.Unembedded)
	assert.InDelta(t, 0.9, retrieved.Vector[0], 0.0001)
}

func TestEmbeddingRepository_Upsert_StaleVersionIgnored(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewEmbeddingRepository(pool)
	itemID := uuid.NewString()

	current := &domain.EmbeddingRecord{
		ItemID:      itemID,
		Vector:      testVector(0.5),
		ItemVersion: 3,
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, repo.Upsert(ctx, current))

	stale := &domain.EmbeddingRecord{
		ItemID:      itemID,
		Vector:      testVector(0.1),
		ItemVersion: 2,
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, repo.Upsert(ctx, stale))

	retrieved, err := repo.Get(ctx, itemID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), retrieved.ItemVersion)
	assert.InDelta(t, 0.5, retrieved.Vector[0], 0.0001)
}

func TestEmbeddingRepository_Remove(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewEmbeddingRepository(pool)
	itemID := uuid.NewString()

	rec := &domain.EmbeddingRecord{
		ItemID:      itemID,
		Vector:      testVector(0.5),
		ItemVersion: 1,
		CreatedAt:   time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, repo.Upsert(ctx, rec))

	require.NoError(t, repo.Remove(ctx, itemID))
	_, err := repo.Get(ctx, itemID)
	assert.ErrorIs(t, err, domain.ErrEmbeddingNotFound)

	// Removing an item that was never embedded is fine.
	require.NoError(t, repo.Remove(ctx, uuid.NewString()))
}

func TestEmbeddingRepository_SearchCandidates(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	itemRepo := NewItemRepository(pool)
	embRepo := NewEmbeddingRepository(pool)

	near := newStoredItem(domain.ItemKindNote, "Near Match")
	far := newStoredItem(domain.ItemKindNote, "Far Match")
	require.NoError(t, itemRepo.Create(ctx, near))
	require.NoError(t, itemRepo.Create(ctx, far))

	now := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, embRepo.Upsert(ctx, &domain.EmbeddingRecord{
		ItemID: near.ID, Vector: testVector(1.0), ItemVersion: 1, CreatedAt: now,
	}))
	require.NoError(t, embRepo.Upsert(ctx, &domain.EmbeddingRecord{
		ItemID: far.ID, Vector: testVector(0.0), ItemVersion: 1, CreatedAt: now,
	}))

	results, err := embRepo.SearchCandidates(ctx, testVector(1.0), nil, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, near.ID, results[0].Item.ID)
	assert.Greater(t, results[0].Similarity, results[1].Similarity)
	assert.True(t, results[0].Embedded)
}

func TestEmbeddingRepository_SearchCandidates_TiesBrokenByRecency(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	itemRepo := NewItemRepository(pool)
	embRepo := NewEmbeddingRepository(pool)

	base := time.Now().UTC().Truncate(time.Microsecond)
	oldest := newStoredItem(domain.ItemKindNote, "Oldest")
	oldest.UpdatedAt = base.Add(-48 * time.Hour)
	middle := newStoredItem(domain.ItemKindNote, "Middle")
	middle.UpdatedAt = base.Add(-24 * time.Hour)
	newest := newStoredItem(domain.ItemKindNote, "Newest")
	newest.UpdatedAt = base

	for _, item := range []*domain.KnowledgeItem{oldest, middle, newest} {
		require.NoError(t, itemRepo.Create(ctx, item))
		require.NoError(t, embRepo.Upsert(ctx, &domain.EmbeddingRecord{
			ItemID: item.ID, Vector: testVector(1.0), ItemVersion: 1, CreatedAt: base,
		}))
	}

	// Identical vectors: recency decides the order and which rows survive
	// the limit cut.
	results, err := embRepo.SearchCandidates(ctx, testVector(1.0), nil, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, newest.ID, results[0].Item.ID)
	assert.Equal(t, middle.ID, results[1].Item.ID)
}

func TestEmbeddingRepository_SearchCandidates_SkipsStaleEmbedding(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	itemRepo := NewItemRepository(pool)
	embRepo := NewEmbeddingRepository(pool)

	item := newStoredItem(domain.ItemKindNote, "Edited After Embed")
	item.Version = 2
	require.NoError(t, itemRepo.Create(ctx, item))

	require.NoError(t, embRepo.Upsert(ctx, &domain.EmbeddingRecord{
		ItemID: item.ID, Vector: testVector(1.0), ItemVersion: 1,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}))

	results, err := embRepo.SearchCandidates(ctx, testVector(1.0), nil, 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestEmbeddingRepository_UnembeddedCandidates(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	itemRepo := NewItemRepository(pool)
	embRepo := NewEmbeddingRepository(pool)

	embedded := newStoredItem(domain.ItemKindNote, "Embedded")
	fresh := newStoredItem(domain.ItemKindNote, "Fresh")
	require.NoError(t, itemRepo.Create(ctx, embedded))
	require.NoError(t, itemRepo.Create(ctx, fresh))

	require.NoError(t, embRepo.Upsert(ctx, &domain.EmbeddingRecord{
		ItemID: embedded.ID, Vector: testVector(0.5), ItemVersion: 1,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}))

	results, err := embRepo.UnembeddedCandidates(ctx, nil, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, fresh.ID, results[0].Item.ID)
	assert.False(t, results[0].Embedded)
}

func TestEmbeddingRepository_CountStale(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	itemRepo := NewItemRepository(pool)
	embRepo := NewEmbeddingRepository(pool)

	require.NoError(t, itemRepo.Create(ctx, newStoredItem(domain.ItemKindNote, "Stale 1")))
	require.NoError(t, itemRepo.Create(ctx, newStoredItem(domain.ItemKindNote, "Stale 2")))

	count, err := embRepo.CountStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
