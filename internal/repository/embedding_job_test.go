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
	"github.com/mnemo-ai/mnemo/internal/testutil"
)

func newPendingJob(itemID string, createdAt time.Time) *domain.EmbeddingJob {
	return &domain.EmbeddingJob{
		ID:          uuid.NewString(),
		ItemID:      itemID,
		ItemVersion: 1,
		Change:      domain.ChangeKindCreate,
		Status:      domain.EmbeddingJobStatusPending,
		CreatedAt:   createdAt,
	}
}

func TestEmbeddingJobRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewEmbeddingJobRepository(pool)

	job := newPendingJob(uuid.NewString(), time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, repo.Create(ctx, job))

	retrieved, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, job.ItemID, retrieved.ItemID)
	assert.Equal(t, domain.ChangeKindCreate, retrieved.Change)
	assert.Equal(t, domain.EmbeddingJobStatusPending, retrieved.Status)
	assert.Nil(t, retrieved.ProcessedAt)
}

func TestEmbeddingJobRepository_GetByID_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewEmbeddingJobRepository(pool)

	_, err := repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrEmbeddingJobNotFound)
}

func TestEmbeddingJobRepository_ClaimPending(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewEmbeddingJobRepository(pool)

	base := time.Now().UTC().Truncate(time.Microsecond)
	first := newPendingJob(uuid.NewString(), base)
	second := newPendingJob(uuid.NewString(), base.Add(time.Second))
	require.NoError(t, repo.Create(ctx, first))
	require.NoError(t, repo.Create(ctx, second))

	claimed, err := repo.ClaimPending(ctx, 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, first.ID, claimed[0].ID)
	assert.Equal(t, domain.EmbeddingJobStatusProcessing, claimed[0].Status)

	// The claimed job stays invisible to the next claim.
	remaining, err := repo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, second.ID, remaining[0].ID)
}

func TestEmbeddingJobRepository_ClaimPending_Empty(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewEmbeddingJobRepository(pool)

	claimed, err := repo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestEmbeddingJobRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewEmbeddingJobRepository(pool)

	job := newPendingJob(uuid.NewString(), time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, repo.Create(ctx, job))

	require.NoError(t, repo.UpdateStatus(ctx, job.ID, domain.EmbeddingJobStatusCompleted, ""))

	retrieved, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EmbeddingJobStatusCompleted, retrieved.Status)
	require.NotNil(t, retrieved.ProcessedAt)
}

func TestEmbeddingJobRepository_UpdateStatus_Failure(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewEmbeddingJobRepository(pool)

	job := newPendingJob(uuid.NewString(), time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, repo.Create(ctx, job))

	require.NoError(t, repo.UpdateStatus(ctx, job.ID, domain.EmbeddingJobStatusFailed, "provider unavailable"))

	retrieved, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.EmbeddingJobStatusFailed, retrieved.Status)
	assert.Equal(t, "provider unavailable", retrieved.Error)
}

func TestEmbeddingJobRepository_UpdateStatus_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewEmbeddingJobRepository(pool)

	err := repo.UpdateStatus(ctx, uuid.NewString(), domain.EmbeddingJobStatusCompleted, "")
	assert.ErrorIs(t, err, ErrEmbeddingJobNotFound)
}

func TestEmbeddingJobRepository_IncrementRetries(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewEmbeddingJobRepository(pool)

	job := newPendingJob(uuid.NewString(), time.Now().UTC().Truncate(time.Microsecond))
	require.NoError(t, repo.Create(ctx, job))

	require.NoError(t, repo.IncrementRetries(ctx, job.ID))
	require.NoError(t, repo.IncrementRetries(ctx, job.ID))

	retrieved, err := repo.GetByID(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, retrieved.Retries)
}

func TestEmbeddingJobRepository_CountPending(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewEmbeddingJobRepository(pool)

	now := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, repo.Create(ctx, newPendingJob(uuid.NewString(), now)))
	require.NoError(t, repo.Create(ctx, newPendingJob(uuid.NewString(), now)))

	done := newPendingJob(uuid.NewString(), now)
	require.NoError(t, repo.Create(ctx, done))
	require.NoError(t, repo.UpdateStatus(ctx, done.ID, domain.EmbeddingJobStatusCompleted, ""))

	count, err := repo.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}
