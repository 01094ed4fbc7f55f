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
	"github.com/mnemo-ai/mnemo/internal/pagination"
	"github.com/mnemo-ai/mnemo/internal/testutil"
)

func newStoredItem(kind domain.ItemKind, title string) *domain.KnowledgeItem {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.KnowledgeItem{
		ID:        uuid.NewString(),
		Kind:      kind,
		Title:     title,
		Body:      "body of " + title,
		Tags:      []string{"test"},
		Metadata:  map[string]string{},
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
}

func TestItemRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewItemRepository(pool)

	item := newStoredItem(domain.ItemKindNote, "First Note")
	require.NoError(t, repo.Create(ctx, item))

	retrieved, err := repo.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.ID, retrieved.ID)
	assert.Equal(t, domain.ItemKindNote, retrieved.Kind)
	assert.Equal(t, "First Note", retrieved.Title)
	assert.Equal(t, []string{"test"}, retrieved.Tags)
	assert.Equal(t, int64(1), retrieved.Version)
}

func TestItemRepository_GetByID_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewItemRepository(pool)

	_, err := repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestItemRepository_Update(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewItemRepository(pool)

	item := newStoredItem(domain.ItemKindNote, "Original")
	require.NoError(t, repo.Create(ctx, item))

	item.Title = "Updated"
	item.Version = 2
	item.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, repo.Update(ctx, item, 1))

	retrieved, err := repo.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Updated", retrieved.Title)
	assert.Equal(t, int64(2), retrieved.Version)
}

func TestItemRepository_Update_VersionConflict(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewItemRepository(pool)

	item := newStoredItem(domain.ItemKindNote, "Contested")
	require.NoError(t, repo.Create(ctx, item))

	item.Title = "Stale Writer"
	item.Version = 2
	err := repo.Update(ctx, item, 7)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)
}

func TestItemRepository_Update_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewItemRepository(pool)

	item := newStoredItem(domain.ItemKindNote, "Ghost")
	err := repo.Update(ctx, item, 1)
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestItemRepository_Delete(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewItemRepository(pool)

	item := newStoredItem(domain.ItemKindNote, "To Delete")
	require.NoError(t, repo.Create(ctx, item))

	require.NoError(t, repo.Delete(ctx, item.ID, 1))

	_, err := repo.GetByID(ctx, item.ID)
	assert.ErrorIs(t, err, domain.ErrItemNotFound)
}

func TestItemRepository_Delete_VersionConflict(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewItemRepository(pool)

	item := newStoredItem(domain.ItemKindNote, "Guarded")
	require.NoError(t, repo.Create(ctx, item))

	err := repo.Delete(ctx, item.ID, 9)
	assert.ErrorIs(t, err, domain.ErrVersionConflict)

	_, err = repo.GetByID(ctx, item.ID)
	require.NoError(t, err)
}

func TestItemRepository_List_Pagination(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewItemRepository(pool)

	base := time.Now().UTC().Truncate(time.Microsecond)
	for i := 0; i < 5; i++ {
		item := newStoredItem(domain.ItemKindNote, "Note")
		item.UpdatedAt = base.Add(time.Duration(i) * time.Second)
		require.NoError(t, repo.Create(ctx, item))
	}

	page1, err := repo.List(ctx, domain.ItemKindNote, "", nil, 3)
	require.NoError(t, err)
	assert.Len(t, page1.Items, 3)
	assert.True(t, page1.HasMore)
	require.NotEmpty(t, page1.Cursor)

	cursor, err := pagination.Decode(page1.Cursor)
	require.NoError(t, err)

	page2, err := repo.List(ctx, domain.ItemKindNote, "", cursor, 3)
	require.NoError(t, err)
	assert.Len(t, page2.Items, 2)
	assert.False(t, page2.HasMore)

	seen := map[string]bool{}
	for _, it := range append(page1.Items, page2.Items...) {
		assert.False(t, seen[it.ID])
		seen[it.ID] = true
	}
}

func TestItemRepository_List_FilterKindAndTag(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewItemRepository(pool)

	note := newStoredItem(domain.ItemKindNote, "Tagged Note")
	note.Tags = []string{"work"}
	require.NoError(t, repo.Create(ctx, note))

	task := newStoredItem(domain.ItemKindTask, "A Task")
	task.Metadata = map[string]string{domain.MetaDueDate: "2026-03-01", domain.MetaTaskStatus: domain.TaskStatusOpen}
	require.NoError(t, repo.Create(ctx, task))

	page, err := repo.List(ctx, domain.ItemKindNote, "work", nil, 10)
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, note.ID, page.Items[0].ID)
}

func TestItemRepository_TagCounts(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewItemRepository(pool)

	a := newStoredItem(domain.ItemKindNote, "A")
	a.Tags = []string{"work", "urgent"}
	require.NoError(t, repo.Create(ctx, a))

	b := newStoredItem(domain.ItemKindNote, "B")
	b.Tags = []string{"work"}
	require.NoError(t, repo.Create(ctx, b))

	counts, err := repo.TagCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts["work"])
	assert.Equal(t, 1, counts["urgent"])
}

func TestItemRepository_CountByKind(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewItemRepository(pool)

	require.NoError(t, repo.Create(ctx, newStoredItem(domain.ItemKindNote, "N1")))
	require.NoError(t, repo.Create(ctx, newStoredItem(domain.ItemKindNote, "N2")))

	counts, err := repo.CountByKind(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[domain.ItemKindNote])
}
