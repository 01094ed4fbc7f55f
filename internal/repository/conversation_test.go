//go:build integration

package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-ai/mnemo/internal/domain"
	"github.com/mnemo-ai/mnemo/internal/testutil"
)

func storedTurn(conversationID string, turnID int64, role domain.TurnRole, content string) *domain.ConversationTurn {
	return &domain.ConversationTurn{
		TurnID:          turnID,
		ConversationID:  conversationID,
		Role:            role,
		Content:         content,
		ToolInvocations: []string{},
		Timestamp:       time.Now().UTC().Truncate(time.Microsecond),
	}
}

func TestConversationRepository_AppendTurn(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewConversationRepository(pool)
	convID := uuid.NewString()

	require.NoError(t, repo.AppendTurn(ctx, storedTurn(convID, 1, domain.TurnRoleUser, "hello")))
	require.NoError(t, repo.AppendTurn(ctx, storedTurn(convID, 2, domain.TurnRoleAssistant, "hi there")))

	next, err := repo.NextTurnID(ctx, convID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), next)
}

func TestConversationRepository_AppendTurn_OutOfOrder(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewConversationRepository(pool)
	convID := uuid.NewString()

	require.NoError(t, repo.AppendTurn(ctx, storedTurn(convID, 1, domain.TurnRoleUser, "hello")))

	// Skipping ahead and replaying are both rejected.
	err := repo.AppendTurn(ctx, storedTurn(convID, 5, domain.TurnRoleAssistant, "skip"))
	assert.ErrorIs(t, err, domain.ErrTurnOutOfOrder)

	err = repo.AppendTurn(ctx, storedTurn(convID, 1, domain.TurnRoleAssistant, "replay"))
	assert.ErrorIs(t, err, domain.ErrTurnOutOfOrder)
}

func TestConversationRepository_RecentTurns(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewConversationRepository(pool)
	convID := uuid.NewString()

	for i := int64(1); i <= 5; i++ {
		role := domain.TurnRoleUser
		if i%2 == 0 {
			role = domain.TurnRoleAssistant
		}
		require.NoError(t, repo.AppendTurn(ctx, storedTurn(convID, i, role, "turn")))
	}

	recent, err := repo.RecentTurns(ctx, convID, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, int64(3), recent[0].TurnID)
	assert.Equal(t, int64(5), recent[2].TurnID)
}

func TestConversationRepository_TurnsSince(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewConversationRepository(pool)
	convID := uuid.NewString()

	for i := int64(1); i <= 4; i++ {
		require.NoError(t, repo.AppendTurn(ctx, storedTurn(convID, i, domain.TurnRoleUser, "turn")))
	}

	since, err := repo.TurnsSince(ctx, convID, 2)
	require.NoError(t, err)
	require.Len(t, since, 2)
	assert.Equal(t, int64(3), since[0].TurnID)
	assert.Equal(t, int64(4), since[1].TurnID)
}

func TestConversationRepository_LatestSummaryTurn(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewConversationRepository(pool)
	convID := uuid.NewString()

	summary, err := repo.LatestSummaryTurn(ctx, convID)
	require.NoError(t, err)
	assert.Nil(t, summary)

	require.NoError(t, repo.AppendTurn(ctx, storedTurn(convID, 1, domain.TurnRoleUser, "hello")))
	require.NoError(t, repo.AppendTurn(ctx, storedTurn(convID, 2, domain.TurnRoleSummary, "user said hello")))

	summary, err = repo.LatestSummaryTurn(ctx, convID)
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.Equal(t, int64(2), summary.TurnID)
	assert.Equal(t, "user said hello", summary.Content)
}

func TestConversationRepository_InvocationLifecycle(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewConversationRepository(pool)

	inv := &domain.ToolInvocation{
		ID:        uuid.NewString(),
		ToolName:  "create_note",
		Arguments: json.RawMessage(`{"title":"hi"}`),
		Status:    domain.InvocationStatusPending,
		StartedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, repo.CreateInvocation(ctx, inv))

	finished := time.Now().UTC().Truncate(time.Microsecond)
	inv.Status = domain.InvocationStatusSucceeded
	inv.Result = json.RawMessage(`{"id":"item-1"}`)
	inv.FinishedAt = &finished
	require.NoError(t, repo.FinishInvocation(ctx, inv))

	retrieved, err := repo.GetInvocation(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvocationStatusSucceeded, retrieved.Status)
	assert.JSONEq(t, `{"id":"item-1"}`, string(retrieved.Result))
	require.NotNil(t, retrieved.FinishedAt)
}

func TestConversationRepository_FinishInvocation_FirstWriterWins(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewConversationRepository(pool)

	inv := &domain.ToolInvocation{
		ID:        uuid.NewString(),
		ToolName:  "create_note",
		Arguments: json.RawMessage(`{}`),
		Status:    domain.InvocationStatusPending,
		StartedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, repo.CreateInvocation(ctx, inv))

	finished := time.Now().UTC().Truncate(time.Microsecond)
	inv.Status = domain.InvocationStatusSucceeded
	inv.Result = json.RawMessage(`{"ok":true}`)
	inv.FinishedAt = &finished
	require.NoError(t, repo.FinishInvocation(ctx, inv))

	late := *inv
	late.Status = domain.InvocationStatusFailed
	late.ErrorKind = "timeout"
	require.NoError(t, repo.FinishInvocation(ctx, &late))

	retrieved, err := repo.GetInvocation(ctx, inv.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InvocationStatusSucceeded, retrieved.Status)
	assert.Empty(t, retrieved.ErrorKind)
}

func TestConversationRepository_FinishInvocation_NotFound(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewConversationRepository(pool)

	finished := time.Now().UTC()
	inv := &domain.ToolInvocation{
		ID:         uuid.NewString(),
		Status:     domain.InvocationStatusFailed,
		FinishedAt: &finished,
	}
	err := repo.FinishInvocation(ctx, inv)
	assert.ErrorIs(t, err, domain.ErrInvocationNotFound)
}

func TestConversationRepository_GetInvocationsByIDs(t *testing.T) {
	ctx := context.Background()
	pc := testutil.NewPostgresContainer(ctx, t)
	defer pc.Terminate(ctx)

	pool := testutil.NewTestPool(ctx, t, pc, "../../migrations")
	defer pool.Close()

	repo := NewConversationRepository(pool)

	base := time.Now().UTC().Truncate(time.Microsecond)
	first := &domain.ToolInvocation{
		ID: uuid.NewString(), ToolName: "a", Arguments: json.RawMessage(`{}`),
		Status: domain.InvocationStatusPending, StartedAt: base,
	}
	second := &domain.ToolInvocation{
		ID: uuid.NewString(), ToolName: "b", Arguments: json.RawMessage(`{}`),
		Status: domain.InvocationStatusPending, StartedAt: base.Add(time.Second),
	}
	require.NoError(t, repo.CreateInvocation(ctx, first))
	require.NoError(t, repo.CreateInvocation(ctx, second))

	invs, err := repo.GetInvocationsByIDs(ctx, []string{second.ID, first.ID})
	require.NoError(t, err)
	require.Len(t, invs, 2)
	assert.Equal(t, first.ID, invs[0].ID)
	assert.Equal(t, second.ID, invs[1].ID)

	empty, err := repo.GetInvocationsByIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
