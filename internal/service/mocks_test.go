package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/mnemo-ai/mnemo/internal/domain"
	"github.com/mnemo-ai/mnemo/internal/pagination"
)

func mustTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return t
}

// FixedUUIDGen returns predetermined IDs in order.
type FixedUUIDGen struct {
	IDs  []string
	next int
}

func (g *FixedUUIDGen) NewString() string {
	if g.next >= len(g.IDs) {
		return "uuid-overflow"
	}
	id := g.IDs[g.next]
	g.next++
	return id
}

type MockItemRepo struct {
	mock.Mock
}

func (m *MockItemRepo) Create(ctx context.Context, item *domain.KnowledgeItem) error {
	return m.Called(ctx, item).Error(0)
}

func (m *MockItemRepo) GetByID(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeItem), args.Error(1)
}

func (m *MockItemRepo) GetByIDs(ctx context.Context, ids []string) ([]*domain.KnowledgeItem, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.KnowledgeItem), args.Error(1)
}

func (m *MockItemRepo) Update(ctx context.Context, item *domain.KnowledgeItem, expectedVersion int64) error {
	return m.Called(ctx, item, expectedVersion).Error(0)
}

func (m *MockItemRepo) Delete(ctx context.Context, id string, expectedVersion int64) error {
	return m.Called(ctx, id, expectedVersion).Error(0)
}

func (m *MockItemRepo) List(ctx context.Context, kind domain.ItemKind, tag string, cursor *pagination.Cursor, limit int) (*pagination.Page[*domain.KnowledgeItem], error) {
	args := m.Called(ctx, kind, tag, cursor, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pagination.Page[*domain.KnowledgeItem]), args.Error(1)
}

func (m *MockItemRepo) TagCounts(ctx context.Context) (map[string]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int), args.Error(1)
}

func (m *MockItemRepo) CountByKind(ctx context.Context) (map[domain.ItemKind]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[domain.ItemKind]int), args.Error(1)
}

type MockEmbeddingJobRepo struct {
	mock.Mock
}

func (m *MockEmbeddingJobRepo) Create(ctx context.Context, job *domain.EmbeddingJob) error {
	return m.Called(ctx, job).Error(0)
}

type MockEmbeddingRepo struct {
	mock.Mock
}

func (m *MockEmbeddingRepo) Upsert(ctx context.Context, rec *domain.EmbeddingRecord) error {
	return m.Called(ctx, rec).Error(0)
}

func (m *MockEmbeddingRepo) Get(ctx context.Context, itemID string) (*domain.EmbeddingRecord, error) {
	args := m.Called(ctx, itemID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EmbeddingRecord), args.Error(1)
}

func (m *MockEmbeddingRepo) Remove(ctx context.Context, itemID string) error {
	return m.Called(ctx, itemID).Error(0)
}

func (m *MockEmbeddingRepo) SearchCandidates(ctx context.Context, vector []float32, kinds []domain.ItemKind, limit int) ([]*SearchCandidate, error) {
	args := m.Called(ctx, vector, kinds, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*SearchCandidate), args.Error(1)
}

func (m *MockEmbeddingRepo) UnembeddedCandidates(ctx context.Context, kinds []domain.ItemKind, limit int) ([]*SearchCandidate, error) {
	args := m.Called(ctx, kinds, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*SearchCandidate), args.Error(1)
}

func (m *MockEmbeddingRepo) CountStale(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockConversationRepo struct {
	mock.Mock
}

func (m *MockConversationRepo) AppendTurn(ctx context.Context, turn *domain.ConversationTurn) error {
	return m.Called(ctx, turn).Error(0)
}

func (m *MockConversationRepo) NextTurnID(ctx context.Context, conversationID string) (int64, error) {
	args := m.Called(ctx, conversationID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockConversationRepo) RecentTurns(ctx context.Context, conversationID string, n int) ([]*domain.ConversationTurn, error) {
	args := m.Called(ctx, conversationID, n)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ConversationTurn), args.Error(1)
}

func (m *MockConversationRepo) TurnsSince(ctx context.Context, conversationID string, after int64) ([]*domain.ConversationTurn, error) {
	args := m.Called(ctx, conversationID, after)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ConversationTurn), args.Error(1)
}

func (m *MockConversationRepo) LatestSummaryTurn(ctx context.Context, conversationID string) (*domain.ConversationTurn, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ConversationTurn), args.Error(1)
}

func (m *MockConversationRepo) CountTurns(ctx context.Context, conversationID string) (int, error) {
	args := m.Called(ctx, conversationID)
	return args.Int(0), args.Error(1)
}

func (m *MockConversationRepo) CreateInvocation(ctx context.Context, inv *domain.ToolInvocation) error {
	return m.Called(ctx, inv).Error(0)
}

func (m *MockConversationRepo) FinishInvocation(ctx context.Context, inv *domain.ToolInvocation) error {
	return m.Called(ctx, inv).Error(0)
}

func (m *MockConversationRepo) GetInvocation(ctx context.Context, id string) (*domain.ToolInvocation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ToolInvocation), args.Error(1)
}

func (m *MockConversationRepo) GetInvocationsByIDs(ctx context.Context, ids []string) ([]*domain.ToolInvocation, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ToolInvocation), args.Error(1)
}

type MockEmbeddingClient struct {
	mock.Mock
}

func (m *MockEmbeddingClient) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]float32), args.Error(1)
}

type MockSearchLogRepo struct {
	mock.Mock
}

func (m *MockSearchLogRepo) CreateSearchLog(ctx context.Context, entry SearchLogEntry) (string, error) {
	args := m.Called(ctx, entry)
	return args.String(0), args.Error(1)
}

// fakeTxRunner passes the supplied repositories straight through without a
// real transaction.
type fakeTxRunner struct {
	items         ItemRepositoryInterface
	jobs          EmbeddingJobRepositoryInterface
	embeddings    EmbeddingRepositoryInterface
	conversations ConversationRepositoryInterface
}

func (f *fakeTxRunner) WithTx(ctx context.Context, fn func(repos TxRepositories) error) error {
	return fn(f)
}

func (f *fakeTxRunner) Items() ItemRepositoryInterface                 { return f.items }
func (f *fakeTxRunner) EmbeddingJobs() EmbeddingJobRepositoryInterface { return f.jobs }
func (f *fakeTxRunner) Embeddings() EmbeddingRepositoryInterface       { return f.embeddings }
func (f *fakeTxRunner) Conversations() ConversationRepositoryInterface { return f.conversations }
