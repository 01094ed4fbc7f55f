package tools

import (
	"context"
	"encoding/json"

	"github.com/stretchr/testify/mock"

	"github.com/mnemo-ai/mnemo/internal/domain"
	"github.com/mnemo-ai/mnemo/internal/service"
)

type FixedUUIDGen struct {
	ids []string
	i   int
}

func NewFixedUUIDGen(ids ...string) *FixedUUIDGen {
	return &FixedUUIDGen{ids: ids}
}

func (g *FixedUUIDGen) NewString() string {
	id := g.ids[g.i%len(g.ids)]
	g.i++
	return id
}

type MockInvocationStore struct {
	mock.Mock
}

func (m *MockInvocationStore) CreateInvocation(ctx context.Context, inv *domain.ToolInvocation) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

func (m *MockInvocationStore) FinishInvocation(ctx context.Context, inv *domain.ToolInvocation) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

type MockKnowledgeAPI struct {
	mock.Mock
}

func (m *MockKnowledgeAPI) CreateItem(ctx context.Context, input service.CreateItemInput) (*domain.KnowledgeItem, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeItem), args.Error(1)
}

func (m *MockKnowledgeAPI) GetItem(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeItem), args.Error(1)
}

func (m *MockKnowledgeAPI) UpdateItem(ctx context.Context, input service.UpdateItemInput) (*domain.KnowledgeItem, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeItem), args.Error(1)
}

func (m *MockKnowledgeAPI) DeleteItem(ctx context.Context, id string, expectedVersion int64) error {
	args := m.Called(ctx, id, expectedVersion)
	return args.Error(0)
}

func (m *MockKnowledgeAPI) ListItems(ctx context.Context, input service.ListItemsInput) (*service.ListItemsOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListItemsOutput), args.Error(1)
}

type MockSearchAPI struct {
	mock.Mock
}

func (m *MockSearchAPI) Search(ctx context.Context, input service.SearchInput) ([]*service.SearchResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*service.SearchResult), args.Error(1)
}

type MockArchive struct {
	mock.Mock
}

func (m *MockArchive) GenerateDownloadURL(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *MockArchive) DeleteObject(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
