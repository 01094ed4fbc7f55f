package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-ai/mnemo/internal/domain"
	"github.com/mnemo-ai/mnemo/internal/service"
)

type MockKnowledgeService struct {
	mock.Mock
}

func (m *MockKnowledgeService) CreateItem(ctx context.Context, input service.CreateItemInput) (*domain.KnowledgeItem, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeItem), args.Error(1)
}

func (m *MockKnowledgeService) GetItem(ctx context.Context, id string) (*domain.KnowledgeItem, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeItem), args.Error(1)
}

func (m *MockKnowledgeService) UpdateItem(ctx context.Context, input service.UpdateItemInput) (*domain.KnowledgeItem, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeItem), args.Error(1)
}

func (m *MockKnowledgeService) DeleteItem(ctx context.Context, id string, expectedVersion int64) error {
	args := m.Called(ctx, id, expectedVersion)
	return args.Error(0)
}

func (m *MockKnowledgeService) ListItems(ctx context.Context, input service.ListItemsInput) (*service.ListItemsOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.ListItemsOutput), args.Error(1)
}

func (m *MockKnowledgeService) TagCounts(ctx context.Context) (map[string]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int), args.Error(1)
}

func newTestItem() *domain.KnowledgeItem {
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	return &domain.KnowledgeItem{
		ID:        "item-123",
		Kind:      domain.ItemKindNote,
		Title:     "Test Note",
		Body:      "note body",
		Tags:      []string{"testing"},
		Metadata:  map[string]string{},
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
}

func urlParamRequest(method, url, paramKey, paramValue string, body []byte) *http.Request {
	req := httptest.NewRequest(method, url, bytes.NewReader(body))
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(paramKey, paramValue)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestItemHandler_Create_Success(t *testing.T) {
	mockSvc := new(MockKnowledgeService)
	handler := NewItemHandler(mockSvc)

	mockSvc.On("CreateItem", mock.Anything, mock.MatchedBy(func(input service.CreateItemInput) bool {
		return input.Kind == domain.ItemKindNote && input.Title == "Test Note"
	})).Return(newTestItem(), nil)

	body := `{"kind":"note","title":"Test Note","body":"note body","tags":["testing"]}`
	req := httptest.NewRequest(http.MethodPost, "/items", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		Data ItemResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "item-123", resp.Data.ID)
	assert.Equal(t, int64(1), resp.Data.Version)
}

func TestItemHandler_Create_InvalidKind(t *testing.T) {
	mockSvc := new(MockKnowledgeService)
	handler := NewItemHandler(mockSvc)

	body := `{"kind":"spreadsheet","title":"X"}`
	req := httptest.NewRequest(http.MethodPost, "/items", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "CreateItem", mock.Anything, mock.Anything)
}

func TestItemHandler_Create_MissingKindMetadata(t *testing.T) {
	mockSvc := new(MockKnowledgeService)
	handler := NewItemHandler(mockSvc)
	mockSvc.On("CreateItem", mock.Anything, mock.Anything).Return(nil, domain.ErrMissingKindMetadata)

	body := `{"kind":"task","title":"No due date"}`
	req := httptest.NewRequest(http.MethodPost, "/items", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Create(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestItemHandler_Get_NotFound(t *testing.T) {
	mockSvc := new(MockKnowledgeService)
	handler := NewItemHandler(mockSvc)
	mockSvc.On("GetItem", mock.Anything, "missing").Return(nil, domain.ErrItemNotFound)

	req := urlParamRequest(http.MethodGet, "/items/missing", "id", "missing", nil)
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestItemHandler_Update_VersionConflict(t *testing.T) {
	mockSvc := new(MockKnowledgeService)
	handler := NewItemHandler(mockSvc)
	mockSvc.On("UpdateItem", mock.Anything, mock.MatchedBy(func(input service.UpdateItemInput) bool {
		return input.ItemID == "item-123" && input.ExpectedVersion == 1
	})).Return(nil, domain.ErrVersionConflict)

	body := `{"version":1,"title":"New Title"}`
	req := urlParamRequest(http.MethodPut, "/items/item-123", "id", "item-123", []byte(body))
	w := httptest.NewRecorder()

	handler.Update(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	var resp struct {
		Code string `json:"code"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, domain.ErrCodeConflict, resp.Code)
}

func TestItemHandler_Update_MissingVersion(t *testing.T) {
	mockSvc := new(MockKnowledgeService)
	handler := NewItemHandler(mockSvc)

	body := `{"title":"New Title"}`
	req := urlParamRequest(http.MethodPut, "/items/item-123", "id", "item-123", []byte(body))
	w := httptest.NewRecorder()

	handler.Update(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "UpdateItem", mock.Anything, mock.Anything)
}

func TestItemHandler_Delete_Success(t *testing.T) {
	mockSvc := new(MockKnowledgeService)
	handler := NewItemHandler(mockSvc)
	mockSvc.On("DeleteItem", mock.Anything, "item-123", int64(2)).Return(nil)

	req := urlParamRequest(http.MethodDelete, "/items/item-123?version=2", "id", "item-123", nil)
	w := httptest.NewRecorder()

	handler.Delete(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestItemHandler_Delete_MissingVersion(t *testing.T) {
	mockSvc := new(MockKnowledgeService)
	handler := NewItemHandler(mockSvc)

	req := urlParamRequest(http.MethodDelete, "/items/item-123", "id", "item-123", nil)
	w := httptest.NewRecorder()

	handler.Delete(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestItemHandler_List_Success(t *testing.T) {
	mockSvc := new(MockKnowledgeService)
	handler := NewItemHandler(mockSvc)
	mockSvc.On("ListItems", mock.Anything, mock.MatchedBy(func(input service.ListItemsInput) bool {
		return input.Kind == domain.ItemKindNote && input.Tag == "testing" && input.Limit == 5
	})).Return(&service.ListItemsOutput{
		Items:   []*domain.KnowledgeItem{newTestItem()},
		Cursor:  "next-cursor",
		HasMore: true,
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/items?kind=note&tag=testing&limit=5", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data ItemListResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Items, 1)
	assert.True(t, resp.Data.HasMore)
	assert.Equal(t, "next-cursor", resp.Data.Cursor)
}

func TestItemHandler_Tags(t *testing.T) {
	mockSvc := new(MockKnowledgeService)
	handler := NewItemHandler(mockSvc)
	mockSvc.On("TagCounts", mock.Anything).Return(map[string]int{"work": 3, "home": 1}, nil)

	req := httptest.NewRequest(http.MethodGet, "/tags", nil)
	w := httptest.NewRecorder()

	handler.Tags(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"work":3`)
}
