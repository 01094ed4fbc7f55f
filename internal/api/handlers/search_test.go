package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mnemo-ai/mnemo/internal/domain"
	"github.com/mnemo-ai/mnemo/internal/service"
)

type MockSearchService struct {
	mock.Mock
}

func (m *MockSearchService) Search(ctx context.Context, input service.SearchInput) ([]*service.SearchResult, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*service.SearchResult), args.Error(1)
}

func TestSearchHandler_Success(t *testing.T) {
	mockSvc := new(MockSearchService)
	handler := NewSearchHandler(mockSvc)
	mockSvc.On("Search", mock.Anything, mock.MatchedBy(func(input service.SearchInput) bool {
		return input.Query == "meeting notes" && len(input.Kinds) == 1
	})).Return([]*service.SearchResult{
		{Item: newTestItem(), Score: 0.83, Similarity: 0.9, Recency: 0.7, TagOverlap: 0, Embedded: true},
	}, nil)

	body := `{"query":"meeting notes","kinds":["note"],"limit":5}`
	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data struct {
			Results []*SearchResultResponse `json:"results"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Results, 1)
	assert.InDelta(t, 0.83, resp.Data.Results[0].Score, 1e-9)
	assert.True(t, resp.Data.Results[0].Embedded)
}

func TestSearchHandler_EmptyQuery(t *testing.T) {
	mockSvc := new(MockSearchService)
	handler := NewSearchHandler(mockSvc)
	mockSvc.On("Search", mock.Anything, mock.Anything).Return(nil, domain.ErrInvalidQuery)

	body := `{"query":""}`
	req := httptest.NewRequest(http.MethodPost, "/search", bytesReader(body))
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchHandler_InvalidKind(t *testing.T) {
	mockSvc := new(MockSearchService)
	handler := NewSearchHandler(mockSvc)

	body := `{"query":"x","kinds":["wiki"]}`
	req := httptest.NewRequest(http.MethodPost, "/search", bytesReader(body))
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}

func bytesReader(s string) *bytes.Reader {
	return bytes.NewReader([]byte(s))
}
