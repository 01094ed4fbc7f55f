package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mnemo-ai/mnemo/internal/domain"
)

func TestDomainErrorToHTTP(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{nil, http.StatusOK},
		{domain.ErrItemNotFound, http.StatusNotFound},
		{domain.ErrUnknownTool, http.StatusNotFound},
		{domain.ErrVersionConflict, http.StatusConflict},
		{domain.ErrDuplicateTool, http.StatusConflict},
		{domain.ErrTurnOutOfOrder, http.StatusConflict},
		{domain.ErrInvalidQuery, http.StatusBadRequest},
		{domain.ErrMissingKindMetadata, http.StatusBadRequest},
		{domain.NewDomainError(domain.ErrCodeSchema, "bad args"), http.StatusBadRequest},
		{domain.ErrToolTimeout, http.StatusGatewayTimeout},
		{errors.New("plain error"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, DomainErrorToHTTP(tt.err), "error: %v", tt.err)
	}
}

func TestDomainErrorToHTTP_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("loading item: %w", domain.ErrItemNotFound)
	assert.Equal(t, http.StatusNotFound, DomainErrorToHTTP(wrapped))
}

func TestHandleError_IncludesCode(t *testing.T) {
	w := httptest.NewRecorder()

	HandleError(w, domain.ErrVersionConflict)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), domain.ErrCodeConflict)
}

func TestSuccessEnvelope(t *testing.T) {
	w := httptest.NewRecorder()

	Success(w, http.StatusCreated, map[string]string{"id": "x"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"data":{"id":"x"}}`, w.Body.String())
}
