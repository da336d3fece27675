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

	"github.com/specwise/specchat/internal/domain"
	"github.com/specwise/specchat/internal/service"
)

type MockSpecService struct {
	mock.Mock
}

func (m *MockSpecService) Ingest(ctx context.Context, raw []byte, format domain.SpecFormat) (*service.IngestResult, error) {
	args := m.Called(ctx, raw, format)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.IngestResult), args.Error(1)
}

func (m *MockSpecService) Get(ctx context.Context, specID string) (*domain.Specification, error) {
	args := m.Called(ctx, specID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Specification), args.Error(1)
}

func (m *MockSpecService) List(ctx context.Context) ([]*domain.Specification, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Specification), args.Error(1)
}

func (m *MockSpecService) Remove(ctx context.Context, specID string) error {
	args := m.Called(ctx, specID)
	return args.Error(0)
}

func (m *MockSpecService) Export(ctx context.Context, specID string) ([]byte, *domain.Specification, error) {
	args := m.Called(ctx, specID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).([]byte), args.Get(1).(*domain.Specification), args.Error(2)
}

func newTestSpec() *domain.Specification {
	return &domain.Specification{
		ID:         "spec-123",
		Title:      "Petstore",
		Version:    "1.0.0",
		Format:     domain.SpecFormatJSON,
		SizeBytes:  512,
		ChunkCount: 3,
		CreatedAt:  time.Now().UTC(),
	}
}

func requestWithURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestSpecHandler_Upload_Success(t *testing.T) {
	mockSvc := new(MockSpecService)
	handler := NewSpecHandler(mockSvc)

	mockSvc.On("Ingest", mock.Anything, mock.Anything, domain.SpecFormatJSON).Return(&service.IngestResult{
		SpecID:     "spec-123",
		Title:      "Petstore",
		Version:    "1.0.0",
		Format:     domain.SpecFormatJSON,
		SizeBytes:  512,
		ChunkCount: 3,
	}, nil)

	body := `{"openapi":"3.0.0","info":{"title":"Petstore","version":"1.0.0"},"paths":{}}`
	req := httptest.NewRequest(http.MethodPost, "/specs", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		Data IngestResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "spec-123", resp.Data.ID)
	assert.Equal(t, 3, resp.Data.ChunkCount)
	mockSvc.AssertExpectations(t)
}

func TestSpecHandler_Upload_EmptyBody(t *testing.T) {
	handler := NewSpecHandler(new(MockSpecService))

	req := httptest.NewRequest(http.MethodPost, "/specs", bytes.NewReader(nil))
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSpecHandler_Upload_InvalidFormatParam(t *testing.T) {
	handler := NewSpecHandler(new(MockSpecService))

	req := httptest.NewRequest(http.MethodPost, "/specs?format=xml", bytes.NewReader([]byte("x")))
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSpecHandler_Upload_NotOpenAPI(t *testing.T) {
	mockSvc := new(MockSpecService)
	handler := NewSpecHandler(mockSvc)

	mockSvc.On("Ingest", mock.Anything, mock.Anything, mock.Anything).Return(nil, domain.ErrNotOpenAPI)

	req := httptest.NewRequest(http.MethodPost, "/specs", bytes.NewReader([]byte(`{"foo":1}`)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	handler.Upload(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSpecHandler_Get_Success(t *testing.T) {
	mockSvc := new(MockSpecService)
	handler := NewSpecHandler(mockSvc)

	mockSvc.On("Get", mock.Anything, "spec-123").Return(newTestSpec(), nil)

	req := httptest.NewRequest(http.MethodGet, "/specs/spec-123", nil)
	req = requestWithURLParam(req, "id", "spec-123")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data SpecResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Petstore", resp.Data.Title)
}

func TestSpecHandler_Get_NotFound(t *testing.T) {
	mockSvc := new(MockSpecService)
	handler := NewSpecHandler(mockSvc)

	mockSvc.On("Get", mock.Anything, "missing").Return(nil, domain.ErrSpecNotFound)

	req := httptest.NewRequest(http.MethodGet, "/specs/missing", nil)
	req = requestWithURLParam(req, "id", "missing")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSpecHandler_List_Success(t *testing.T) {
	mockSvc := new(MockSpecService)
	handler := NewSpecHandler(mockSvc)

	mockSvc.On("List", mock.Anything).Return([]*domain.Specification{newTestSpec()}, nil)

	req := httptest.NewRequest(http.MethodGet, "/specs", nil)
	w := httptest.NewRecorder()

	handler.List(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data SpecListResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Items, 1)
	assert.Equal(t, "spec-123", resp.Data.Items[0].ID)
}

func TestSpecHandler_Delete_Success(t *testing.T) {
	mockSvc := new(MockSpecService)
	handler := NewSpecHandler(mockSvc)

	mockSvc.On("Remove", mock.Anything, "spec-123").Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/specs/spec-123", nil)
	req = requestWithURLParam(req, "id", "spec-123")
	w := httptest.NewRecorder()

	handler.Delete(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestSpecHandler_Delete_NotFound(t *testing.T) {
	mockSvc := new(MockSpecService)
	handler := NewSpecHandler(mockSvc)

	mockSvc.On("Remove", mock.Anything, "missing").Return(domain.ErrSpecNotFound)

	req := httptest.NewRequest(http.MethodDelete, "/specs/missing", nil)
	req = requestWithURLParam(req, "id", "missing")
	w := httptest.NewRecorder()

	handler.Delete(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSpecHandler_Export_Success(t *testing.T) {
	mockSvc := new(MockSpecService)
	handler := NewSpecHandler(mockSvc)

	raw := []byte(`{"openapi":"3.0.0"}`)
	mockSvc.On("Export", mock.Anything, "spec-123").Return(raw, newTestSpec(), nil)

	req := httptest.NewRequest(http.MethodGet, "/specs/spec-123/export", nil)
	req = requestWithURLParam(req, "id", "spec-123")
	w := httptest.NewRecorder()

	handler.Export(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, raw, w.Body.Bytes())
}
