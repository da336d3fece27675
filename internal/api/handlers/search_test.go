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

	"github.com/specwise/specchat/internal/domain"
)

type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Retrieve(ctx context.Context, specID, query string, k int) ([]domain.ScoredChunk, error) {
	args := m.Called(ctx, specID, query, k)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ScoredChunk), args.Error(1)
}

func TestSearchHandler_Success(t *testing.T) {
	mockSvc := new(MockSearcher)
	handler := NewSearchHandler(mockSvc)

	mockSvc.On("Retrieve", mock.Anything, "spec-123", "list pets", 3).Return([]domain.ScoredChunk{
		{
			Chunk: domain.Chunk{
				ID:     "spec-123:path:/pets:get",
				SpecID: "spec-123",
				Kind:   domain.ChunkKindPath,
				Text:   "GET /pets. Lists all pets.",
				Metadata: domain.ChunkMetadata{
					SpecID: "spec-123",
					Kind:   domain.ChunkKindPath,
					Path:   "/pets",
					Method: "get",
				},
			},
			Score: 0.91,
		},
	}, nil)

	body := `{"query":"list pets","spec_id":"spec-123","top_k":3}`
	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data SearchResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Results, 1)
	assert.Equal(t, "spec-123:path:/pets:get", resp.Data.Results[0].ChunkID)
	assert.Equal(t, "/pets", resp.Data.Results[0].Meta.Path)
	assert.InDelta(t, 0.91, float64(resp.Data.Results[0].Score), 0.001)
}

func TestSearchHandler_EmptyQuery(t *testing.T) {
	mockSvc := new(MockSearcher)
	handler := NewSearchHandler(mockSvc)

	mockSvc.On("Retrieve", mock.Anything, "", "", 0).Return(nil, domain.ErrEmptyQuery)

	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchHandler_InvalidBody(t *testing.T) {
	handler := NewSearchHandler(new(MockSearcher))

	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader([]byte(`not json`)))
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSearchHandler_IndexUnavailable(t *testing.T) {
	mockSvc := new(MockSearcher)
	handler := NewSearchHandler(mockSvc)

	mockSvc.On("Retrieve", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, domain.ErrVectorIndexUnavailable)

	body := `{"query":"anything"}`
	req := httptest.NewRequest(http.MethodPost, "/search", bytes.NewReader([]byte(body)))
	w := httptest.NewRecorder()

	handler.Search(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
