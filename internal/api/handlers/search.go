package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/specwise/specchat/internal/api"
	"github.com/specwise/specchat/internal/domain"
)

type Searcher interface {
	Retrieve(ctx context.Context, specID, query string, k int) ([]domain.ScoredChunk, error)
}

type SearchHandler struct {
	svc Searcher
}

func NewSearchHandler(svc Searcher) *SearchHandler {
	return &SearchHandler{svc: svc}
}

type SearchRequest struct {
	Query  string `json:"query"`
	SpecID string `json:"spec_id,omitempty"`
	TopK   int    `json:"top_k,omitempty"`
}

type SearchResult struct {
	ChunkID string               `json:"chunk_id"`
	SpecID  string               `json:"spec_id"`
	Kind    string               `json:"kind"`
	Text    string               `json:"text"`
	Score   float32              `json:"score"`
	Meta    domain.ChunkMetadata `json:"metadata"`
}

type SearchResponse struct {
	Results []SearchResult `json:"results"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	results, err := h.svc.Retrieve(r.Context(), req.SpecID, req.Query, req.TopK)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	out := make([]SearchResult, len(results))
	for i, sc := range results {
		out[i] = SearchResult{
			ChunkID: sc.Chunk.ID,
			SpecID:  sc.Chunk.SpecID,
			Kind:    string(sc.Chunk.Kind),
			Text:    sc.Chunk.Text,
			Score:   sc.Score,
			Meta:    sc.Chunk.Metadata,
		}
	}

	api.Success(w, http.StatusOK, SearchResponse{Results: out})
}
