package handlers

import (
	"context"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/specwise/specchat/internal/api"
	"github.com/specwise/specchat/internal/domain"
	"github.com/specwise/specchat/internal/service"
)

type SpecService interface {
	Ingest(ctx context.Context, raw []byte, format domain.SpecFormat) (*service.IngestResult, error)
	Get(ctx context.Context, specID string) (*domain.Specification, error)
	List(ctx context.Context) ([]*domain.Specification, error)
	Remove(ctx context.Context, specID string) error
	Export(ctx context.Context, specID string) ([]byte, *domain.Specification, error)
}

type SpecHandler struct {
	svc SpecService
}

func NewSpecHandler(svc SpecService) *SpecHandler {
	return &SpecHandler{svc: svc}
}

type SpecResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
	Format      string `json:"format"`
	SizeBytes   int64  `json:"size_bytes"`
	ChunkCount  int    `json:"chunk_count"`
	CreatedAt   string `json:"created_at"`
}

type IngestResponse struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Version       string `json:"version"`
	Description   string `json:"description,omitempty"`
	Format        string `json:"format"`
	SizeBytes     int64  `json:"size_bytes"`
	ChunkCount    int    `json:"chunk_count"`
	SkippedChunks int    `json:"skipped_chunks,omitempty"`
}

func specToResponse(s *domain.Specification) *SpecResponse {
	return &SpecResponse{
		ID:          s.ID,
		Title:       s.Title,
		Version:     s.Version,
		Description: s.Description,
		Format:      string(s.Format),
		SizeBytes:   s.SizeBytes,
		ChunkCount:  s.ChunkCount,
		CreatedAt:   s.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}

// formatFromRequest maps query param or Content-Type to a spec format. An
// empty result means format detection from the document bytes.
func formatFromRequest(r *http.Request) (domain.SpecFormat, bool) {
	if f := r.URL.Query().Get("format"); f != "" {
		switch f {
		case "json":
			return domain.SpecFormatJSON, true
		case "yaml":
			return domain.SpecFormatYAML, true
		default:
			return "", false
		}
	}

	ct := r.Header.Get("Content-Type")
	switch {
	case strings.Contains(ct, "json"):
		return domain.SpecFormatJSON, true
	case strings.Contains(ct, "yaml"), strings.Contains(ct, "yml"):
		return domain.SpecFormatYAML, true
	}
	return "", true
}

func (h *SpecHandler) Upload(w http.ResponseWriter, r *http.Request) {
	format, ok := formatFromRequest(r)
	if !ok {
		api.Error(w, http.StatusBadRequest, "format must be json or yaml")
		return
	}

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		api.Error(w, http.StatusRequestEntityTooLarge, "failed to read request body")
		return
	}
	if len(raw) == 0 {
		api.HandleError(w, domain.ErrEmptySpec)
		return
	}

	result, err := h.svc.Ingest(r.Context(), raw, format)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, &IngestResponse{
		ID:            result.SpecID,
		Title:         result.Title,
		Version:       result.Version,
		Description:   result.Description,
		Format:        string(result.Format),
		SizeBytes:     result.SizeBytes,
		ChunkCount:    result.ChunkCount,
		SkippedChunks: result.SkippedChunks,
	})
}

func (h *SpecHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	spec, err := h.svc.Get(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, specToResponse(spec))
}

type SpecListResponse struct {
	Items []*SpecResponse `json:"items"`
}

func (h *SpecHandler) List(w http.ResponseWriter, r *http.Request) {
	specs, err := h.svc.List(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*SpecResponse, len(specs))
	for i, s := range specs {
		responses[i] = specToResponse(s)
	}

	api.Success(w, http.StatusOK, SpecListResponse{Items: responses})
}

func (h *SpecHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.Remove(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.JSON(w, http.StatusNoContent, nil)
}

func (h *SpecHandler) Export(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	raw, spec, err := h.svc.Export(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	contentType := "application/json"
	if spec.Format == domain.SpecFormatYAML {
		contentType = "application/yaml"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(raw)
}
