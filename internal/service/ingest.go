package service

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/specwise/specchat/internal/chunker"
	"github.com/specwise/specchat/internal/domain"
	"github.com/specwise/specchat/internal/openapi"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
	GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndex stores chunk vectors and payloads. Upsert is idempotent by
// chunk ID; DeleteBySpec cascades by spec ID without enumerating chunk IDs.
type VectorIndex interface {
	Upsert(ctx context.Context, specID string, chunks []domain.Chunk, vectors [][]float32) error
	DeleteBySpec(ctx context.Context, specID string) error
	Search(ctx context.Context, specID string, vector []float32, k int) ([]domain.ScoredChunk, error)
}

// SpecRepositoryInterface defines spec metadata persistence.
type SpecRepositoryInterface interface {
	Create(ctx context.Context, s *domain.Specification) error
	GetByID(ctx context.Context, id string) (*domain.Specification, error)
	List(ctx context.Context) ([]*domain.Specification, error)
	Delete(ctx context.Context, id string) error
}

// SpecStore holds the raw uploaded bytes, content-addressed by spec ID.
// The core treats it as an opaque byte source.
type SpecStore interface {
	Put(ctx context.Context, specID string, raw []byte, contentType string) error
	Get(ctx context.Context, specID string) ([]byte, error)
	Delete(ctx context.Context, specID string) error
}

// IngestResult reports the outcome of one ingestion.
type IngestResult struct {
	SpecID        string
	Title         string
	Version       string
	Description   string
	Format        domain.SpecFormat
	SizeBytes     int64
	ChunkCount    int
	SkippedChunks int
}

// IngestService runs the write path: parse, chunk, embed, upsert, record.
type IngestService struct {
	chunker  *chunker.Chunker
	embedder EmbeddingClient
	index    VectorIndex
	specs    SpecRepositoryInterface
	tx       TxRunner
	store    SpecStore
	pipeline PipelineConfig
}

// NewIngestService creates an IngestService. tx and store may be nil: without
// a TxRunner removal runs as sequential deletes, without a SpecStore raw
// bytes are not retained and export is unavailable.
func NewIngestService(
	ck *chunker.Chunker,
	embedder EmbeddingClient,
	index VectorIndex,
	specs SpecRepositoryInterface,
	tx TxRunner,
	store SpecStore,
	pipeline PipelineConfig,
) *IngestService {
	if pipeline.BatchSize <= 0 {
		pipeline = DefaultPipelineConfig()
	}
	return &IngestService{
		chunker:  ck,
		embedder: embedder,
		index:    index,
		specs:    specs,
		tx:       tx,
		store:    store,
		pipeline: pipeline,
	}
}

// Ingest processes one uploaded specification end to end. A fresh spec ID is
// generated, so re-uploading a document never collides with an earlier copy.
func (s *IngestService) Ingest(ctx context.Context, raw []byte, format domain.SpecFormat) (*IngestResult, error) {
	if format == "" {
		format = openapi.DetectFormat(raw)
	}

	doc, err := openapi.Parse(raw, format)
	if err != nil {
		return nil, err
	}

	specID := uuid.NewString()

	chunks, warnings, err := s.chunker.Chunk(doc, specID)
	if err != nil {
		return nil, err
	}
	for _, w := range warnings {
		log.Printf("chunker: skipped %s: %s (spec %s)", w.Node, w.Reason, specID)
	}

	if s.store != nil {
		contentType := "application/json"
		if format == domain.SpecFormatYAML {
			contentType = "application/yaml"
		}
		if err := s.store.Put(ctx, specID, raw, contentType); err != nil {
			// The index stays usable without the raw copy; only export breaks.
			log.Printf("spec store put failed for %s: %v", specID, err)
		}
	}

	indexed, skipped := s.embedAndUpsert(ctx, specID, chunks)
	if indexed == 0 && len(chunks) > 0 {
		return nil, domain.NewDomainError(domain.ErrCodeTransient, "failed to index any chunks")
	}
	if skipped > 0 {
		log.Printf("ingestion of %s skipped %d of %d chunks", specID, skipped, len(chunks))
	}

	spec := domain.NewSpecification(specID, format, int64(len(raw)))
	spec.Title = doc.Info.Title
	spec.Version = doc.Info.Version
	spec.Description = doc.Info.Description
	spec.ChunkCount = indexed
	if err := s.specs.Create(ctx, spec); err != nil {
		// No spec row means nothing references the indexed chunks or the
		// stored bytes; take them back out.
		if derr := s.index.DeleteBySpec(ctx, specID); derr != nil {
			log.Printf("cleanup of chunks for %s failed: %v", specID, derr)
		}
		if s.store != nil {
			if derr := s.store.Delete(ctx, specID); derr != nil {
				log.Printf("cleanup of stored bytes for %s failed: %v", specID, derr)
			}
		}
		return nil, err
	}

	return &IngestResult{
		SpecID:        specID,
		Title:         spec.Title,
		Version:       spec.Version,
		Description:   spec.Description,
		Format:        format,
		SizeBytes:     spec.SizeBytes,
		ChunkCount:    indexed,
		SkippedChunks: skipped,
	}, nil
}

// Remove deletes a specification and its chunk set. The chunk cascade and
// the spec row go in one transaction when a TxRunner is configured.
func (s *IngestService) Remove(ctx context.Context, specID string) error {
	if s.tx != nil {
		err := s.tx.WithTx(ctx, func(repos TxRepositories) error {
			if err := repos.Chunks().DeleteBySpec(ctx, specID); err != nil {
				return err
			}
			return repos.Specs().Delete(ctx, specID)
		})
		if err != nil {
			return err
		}
	} else {
		if err := s.index.DeleteBySpec(ctx, specID); err != nil {
			return err
		}
		if err := s.specs.Delete(ctx, specID); err != nil {
			return err
		}
	}

	if s.store != nil {
		if err := s.store.Delete(ctx, specID); err != nil {
			log.Printf("spec store delete failed for %s: %v", specID, err)
		}
	}
	return nil
}

// Get returns one stored specification record.
func (s *IngestService) Get(ctx context.Context, specID string) (*domain.Specification, error) {
	return s.specs.GetByID(ctx, specID)
}

// List returns all stored specification records.
func (s *IngestService) List(ctx context.Context) ([]*domain.Specification, error) {
	return s.specs.List(ctx)
}

// Export returns the raw uploaded bytes for a specification.
func (s *IngestService) Export(ctx context.Context, specID string) ([]byte, *domain.Specification, error) {
	spec, err := s.specs.GetByID(ctx, specID)
	if err != nil {
		return nil, nil, err
	}
	if s.store == nil {
		return nil, nil, domain.NewDomainError(domain.ErrCodeInternalError, "spec store not configured")
	}
	raw, err := s.store.Get(ctx, specID)
	if err != nil {
		return nil, nil, err
	}
	return raw, spec, nil
}
