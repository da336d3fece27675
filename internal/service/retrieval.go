package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/specwise/specchat/internal/domain"
)

// RetrievalConfig controls the read path.
type RetrievalConfig struct {
	// TopK is the default number of chunks returned per query.
	TopK int
	// MinScore drops near-zero-relevance matches from the context window.
	MinScore float32
	// MaxRetries bounds retries on transient embedding/index failures.
	MaxRetries uint64
	// InitialInterval seeds the exponential backoff between retries.
	InitialInterval time.Duration
}

// DefaultRetrievalConfig provides sane defaults for retrieval.
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		TopK:            5,
		MinScore:        0.2,
		MaxRetries:      2,
		InitialInterval: 300 * time.Millisecond,
	}
}

// RetrievalService answers free-text queries with a ranked context window of
// chunks from one specification.
type RetrievalService struct {
	embedder EmbeddingClient
	index    VectorIndex
	cfg      RetrievalConfig
}

// NewRetrievalService creates a RetrievalService.
func NewRetrievalService(embedder EmbeddingClient, index VectorIndex, cfg RetrievalConfig) *RetrievalService {
	if cfg.TopK <= 0 {
		cfg = DefaultRetrievalConfig()
	}
	return &RetrievalService{embedder: embedder, index: index, cfg: cfg}
}

// Retrieve embeds the query, searches the index scoped to specID, and
// returns results above the similarity threshold ordered by score
// descending. An empty slice means "no context", which is distinct from a
// retrieval failure: infrastructure errors are retried with backoff and
// then surfaced as TRANSIENT_INFRA domain errors.
func (s *RetrievalService) Retrieve(ctx context.Context, specID, query string, k int) ([]domain.ScoredChunk, error) {
	if strings.TrimSpace(query) == "" {
		return nil, domain.ErrEmptyQuery
	}
	if k <= 0 {
		k = s.cfg.TopK
	}

	var vector []float32
	err := s.retry(ctx, func() error {
		var err error
		vector, err = s.embedder.GenerateEmbedding(ctx, query)
		return err
	})
	if err != nil {
		return nil, domain.ErrEmbeddingUnavailable.WithCause(err)
	}

	var results []domain.ScoredChunk
	err = s.retry(ctx, func() error {
		var err error
		results, err = s.index.Search(ctx, specID, vector, k)
		return err
	})
	if err != nil {
		return nil, domain.ErrVectorIndexUnavailable.WithCause(err)
	}

	filtered := results[:0]
	for _, r := range results {
		if r.Score >= s.cfg.MinScore {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

func (s *RetrievalService) retry(ctx context.Context, op func() error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(newExponentialBackOff(s.cfg.InitialInterval), s.cfg.MaxRetries),
		ctx,
	)
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		// Malformed input never becomes valid by waiting.
		var domainErr *domain.DomainError
		if errors.As(err, &domainErr) && domainErr.Code == domain.ErrCodeValidation {
			return backoff.Permanent(err)
		}
		return err
	}, policy)
}
