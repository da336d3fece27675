package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/specwise/specchat/internal/domain"
)

// PipelineConfig controls the batch embed-and-upsert pipeline.
type PipelineConfig struct {
	// BatchSize is the number of chunks embedded and upserted per round trip.
	BatchSize int
	// Parallelism caps the number of batches in flight at once.
	Parallelism int
	// MaxRetries bounds per-batch retries on transient failure.
	MaxRetries uint64
	// InitialInterval seeds the exponential backoff between retries.
	InitialInterval time.Duration
}

// DefaultPipelineConfig provides sane defaults for ingestion.
func DefaultPipelineConfig() PipelineConfig {
	return PipelineConfig{
		BatchSize:       32,
		Parallelism:     4,
		MaxRetries:      3,
		InitialInterval: 500 * time.Millisecond,
	}
}

// embedAndUpsert pushes chunks into the index in fixed-size batches. Upsert
// is idempotent by chunk ID, so batches carry no ordering dependency and run
// concurrently up to the parallelism bound. Each batch retries independently
// with backoff; a batch that still fails is logged and skipped, never
// re-processing the whole document. Returns (indexed, skipped) chunk counts.
func (s *IngestService) embedAndUpsert(ctx context.Context, specID string, chunks []domain.Chunk) (int, int) {
	if len(chunks) == 0 {
		return 0, 0
	}

	cfg := s.pipeline
	batches := make(chan []domain.Chunk)

	var mu sync.Mutex
	indexed, skipped := 0, 0

	var wg sync.WaitGroup
	workers := cfg.Parallelism
	if workers <= 0 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range batches {
				err := s.processBatch(ctx, specID, batch)
				mu.Lock()
				if err != nil {
					log.Printf("batch of %d chunks skipped for spec %s: %v", len(batch), specID, err)
					skipped += len(batch)
				} else {
					indexed += len(batch)
				}
				mu.Unlock()
			}
		}()
	}

	for start := 0; start < len(chunks); start += cfg.BatchSize {
		end := start + cfg.BatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		select {
		case batches <- chunks[start:end]:
		case <-ctx.Done():
			start = len(chunks)
		}
	}
	close(batches)
	wg.Wait()

	return indexed, skipped
}

func (s *IngestService) processBatch(ctx context.Context, specID string, batch []domain.Chunk) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}

	op := func() error {
		vectors, err := s.embedder.GenerateEmbeddings(ctx, texts)
		if err != nil {
			return err
		}
		return s.index.Upsert(ctx, specID, batch, vectors)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(newExponentialBackOff(s.pipeline.InitialInterval), s.pipeline.MaxRetries),
		ctx,
	)
	return backoff.Retry(op, policy)
}

func newExponentialBackOff(initial time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	if initial > 0 {
		b.InitialInterval = initial
	}
	return b
}
