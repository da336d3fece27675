package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/specwise/specchat/internal/service"
)

// TxRunner provides transactional repositories using a pgx pool. Removal of
// a specification deletes the spec row and its chunk set in one transaction.
type TxRunner struct {
	pool *pgxpool.Pool
}

func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

func (r *TxRunner) WithTx(ctx context.Context, fn func(repos service.TxRepositories) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}

	repos := &txRepos{tx: tx}
	if err := fn(repos); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	return tx.Commit(ctx)
}

type txRepos struct {
	tx pgx.Tx
}

func (r *txRepos) Specs() service.SpecRepositoryInterface {
	return NewSpecRepositoryWithTx(r.tx)
}

func (r *txRepos) Chunks() service.VectorIndex {
	return NewChunkRepositoryWithTx(r.tx)
}
