package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"coupon-marketplace/internal/domain"
	"coupon-marketplace/internal/domain/ports/repository"
)

// Ensure compile-time conformance
var _ repository.TransactionManager = (*TxManager)(nil)

// TxManager implements repository.TransactionManager for Postgres (pgx).
// The pgx.Tx handle reaches repositories through the tx argument of fn.
type TxManager struct {
	pool *pgxpool.Pool
}

func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool}
}

// WithTx commits when fn returns nil and rolls back otherwise. Business
// errors from fn are returned untouched; driver errors from begin/commit
// are mapped so that timeouts and serialization failures surface as ErrBusy.
// AfterCommit callbacks registered by fn run after a successful commit.
func (m *TxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.pool == nil {
		return domain.ErrInvalidArgument
	}
	tx, err := m.pool.BeginTx(ctx, txOpt)
	if err != nil {
		return mapPgErr("begin tx", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	hookCtx, runAfterCommit := repository.WithAfterCommit(ctx)
	if err := fn(hookCtx, tx); err != nil {
		return err // rollback in defer
	}
	if err := tx.Commit(ctx); err != nil {
		return mapPgErr("commit tx", err)
	}
	// the work is durable; a client going away must not skip the hooks
	runAfterCommit(context.WithoutCancel(ctx))
	return nil
}
