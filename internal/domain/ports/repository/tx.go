package repository

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

var NoTX interface{}

// TransactionManager executes fn inside one store transaction and passes the
// transaction handle through tx. Repositories receiving that handle run their
// statements on it; a nil handle means "outside any transaction".
//
// fn returning an error rolls everything back, so every multi-step mutation
// (balance + posting, template + debit, decrement + coupon, CAS + write-off)
// either commits whole or leaves no trace. Callbacks registered with
// AfterCommit inside fn run only once the commit succeeded.
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}

type afterCommitKey struct{}

type afterCommitHooks struct {
	mu  sync.Mutex
	fns []func(context.Context)
}

// WithAfterCommit opens a hook scope for one transaction. The returned run
// function executes the registered callbacks in order; TransactionManager
// implementations call it after a successful commit and never on rollback.
func WithAfterCommit(ctx context.Context) (context.Context, func(context.Context)) {
	h := &afterCommitHooks{}
	run := func(ctx context.Context) {
		h.mu.Lock()
		fns := h.fns
		h.fns = nil
		h.mu.Unlock()
		for _, fn := range fns {
			fn(ctx)
		}
	}
	return context.WithValue(ctx, afterCommitKey{}, h), run
}

// AfterCommit defers fn until the transaction carried by ctx commits. It
// returns false when ctx has no hook scope; the caller should then act at once.
func AfterCommit(ctx context.Context, fn func(context.Context)) bool {
	h, ok := ctx.Value(afterCommitKey{}).(*afterCommitHooks)
	if !ok {
		return false
	}
	h.mu.Lock()
	h.fns = append(h.fns, fn)
	h.mu.Unlock()
	return true
}
