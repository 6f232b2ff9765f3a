package repository

import (
	"context"

	"coupon-marketplace/internal/domain/model"
)

// LedgerRepository is append-only: there is no update or delete.
type LedgerRepository interface {
	// Append stores t and fills in its store-assigned Seq.
	Append(ctx context.Context, tx Tx, t *model.LedgerTransaction) error
	// ListByAccount returns the newest postings first.
	ListByAccount(ctx context.Context, tx Tx, accountID string, limit int) ([]*model.LedgerTransaction, error)
	SumByAccount(ctx context.Context, tx Tx, accountID string) (int64, error)
}
