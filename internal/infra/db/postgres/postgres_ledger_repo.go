package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"coupon-marketplace/internal/domain"
	"coupon-marketplace/internal/domain/model"
	"coupon-marketplace/internal/domain/ports/repository"
)

var _ repository.LedgerRepository = (*PostgresLedgerRepo)(nil)

// PostgresLedgerRepo only ever inserts; there is no update or delete path.
type PostgresLedgerRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresLedgerRepo(pool *pgxpool.Pool) *PostgresLedgerRepo {
	return &PostgresLedgerRepo{pool: pool}
}

func (r *PostgresLedgerRepo) Append(ctx context.Context, tx repository.Tx, t *model.LedgerTransaction) error {
	if t.Amount == 0 {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO ledger_transactions (
  id, account_id, type, amount, balance_after, status,
  related_template_id, related_coupon_id, quantity, note, created_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11
) RETURNING seq;`
	row, err := pickRow(ctx, r.pool, tx, q,
		t.ID, t.AccountID, t.Type, t.Amount, t.BalanceAfter, t.Status,
		t.RelatedTemplateID, t.RelatedCouponID, t.Quantity, t.Note, t.CreatedAt,
	)
	if err != nil {
		return err
	}
	if err := row.Scan(&t.Seq); err != nil {
		return mapPgErr("append ledger transaction", err)
	}
	return nil
}

func (r *PostgresLedgerRepo) ListByAccount(ctx context.Context, tx repository.Tx, accountID string, limit int) ([]*model.LedgerTransaction, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
SELECT id, seq, account_id, type, amount, balance_after, status,
       related_template_id, related_coupon_id, quantity, note, created_at
  FROM ledger_transactions
 WHERE account_id = $1
 ORDER BY seq DESC
 LIMIT $2;`
	rows, err := queryRows(ctx, r.pool, tx, q, accountID, limit)
	if err != nil {
		return nil, mapPgErr("list ledger", err)
	}
	defer rows.Close()

	var out []*model.LedgerTransaction
	for rows.Next() {
		t := new(model.LedgerTransaction)
		if err := rows.Scan(&t.ID, &t.Seq, &t.AccountID, &t.Type, &t.Amount, &t.BalanceAfter, &t.Status,
			&t.RelatedTemplateID, &t.RelatedCouponID, &t.Quantity, &t.Note, &t.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgErr("list ledger", err)
	}
	return out, nil
}

func (r *PostgresLedgerRepo) SumByAccount(ctx context.Context, tx repository.Tx, accountID string) (int64, error) {
	const q = `SELECT COALESCE(SUM(amount), 0) FROM ledger_transactions WHERE account_id=$1 AND status='completed';`
	row, err := pickRow(ctx, r.pool, tx, q, accountID)
	if err != nil {
		return 0, err
	}
	var sum int64
	if err := row.Scan(&sum); err != nil {
		return 0, mapPgErr("sum ledger", err)
	}
	return sum, nil
}
