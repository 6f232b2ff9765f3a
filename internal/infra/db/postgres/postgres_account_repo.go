package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"coupon-marketplace/internal/domain"
	"coupon-marketplace/internal/domain/model"
	"coupon-marketplace/internal/domain/ports/repository"
)

var _ repository.AccountRepository = (*PostgresAccountRepo)(nil)

type PostgresAccountRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresAccountRepo(pool *pgxpool.Pool) *PostgresAccountRepo {
	return &PostgresAccountRepo{pool: pool}
}

const accountColumns = `id, owner_id, role, balance, created_at, updated_at`

func scanAccount(row pgx.Row) (*model.Account, error) {
	var a model.Account
	if err := row.Scan(&a.ID, &a.OwnerID, &a.Role, &a.Balance, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

// Create reports ErrAlreadyExists when the owner already has an account,
// without aborting the surrounding transaction.
func (r *PostgresAccountRepo) Create(ctx context.Context, tx repository.Tx, a *model.Account) error {
	const q = `
INSERT INTO accounts (id, owner_id, role, balance, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (owner_id) DO NOTHING;`
	cmd, err := execSQL(ctx, r.pool, tx, q, a.ID, a.OwnerID, a.Role, a.Balance, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return mapPgErr("create account", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

func (r *PostgresAccountRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM accounts WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	a, err := scanAccount(row)
	if err != nil {
		return nil, mapPgErr("find account", err)
	}
	return a, nil
}

func (r *PostgresAccountRepo) FindByOwner(ctx context.Context, tx repository.Tx, ownerID string) (*model.Account, error) {
	q := `SELECT ` + accountColumns + ` FROM accounts WHERE owner_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, ownerID)
	if err != nil {
		return nil, err
	}
	a, err := scanAccount(row)
	if err != nil {
		return nil, mapPgErr("find account by owner", err)
	}
	return a, nil
}

// AdjustBalance applies delta only if the result stays non-negative. The
// UPDATE takes the row lock, so concurrent postings on one account serialize
// here and each sees the balance left by the previous one.
func (r *PostgresAccountRepo) AdjustBalance(ctx context.Context, tx repository.Tx, id string, delta int64) (int64, error) {
	const q = `
UPDATE accounts
   SET balance = balance + $2,
       updated_at = NOW()
 WHERE id = $1
   AND balance + $2 >= 0
RETURNING balance;`
	row, err := pickRow(ctx, r.pool, tx, q, id, delta)
	if err != nil {
		return 0, err
	}
	var balance int64
	err = row.Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, mapPgErr("adjust balance", err)
	}

	// Zero rows: either the account is missing or the guard refused.
	const exists = `SELECT 1 FROM accounts WHERE id=$1;`
	row, err = pickRow(ctx, r.pool, tx, exists, id)
	if err != nil {
		return 0, err
	}
	var one int
	if err := row.Scan(&one); err != nil {
		return 0, mapPgErr("adjust balance", err)
	}
	return 0, domain.ErrInsufficientBalance
}
