package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"coupon-marketplace/internal/domain"
	"coupon-marketplace/internal/domain/model"
	"coupon-marketplace/internal/domain/ports/repository"
)

var _ repository.IssuedCouponRepository = (*PostgresIssuedCouponRepo)(nil)

type PostgresIssuedCouponRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresIssuedCouponRepo(pool *pgxpool.Pool) *PostgresIssuedCouponRepo {
	return &PostgresIssuedCouponRepo{pool: pool}
}

const couponColumns = `c.id, c.template_id, c.user_id, c.pass_code, c.qr_encoding, c.status, c.used_at, c.buy_price, c.created_at`

const couponJoin = `SELECT ` + couponColumns + `, ` + templateColumns + `
  FROM issued_coupons c
  JOIN coupon_templates t ON t.id = c.template_id`

func scanCouponWithTemplate(row pgx.Row) (*model.CouponWithTemplate, error) {
	var (
		c  model.IssuedCoupon
		tr templateRow
	)
	dst := []interface{}{&c.ID, &c.TemplateID, &c.UserID, &c.PassCode, &c.QREncoding, &c.Status, &c.UsedAt, &c.BuyPrice, &c.CreatedAt}
	dst = append(dst, tr.targets()...)
	if err := row.Scan(dst...); err != nil {
		return nil, err
	}
	t, err := tr.build()
	if err != nil {
		return nil, err
	}
	return &model.CouponWithTemplate{Coupon: &c, Template: t}, nil
}

// Create relies on the unique pass_code index. ON CONFLICT DO NOTHING keeps the
// surrounding transaction usable so the caller can retry with a new code.
func (r *PostgresIssuedCouponRepo) Create(ctx context.Context, tx repository.Tx, c *model.IssuedCoupon) error {
	const q = `
INSERT INTO issued_coupons (id, template_id, user_id, pass_code, qr_encoding, status, used_at, buy_price, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (pass_code) DO NOTHING;`
	cmd, err := execSQL(ctx, r.pool, tx, q, c.ID, c.TemplateID, c.UserID, c.PassCode, c.QREncoding, c.Status, c.UsedAt, c.BuyPrice, c.CreatedAt)
	if err != nil {
		return mapPgErr("create issued coupon", err)
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrAlreadyExists
	}
	return nil
}

// FindByID locks the coupon row when called inside a transaction, so a
// concurrent redeemer waits and then observes the committed status.
func (r *PostgresIssuedCouponRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.CouponWithTemplate, error) {
	q := couponJoin + ` WHERE c.id=$1`
	if inTx(tx) {
		q += " FOR UPDATE OF c"
	}
	q += ";"
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	cw, err := scanCouponWithTemplate(row)
	if err != nil {
		return nil, mapPgErr("find issued coupon", err)
	}
	return cw, nil
}

func (r *PostgresIssuedCouponRepo) FindByPassCode(ctx context.Context, tx repository.Tx, passCode string) (*model.CouponWithTemplate, error) {
	q := couponJoin + ` WHERE c.pass_code=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, passCode)
	if err != nil {
		return nil, err
	}
	cw, err := scanCouponWithTemplate(row)
	if err != nil {
		return nil, mapPgErr("find issued coupon by pass code", err)
	}
	return cw, nil
}

func (r *PostgresIssuedCouponRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string) ([]*model.CouponWithTemplate, error) {
	q := couponJoin + ` WHERE c.user_id=$1 ORDER BY c.created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID)
	if err != nil {
		return nil, mapPgErr("list issued coupons", err)
	}
	defer rows.Close()

	var out []*model.CouponWithTemplate
	for rows.Next() {
		cw, err := scanCouponWithTemplate(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, cw)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgErr("list issued coupons", err)
	}
	return out, nil
}

func (r *PostgresIssuedCouponRepo) CountByTemplate(ctx context.Context, tx repository.Tx, templateID string) (int, error) {
	const q = `SELECT COUNT(1) FROM issued_coupons WHERE template_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, templateID)
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		return 0, mapPgErr("count issued coupons", err)
	}
	return n, nil
}

// MarkUsed is the compare-and-swap at the heart of redemption.
func (r *PostgresIssuedCouponRepo) MarkUsed(ctx context.Context, tx repository.Tx, id string, usedAt time.Time) (bool, error) {
	const q = `
UPDATE issued_coupons
   SET status = 'used',
       used_at = $2
 WHERE id = $1
   AND status = 'unused';`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, usedAt)
	if err != nil {
		return false, mapPgErr("mark coupon used", err)
	}
	return cmd.RowsAffected() == 1, nil
}
