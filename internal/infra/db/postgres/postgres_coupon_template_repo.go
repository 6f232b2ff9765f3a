package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"coupon-marketplace/internal/domain"
	"coupon-marketplace/internal/domain/model"
	"coupon-marketplace/internal/domain/ports/repository"
	"coupon-marketplace/internal/domain/promotion"
)

var _ repository.CouponTemplateRepository = (*PostgresCouponTemplateRepo)(nil)

type PostgresCouponTemplateRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresCouponTemplateRepo(pool *pgxpool.Pool) *PostgresCouponTemplateRepo {
	return &PostgresCouponTemplateRepo{pool: pool}
}

// templateColumns is aliased as t so the issued coupon joins can reuse it.
const templateColumns = `t.id, t.merchant_id, t.category_id, t.name, t.description,
       t.promotion_type, t.settings, t.discount_type, t.discount_value,
       t.points_price, t.total_quantity, t.remaining_quantity,
       t.start_date, t.end_date, t.status, t.created_at, t.updated_at`

// templateRow holds the raw scan targets; promotion settings are decoded afterwards.
type templateRow struct {
	t        model.CouponTemplate
	promType promotion.Type
	settings []byte
}

func (tr *templateRow) targets() []interface{} {
	t := &tr.t
	return []interface{}{
		&t.ID, &t.MerchantID, &t.CategoryID, &t.Name, &t.Description,
		&tr.promType, &tr.settings, &t.DiscountType, &t.DiscountValue,
		&t.PointsPrice, &t.TotalQuantity, &t.RemainingQuantity,
		&t.StartDate, &t.EndDate, &t.Status, &t.CreatedAt, &t.UpdatedAt,
	}
}

func (tr *templateRow) build() (*model.CouponTemplate, error) {
	p, err := promotion.Decode(tr.promType, tr.settings)
	if err != nil {
		return nil, err
	}
	t := tr.t
	t.Promotion = p
	return &t, nil
}

func (r *PostgresCouponTemplateRepo) Create(ctx context.Context, tx repository.Tx, t *model.CouponTemplate) error {
	settings, err := promotion.Encode(t.Promotion)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO coupon_templates (
  id, merchant_id, category_id, name, description, promotion_type, settings,
  discount_type, discount_value, points_price, total_quantity, remaining_quantity,
  start_date, end_date, status, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17
);`
	_, err = execSQL(ctx, r.pool, tx, q,
		t.ID, t.MerchantID, t.CategoryID, t.Name, t.Description, t.Promotion.Type(), settings,
		t.DiscountType, t.DiscountValue, t.PointsPrice, t.TotalQuantity, t.RemainingQuantity,
		t.StartDate, t.EndDate, t.Status, t.CreatedAt, t.UpdatedAt,
	)
	return mapPgErr("create coupon template", err)
}

func (r *PostgresCouponTemplateRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.CouponTemplate, error) {
	q := `SELECT ` + templateColumns + ` FROM coupon_templates t WHERE t.id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	var tr templateRow
	if err := row.Scan(tr.targets()...); err != nil {
		return nil, mapPgErr("find coupon template", err)
	}
	return tr.build()
}

func (r *PostgresCouponTemplateRepo) ListByMerchant(ctx context.Context, tx repository.Tx, merchantID string) ([]*model.CouponTemplate, error) {
	q := `SELECT ` + templateColumns + ` FROM coupon_templates t WHERE t.merchant_id=$1 ORDER BY t.created_at DESC;`
	rows, err := queryRows(ctx, r.pool, tx, q, merchantID)
	if err != nil {
		return nil, mapPgErr("list coupon templates", err)
	}
	defer rows.Close()

	var out []*model.CouponTemplate
	for rows.Next() {
		var tr templateRow
		if err := rows.Scan(tr.targets()...); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		t, err := tr.build()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgErr("list coupon templates", err)
	}
	return out, nil
}

// DecrementRemaining is a single conditional UPDATE. Under READ COMMITTED a
// waiter re-evaluates the guard against the committed row after the lock is
// released, so the last unit goes to exactly one caller.
func (r *PostgresCouponTemplateRepo) DecrementRemaining(ctx context.Context, tx repository.Tx, id string) error {
	const q = `
UPDATE coupon_templates
   SET remaining_quantity = remaining_quantity - 1,
       updated_at = NOW()
 WHERE id = $1
   AND remaining_quantity > 0
   AND status = 'active';`
	cmd, err := execSQL(ctx, r.pool, tx, q, id)
	if err != nil {
		return mapPgErr("decrement remaining", err)
	}
	if cmd.RowsAffected() == 1 {
		return nil
	}

	const why = `SELECT status, remaining_quantity FROM coupon_templates WHERE id=$1;`
	row, err := pickRow(ctx, r.pool, tx, why, id)
	if err != nil {
		return err
	}
	var (
		status    model.TemplateStatus
		remaining int
	)
	if err := row.Scan(&status, &remaining); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ErrNotFound
		}
		return mapPgErr("decrement remaining", err)
	}
	if status != model.TemplateStatusActive {
		return domain.ErrTemplateExpired
	}
	return domain.ErrSoldOut
}

func (r *PostgresCouponTemplateRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, from, to model.TemplateStatus) (bool, error) {
	const q = `UPDATE coupon_templates SET status=$3, updated_at=NOW() WHERE id=$1 AND status=$2;`
	cmd, err := execSQL(ctx, r.pool, tx, q, id, from, to)
	if err != nil {
		return false, mapPgErr("update template status", err)
	}
	return cmd.RowsAffected() == 1, nil
}
