package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"coupon-marketplace/internal/domain/model"
	"coupon-marketplace/internal/domain/ports/repository"
	"coupon-marketplace/internal/domain/promotion"
	"coupon-marketplace/internal/infra/logging"
	"coupon-marketplace/internal/infra/metrics"
	red "coupon-marketplace/internal/infra/redis"

	"github.com/rs/zerolog"
)

var _ repository.CouponTemplateRepository = (*templateRepoCacheDecorator)(nil)

// templateRepoCacheDecorator serves non-transactional template reads from
// Redis. Calls carrying a transaction always go to Postgres, so issuance and
// deactivation decide on fresh rows.
type templateRepoCacheDecorator struct {
	inner repository.CouponTemplateRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewTemplateRepoCacheDecorator(inner repository.CouponTemplateRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.CouponTemplateRepository {
	if ttl <= 0 {
		ttl = 1 * time.Hour
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &templateRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: logger}
}

// cachedTemplate is the wire form; the promotion travels as type + raw settings.
type cachedTemplate struct {
	ID                string                 `json:"id"`
	MerchantID        string                 `json:"merchant_id"`
	CategoryID        string                 `json:"category_id"`
	Name              string                 `json:"name"`
	Description       string                 `json:"description"`
	PromotionType     promotion.Type         `json:"promotion_type"`
	Settings          json.RawMessage        `json:"settings"`
	DiscountType      promotion.DiscountType `json:"discount_type"`
	DiscountValue     float64                `json:"discount_value"`
	PointsPrice       int64                  `json:"points_price"`
	TotalQuantity     int                    `json:"total_quantity"`
	RemainingQuantity int                    `json:"remaining_quantity"`
	StartDate         time.Time              `json:"start_date"`
	EndDate           time.Time              `json:"end_date"`
	Status            model.TemplateStatus   `json:"status"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

func encodeTemplate(t *model.CouponTemplate) ([]byte, error) {
	settings, err := promotion.Encode(t.Promotion)
	if err != nil {
		return nil, err
	}
	return json.Marshal(cachedTemplate{
		ID: t.ID, MerchantID: t.MerchantID, CategoryID: t.CategoryID,
		Name: t.Name, Description: t.Description,
		PromotionType: t.Promotion.Type(), Settings: settings,
		DiscountType: t.DiscountType, DiscountValue: t.DiscountValue,
		PointsPrice: t.PointsPrice, TotalQuantity: t.TotalQuantity, RemainingQuantity: t.RemainingQuantity,
		StartDate: t.StartDate, EndDate: t.EndDate, Status: t.Status,
		CreatedAt: t.CreatedAt, UpdatedAt: t.UpdatedAt,
	})
}

func decodeTemplate(raw []byte) (*model.CouponTemplate, error) {
	var c cachedTemplate
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, err
	}
	p, err := promotion.Decode(c.PromotionType, c.Settings)
	if err != nil {
		return nil, err
	}
	return &model.CouponTemplate{
		ID: c.ID, MerchantID: c.MerchantID, CategoryID: c.CategoryID,
		Name: c.Name, Description: c.Description, Promotion: p,
		DiscountType: c.DiscountType, DiscountValue: c.DiscountValue,
		PointsPrice: c.PointsPrice, TotalQuantity: c.TotalQuantity, RemainingQuantity: c.RemainingQuantity,
		StartDate: c.StartDate, EndDate: c.EndDate, Status: c.Status,
		CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt,
	}, nil
}

func templateKey(id string) string { return fmt.Sprintf("coupon_template:%s", id) }

func (d *templateRepoCacheDecorator) invalidate(ctx context.Context, id string) {
	if err := d.cache.Del(ctx, templateKey(id)); err != nil {
		d.log.Warn().Err(err).Str("template_id", id).Msg("template cache invalidation failed")
	}
}

// invalidateOnCommit drops the key once the caller's transaction commits.
// Clearing earlier would let a concurrent non-transactional read refill the
// cache with the pre-commit row.
func (d *templateRepoCacheDecorator) invalidateOnCommit(ctx context.Context, tx repository.Tx, id string) {
	if tx != nil && repository.AfterCommit(ctx, func(ctx context.Context) { d.invalidate(ctx, id) }) {
		return
	}
	d.invalidate(ctx, id)
}

func (d *templateRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.CouponTemplate, error) {
	if tx != nil {
		return d.inner.FindByID(ctx, tx, id)
	}
	key := templateKey(id)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		if t, derr := decodeTemplate([]byte(val)); derr == nil {
			metrics.IncCacheRequest("coupon_template", "hit")
			return t, nil
		}
	} else if !errors.Is(err, red.Nil) {
		d.log.Warn().Err(err).Str("key", key).Msg("template cache read failed")
	}

	metrics.IncCacheRequest("coupon_template", "miss")
	t, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if b, err := encodeTemplate(t); err == nil {
		if err := d.cache.Set(ctx, key, b, d.ttl); err != nil {
			d.log.Warn().Err(err).Str("key", key).Msg("template cache write failed")
		}
	}
	return t, nil
}

func (d *templateRepoCacheDecorator) Create(ctx context.Context, tx repository.Tx, t *model.CouponTemplate) error {
	return d.inner.Create(ctx, tx, t)
}

func (d *templateRepoCacheDecorator) ListByMerchant(ctx context.Context, tx repository.Tx, merchantID string) ([]*model.CouponTemplate, error) {
	return d.inner.ListByMerchant(ctx, tx, merchantID)
}

func (d *templateRepoCacheDecorator) DecrementRemaining(ctx context.Context, tx repository.Tx, id string) error {
	if err := d.inner.DecrementRemaining(ctx, tx, id); err != nil {
		return err
	}
	d.invalidateOnCommit(ctx, tx, id)
	return nil
}

func (d *templateRepoCacheDecorator) UpdateStatus(ctx context.Context, tx repository.Tx, id string, from, to model.TemplateStatus) (bool, error) {
	changed, err := d.inner.UpdateStatus(ctx, tx, id, from, to)
	if err != nil {
		return false, err
	}
	if changed {
		d.invalidateOnCommit(ctx, tx, id)
	}
	return changed, nil
}
