package repository

import (
	"context"

	"coupon-marketplace/internal/domain/model"
)

type CouponTemplateRepository interface {
	Create(ctx context.Context, tx Tx, t *model.CouponTemplate) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.CouponTemplate, error)
	ListByMerchant(ctx context.Context, tx Tx, merchantID string) ([]*model.CouponTemplate, error)
	// DecrementRemaining takes one unit guarded by remaining_quantity > 0.
	// ErrSoldOut when nothing is left, ErrNotFound when the template is missing.
	DecrementRemaining(ctx context.Context, tx Tx, id string) error
	// UpdateStatus moves the template from one status to another; false if it was not in `from`.
	UpdateStatus(ctx context.Context, tx Tx, id string, from, to model.TemplateStatus) (bool, error)
}
