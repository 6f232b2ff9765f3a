package repository

import (
	"context"
	"time"

	"coupon-marketplace/internal/domain/model"
)

type IssuedCouponRepository interface {
	// Create inserts c. ErrAlreadyExists signals a pass code collision.
	Create(ctx context.Context, tx Tx, c *model.IssuedCoupon) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.CouponWithTemplate, error)
	FindByPassCode(ctx context.Context, tx Tx, passCode string) (*model.CouponWithTemplate, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.CouponWithTemplate, error)
	CountByTemplate(ctx context.Context, tx Tx, templateID string) (int, error)
	// MarkUsed flips unused -> used. It reports false when another caller got there first.
	MarkUsed(ctx context.Context, tx Tx, id string, usedAt time.Time) (bool, error)
}
