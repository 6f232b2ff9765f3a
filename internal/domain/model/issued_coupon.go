package model

import (
	"time"

	"github.com/google/uuid"
)

type CouponStatus string

const (
	CouponStatusUnused  CouponStatus = "unused"
	CouponStatusUsed    CouponStatus = "used"
	CouponStatusExpired CouponStatus = "expired"
)

// IssuedCoupon is a player's claim on a template. Status is persisted as
// unused or used; expired is derived from the template's end date.
type IssuedCoupon struct {
	ID         string
	TemplateID string
	UserID     string
	PassCode   string
	QREncoding *string
	Status     CouponStatus
	UsedAt     *time.Time
	BuyPrice   int64
	CreatedAt  time.Time
}

func NewIssuedCoupon(t *CouponTemplate, userID, passCode string, now time.Time) *IssuedCoupon {
	return &IssuedCoupon{
		ID:         uuid.NewString(),
		TemplateID: t.ID,
		UserID:     userID,
		PassCode:   passCode,
		Status:     CouponStatusUnused,
		BuyPrice:   t.PointsPrice,
		CreatedAt:  now,
	}
}

// EffectiveStatus returns expired for unused coupons past endDate.
func (c *IssuedCoupon) EffectiveStatus(endDate, now time.Time) CouponStatus {
	if c.Status == CouponStatusUnused && now.After(endDate) {
		return CouponStatusExpired
	}
	return c.Status
}

// CouponWithTemplate is the joined read model used by redemption and wallet listings.
type CouponWithTemplate struct {
	Coupon   *IssuedCoupon
	Template *CouponTemplate
}
