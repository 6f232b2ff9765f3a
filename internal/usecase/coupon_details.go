package usecase

import (
	"time"

	"coupon-marketplace/internal/domain/model"
	"coupon-marketplace/internal/domain/promotion"
)

// CouponDetails is the read-only projection of an issued coupon and its terms.
type CouponDetails struct {
	CouponID      string
	PassCode      string
	TemplateID    string
	TemplateName  string
	MerchantID    string
	PlayerID      string
	Status        model.CouponStatus
	BuyPrice      int64
	PromotionType promotion.Type
	DiscountType  promotion.DiscountType
	DiscountValue float64
	StartDate     time.Time
	EndDate       time.Time
	DaysRemaining int
	UsedAt        *time.Time
	IssuedAt      time.Time
}

func newCouponDetails(cw *model.CouponWithTemplate, now time.Time) *CouponDetails {
	c, t := cw.Coupon, cw.Template
	d := &CouponDetails{
		CouponID:      c.ID,
		PassCode:      c.PassCode,
		TemplateID:    t.ID,
		TemplateName:  t.Name,
		MerchantID:    t.MerchantID,
		PlayerID:      c.UserID,
		Status:        c.EffectiveStatus(t.EndDate, now),
		BuyPrice:      c.BuyPrice,
		DiscountType:  t.DiscountType,
		DiscountValue: t.DisplayDiscount(),
		StartDate:     t.StartDate,
		EndDate:       t.EndDate,
		UsedAt:        c.UsedAt,
		IssuedAt:      c.CreatedAt,
	}
	if t.Promotion != nil {
		d.PromotionType = t.Promotion.Type()
	}
	if left := t.EndDate.Sub(now); left > 0 {
		d.DaysRemaining = int(left / (24 * time.Hour))
	}
	return d
}
