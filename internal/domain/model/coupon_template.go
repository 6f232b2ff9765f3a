package model

import (
	"math"
	"strings"
	"time"

	"coupon-marketplace/internal/domain"
	"coupon-marketplace/internal/domain/promotion"

	"github.com/google/uuid"
)

type TemplateStatus string

const (
	TemplateStatusActive   TemplateStatus = "active"
	TemplateStatusInactive TemplateStatus = "inactive"
	TemplateStatusExpired  TemplateStatus = "expired"
)

// TemplateSpec is the merchant's input for a new coupon template.
type TemplateSpec struct {
	CategoryID    string
	Name          string
	Description   string
	Promotion     promotion.Promotion
	PointsPrice   int64
	TotalQuantity int
	StartDate     time.Time
	EndDate       time.Time
}

// CouponTemplate is a merchant's offer. RemainingQuantity is only ever
// decremented, one unit per issued coupon.
type CouponTemplate struct {
	ID                string
	MerchantID        string
	CategoryID        string
	Name              string
	Description       string
	Promotion         promotion.Promotion
	DiscountType      promotion.DiscountType
	DiscountValue     float64
	PointsPrice       int64
	TotalQuantity     int
	RemainingQuantity int
	StartDate         time.Time
	EndDate           time.Time
	Status            TemplateStatus
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewCouponTemplate validates spec against now and derives discount terms from its promotion.
func NewCouponTemplate(merchantID string, spec TemplateSpec, now time.Time) (*CouponTemplate, error) {
	if merchantID == "" {
		return nil, domain.Invalid("merchant_id", "is required")
	}
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return nil, domain.Invalid("name", "is required")
	}
	if spec.TotalQuantity <= 0 {
		return nil, domain.Invalid("total_quantity", "must be positive")
	}
	if spec.PointsPrice <= 0 {
		return nil, domain.Invalid("points_price", "must be positive")
	}
	if spec.PointsPrice > math.MaxInt64/int64(spec.TotalQuantity) {
		return nil, domain.Invalid("points_price", "total cost overflows")
	}
	if !spec.StartDate.After(now) {
		return nil, domain.Invalid("start_date", "must be in the future")
	}
	if !spec.EndDate.After(spec.StartDate) {
		return nil, domain.Invalid("end_date", "must be after start_date")
	}
	if spec.Promotion == nil {
		return nil, domain.Invalid("promotion", "is required")
	}
	if err := spec.Promotion.Validate(); err != nil {
		return nil, err
	}
	kind, value := promotion.Terms(spec.Promotion)
	return &CouponTemplate{
		ID:                uuid.NewString(),
		MerchantID:        merchantID,
		CategoryID:        spec.CategoryID,
		Name:              name,
		Description:       spec.Description,
		Promotion:         spec.Promotion,
		DiscountType:      kind,
		DiscountValue:     value,
		PointsPrice:       spec.PointsPrice,
		TotalQuantity:     spec.TotalQuantity,
		RemainingQuantity: spec.TotalQuantity,
		StartDate:         spec.StartDate,
		EndDate:           spec.EndDate,
		Status:            TemplateStatusActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}, nil
}

// TotalCost is what the merchant is charged to publish the template.
func (t *CouponTemplate) TotalCost() int64 {
	return t.PointsPrice * int64(t.TotalQuantity)
}

func (t *CouponTemplate) IsExpired(now time.Time) bool { return now.After(t.EndDate) }

// EffectiveStatus folds the time-derived expiry into the stored status.
func (t *CouponTemplate) EffectiveStatus(now time.Time) TemplateStatus {
	if t.Status == TemplateStatusActive && t.IsExpired(now) {
		return TemplateStatusExpired
	}
	return t.Status
}

// CheckIssuable reports why no further coupon can be issued, if any.
func (t *CouponTemplate) CheckIssuable(now time.Time) error {
	if t.EffectiveStatus(now) != TemplateStatusActive {
		return domain.ErrTemplateExpired
	}
	if t.RemainingQuantity <= 0 {
		return domain.ErrSoldOut
	}
	return nil
}

// DisplayDiscount returns the discount value as shown to players.
func (t *CouponTemplate) DisplayDiscount() float64 {
	if t.DiscountType == promotion.DiscountPercentage {
		return promotion.DisplayPercentage(t.DiscountValue)
	}
	return t.DiscountValue
}
