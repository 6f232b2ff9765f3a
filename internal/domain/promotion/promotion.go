// Package promotion turns a promotion configuration plus a purchase context
// into a discounted price. Everything here is pure and deterministic.
package promotion

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"coupon-marketplace/internal/domain"
)

type Type string

const (
	TypeGroupBuying     Type = "group_buying"
	TypeDirectReduction Type = "direct_reduction"
	TypeFullReduction   Type = "full_reduction"
	TypeStoreCoupon     Type = "store_coupon"
	TypePercentageOff   Type = "percentage_off"
	TypeBundleSale      Type = "bundle_sale"
	TypeDailyDeal       Type = "daily_deal"
	TypeCouponCode      Type = "coupon_code"
)

// Types lists every supported promotion in a stable order.
var Types = []Type{
	TypeGroupBuying, TypeDirectReduction, TypeFullReduction, TypeStoreCoupon,
	TypePercentageOff, TypeBundleSale, TypeDailyDeal, TypeCouponCode,
}

type Affect string

const (
	AffectPrice      Affect = "price"
	AffectTotalOrder Affect = "total_order"
)

type Calculation string

const (
	Multiplicative Calculation = "multiplicative"
	Subtractive    Calculation = "subtractive"
)

// Context carries the purchase facts a promotion may be conditioned on.
type Context struct {
	PeopleCount int
	TotalOrder  int64
	ItemCount   int
	CurrentTime *time.Time
}

// Promotion is implemented by each variant below. Variants only carry the
// fields their formula needs.
type Promotion interface {
	Type() Type
	Affect() Affect
	Calculation() Calculation
	Validate() error
	apply(price int64, c Context) int64
}

// ComputeDiscount returns the price after p is applied. The result is never negative.
func ComputeDiscount(p Promotion, price int64, c Context) int64 {
	if price <= 0 {
		return 0
	}
	if p == nil {
		return price
	}
	out := p.apply(price, c)
	if out < 0 {
		return 0
	}
	return out
}

// Savings is the amount taken off price by p.
func Savings(p Promotion, price int64, c Context) int64 {
	if price <= 0 {
		return 0
	}
	return price - ComputeDiscount(p, price, c)
}

func multiply(price int64, factor float64) int64 {
	return int64(math.Round(float64(price) * factor))
}

func validFactor(f float64) error {
	if math.IsNaN(f) || f < 0 || f > 1 {
		return domain.Invalid("factor", "must be within [0,1]")
	}
	return nil
}

func positive(field string, v int64) error {
	if v <= 0 {
		return domain.Invalid(field, "must be positive")
	}
	return nil
}

// ---- variants ----

type GroupBuying struct {
	Factor         float64 `json:"factor"`
	RequiredPeople int     `json:"required_people"`
}

func (GroupBuying) Type() Type               { return TypeGroupBuying }
func (GroupBuying) Affect() Affect           { return AffectPrice }
func (GroupBuying) Calculation() Calculation { return Multiplicative }
func (g GroupBuying) Validate() error {
	if g.RequiredPeople < 1 {
		return domain.Invalid("required_people", "must be at least 1")
	}
	return validFactor(g.Factor)
}
func (g GroupBuying) apply(price int64, c Context) int64 {
	if c.PeopleCount < g.RequiredPeople {
		return price
	}
	return multiply(price, g.Factor)
}

type DirectReduction struct {
	Amount int64 `json:"amount"`
}

func (DirectReduction) Type() Type                           { return TypeDirectReduction }
func (DirectReduction) Affect() Affect                       { return AffectPrice }
func (DirectReduction) Calculation() Calculation             { return Subtractive }
func (d DirectReduction) Validate() error                    { return positive("amount", d.Amount) }
func (d DirectReduction) apply(price int64, _ Context) int64 { return price - d.Amount }

type FullReduction struct {
	Threshold int64 `json:"threshold"`
	Amount    int64 `json:"amount"`
}

func (FullReduction) Type() Type               { return TypeFullReduction }
func (FullReduction) Affect() Affect           { return AffectTotalOrder }
func (FullReduction) Calculation() Calculation { return Subtractive }
func (f FullReduction) Validate() error {
	if f.Threshold < 0 {
		return domain.Invalid("threshold", "must not be negative")
	}
	return positive("amount", f.Amount)
}
func (f FullReduction) apply(price int64, c Context) int64 {
	if c.TotalOrder < f.Threshold {
		return price
	}
	return price - f.Amount
}

// StoreCoupon is bought with points; the points cost is charged by the ledger, not here.
type StoreCoupon struct {
	Amount     int64 `json:"amount"`
	PointsCost int64 `json:"points_cost"`
}

func (StoreCoupon) Type() Type               { return TypeStoreCoupon }
func (StoreCoupon) Affect() Affect           { return AffectPrice }
func (StoreCoupon) Calculation() Calculation { return Subtractive }
func (s StoreCoupon) Validate() error {
	if s.PointsCost < 0 {
		return domain.Invalid("points_cost", "must not be negative")
	}
	return positive("amount", s.Amount)
}
func (s StoreCoupon) apply(price int64, _ Context) int64 { return price - s.Amount }

type PercentageOff struct {
	Factor float64 `json:"factor"`
}

func (PercentageOff) Type() Type                           { return TypePercentageOff }
func (PercentageOff) Affect() Affect                       { return AffectPrice }
func (PercentageOff) Calculation() Calculation             { return Multiplicative }
func (p PercentageOff) Validate() error                    { return validFactor(p.Factor) }
func (p PercentageOff) apply(price int64, _ Context) int64 { return multiply(price, p.Factor) }

type BundleSale struct {
	Factor        float64 `json:"factor"`
	RequiredCount int     `json:"required_count"`
}

func (BundleSale) Type() Type               { return TypeBundleSale }
func (BundleSale) Affect() Affect           { return AffectTotalOrder }
func (BundleSale) Calculation() Calculation { return Multiplicative }
func (b BundleSale) Validate() error {
	if b.RequiredCount < 1 {
		return domain.Invalid("required_count", "must be at least 1")
	}
	return validFactor(b.Factor)
}
func (b BundleSale) apply(price int64, c Context) int64 {
	if c.ItemCount < b.RequiredCount {
		return price
	}
	return multiply(price, b.Factor)
}

// DailyDeal applies only while CurrentTime falls inside [StartTime, EndTime).
type DailyDeal struct {
	Factor    float64   `json:"factor"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

func (DailyDeal) Type() Type               { return TypeDailyDeal }
func (DailyDeal) Affect() Affect           { return AffectPrice }
func (DailyDeal) Calculation() Calculation { return Multiplicative }
func (d DailyDeal) Validate() error {
	if d.StartTime.IsZero() || !d.EndTime.After(d.StartTime) {
		return domain.Invalid("end_time", "must be after start_time")
	}
	return validFactor(d.Factor)
}
func (d DailyDeal) apply(price int64, c Context) int64 {
	if c.CurrentTime == nil {
		return price
	}
	now := *c.CurrentTime
	if now.Before(d.StartTime) || !now.Before(d.EndTime) {
		return price
	}
	return multiply(price, d.Factor)
}

type CouponCode struct {
	Code   string `json:"code"`
	Amount int64  `json:"amount"`
}

func (CouponCode) Type() Type               { return TypeCouponCode }
func (CouponCode) Affect() Affect           { return AffectPrice }
func (CouponCode) Calculation() Calculation { return Subtractive }
func (c CouponCode) Validate() error {
	if c.Code == "" {
		return domain.Invalid("code", "is required")
	}
	return positive("amount", c.Amount)
}
func (c CouponCode) apply(price int64, _ Context) int64 { return price - c.Amount }

// ---- storage encoding ----

// Encode serialises the settings of p for storage next to its Type.
func Encode(p Promotion) ([]byte, error) {
	if p == nil {
		return nil, domain.Invalid("promotion", "is required")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(p)
}

// Decode rebuilds a validated promotion from its type tag and raw settings.
func Decode(t Type, raw []byte) (Promotion, error) {
	var (
		p   Promotion
		err error
	)
	switch t {
	case TypeGroupBuying:
		var v GroupBuying
		err = json.Unmarshal(raw, &v)
		p = v
	case TypeDirectReduction:
		var v DirectReduction
		err = json.Unmarshal(raw, &v)
		p = v
	case TypeFullReduction:
		var v FullReduction
		err = json.Unmarshal(raw, &v)
		p = v
	case TypeStoreCoupon:
		var v StoreCoupon
		err = json.Unmarshal(raw, &v)
		p = v
	case TypePercentageOff:
		var v PercentageOff
		err = json.Unmarshal(raw, &v)
		p = v
	case TypeBundleSale:
		var v BundleSale
		err = json.Unmarshal(raw, &v)
		p = v
	case TypeDailyDeal:
		var v DailyDeal
		err = json.Unmarshal(raw, &v)
		p = v
	case TypeCouponCode:
		var v CouponCode
		err = json.Unmarshal(raw, &v)
		p = v
	default:
		return nil, domain.Invalid("promotion_type", fmt.Sprintf("unknown type %q", t))
	}
	if err != nil {
		return nil, domain.Invalid("promotion_settings", err.Error())
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
