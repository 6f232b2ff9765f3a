package promotion

import "math"

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type factored interface{ factor() float64 }

func (g GroupBuying) factor() float64   { return g.Factor }
func (p PercentageOff) factor() float64 { return p.Factor }
func (b BundleSale) factor() float64    { return b.Factor }
func (d DailyDeal) factor() float64     { return d.Factor }

type reducing interface{ amount() int64 }

func (d DirectReduction) amount() int64 { return d.Amount }
func (f FullReduction) amount() int64   { return f.Amount }
func (s StoreCoupon) amount() int64     { return s.Amount }
func (c CouponCode) amount() int64      { return c.Amount }

// Terms derives the discount metadata stored on a coupon template:
// multiplicative promotions become a percentage, subtractive ones a fixed amount.
func Terms(p Promotion) (DiscountType, float64) {
	switch v := p.(type) {
	case factored:
		return DiscountPercentage, DisplayPercentage((1 - v.factor()) * 100)
	case reducing:
		return DiscountFixed, float64(v.amount())
	}
	return DiscountFixed, 0
}

// DisplayPercentage clamps a raw percentage into [0,100], rounded to two decimals.
func DisplayPercentage(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return math.Round(v*100) / 100
}
