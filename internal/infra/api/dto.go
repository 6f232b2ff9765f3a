package api

import (
	"encoding/json"
	"time"

	"coupon-marketplace/internal/domain/model"
	"coupon-marketplace/internal/domain/promotion"
	"coupon-marketplace/internal/usecase"
)

// ---- requests ----

type createTemplateRequest struct {
	CategoryID    string          `json:"category_id" validate:"max=64"`
	Name          string          `json:"name" validate:"required,max=200"`
	Description   string          `json:"description" validate:"max=2000"`
	PromotionType string          `json:"promotion_type" validate:"required,oneof=group_buying direct_reduction full_reduction store_coupon percentage_off bundle_sale daily_deal coupon_code"`
	Settings      json.RawMessage `json:"settings" validate:"required"`
	PointsPrice   int64           `json:"points_price" validate:"required,gt=0"`
	TotalQuantity int             `json:"total_quantity" validate:"required,gt=0,lte=1000000"`
	StartDate     time.Time       `json:"start_date" validate:"required"`
	EndDate       time.Time       `json:"end_date" validate:"required,gtfield=StartDate"`
}

type checkRequest struct {
	PassCode string `json:"pass_code" validate:"required,min=4,max=32"`
}

// ---- responses ----

type templateResponse struct {
	ID                string                 `json:"id"`
	MerchantID        string                 `json:"merchant_id"`
	CategoryID        string                 `json:"category_id,omitempty"`
	Name              string                 `json:"name"`
	Description       string                 `json:"description,omitempty"`
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
}

func toTemplateResponse(t *model.CouponTemplate, now time.Time) templateResponse {
	resp := templateResponse{
		ID:                t.ID,
		MerchantID:        t.MerchantID,
		CategoryID:        t.CategoryID,
		Name:              t.Name,
		Description:       t.Description,
		DiscountType:      t.DiscountType,
		DiscountValue:     t.DisplayDiscount(),
		PointsPrice:       t.PointsPrice,
		TotalQuantity:     t.TotalQuantity,
		RemainingQuantity: t.RemainingQuantity,
		StartDate:         t.StartDate,
		EndDate:           t.EndDate,
		Status:            t.EffectiveStatus(now),
		CreatedAt:         t.CreatedAt,
	}
	if t.Promotion != nil {
		resp.PromotionType = t.Promotion.Type()
		if raw, err := promotion.Encode(t.Promotion); err == nil {
			resp.Settings = raw
		}
	}
	return resp
}

type couponResponse struct {
	ID         string             `json:"id"`
	TemplateID string             `json:"template_id"`
	PassCode   string             `json:"pass_code"`
	Status     model.CouponStatus `json:"status"`
	BuyPrice   int64              `json:"buy_price"`
	IssuedAt   time.Time          `json:"issued_at"`
}

func toCouponResponse(c *model.IssuedCoupon) couponResponse {
	return couponResponse{
		ID:         c.ID,
		TemplateID: c.TemplateID,
		PassCode:   c.PassCode,
		Status:     c.Status,
		BuyPrice:   c.BuyPrice,
		IssuedAt:   c.CreatedAt,
	}
}

type couponDetailsResponse struct {
	CouponID      string                 `json:"coupon_id"`
	PassCode      string                 `json:"pass_code,omitempty"`
	TemplateID    string                 `json:"template_id"`
	TemplateName  string                 `json:"template_name"`
	MerchantID    string                 `json:"merchant_id"`
	Status        model.CouponStatus     `json:"status"`
	BuyPrice      int64                  `json:"buy_price"`
	PromotionType promotion.Type         `json:"promotion_type"`
	DiscountType  promotion.DiscountType `json:"discount_type"`
	DiscountValue float64                `json:"discount_value"`
	StartDate     time.Time              `json:"start_date"`
	EndDate       time.Time              `json:"end_date"`
	DaysRemaining int                    `json:"days_remaining"`
	UsedAt        *time.Time             `json:"used_at,omitempty"`
	IssuedAt      time.Time              `json:"issued_at"`
}

// toDetailsResponse omits the pass code unless the caller owns the coupon.
func toDetailsResponse(d *usecase.CouponDetails, withCode bool) couponDetailsResponse {
	resp := couponDetailsResponse{
		CouponID:      d.CouponID,
		TemplateID:    d.TemplateID,
		TemplateName:  d.TemplateName,
		MerchantID:    d.MerchantID,
		Status:        d.Status,
		BuyPrice:      d.BuyPrice,
		PromotionType: d.PromotionType,
		DiscountType:  d.DiscountType,
		DiscountValue: d.DiscountValue,
		StartDate:     d.StartDate,
		EndDate:       d.EndDate,
		DaysRemaining: d.DaysRemaining,
		UsedAt:        d.UsedAt,
		IssuedAt:      d.IssuedAt,
	}
	if withCode {
		resp.PassCode = d.PassCode
	}
	return resp
}

type writeOffResponse struct {
	CouponID      string    `json:"coupon_id"`
	TemplateID    string    `json:"template_id"`
	Amount        int64     `json:"amount"`
	UsedAt        time.Time `json:"used_at"`
	TransactionID string    `json:"transaction_id"`
}

type accountResponse struct {
	ID      string            `json:"id"`
	OwnerID string            `json:"owner_id"`
	Role    model.AccountRole `json:"role"`
	Balance int64             `json:"balance"`
}

type ledgerEntryResponse struct {
	ID           string             `json:"id"`
	Seq          int64              `json:"seq"`
	Type         model.LedgerTxType `json:"type"`
	Amount       int64              `json:"amount"`
	BalanceAfter int64              `json:"balance_after"`
	TemplateID   *string            `json:"template_id,omitempty"`
	CouponID     *string            `json:"coupon_id,omitempty"`
	Quantity     int                `json:"quantity,omitempty"`
	Note         string             `json:"note,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
}

func toLedgerEntries(in []*model.LedgerTransaction) []ledgerEntryResponse {
	out := make([]ledgerEntryResponse, 0, len(in))
	for _, e := range in {
		out = append(out, ledgerEntryResponse{
			ID:           e.ID,
			Seq:          e.Seq,
			Type:         e.Type,
			Amount:       e.Amount,
			BalanceAfter: e.BalanceAfter,
			TemplateID:   e.RelatedTemplateID,
			CouponID:     e.RelatedCouponID,
			Quantity:     e.Quantity,
			Note:         e.Note,
			CreatedAt:    e.CreatedAt,
		})
	}
	return out
}
