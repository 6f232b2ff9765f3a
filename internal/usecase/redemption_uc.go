package usecase

import (
	"context"
	"time"

	"coupon-marketplace/internal/domain"
	"coupon-marketplace/internal/domain/model"
	"coupon-marketplace/internal/domain/ports/repository"
	"coupon-marketplace/internal/infra/logging"
	"coupon-marketplace/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ RedemptionUseCase = (*redemptionUC)(nil)

// RedemptionUseCase is the merchant-facing check-then-redeem protocol.
// Redeem never trusts an earlier Check: it re-validates inside its own transaction.
type RedemptionUseCase interface {
	Check(ctx context.Context, passCode, merchantID string) (*CouponDetails, error)
	Redeem(ctx context.Context, couponID, merchantID string) (*WriteOff, error)
}

// WriteOff is the receipt of a successful redemption.
type WriteOff struct {
	CouponID      string
	TemplateID    string
	MerchantID    string
	Amount        int64
	UsedAt        time.Time
	TransactionID string
}

type redemptionUC struct {
	coupons  repository.IssuedCouponRepository
	accounts repository.AccountRepository
	book     *ledgerBook
	tm       repository.TransactionManager
	log      *zerolog.Logger
	dev      bool
	now      func() time.Time
}

func NewRedemptionUseCase(
	coupons repository.IssuedCouponRepository,
	accounts repository.AccountRepository,
	entries repository.LedgerRepository,
	tm repository.TransactionManager,
	dev bool,
	logger *zerolog.Logger,
) *redemptionUC {
	if logger == nil {
		logger = logging.Nop()
	}
	uc := &redemptionUC{
		coupons:  coupons,
		accounts: accounts,
		tm:       tm,
		log:      logger,
		dev:      dev,
		now:      time.Now,
	}
	uc.book = &ledgerBook{accounts: accounts, entries: entries, now: func() time.Time { return uc.now() }}
	return uc
}

// validateRedeemable applies the ownership, status and expiry rules shared by both phases.
func validateRedeemable(cw *model.CouponWithTemplate, merchantID string, now time.Time) error {
	if cw.Template.MerchantID != merchantID {
		return domain.ErrForbidden
	}
	if cw.Coupon.Status == model.CouponStatusUsed {
		e := &domain.AlreadyUsedError{}
		if cw.Coupon.UsedAt != nil {
			e.UsedAt = *cw.Coupon.UsedAt
		}
		return e
	}
	if cw.Template.IsExpired(now) {
		return domain.NewExpiredError(cw.Template.EndDate, now)
	}
	return nil
}

func (u *redemptionUC) Check(ctx context.Context, passCode, merchantID string) (*CouponDetails, error) {
	defer logging.TraceDuration(u.log, "RedemptionUC.Check")()

	details, err := u.check(ctx, passCode, merchantID)
	metrics.IncRedemption("check", resultLabel(err))
	if err != nil {
		u.log.Info().Err(err).Str("merchant_id", merchantID).Str("pass_code", logging.Redact(passCode, u.dev)).Msg("coupon check refused")
		return nil, err
	}
	return details, nil
}

func (u *redemptionUC) check(ctx context.Context, passCode, merchantID string) (*CouponDetails, error) {
	if merchantID == "" {
		return nil, domain.Invalid("merchant_id", "is required")
	}
	code, err := normalizePassCode(passCode)
	if err != nil {
		return nil, err
	}
	cw, err := u.coupons.FindByPassCode(ctx, repository.NoTX, code)
	if err != nil {
		return nil, err
	}
	now := u.now()
	if err := validateRedeemable(cw, merchantID, now); err != nil {
		return nil, err
	}
	return newCouponDetails(cw, now), nil
}

func (u *redemptionUC) Redeem(ctx context.Context, couponID, merchantID string) (*WriteOff, error) {
	defer logging.TraceDuration(u.log, "RedemptionUC.Redeem")()

	if couponID == "" {
		return nil, domain.Invalid("coupon_id", "is required")
	}
	if merchantID == "" {
		return nil, domain.Invalid("merchant_id", "is required")
	}

	var (
		receipt *WriteOff
		entry   *model.LedgerTransaction
	)
	err := u.tm.WithTx(ctx, readCommitted, func(ctx context.Context, tx repository.Tx) error {
		cw, err := u.coupons.FindByID(ctx, tx, couponID)
		if err != nil {
			return err
		}
		now := u.now()
		if err := validateRedeemable(cw, merchantID, now); err != nil {
			return err
		}
		swapped, err := u.coupons.MarkUsed(ctx, tx, couponID, now)
		if err != nil {
			return err
		}
		if !swapped {
			// Someone else redeemed between our read and the swap; report their timestamp.
			e := &domain.AlreadyUsedError{}
			if fresh, ferr := u.coupons.FindByID(ctx, tx, couponID); ferr == nil && fresh.Coupon.UsedAt != nil {
				e.UsedAt = *fresh.Coupon.UsedAt
			}
			return e
		}
		acc, err := u.accounts.FindByOwner(ctx, tx, merchantID)
		if err != nil {
			return err
		}
		entry, err = u.book.post(ctx, tx, acc.ID, cw.Coupon.BuyPrice, model.LedgerTxWriteOff, model.LedgerMeta{
			TemplateID: cw.Template.ID,
			CouponID:   couponID,
			Quantity:   1,
		})
		if err != nil {
			return err
		}
		receipt = &WriteOff{
			CouponID:      couponID,
			TemplateID:    cw.Template.ID,
			MerchantID:    merchantID,
			Amount:        cw.Coupon.BuyPrice,
			UsedAt:        now,
			TransactionID: entry.ID,
		}
		return nil
	})
	metrics.IncRedemption("redeem", resultLabel(err))
	if err != nil {
		u.log.Info().Err(err).Str("merchant_id", merchantID).Str("coupon_id", couponID).Msg("redeem refused")
		return nil, err
	}
	observe(entry)
	u.log.Info().Str("merchant_id", merchantID).Str("coupon_id", couponID).Int64("amount", receipt.Amount).Str("tx_id", receipt.TransactionID).Msg("coupon written off")
	return receipt, nil
}
