package usecase

import (
	"context"
	"errors"
	"time"

	"coupon-marketplace/internal/domain"
	"coupon-marketplace/internal/domain/model"
	"coupon-marketplace/internal/domain/ports/repository"
	"coupon-marketplace/internal/infra/logging"
	"coupon-marketplace/internal/infra/metrics"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ IssuanceUseCase = (*issuanceUC)(nil)

// IssuanceUseCase turns templates into player-owned coupons.
type IssuanceUseCase interface {
	// Issue hands a coupon to the player without moving points.
	Issue(ctx context.Context, templateID, playerID string) (*model.IssuedCoupon, error)
	// Purchase issues a coupon and debits the player its buy price in the same transaction.
	Purchase(ctx context.Context, templateID, playerID string) (*model.IssuedCoupon, error)
	// ListByPlayer returns the player's coupons with expiry folded into Status.
	ListByPlayer(ctx context.Context, playerID string) ([]*CouponDetails, error)
}

type issuanceUC struct {
	catalog     CatalogUseCase
	templates   repository.CouponTemplateRepository
	coupons     repository.IssuedCouponRepository
	accounts    repository.AccountRepository
	book        *ledgerBook
	tm          repository.TransactionManager
	log         *zerolog.Logger
	maxAttempts int
	genCode     func() (string, error)
	now         func() time.Time
}

func NewIssuanceUseCase(
	catalog CatalogUseCase,
	templates repository.CouponTemplateRepository,
	coupons repository.IssuedCouponRepository,
	accounts repository.AccountRepository,
	entries repository.LedgerRepository,
	tm repository.TransactionManager,
	maxAttempts int,
	logger *zerolog.Logger,
) *issuanceUC {
	if logger == nil {
		logger = logging.Nop()
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	uc := &issuanceUC{
		catalog:     catalog,
		templates:   templates,
		coupons:     coupons,
		accounts:    accounts,
		tm:          tm,
		log:         logger,
		maxAttempts: maxAttempts,
		genCode:     generatePassCode,
		now:         time.Now,
	}
	uc.book = &ledgerBook{accounts: accounts, entries: entries, now: func() time.Time { return uc.now() }}
	return uc
}

func (u *issuanceUC) Issue(ctx context.Context, templateID, playerID string) (*model.IssuedCoupon, error) {
	defer logging.TraceDuration(u.log, "IssuanceUC.Issue")()
	return u.issue(ctx, templateID, playerID, false)
}

func (u *issuanceUC) Purchase(ctx context.Context, templateID, playerID string) (*model.IssuedCoupon, error) {
	defer logging.TraceDuration(u.log, "IssuanceUC.Purchase")()
	return u.issue(ctx, templateID, playerID, true)
}

func (u *issuanceUC) issue(ctx context.Context, templateID, playerID string, charge bool) (*model.IssuedCoupon, error) {
	flow := "issue"
	if charge {
		flow = "purchase"
	}
	if playerID == "" {
		return nil, domain.Invalid("player_id", "is required")
	}
	if templateID == "" {
		return nil, domain.Invalid("template_id", "is required")
	}

	var (
		coupon *model.IssuedCoupon
		entry  *model.LedgerTransaction
	)
	err := u.tm.WithTx(ctx, readCommitted, func(ctx context.Context, tx repository.Tx) error {
		now := u.now()
		tpl, err := u.templates.FindByID(ctx, tx, templateID)
		if err != nil {
			return err
		}
		if err := tpl.CheckIssuable(now); err != nil {
			return err
		}
		// Conditional decrement: the guard, not the read above, decides who gets the last unit.
		if err := u.catalog.DecrementRemainingTx(ctx, tx, tpl.ID); err != nil {
			return err
		}
		coupon, err = u.insertWithFreshCode(ctx, tx, tpl, playerID, now)
		if err != nil {
			return err
		}
		if !charge {
			return nil
		}
		acc, err := u.accounts.FindByOwner(ctx, tx, playerID)
		if err != nil {
			return err
		}
		entry, err = u.book.post(ctx, tx, acc.ID, -coupon.BuyPrice, model.LedgerTxCouponPurchase, model.LedgerMeta{
			TemplateID: tpl.ID,
			CouponID:   coupon.ID,
			Quantity:   1,
		})
		return err
	})
	metrics.IncCouponIssued(flow, resultLabel(err))
	if err != nil {
		u.log.Warn().Err(err).Str("flow", flow).Str("template_id", templateID).Str("player_id", playerID).Msg("issuance failed")
		return nil, err
	}
	observe(entry)
	u.log.Info().Str("flow", flow).Str("template_id", templateID).Str("player_id", playerID).Str("coupon_id", coupon.ID).Msg("coupon issued")
	return coupon, nil
}

// insertWithFreshCode retries on pass code collisions reported by the store's unique constraint.
func (u *issuanceUC) insertWithFreshCode(ctx context.Context, tx repository.Tx, tpl *model.CouponTemplate, playerID string, now time.Time) (*model.IssuedCoupon, error) {
	for attempt := 0; attempt < u.maxAttempts; attempt++ {
		code, err := u.genCode()
		if err != nil {
			return nil, err
		}
		c := model.NewIssuedCoupon(tpl, playerID, code, now)
		err = u.coupons.Create(ctx, tx, c)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, domain.ErrAlreadyExists) {
			return nil, err
		}
		metrics.IncPasscodeCollision()
		u.log.Debug().Int("attempt", attempt+1).Msg("pass code collision, regenerating")
	}
	return nil, domain.ErrBusy
}

func (u *issuanceUC) ListByPlayer(ctx context.Context, playerID string) ([]*CouponDetails, error) {
	defer logging.TraceDuration(u.log, "IssuanceUC.ListByPlayer")()
	rows, err := u.coupons.ListByUser(ctx, repository.NoTX, playerID)
	if err != nil {
		return nil, err
	}
	now := u.now()
	out := make([]*CouponDetails, 0, len(rows))
	for _, cw := range rows {
		out = append(out, newCouponDetails(cw, now))
	}
	return out, nil
}
