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
var _ CatalogUseCase = (*catalogUC)(nil)

// CatalogUseCase manages merchant coupon templates.
type CatalogUseCase interface {
	// CreateTemplate inserts the template and debits pointsPrice*totalQuantity
	// from the merchant in one transaction.
	CreateTemplate(ctx context.Context, merchantID string, spec model.TemplateSpec) (*model.CouponTemplate, error)
	// DecrementRemaining takes one unit in its own transaction.
	DecrementRemaining(ctx context.Context, templateID string) error
	// DecrementRemainingTx takes one unit inside the caller's transaction.
	DecrementRemainingTx(ctx context.Context, tx repository.Tx, templateID string) error
	GetTemplate(ctx context.Context, templateID string) (*model.CouponTemplate, error)
	ListByMerchant(ctx context.Context, merchantID string) ([]*model.CouponTemplate, error)
	// Deactivate stops further issuance; already issued coupons stay redeemable.
	Deactivate(ctx context.Context, templateID, merchantID string) (*model.CouponTemplate, error)
}

type catalogUC struct {
	templates repository.CouponTemplateRepository
	accounts  repository.AccountRepository
	book      *ledgerBook
	tm        repository.TransactionManager
	log       *zerolog.Logger
	now       func() time.Time
}

func NewCatalogUseCase(
	templates repository.CouponTemplateRepository,
	accounts repository.AccountRepository,
	entries repository.LedgerRepository,
	tm repository.TransactionManager,
	logger *zerolog.Logger,
) *catalogUC {
	if logger == nil {
		logger = logging.Nop()
	}
	uc := &catalogUC{
		templates: templates,
		accounts:  accounts,
		tm:        tm,
		log:       logger,
		now:       time.Now,
	}
	uc.book = &ledgerBook{accounts: accounts, entries: entries, now: func() time.Time { return uc.now() }}
	return uc
}

func (u *catalogUC) CreateTemplate(ctx context.Context, merchantID string, spec model.TemplateSpec) (*model.CouponTemplate, error) {
	defer logging.TraceDuration(u.log, "CatalogUC.CreateTemplate")()

	tpl, err := model.NewCouponTemplate(merchantID, spec, u.now())
	if err != nil {
		metrics.IncTemplateCreated(resultLabel(err))
		return nil, err
	}

	var entry *model.LedgerTransaction
	err = u.tm.WithTx(ctx, readCommitted, func(ctx context.Context, tx repository.Tx) error {
		acc, err := u.accounts.FindByOwner(ctx, tx, merchantID)
		if err != nil {
			return err
		}
		if acc.Role != model.AccountRoleMerchant {
			return domain.ErrForbidden
		}
		if err := u.templates.Create(ctx, tx, tpl); err != nil {
			return err
		}
		// The balance guard lives in the debit itself; no separate pre-check
		// that a concurrent creation could invalidate.
		entry, err = u.book.post(ctx, tx, acc.ID, -tpl.TotalCost(), model.LedgerTxCouponCreation, model.LedgerMeta{
			TemplateID: tpl.ID,
			Quantity:   tpl.TotalQuantity,
		})
		return err
	})
	metrics.IncTemplateCreated(resultLabel(err))
	if err != nil {
		u.log.Warn().Err(err).Str("merchant_id", merchantID).Int64("total_cost", tpl.TotalCost()).Msg("template creation failed")
		return nil, err
	}
	observe(entry)
	u.log.Info().
		Str("merchant_id", merchantID).
		Str("template_id", tpl.ID).
		Int64("total_cost", tpl.TotalCost()).
		Int("quantity", tpl.TotalQuantity).
		Msg("coupon template created")
	return tpl, nil
}

func (u *catalogUC) DecrementRemaining(ctx context.Context, templateID string) error {
	return u.tm.WithTx(ctx, readCommitted, func(ctx context.Context, tx repository.Tx) error {
		return u.DecrementRemainingTx(ctx, tx, templateID)
	})
}

func (u *catalogUC) DecrementRemainingTx(ctx context.Context, tx repository.Tx, templateID string) error {
	if templateID == "" {
		return domain.Invalid("template_id", "is required")
	}
	return u.templates.DecrementRemaining(ctx, tx, templateID)
}

func (u *catalogUC) GetTemplate(ctx context.Context, templateID string) (*model.CouponTemplate, error) {
	defer logging.TraceDuration(u.log, "CatalogUC.GetTemplate")()
	return u.templates.FindByID(ctx, repository.NoTX, templateID)
}

func (u *catalogUC) ListByMerchant(ctx context.Context, merchantID string) ([]*model.CouponTemplate, error) {
	defer logging.TraceDuration(u.log, "CatalogUC.ListByMerchant")()
	return u.templates.ListByMerchant(ctx, repository.NoTX, merchantID)
}

func (u *catalogUC) Deactivate(ctx context.Context, templateID, merchantID string) (*model.CouponTemplate, error) {
	defer logging.TraceDuration(u.log, "CatalogUC.Deactivate")()

	var out *model.CouponTemplate
	err := u.tm.WithTx(ctx, readCommitted, func(ctx context.Context, tx repository.Tx) error {
		tpl, err := u.templates.FindByID(ctx, tx, templateID)
		if err != nil {
			return err
		}
		if tpl.MerchantID != merchantID {
			return domain.ErrForbidden
		}
		changed, err := u.templates.UpdateStatus(ctx, tx, templateID, model.TemplateStatusActive, model.TemplateStatusInactive)
		if err != nil {
			return err
		}
		if !changed && tpl.Status != model.TemplateStatusInactive {
			return domain.ErrTemplateExpired
		}
		tpl.Status = model.TemplateStatusInactive
		out = tpl
		return nil
	})
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			u.log.Warn().Err(err).Str("template_id", templateID).Msg("deactivate failed")
		}
		return nil, err
	}
	return out, nil
}
