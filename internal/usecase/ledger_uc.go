package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coupon-marketplace/internal/domain"
	"coupon-marketplace/internal/domain/model"
	"coupon-marketplace/internal/domain/ports/repository"
	"coupon-marketplace/internal/infra/logging"
	"coupon-marketplace/internal/infra/metrics"

	"github.com/jackc/pgx/v4"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
)

// Compile-time check
var _ LedgerUseCase = (*ledgerUC)(nil)

// LedgerUseCase is the points system of record. Each balance change is
// committed together with exactly one LedgerTransaction.
type LedgerUseCase interface {
	// OpenAccount returns the owner's account, creating it on first use.
	OpenAccount(ctx context.Context, ownerID string, role model.AccountRole) (*model.Account, error)
	AccountByOwner(ctx context.Context, ownerID string) (*model.Account, error)
	GetBalance(ctx context.Context, accountID string) (int64, error)
	// Debit and Credit take a positive magnitude and return the transaction id.
	Debit(ctx context.Context, accountID string, amount int64, txType model.LedgerTxType, meta model.LedgerMeta) (string, error)
	Credit(ctx context.Context, accountID string, amount int64, txType model.LedgerTxType, meta model.LedgerMeta) (string, error)
	Recharge(ctx context.Context, accountID string, amount int64, note string) (*model.LedgerTransaction, error)
	History(ctx context.Context, accountID string, limit int) ([]*model.LedgerTransaction, error)
	// VerifyConservation checks balance == sum(amounts) for the account.
	VerifyConservation(ctx context.Context, accountID string) error
}

// readCommitted is enough for every flow here: contended fields are only
// touched through conditional updates, which Postgres re-checks after
// acquiring the row lock.
var readCommitted = pgx.TxOptions{IsoLevel: pgx.ReadCommitted}

// ledgerBook posts entries inside a caller-owned transaction. It is shared by
// every use case that moves points.
type ledgerBook struct {
	accounts repository.AccountRepository
	entries  repository.LedgerRepository
	now      func() time.Time
}

// post applies a signed amount to the account and appends the matching record.
func (b *ledgerBook) post(ctx context.Context, tx repository.Tx, accountID string, amount int64, txType model.LedgerTxType, meta model.LedgerMeta) (*model.LedgerTransaction, error) {
	if amount == 0 {
		return nil, domain.Invalid("amount", "must not be zero")
	}
	if !txType.Valid() {
		return nil, domain.Invalid("type", fmt.Sprintf("unknown ledger type %q", txType))
	}
	balance, err := b.accounts.AdjustBalance(ctx, tx, accountID, amount)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientBalance) || errors.Is(err, domain.ErrNotFound) {
			metrics.IncLedgerRejection(resultLabel(err))
		}
		return nil, err
	}
	entry := &model.LedgerTransaction{
		ID:           ulid.Make().String(),
		AccountID:    accountID,
		Type:         txType,
		Amount:       amount,
		BalanceAfter: balance,
		Status:       model.LedgerTxCompleted,
		Quantity:     meta.Quantity,
		Note:         meta.Note,
		CreatedAt:    b.now().UTC(),
	}
	if meta.TemplateID != "" {
		entry.RelatedTemplateID = &meta.TemplateID
	}
	if meta.CouponID != "" {
		entry.RelatedCouponID = &meta.CouponID
	}
	if err := b.entries.Append(ctx, tx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// observe records committed postings; call only after the transaction committed.
func observe(entries ...*model.LedgerTransaction) {
	for _, e := range entries {
		if e != nil {
			metrics.ObservePosting(string(e.Type), e.Amount)
		}
	}
}

type ledgerUC struct {
	book     *ledgerBook
	accounts repository.AccountRepository
	entries  repository.LedgerRepository
	tm       repository.TransactionManager
	log      *zerolog.Logger
}

func NewLedgerUseCase(accounts repository.AccountRepository, entries repository.LedgerRepository, tm repository.TransactionManager, logger *zerolog.Logger) *ledgerUC {
	if logger == nil {
		logger = logging.Nop()
	}
	return &ledgerUC{
		book:     &ledgerBook{accounts: accounts, entries: entries, now: time.Now},
		accounts: accounts,
		entries:  entries,
		tm:       tm,
		log:      logger,
	}
}

func (u *ledgerUC) OpenAccount(ctx context.Context, ownerID string, role model.AccountRole) (*model.Account, error) {
	defer logging.TraceDuration(u.log, "LedgerUC.OpenAccount")()

	acc, err := model.NewAccount(ownerID, role)
	if err != nil {
		return nil, err
	}
	var out *model.Account
	err = u.tm.WithTx(ctx, readCommitted, func(ctx context.Context, tx repository.Tx) error {
		existing, err := u.accounts.FindByOwner(ctx, tx, ownerID)
		if err == nil {
			out = existing
			return nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		if err := u.accounts.Create(ctx, tx, acc); err != nil {
			if !errors.Is(err, domain.ErrAlreadyExists) {
				return err
			}
			// lost a race with a concurrent open for the same owner
			existing, err = u.accounts.FindByOwner(ctx, tx, ownerID)
			if err != nil {
				return err
			}
			out = existing
			return nil
		}
		out = acc
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out.Role != role {
		return nil, domain.Invalid("role", fmt.Sprintf("owner already holds a %s account", out.Role))
	}
	return out, nil
}

func (u *ledgerUC) AccountByOwner(ctx context.Context, ownerID string) (*model.Account, error) {
	defer logging.TraceDuration(u.log, "LedgerUC.AccountByOwner")()
	return u.accounts.FindByOwner(ctx, repository.NoTX, ownerID)
}

func (u *ledgerUC) GetBalance(ctx context.Context, accountID string) (int64, error) {
	defer logging.TraceDuration(u.log, "LedgerUC.GetBalance")()
	acc, err := u.accounts.FindByID(ctx, repository.NoTX, accountID)
	if err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

func (u *ledgerUC) Debit(ctx context.Context, accountID string, amount int64, txType model.LedgerTxType, meta model.LedgerMeta) (string, error) {
	if amount <= 0 {
		return "", domain.Invalid("amount", "must be positive")
	}
	e, err := u.postOne(ctx, accountID, -amount, txType, meta)
	if err != nil {
		return "", err
	}
	return e.ID, nil
}

func (u *ledgerUC) Credit(ctx context.Context, accountID string, amount int64, txType model.LedgerTxType, meta model.LedgerMeta) (string, error) {
	if amount <= 0 {
		return "", domain.Invalid("amount", "must be positive")
	}
	e, err := u.postOne(ctx, accountID, amount, txType, meta)
	if err != nil {
		return "", err
	}
	return e.ID, nil
}

func (u *ledgerUC) Recharge(ctx context.Context, accountID string, amount int64, note string) (*model.LedgerTransaction, error) {
	if amount <= 0 {
		return nil, domain.Invalid("amount", "must be positive")
	}
	return u.postOne(ctx, accountID, amount, model.LedgerTxRechargePoints, model.LedgerMeta{Note: note})
}

func (u *ledgerUC) postOne(ctx context.Context, accountID string, amount int64, txType model.LedgerTxType, meta model.LedgerMeta) (*model.LedgerTransaction, error) {
	defer logging.TraceDuration(u.log, "LedgerUC.post")()

	var entry *model.LedgerTransaction
	err := u.tm.WithTx(ctx, readCommitted, func(ctx context.Context, tx repository.Tx) error {
		e, err := u.book.post(ctx, tx, accountID, amount, txType, meta)
		if err != nil {
			return err
		}
		entry = e
		return nil
	})
	if err != nil {
		u.log.Warn().Err(err).Str("account_id", accountID).Str("type", string(txType)).Int64("amount", amount).Msg("ledger posting rejected")
		return nil, err
	}
	observe(entry)
	u.log.Info().Str("account_id", accountID).Str("tx_id", entry.ID).Str("type", string(txType)).Int64("amount", amount).Int64("balance", entry.BalanceAfter).Msg("ledger posting committed")
	return entry, nil
}

func (u *ledgerUC) History(ctx context.Context, accountID string, limit int) ([]*model.LedgerTransaction, error) {
	defer logging.TraceDuration(u.log, "LedgerUC.History")()
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if _, err := u.accounts.FindByID(ctx, repository.NoTX, accountID); err != nil {
		return nil, err
	}
	return u.entries.ListByAccount(ctx, repository.NoTX, accountID, limit)
}

func (u *ledgerUC) VerifyConservation(ctx context.Context, accountID string) error {
	var balance, sum int64
	err := u.tm.WithTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, func(ctx context.Context, tx repository.Tx) error {
		acc, err := u.accounts.FindByID(ctx, tx, accountID)
		if err != nil {
			return err
		}
		balance = acc.Balance
		sum, err = u.entries.SumByAccount(ctx, tx, accountID)
		return err
	})
	if err != nil {
		return err
	}
	if balance != sum {
		u.log.Error().Str("account_id", accountID).Int64("balance", balance).Int64("ledger_sum", sum).Msg("ledger conservation violated")
		return fmt.Errorf("account %s: balance %d != ledger sum %d", accountID, balance, sum)
	}
	return nil
}
