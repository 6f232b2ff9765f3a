//go:build !integration

package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"coupon-marketplace/internal/domain"
	"coupon-marketplace/internal/domain/model"
)

func openFunded(t *testing.T, f *fixture, owner string, role model.AccountRole, balance int64) *model.Account {
	t.Helper()
	ctx := context.Background()
	acc, err := f.ledger.OpenAccount(ctx, owner, role)
	if err != nil {
		t.Fatalf("OpenAccount(%s): %v", owner, err)
	}
	if balance > 0 {
		if _, err := f.ledger.Recharge(ctx, acc.ID, balance, "seed"); err != nil {
			t.Fatalf("Recharge(%s): %v", owner, err)
		}
	}
	return acc
}

func assertConserved(t *testing.T, f *fixture, accountID string) {
	t.Helper()
	if err := f.ledger.VerifyConservation(context.Background(), accountID); err != nil {
		t.Fatalf("conservation: %v", err)
	}
}

func TestLedgerUseCase_OpenAccount(t *testing.T) {
	ctx := context.Background()

	t.Run("is idempotent per owner", func(t *testing.T) {
		f := newFixture()
		a1, err := f.ledger.OpenAccount(ctx, "merchant-1", model.AccountRoleMerchant)
		if err != nil {
			t.Fatalf("first open: %v", err)
		}
		a2, err := f.ledger.OpenAccount(ctx, "merchant-1", model.AccountRoleMerchant)
		if err != nil {
			t.Fatalf("second open: %v", err)
		}
		if a1.ID != a2.ID {
			t.Fatalf("expected same account, got %s and %s", a1.ID, a2.ID)
		}
		if a2.Balance != 0 {
			t.Fatalf("new account balance = %d, want 0", a2.Balance)
		}
	})

	t.Run("rejects a second role for the same owner", func(t *testing.T) {
		f := newFixture()
		if _, err := f.ledger.OpenAccount(ctx, "u-1", model.AccountRolePlayer); err != nil {
			t.Fatalf("open: %v", err)
		}
		_, err := f.ledger.OpenAccount(ctx, "u-1", model.AccountRoleMerchant)
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		f := newFixture()
		_, err := f.ledger.OpenAccount(ctx, "u-1", model.AccountRole("admin"))
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", err)
		}
	})
}

func TestLedgerUseCase_DebitCredit(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	acc := openFunded(t, f, "player-1", model.AccountRolePlayer, 500)

	txID, err := f.ledger.Debit(ctx, acc.ID, 200, model.LedgerTxCouponPurchase, model.LedgerMeta{TemplateID: "tpl-1", Quantity: 1})
	if err != nil {
		t.Fatalf("Debit: %v", err)
	}
	if txID == "" {
		t.Fatal("expected a transaction id")
	}
	if _, err := f.ledger.Credit(ctx, acc.ID, 50, model.LedgerTxWriteOff, model.LedgerMeta{}); err != nil {
		t.Fatalf("Credit: %v", err)
	}

	bal, err := f.ledger.GetBalance(ctx, acc.ID)
	if err != nil {
		t.Fatalf("GetBalance: %v", err)
	}
	if bal != 350 {
		t.Fatalf("balance = %d, want 350", bal)
	}

	entries := f.ledgerOf(acc.ID)
	if len(entries) != 3 {
		t.Fatalf("expected 3 ledger rows, got %d", len(entries))
	}
	debit := entries[1]
	if debit.Amount != -200 || debit.BalanceAfter != 300 || debit.Type != model.LedgerTxCouponPurchase {
		t.Fatalf("unexpected debit row: %+v", debit)
	}
	if debit.RelatedTemplateID == nil || *debit.RelatedTemplateID != "tpl-1" {
		t.Fatalf("debit should reference tpl-1, got %v", debit.RelatedTemplateID)
	}
	assertConserved(t, f, acc.ID)
}

func TestLedgerUseCase_InsufficientBalanceLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	acc := openFunded(t, f, "player-1", model.AccountRolePlayer, 100)

	_, err := f.ledger.Debit(ctx, acc.ID, 101, model.LedgerTxCouponPurchase, model.LedgerMeta{})
	if !errors.Is(err, domain.ErrInsufficientBalance) {
		t.Fatalf("expected ErrInsufficientBalance, got %v", err)
	}
	if bal, _ := f.ledger.GetBalance(ctx, acc.ID); bal != 100 {
		t.Fatalf("balance changed to %d", bal)
	}
	if n := len(f.ledgerOf(acc.ID)); n != 1 {
		t.Fatalf("expected only the recharge row, got %d rows", n)
	}
}

func TestLedgerUseCase_FailedAppendRollsBackBalance(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	acc := openFunded(t, f, "player-1", model.AccountRolePlayer, 100)

	f.store.appendErr = domain.ErrBusy
	_, err := f.ledger.Debit(ctx, acc.ID, 40, model.LedgerTxCouponPurchase, model.LedgerMeta{})
	f.store.appendErr = nil
	if !errors.Is(err, domain.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}
	if bal, _ := f.ledger.GetBalance(ctx, acc.ID); bal != 100 {
		t.Fatalf("balance = %d after failed posting, want 100", bal)
	}
	assertConserved(t, f, acc.ID)
}

func TestLedgerUseCase_RejectsBadInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	acc := openFunded(t, f, "player-1", model.AccountRolePlayer, 100)

	cases := map[string]func() error{
		"zero debit": func() error {
			_, err := f.ledger.Debit(ctx, acc.ID, 0, model.LedgerTxCouponPurchase, model.LedgerMeta{})
			return err
		},
		"negative credit": func() error {
			_, err := f.ledger.Credit(ctx, acc.ID, -5, model.LedgerTxWriteOff, model.LedgerMeta{})
			return err
		},
		"unknown type": func() error {
			_, err := f.ledger.Credit(ctx, acc.ID, 5, model.LedgerTxType("gift"), model.LedgerMeta{})
			return err
		},
		"zero recharge": func() error {
			_, err := f.ledger.Recharge(ctx, acc.ID, 0, "")
			return err
		},
	}
	for name, call := range cases {
		t.Run(name, func(t *testing.T) {
			if err := call(); !errors.Is(err, domain.ErrValidation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
		})
	}

	if _, err := f.ledger.Debit(ctx, "missing", 5, model.LedgerTxCouponPurchase, model.LedgerMeta{}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown account, got %v", err)
	}
}

func TestLedgerUseCase_HistoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	acc := openFunded(t, f, "player-1", model.AccountRolePlayer, 10)
	for i := 0; i < 4; i++ {
		if _, err := f.ledger.Recharge(ctx, acc.ID, int64(i+1), ""); err != nil {
			t.Fatalf("recharge: %v", err)
		}
	}

	got, err := f.ledger.History(ctx, acc.ID, 3)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Seq <= got[i].Seq {
			t.Fatalf("history not newest first: seq %d before %d", got[i-1].Seq, got[i].Seq)
		}
	}
	if got[0].BalanceAfter != 20 {
		t.Fatalf("latest balance_after = %d, want 20", got[0].BalanceAfter)
	}

	if _, err := f.ledger.History(ctx, "missing", 10); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLedgerUseCase_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	acc := openFunded(t, f, "player-1", model.AccountRolePlayer, 100)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.ledger.Debit(ctx, acc.ID, 10, model.LedgerTxCouponPurchase, model.LedgerMeta{}); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			} else if !errors.Is(err, domain.ErrInsufficientBalance) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 10 {
		t.Fatalf("expected exactly 10 successful debits, got %d", ok)
	}
	if bal, _ := f.ledger.GetBalance(ctx, acc.ID); bal != 0 {
		t.Fatalf("balance = %d, want 0", bal)
	}
	assertConserved(t, f, acc.ID)
}
