//go:build !integration

package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"coupon-marketplace/internal/domain"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
)

func TestMapPgErr(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", pgx.ErrNoRows, domain.ErrNotFound},
		{"caller canceled", fmt.Errorf("query: %w", context.Canceled), domain.ErrCanceled},
		{"deadline", context.DeadlineExceeded, domain.ErrBusy},
		{"unique", &pgconn.PgError{Code: pgUniqueViolation}, domain.ErrAlreadyExists},
		{"lock timeout", &pgconn.PgError{Code: pgLockNotAvailable}, domain.ErrBusy},
		{"balance guard", &pgconn.PgError{Code: pgCheckViolation, ConstraintName: "accounts_balance_nonnegative"}, domain.ErrInsufficientBalance},
		{"other", errors.New("conn reset"), domain.ErrOperationFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mapPgErr("op", tc.err)
			if !errors.Is(got, tc.want) {
				t.Fatalf("mapPgErr(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}

	t.Run("canceled is not an operation failure", func(t *testing.T) {
		if errors.Is(mapPgErr("op", context.Canceled), domain.ErrOperationFailed) {
			t.Fatal("client cancellation reported as a failed operation")
		}
	})
}
