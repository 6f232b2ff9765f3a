package repository

import (
	"context"

	"coupon-marketplace/internal/domain/model"
)

type AccountRepository interface {
	// Create inserts a new account. ErrAlreadyExists if the owner already has one.
	Create(ctx context.Context, tx Tx, a *model.Account) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Account, error)
	FindByOwner(ctx context.Context, tx Tx, ownerID string) (*model.Account, error)
	// AdjustBalance applies delta as a single conditional update that refuses
	// to take the balance below zero. It returns the new balance,
	// ErrInsufficientBalance when the guard fails, or ErrNotFound.
	AdjustBalance(ctx context.Context, tx Tx, id string, delta int64) (int64, error)
}
