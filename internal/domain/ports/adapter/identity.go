package adapter

import (
	"context"

	"coupon-marketplace/internal/domain/model"
)

// Principal is the already-authenticated caller.
type Principal struct {
	ID    string
	Email string
	Role  model.AccountRole
}

// Identity supplies the current caller; authentication happens upstream.
type Identity interface {
	CurrentUser(ctx context.Context) (Principal, error)
}
