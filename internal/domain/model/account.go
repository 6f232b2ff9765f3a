package model

import (
	"time"

	"coupon-marketplace/internal/domain"

	"github.com/google/uuid"
)

type AccountRole string

const (
	AccountRoleMerchant AccountRole = "merchant"
	AccountRolePlayer   AccountRole = "player"
)

// Account holds the points balance of one merchant or one player.
// Balance only changes through ledger postings.
type Account struct {
	ID        string
	OwnerID   string
	Role      AccountRole
	Balance   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewAccount(ownerID string, role AccountRole) (*Account, error) {
	if ownerID == "" {
		return nil, domain.Invalid("owner_id", "is required")
	}
	if role != AccountRoleMerchant && role != AccountRolePlayer {
		return nil, domain.Invalid("role", "must be merchant or player")
	}
	now := time.Now().UTC()
	return &Account{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
