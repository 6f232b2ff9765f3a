package model

import "time"

type LedgerTxType string

const (
	LedgerTxCouponCreation LedgerTxType = "coupon_creation"
	LedgerTxRechargePoints LedgerTxType = "recharge_points"
	LedgerTxWriteOff       LedgerTxType = "write_off"
	LedgerTxCouponPurchase LedgerTxType = "coupon_purchase"
)

func (t LedgerTxType) Valid() bool {
	switch t {
	case LedgerTxCouponCreation, LedgerTxRechargePoints, LedgerTxWriteOff, LedgerTxCouponPurchase:
		return true
	}
	return false
}

type LedgerTxStatus string

const (
	LedgerTxCompleted LedgerTxStatus = "completed"
	LedgerTxFailed    LedgerTxStatus = "failed"
)

// LedgerMeta links a posting to the business object that caused it.
type LedgerMeta struct {
	TemplateID string
	CouponID   string
	Quantity   int
	Note       string
}

// LedgerTransaction is an immutable record of one balance mutation.
// Amount is signed: debits are negative. Seq is assigned by the store at
// commit and orders the history of an account.
type LedgerTransaction struct {
	ID                string
	Seq               int64
	AccountID         string
	Type              LedgerTxType
	Amount            int64
	BalanceAfter      int64
	Status            LedgerTxStatus
	RelatedTemplateID *string
	RelatedCouponID   *string
	Quantity          int
	Note              string
	CreatedAt         time.Time
}

func (t *LedgerTransaction) IsDebit() bool { return t.Amount < 0 }
