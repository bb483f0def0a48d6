package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TransactionKindTransfer = "transfer"
	TransactionKindCashIn   = "cash_in"
	TransactionKindCashOut  = "cash_out"
)

const (
	TransactionStatusPending   = "pending"
	TransactionStatusCompleted = "completed"
	TransactionStatusFailed    = "failed"
)

// pending is the only non-terminal state; completed and failed rows are
// immutable.
var validStatusTransitions = map[string][]string{
	TransactionStatusPending: {TransactionStatusCompleted, TransactionStatusFailed},
}

func CanTransitionTo(currentStatus, targetStatus string) bool {
	allowed, exists := validStatusTransitions[currentStatus]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == targetStatus {
			return true
		}
	}
	return false
}

// Transaction is one row of the append-only ledger.
//
// Rows are never updated after reaching a terminal status and never deleted.
// SenderID == ReceiverID for cash_in/cash_out: funds cross the system
// boundary, modeled as a self-referencing entry. The balance-after columns
// record the authoritative balances at commit time and are the basis for
// reconciliation.
type Transaction struct {
	ID                   int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	TransactionNo        string           `gorm:"type:varchar(64);uniqueIndex;not null" json:"transaction_no"`
	IdempotencyKey       *string          `gorm:"type:varchar(64);uniqueIndex" json:"idempotency_key,omitempty"`
	SenderID             string           `gorm:"type:varchar(36);index;not null" json:"sender_id"`
	ReceiverID           string           `gorm:"type:varchar(36);index;not null" json:"receiver_id"`
	Amount               decimal.Decimal  `gorm:"type:decimal(20,2);not null" json:"amount"`
	Kind                 string           `gorm:"type:varchar(20);index;not null" json:"kind"`
	Description          string           `gorm:"type:varchar(256)" json:"description"`
	Method               string           `gorm:"type:varchar(32)" json:"method,omitempty"`
	Destination          string           `gorm:"type:varchar(64)" json:"destination,omitempty"`
	Status               string           `gorm:"type:varchar(20);index;not null" json:"status"`
	SenderBalanceAfter   *decimal.Decimal `gorm:"type:decimal(20,2)" json:"sender_balance_after,omitempty"`
	ReceiverBalanceAfter *decimal.Decimal `gorm:"type:decimal(20,2)" json:"receiver_balance_after,omitempty"`
	CreatedAt            time.Time        `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt            time.Time        `gorm:"autoUpdateTime" json:"-"`
}

func (Transaction) TableName() string {
	return "wallet_transaction"
}
