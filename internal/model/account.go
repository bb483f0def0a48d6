package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	AccountStatusActive   = "ACTIVE"
	AccountStatusDisabled = "DISABLED"
)

// Account holds a user's identity fields and wallet balance.
// The balance column is only ever written through the ledger's atomic
// update path; Version backs the optimistic lock on that path.
type Account struct {
	ID           string          `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name         string          `gorm:"type:varchar(128);not null" json:"name"`
	Email        string          `gorm:"type:varchar(128);uniqueIndex;not null" json:"email"`
	Phone        string          `gorm:"type:varchar(32);uniqueIndex;not null" json:"phone"`
	PasswordHash string          `gorm:"type:varchar(128);not null" json:"-"`
	PinHash      string          `gorm:"type:varchar(128)" json:"-"`
	Balance      decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"balance"`
	Version      int             `gorm:"not null;default:0" json:"-"`
	Status       string          `gorm:"type:varchar(20);not null;default:ACTIVE" json:"status"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}

// Public is the projection exposed by receiver lookup: name only, never
// balance or secrets.
type AccountPublic struct {
	Name string `json:"name"`
}

func (a *Account) Public() *AccountPublic {
	return &AccountPublic{Name: a.Name}
}
