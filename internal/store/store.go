package store

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"digiwallet/internal/model"
)

var (
	ErrAccountNotFound  = errors.New("account not found")
	ErrAmbiguousContact = errors.New("contact matches more than one account")
	ErrDuplicateContact = errors.New("email or phone already registered")
	ErrDuplicateKey     = errors.New("duplicate idempotency key")
	ErrBalanceNotEnough = errors.New("balance not enough")
	ErrOptimisticLock   = errors.New("optimistic lock conflict")
	ErrStatusInvalid    = errors.New("transaction status transition not allowed")
)

// Store is the durable account/transaction store behind the ledger.
//
// The ledger service only talks to this interface, so it runs against the
// MySQL-backed implementation in production and an in-memory fake in tests.
// Atomically runs fn against a handle whose writes commit as one unit or not
// at all; balance mutations go through ApplyBalanceDelta, a version-guarded
// compare-and-swap that refuses to drive a balance negative.
type Store interface {
	GetAccount(ctx context.Context, id string) (*model.Account, error)
	GetAccountForUpdate(ctx context.Context, id string) (*model.Account, error)
	FindAccountByContact(ctx context.Context, contact string) (*model.Account, error)
	CreateAccount(ctx context.Context, account *model.Account) error
	UpdateAccountProfile(ctx context.Context, id string, updates map[string]interface{}) error
	SetAccountStatus(ctx context.Context, id, status string) error

	// ApplyBalanceDelta adds delta to the account balance iff the stored
	// version still matches. A debit that would overdraw fails with
	// ErrBalanceNotEnough; a version mismatch fails with ErrOptimisticLock.
	ApplyBalanceDelta(ctx context.Context, id string, delta decimal.Decimal, version int) error

	CreateTransaction(ctx context.Context, txn *model.Transaction) error
	SetTransactionStatus(ctx context.Context, id int64, fromStatus, toStatus string) error
	GetTransactionByIdempotencyKey(ctx context.Context, key string) (*model.Transaction, error)
	ListTransactions(ctx context.Context, accountID, kind string, limit int, cursor int64) ([]*model.Transaction, error)

	CreateOutboxMessage(ctx context.Context, msg *model.OutboxMessage) error

	Atomically(ctx context.Context, fn func(Store) error) error
}
