package repository

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"digiwallet/internal/model"
	"digiwallet/internal/store"
)

// Store is the MySQL-backed store.Store. Atomically hands fn a Store bound
// to a gorm transaction, so every write made through that handle commits or
// rolls back as one unit.
type Store struct {
	db           *gorm.DB
	accounts     *AccountRepository
	transactions *TransactionRepository
	outbox       *OutboxRepository
}

func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:           db,
		accounts:     NewAccountRepository(db),
		transactions: NewTransactionRepository(db),
		outbox:       NewOutboxRepository(db),
	}
}

var _ store.Store = (*Store)(nil)

func (s *Store) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	return s.accounts.GetByID(ctx, id)
}

func (s *Store) GetAccountForUpdate(ctx context.Context, id string) (*model.Account, error) {
	return s.accounts.GetByIDForUpdate(ctx, id)
}

func (s *Store) FindAccountByContact(ctx context.Context, contact string) (*model.Account, error) {
	return s.accounts.FindByContact(ctx, contact)
}

func (s *Store) CreateAccount(ctx context.Context, account *model.Account) error {
	return s.accounts.Create(ctx, account)
}

func (s *Store) UpdateAccountProfile(ctx context.Context, id string, updates map[string]interface{}) error {
	return s.accounts.UpdateProfile(ctx, id, updates)
}

func (s *Store) SetAccountStatus(ctx context.Context, id, status string) error {
	return s.accounts.SetStatus(ctx, id, status)
}

func (s *Store) ApplyBalanceDelta(ctx context.Context, id string, delta decimal.Decimal, version int) error {
	return s.accounts.ApplyDelta(ctx, id, delta, version)
}

func (s *Store) CreateTransaction(ctx context.Context, txn *model.Transaction) error {
	return s.transactions.Create(ctx, txn)
}

func (s *Store) SetTransactionStatus(ctx context.Context, id int64, fromStatus, toStatus string) error {
	return s.transactions.UpdateStatus(ctx, id, fromStatus, toStatus)
}

func (s *Store) GetTransactionByIdempotencyKey(ctx context.Context, key string) (*model.Transaction, error) {
	return s.transactions.GetByIdempotencyKey(ctx, key)
}

func (s *Store) ListTransactions(ctx context.Context, accountID, kind string, limit int, cursor int64) ([]*model.Transaction, error) {
	return s.transactions.List(ctx, accountID, kind, limit, cursor)
}

func (s *Store) CreateOutboxMessage(ctx context.Context, msg *model.OutboxMessage) error {
	return s.outbox.Create(ctx, msg)
}

func (s *Store) Atomically(ctx context.Context, fn func(store.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewStore(tx))
	})
}
