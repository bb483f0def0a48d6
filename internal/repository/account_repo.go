package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"digiwallet/internal/model"
	"digiwallet/internal/store"
)

type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) Create(ctx context.Context, account *model.Account) error {
	err := r.db.WithContext(ctx).Create(account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return store.ErrDuplicateContact
		}
		return err
	}
	return nil
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// GetByIDForUpdate reads the account row under SELECT ... FOR UPDATE. Only
// meaningful on a handle that is inside a transaction.
func (r *AccountRepository) GetByIDForUpdate(ctx context.Context, id string) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, store.ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// FindByContact resolves an email or phone to one account. Email and phone
// are each unique, but a value could in principle match one account's email
// and another's phone, so two hits are reported as ambiguous rather than
// silently picking one.
func (r *AccountRepository) FindByContact(ctx context.Context, contact string) (*model.Account, error) {
	var accounts []model.Account
	err := r.db.WithContext(ctx).
		Where("email = ? OR phone = ?", contact, contact).
		Limit(2).
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}

	switch len(accounts) {
	case 0:
		return nil, store.ErrAccountNotFound
	case 1:
		return &accounts[0], nil
	default:
		return nil, store.ErrAmbiguousContact
	}
}

// ApplyDelta adds delta to the balance with the version column as an
// optimistic guard. The WHERE clause carries the whole invariant: the row
// must still be at the version the caller read, and a debit must not
// overdraw. A zero rows-affected result is disambiguated by re-reading.
func (r *AccountRepository) ApplyDelta(ctx context.Context, id string, delta decimal.Decimal, version int) error {
	query := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ? AND version = ?", id, version)

	if delta.IsNegative() {
		query = query.Where("balance >= ?", delta.Neg())
	}

	result := query.Updates(map[string]interface{}{
		"balance": gorm.Expr("balance + ?", delta),
		"version": gorm.Expr("version + 1"),
	})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		account, err := r.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if delta.IsNegative() && account.Balance.LessThan(delta.Neg()) {
			return store.ErrBalanceNotEnough
		}
		return store.ErrOptimisticLock
	}

	return nil
}

func (r *AccountRepository) UpdateProfile(ctx context.Context, id string, updates map[string]interface{}) error {
	result := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ?", id).
		Updates(updates)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return store.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) SetStatus(ctx context.Context, id, status string) error {
	result := r.db.WithContext(ctx).
		Model(&model.Account{}).
		Where("id = ?", id).
		Update("status", status)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return store.ErrAccountNotFound
	}
	return nil
}
