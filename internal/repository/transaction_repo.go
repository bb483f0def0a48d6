package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"digiwallet/internal/model"
	"digiwallet/internal/store"
)

type TransactionRepository struct {
	db *gorm.DB
}

func NewTransactionRepository(db *gorm.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) Create(ctx context.Context, txn *model.Transaction) error {
	err := r.db.WithContext(ctx).Create(txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return store.ErrDuplicateKey
		}
		return err
	}
	return nil
}

func (r *TransactionRepository) GetByTransactionNo(ctx context.Context, transactionNo string) (*model.Transaction, error) {
	var txn model.Transaction
	err := r.db.WithContext(ctx).Where("transaction_no = ?", transactionNo).First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

func (r *TransactionRepository) GetByIdempotencyKey(ctx context.Context, key string) (*model.Transaction, error) {
	var txn model.Transaction
	err := r.db.WithContext(ctx).Where("idempotency_key = ?", key).First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

// UpdateStatus moves a row along the pending -> completed|failed machine.
// The conditional WHERE keeps terminal rows immutable even under races.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, id int64, fromStatus, toStatus string) error {
	if !model.CanTransitionTo(fromStatus, toStatus) {
		return store.ErrStatusInvalid
	}

	result := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("id = ? AND status = ?", id, fromStatus).
		Update("status", toStatus)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return store.ErrStatusInvalid
	}
	return nil
}

// List returns transactions touching the account, newest first. cursor is
// the row id of the last entry from the previous page (0 for the first
// page); pagination by id keeps the page stable while new rows arrive.
func (r *TransactionRepository) List(ctx context.Context, accountID, kind string, limit int, cursor int64) ([]*model.Transaction, error) {
	query := r.db.WithContext(ctx).
		Model(&model.Transaction{}).
		Where("sender_id = ? OR receiver_id = ?", accountID, accountID)

	if kind != "" {
		query = query.Where("kind = ?", kind)
	}
	if cursor > 0 {
		query = query.Where("id < ?", cursor)
	}

	var transactions []*model.Transaction
	err := query.
		Order("id DESC").
		Limit(limit).
		Find(&transactions).Error
	return transactions, err
}

// ListStalePending returns pending rows older than the horizon, for the
// reaper job.
func (r *TransactionRepository) ListStalePending(ctx context.Context, olderThan int64, limit int) ([]*model.Transaction, error) {
	var transactions []*model.Transaction
	err := r.db.WithContext(ctx).
		Where("status = ? AND UNIX_TIMESTAMP(created_at) < ?", model.TransactionStatusPending, olderThan).
		Limit(limit).
		Find(&transactions).Error
	return transactions, err
}
