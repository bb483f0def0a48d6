package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"digiwallet/internal/config"
	"digiwallet/internal/model"
	"digiwallet/internal/store"
	"digiwallet/pkg/idgen"
	"digiwallet/pkg/logger"
)

// Locker serializes ledger operations on a set of accounts.
type Locker interface {
	LockAccounts(ctx context.Context, token string, accountIDs ...string) (func(), error)
}

// LedgerService executes the three money-movement operations. Each one is a
// single atomic unit: either the transaction row reaches completed and the
// balance deltas are applied, or nothing visible changes. The balance
// precondition is always re-checked against a freshly locked row inside the
// unit, never against a value read earlier in the request.
type LedgerService struct {
	store  store.Store
	locker Locker
	cfg    *config.LedgerConfig
	topic  string
}

func NewLedgerService(st store.Store, locker Locker, cfg *config.LedgerConfig, topic string) *LedgerService {
	return &LedgerService{
		store:  st,
		locker: locker,
		cfg:    cfg,
		topic:  topic,
	}
}

type TransferRequest struct {
	SenderID        string
	ReceiverContact string
	Amount          decimal.Decimal
	Description     string
	Pin             string
	IdempotencyKey  string
}

type TransferResult struct {
	Transaction     *model.Transaction
	SenderBalance   decimal.Decimal
	ReceiverBalance decimal.Decimal
}

type CashRequest struct {
	AccountID      string
	Amount         decimal.Decimal
	Method         string
	Destination    string
	Pin            string
	IdempotencyKey string
}

type CashResult struct {
	Transaction *model.Transaction
	Balance     decimal.Decimal
}

// Transfer moves amount from the caller's account to the account matching
// receiverContact (email or phone).
func (s *LedgerService) Transfer(ctx context.Context, callerID string, req *TransferRequest) (*TransferResult, error) {
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}
	if callerID != req.SenderID {
		return nil, ErrUnauthorized
	}

	if req.IdempotencyKey != "" {
		existing, err := s.store.GetTransactionByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, s.mapStoreErr(err)
		}
		if existing != nil {
			return s.transferReplay(ctx, existing)
		}
	}

	sender, err := s.loadActiveAccount(ctx, req.SenderID)
	if err != nil {
		return nil, err
	}
	if err := verifyPin(sender, req.Pin); err != nil {
		return nil, err
	}

	receiver, err := s.store.FindAccountByContact(ctx, req.ReceiverContact)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrAccountNotFound):
			return nil, ErrReceiverNotFound
		case errors.Is(err, store.ErrAmbiguousContact):
			return nil, ErrAmbiguousReceiver
		default:
			return nil, s.mapStoreErr(err)
		}
	}
	if receiver.Status != model.AccountStatusActive {
		return nil, ErrReceiverNotFound
	}
	if receiver.ID == sender.ID {
		return nil, fmt.Errorf("%w: cannot transfer to own account", ErrValidation)
	}

	description := req.Description
	if description == "" {
		description = fmt.Sprintf("Payment to %s", receiver.Name)
	}

	txn := &model.Transaction{
		TransactionNo: idgen.GenerateTransactionNo(),
		SenderID:      sender.ID,
		ReceiverID:    receiver.ID,
		Amount:        req.Amount,
		Kind:          model.TransactionKindTransfer,
		Description:   description,
		Status:        model.TransactionStatusPending,
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		txn.IdempotencyKey = &key
	}

	balances, err := s.execute(ctx, txn, sender.ID, receiver.ID)
	if err != nil {
		return nil, err
	}

	logger.Info("transfer completed", logger.Fields{
		"transaction_no": txn.TransactionNo,
		"sender_id":      sender.ID,
		"receiver_id":    receiver.ID,
		"amount":         req.Amount.String(),
	})

	return &TransferResult{
		Transaction:     txn,
		SenderBalance:   balances[sender.ID],
		ReceiverBalance: balances[receiver.ID],
	}, nil
}

// CashIn credits the caller's account: funds enter the system boundary, so
// sender and receiver are the same account.
func (s *LedgerService) CashIn(ctx context.Context, callerID string, req *CashRequest) (*CashResult, error) {
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}
	if callerID != req.AccountID {
		return nil, ErrUnauthorized
	}
	if req.Method == "" {
		return nil, fmt.Errorf("%w: method is required", ErrValidation)
	}

	if req.IdempotencyKey != "" {
		existing, err := s.store.GetTransactionByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, s.mapStoreErr(err)
		}
		if existing != nil {
			return s.cashReplay(ctx, existing)
		}
	}

	account, err := s.loadActiveAccount(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}

	txn := &model.Transaction{
		TransactionNo: idgen.GenerateTransactionNo(),
		SenderID:      account.ID,
		ReceiverID:    account.ID,
		Amount:        req.Amount,
		Kind:          model.TransactionKindCashIn,
		Description:   fmt.Sprintf("Cash in via %s", req.Method),
		Method:        req.Method,
		Status:        model.TransactionStatusPending,
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		txn.IdempotencyKey = &key
	}

	balances, err := s.execute(ctx, txn, "", account.ID)
	if err != nil {
		return nil, err
	}

	logger.Info("cash-in completed", logger.Fields{
		"transaction_no": txn.TransactionNo,
		"account_id":     account.ID,
		"amount":         req.Amount.String(),
		"method":         req.Method,
	})

	return &CashResult{Transaction: txn, Balance: balances[account.ID]}, nil
}

// CashOut debits the caller's account: funds leave the system boundary.
func (s *LedgerService) CashOut(ctx context.Context, callerID string, req *CashRequest) (*CashResult, error) {
	if err := validateAmount(req.Amount); err != nil {
		return nil, err
	}
	if callerID != req.AccountID {
		return nil, ErrUnauthorized
	}
	if req.Method == "" {
		return nil, fmt.Errorf("%w: method is required", ErrValidation)
	}
	if req.Destination == "" {
		return nil, fmt.Errorf("%w: destination is required", ErrValidation)
	}

	if req.IdempotencyKey != "" {
		existing, err := s.store.GetTransactionByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, s.mapStoreErr(err)
		}
		if existing != nil {
			return s.cashReplay(ctx, existing)
		}
	}

	account, err := s.loadActiveAccount(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	if err := verifyPin(account, req.Pin); err != nil {
		return nil, err
	}

	txn := &model.Transaction{
		TransactionNo: idgen.GenerateTransactionNo(),
		SenderID:      account.ID,
		ReceiverID:    account.ID,
		Amount:        req.Amount,
		Kind:          model.TransactionKindCashOut,
		Description:   fmt.Sprintf("Cash out via %s to %s", req.Method, req.Destination),
		Method:        req.Method,
		Destination:   req.Destination,
		Status:        model.TransactionStatusPending,
	}
	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		txn.IdempotencyKey = &key
	}

	balances, err := s.execute(ctx, txn, account.ID, "")
	if err != nil {
		return nil, err
	}

	logger.Info("cash-out completed", logger.Fields{
		"transaction_no": txn.TransactionNo,
		"account_id":     account.ID,
		"amount":         req.Amount.String(),
		"method":         req.Method,
	})

	return &CashResult{Transaction: txn, Balance: balances[account.ID]}, nil
}

// ListTransactions returns the caller's transactions, newest first, as one
// finite page restartable via cursor (the id of the last row seen).
func (s *LedgerService) ListTransactions(ctx context.Context, callerID, kind string, limit int, cursor int64) ([]*model.Transaction, int64, error) {
	switch kind {
	case "", model.TransactionKindTransfer, model.TransactionKindCashIn, model.TransactionKindCashOut:
	default:
		return nil, 0, fmt.Errorf("%w: unknown transaction type %q", ErrValidation, kind)
	}
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if cursor < 0 {
		return nil, 0, fmt.Errorf("%w: cursor must not be negative", ErrValidation)
	}

	transactions, err := s.store.ListTransactions(ctx, callerID, kind, limit, cursor)
	if err != nil {
		return nil, 0, s.mapStoreErr(err)
	}

	var nextCursor int64
	if len(transactions) == limit {
		nextCursor = transactions[len(transactions)-1].ID
	}
	return transactions, nextCursor, nil
}

// execute runs the atomic unit: lock the touched accounts in ascending-id
// order, re-read their rows under FOR UPDATE, re-check the balance
// precondition, insert the transaction row, apply the deltas through the
// version-guarded CAS, flip the row to completed and write the outbox event.
// A CAS conflict retries the whole unit a bounded number of times.
//
// debitID and creditID may each be empty (cash-in has no debit, cash-out no
// credit) or equal. Returns the post-commit balance of every touched account.
func (s *LedgerService) execute(ctx context.Context, txn *model.Transaction, debitID, creditID string) (map[string]decimal.Decimal, error) {
	ids := touchedAccounts(debitID, creditID)

	unlock, err := s.locker.LockAccounts(ctx, txn.TransactionNo, ids...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConcurrencyConflict, err)
	}
	defer unlock()

	opCtx, cancel := context.WithTimeout(ctx, s.cfg.StoreTimeout())
	defer cancel()

	var balances map[string]decimal.Decimal
	var lastErr error

	for attempt := 0; attempt < s.cfg.MaxConflictRetries; attempt++ {
		balances, lastErr = s.attempt(opCtx, txn, debitID, creditID, ids)
		if lastErr == nil {
			txn.Status = model.TransactionStatusCompleted
			return balances, nil
		}
		if !errors.Is(lastErr, store.ErrOptimisticLock) {
			break
		}
		// Conflict: the unit rolled back, re-run with fresh reads.
		txn.ID = 0
	}

	mapped := s.mapStoreErr(lastErr)
	if errors.Is(mapped, ErrConcurrencyConflict) || errors.Is(mapped, ErrStoreUnavailable) {
		// The unit rolled back after the intent to move funds was formed:
		// record a terminal failed row (best effort, without the idempotency
		// key so a caller retry can still succeed).
		s.recordFailure(txn)
	}
	return nil, mapped
}

// attempt is one try of the atomic unit. Any error rolls the whole unit back.
func (s *LedgerService) attempt(ctx context.Context, txn *model.Transaction, debitID, creditID string, ids []string) (map[string]decimal.Decimal, error) {
	balances := make(map[string]decimal.Decimal, len(ids))

	err := s.store.Atomically(ctx, func(tx store.Store) error {
		accounts := make(map[string]*model.Account, len(ids))
		for _, id := range ids {
			account, err := tx.GetAccountForUpdate(ctx, id)
			if err != nil {
				return err
			}
			accounts[id] = account
		}

		if debitID != "" {
			debit := accounts[debitID]
			if debit.Balance.LessThan(txn.Amount) {
				return store.ErrBalanceNotEnough
			}
			after := debit.Balance.Sub(txn.Amount)
			txn.SenderBalanceAfter = &after
		}
		if creditID != "" {
			credit := accounts[creditID]
			after := credit.Balance.Add(txn.Amount)
			txn.ReceiverBalanceAfter = &after
		}
		if txn.Kind == model.TransactionKindCashOut {
			txn.ReceiverBalanceAfter = txn.SenderBalanceAfter
		}
		if txn.Kind == model.TransactionKindCashIn {
			txn.SenderBalanceAfter = txn.ReceiverBalanceAfter
		}

		txn.Status = model.TransactionStatusPending
		if err := tx.CreateTransaction(ctx, txn); err != nil {
			return err
		}

		if debitID != "" {
			debit := accounts[debitID]
			if err := tx.ApplyBalanceDelta(ctx, debitID, txn.Amount.Neg(), debit.Version); err != nil {
				return err
			}
			balances[debitID] = debit.Balance.Sub(txn.Amount)
		}
		if creditID != "" {
			credit := accounts[creditID]
			if err := tx.ApplyBalanceDelta(ctx, creditID, txn.Amount, credit.Version); err != nil {
				return err
			}
			balances[creditID] = credit.Balance.Add(txn.Amount)
		}

		if err := tx.SetTransactionStatus(ctx, txn.ID, model.TransactionStatusPending, model.TransactionStatusCompleted); err != nil {
			return err
		}

		return tx.CreateOutboxMessage(ctx, s.outboxMessage(txn))
	})
	if err != nil {
		return nil, err
	}
	return balances, nil
}

// recordFailure appends a terminal failed row after a rollback, so the
// caller is never left with a transaction that silently vanished. Best
// effort: runs on a fresh short deadline because the original one may
// already be exhausted.
func (s *LedgerService) recordFailure(txn *model.Transaction) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.StoreTimeout())
	defer cancel()

	failed := &model.Transaction{
		TransactionNo: txn.TransactionNo,
		SenderID:      txn.SenderID,
		ReceiverID:    txn.ReceiverID,
		Amount:        txn.Amount,
		Kind:          txn.Kind,
		Description:   txn.Description,
		Method:        txn.Method,
		Destination:   txn.Destination,
		Status:        model.TransactionStatusFailed,
	}
	if err := s.store.CreateTransaction(ctx, failed); err != nil {
		logger.Error("failed to record failed transaction", err, logger.Fields{
			"transaction_no": txn.TransactionNo,
		})
		return
	}
	*txn = *failed
}

func (s *LedgerService) transferReplay(ctx context.Context, txn *model.Transaction) (*TransferResult, error) {
	if txn.Kind != model.TransactionKindTransfer {
		return nil, fmt.Errorf("%w: idempotency key was used for a %s operation", ErrValidation, txn.Kind)
	}

	result := &TransferResult{Transaction: txn}
	sender, err := s.store.GetAccount(ctx, txn.SenderID)
	if err != nil {
		return nil, s.mapStoreErr(err)
	}
	receiver, err := s.store.GetAccount(ctx, txn.ReceiverID)
	if err != nil {
		return nil, s.mapStoreErr(err)
	}
	result.SenderBalance = sender.Balance
	result.ReceiverBalance = receiver.Balance
	return result, nil
}

func (s *LedgerService) cashReplay(ctx context.Context, txn *model.Transaction) (*CashResult, error) {
	if txn.Kind == model.TransactionKindTransfer {
		return nil, fmt.Errorf("%w: idempotency key was used for a transfer", ErrValidation)
	}

	account, err := s.store.GetAccount(ctx, txn.SenderID)
	if err != nil {
		return nil, s.mapStoreErr(err)
	}
	return &CashResult{Transaction: txn, Balance: account.Balance}, nil
}

func (s *LedgerService) loadActiveAccount(ctx context.Context, id string) (*model.Account, error) {
	account, err := s.store.GetAccount(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, s.mapStoreErr(err)
	}
	if account.Status != model.AccountStatusActive {
		return nil, fmt.Errorf("%w: account is disabled", ErrValidation)
	}
	return account, nil
}

func (s *LedgerService) outboxMessage(txn *model.Transaction) *model.OutboxMessage {
	payload := map[string]interface{}{
		"transaction_no": txn.TransactionNo,
		"sender_id":      txn.SenderID,
		"receiver_id":    txn.ReceiverID,
		"amount":         txn.Amount.String(),
		"kind":           txn.Kind,
		"status":         model.TransactionStatusCompleted,
		"completed_at":   time.Now().Format(time.RFC3339),
	}
	payloadBytes, _ := json.Marshal(payload)

	return &model.OutboxMessage{
		MessageKey: txn.TransactionNo,
		Topic:      s.topic,
		Payload:    string(payloadBytes),
		Status:     model.OutboxStatusPending,
	}
}

// mapStoreErr folds low-level store errors into the service taxonomy.
func (s *LedgerService) mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrBalanceNotEnough):
		return ErrInsufficientFunds
	case errors.Is(err, store.ErrOptimisticLock):
		return ErrConcurrencyConflict
	case errors.Is(err, store.ErrAccountNotFound):
		return ErrAccountNotFound
	case errors.Is(err, store.ErrDuplicateKey):
		return fmt.Errorf("%w: idempotency key already used", ErrValidation)
	default:
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if !amount.Equal(amount.Round(2)) {
		return fmt.Errorf("%w: amount has more than two decimal places", ErrValidation)
	}
	return nil
}

// verifyPin checks the transaction PIN when the account has one set.
func verifyPin(account *model.Account, pin string) error {
	if account.PinHash == "" {
		return nil
	}
	if pin == "" {
		return fmt.Errorf("%w: transaction PIN required", ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(account.PinHash), []byte(pin)); err != nil {
		return fmt.Errorf("%w: transaction PIN mismatch", ErrUnauthorized)
	}
	return nil
}

func touchedAccounts(debitID, creditID string) []string {
	if debitID == "" {
		return []string{creditID}
	}
	if creditID == "" || creditID == debitID {
		return []string{debitID}
	}
	return []string{debitID, creditID}
}
