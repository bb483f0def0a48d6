package service_test

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"digiwallet/internal/model"
	"digiwallet/internal/store"
)

// memStore is an in-memory store.Store for exercising the ledger without
// MySQL. Atomically serializes units under one mutex and restores a snapshot
// on error, mimicking commit/rollback. deltaErrs lets tests inject failures
// into ApplyBalanceDelta, one per call.
type memStore struct {
	mu        sync.Mutex
	state     *memState
	deltaErrs []error
}

type memState struct {
	accounts     map[string]*model.Account
	transactions []*model.Transaction
	outbox       []*model.OutboxMessage
	nextTxnID    int64
}

func newMemStore() *memStore {
	return &memStore{
		state: &memState{
			accounts:  make(map[string]*model.Account),
			nextTxnID: 1,
		},
	}
}

func (s *memStore) addAccount(a *model.Account) {
	if a.Status == "" {
		a.Status = model.AccountStatusActive
	}
	cp := *a
	s.state.accounts[a.ID] = &cp
}

func (s *memStore) balance(id string) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.accounts[id].Balance
}

func (s *memStore) transactionsByStatus(status string) []*model.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.Transaction
	for _, t := range s.state.transactions {
		if t.Status == status {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out
}

func (st *memState) clone() *memState {
	cp := &memState{
		accounts:  make(map[string]*model.Account, len(st.accounts)),
		nextTxnID: st.nextTxnID,
	}
	for id, a := range st.accounts {
		ac := *a
		cp.accounts[id] = &ac
	}
	for _, t := range st.transactions {
		tc := *t
		cp.transactions = append(cp.transactions, &tc)
	}
	for _, m := range st.outbox {
		mc := *m
		cp.outbox = append(cp.outbox, &mc)
	}
	return cp
}

func (st *memState) getAccount(id string) (*model.Account, error) {
	a, ok := st.accounts[id]
	if !ok {
		return nil, store.ErrAccountNotFound
	}
	cp := *a
	return &cp, nil
}

func (st *memState) findByContact(contact string) (*model.Account, error) {
	var matches []*model.Account
	for _, a := range st.accounts {
		if a.Email == contact || a.Phone == contact {
			matches = append(matches, a)
		}
	}
	switch len(matches) {
	case 0:
		return nil, store.ErrAccountNotFound
	case 1:
		cp := *matches[0]
		return &cp, nil
	default:
		return nil, store.ErrAmbiguousContact
	}
}

func (st *memState) createAccount(account *model.Account) error {
	for _, a := range st.accounts {
		if a.Email == account.Email || a.Phone == account.Phone {
			return store.ErrDuplicateContact
		}
	}
	cp := *account
	st.accounts[account.ID] = &cp
	return nil
}

func (st *memState) updateProfile(id string, updates map[string]interface{}) error {
	a, ok := st.accounts[id]
	if !ok {
		return store.ErrAccountNotFound
	}
	if name, ok := updates["name"].(string); ok {
		a.Name = name
	}
	if pinHash, ok := updates["pin_hash"].(string); ok {
		a.PinHash = pinHash
	}
	return nil
}

func (st *memState) setStatus(id, status string) error {
	a, ok := st.accounts[id]
	if !ok {
		return store.ErrAccountNotFound
	}
	a.Status = status
	return nil
}

func (st *memState) applyDelta(id string, delta decimal.Decimal, version int) error {
	a, ok := st.accounts[id]
	if !ok {
		return store.ErrAccountNotFound
	}
	if delta.IsNegative() && a.Balance.LessThan(delta.Neg()) {
		return store.ErrBalanceNotEnough
	}
	if a.Version != version {
		return store.ErrOptimisticLock
	}
	a.Balance = a.Balance.Add(delta)
	a.Version++
	return nil
}

func (st *memState) createTransaction(txn *model.Transaction) error {
	if txn.IdempotencyKey != nil {
		for _, t := range st.transactions {
			if t.IdempotencyKey != nil && *t.IdempotencyKey == *txn.IdempotencyKey {
				return store.ErrDuplicateKey
			}
		}
	}
	txn.ID = st.nextTxnID
	st.nextTxnID++
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now()
	}
	cp := *txn
	st.transactions = append(st.transactions, &cp)
	return nil
}

func (st *memState) setTransactionStatus(id int64, fromStatus, toStatus string) error {
	if !model.CanTransitionTo(fromStatus, toStatus) {
		return store.ErrStatusInvalid
	}
	for _, t := range st.transactions {
		if t.ID == id && t.Status == fromStatus {
			t.Status = toStatus
			return nil
		}
	}
	return store.ErrStatusInvalid
}

func (st *memState) getByIdempotencyKey(key string) (*model.Transaction, error) {
	for _, t := range st.transactions {
		if t.IdempotencyKey != nil && *t.IdempotencyKey == key {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (st *memState) list(accountID, kind string, limit int, cursor int64) ([]*model.Transaction, error) {
	var out []*model.Transaction
	for i := len(st.transactions) - 1; i >= 0; i-- {
		t := st.transactions[i]
		if t.SenderID != accountID && t.ReceiverID != accountID {
			continue
		}
		if kind != "" && t.Kind != kind {
			continue
		}
		if cursor > 0 && t.ID >= cursor {
			continue
		}
		cp := *t
		out = append(out, &cp)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// memTx is the handle passed to Atomically callbacks: same state, no
// locking, because the enclosing Atomically already holds the mutex.
type memTx struct {
	s *memStore
}

func (t *memTx) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	return t.s.state.getAccount(id)
}

func (t *memTx) GetAccountForUpdate(ctx context.Context, id string) (*model.Account, error) {
	return t.s.state.getAccount(id)
}

func (t *memTx) FindAccountByContact(ctx context.Context, contact string) (*model.Account, error) {
	return t.s.state.findByContact(contact)
}

func (t *memTx) CreateAccount(ctx context.Context, account *model.Account) error {
	return t.s.state.createAccount(account)
}

func (t *memTx) UpdateAccountProfile(ctx context.Context, id string, updates map[string]interface{}) error {
	return t.s.state.updateProfile(id, updates)
}

func (t *memTx) SetAccountStatus(ctx context.Context, id, status string) error {
	return t.s.state.setStatus(id, status)
}

func (t *memTx) ApplyBalanceDelta(ctx context.Context, id string, delta decimal.Decimal, version int) error {
	if len(t.s.deltaErrs) > 0 {
		err := t.s.deltaErrs[0]
		t.s.deltaErrs = t.s.deltaErrs[1:]
		if err != nil {
			return err
		}
	}
	return t.s.state.applyDelta(id, delta, version)
}

func (t *memTx) CreateTransaction(ctx context.Context, txn *model.Transaction) error {
	return t.s.state.createTransaction(txn)
}

func (t *memTx) SetTransactionStatus(ctx context.Context, id int64, fromStatus, toStatus string) error {
	return t.s.state.setTransactionStatus(id, fromStatus, toStatus)
}

func (t *memTx) GetTransactionByIdempotencyKey(ctx context.Context, key string) (*model.Transaction, error) {
	return t.s.state.getByIdempotencyKey(key)
}

func (t *memTx) ListTransactions(ctx context.Context, accountID, kind string, limit int, cursor int64) ([]*model.Transaction, error) {
	return t.s.state.list(accountID, kind, limit, cursor)
}

func (t *memTx) CreateOutboxMessage(ctx context.Context, msg *model.OutboxMessage) error {
	cp := *msg
	t.s.state.outbox = append(t.s.state.outbox, &cp)
	return nil
}

func (t *memTx) Atomically(ctx context.Context, fn func(store.Store) error) error {
	return fn(t)
}

// Outer (auto-commit) methods: one mutation, one lock.

func (s *memStore) GetAccount(ctx context.Context, id string) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.getAccount(id)
}

func (s *memStore) GetAccountForUpdate(ctx context.Context, id string) (*model.Account, error) {
	return s.GetAccount(ctx, id)
}

func (s *memStore) FindAccountByContact(ctx context.Context, contact string) (*model.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.findByContact(contact)
}

func (s *memStore) CreateAccount(ctx context.Context, account *model.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.createAccount(account)
}

func (s *memStore) UpdateAccountProfile(ctx context.Context, id string, updates map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.updateProfile(id, updates)
}

func (s *memStore) SetAccountStatus(ctx context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.setStatus(id, status)
}

func (s *memStore) ApplyBalanceDelta(ctx context.Context, id string, delta decimal.Decimal, version int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.applyDelta(id, delta, version)
}

func (s *memStore) CreateTransaction(ctx context.Context, txn *model.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.createTransaction(txn)
}

func (s *memStore) SetTransactionStatus(ctx context.Context, id int64, fromStatus, toStatus string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.setTransactionStatus(id, fromStatus, toStatus)
}

func (s *memStore) GetTransactionByIdempotencyKey(ctx context.Context, key string) (*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.getByIdempotencyKey(key)
}

func (s *memStore) ListTransactions(ctx context.Context, accountID, kind string, limit int, cursor int64) ([]*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.list(accountID, kind, limit, cursor)
}

func (s *memStore) CreateOutboxMessage(ctx context.Context, msg *model.OutboxMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *msg
	s.state.outbox = append(s.state.outbox, &cp)
	return nil
}

func (s *memStore) Atomically(ctx context.Context, fn func(store.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.state.clone()
	if err := fn(&memTx{s: s}); err != nil {
		s.state = snapshot
		return err
	}
	return nil
}

var _ store.Store = (*memStore)(nil)

// nopLocker satisfies service.Locker; the fake store already serializes
// atomic units.
type nopLocker struct{}

func (nopLocker) LockAccounts(ctx context.Context, token string, accountIDs ...string) (func(), error) {
	return func() {}, nil
}

// memSessions is an in-memory service.SessionStore.
type memSessions struct {
	mu       sync.Mutex
	sessions map[string]string
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: make(map[string]string)}
}

func (m *memSessions) Put(ctx context.Context, token, accountID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[token] = accountID
	return nil
}

func (m *memSessions) Get(ctx context.Context, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[token], nil
}

func (m *memSessions) Delete(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}
