package lock

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	accountLockExpiry   = 30 * time.Second
	accountLockRetry    = 100 * time.Millisecond
	accountLockAttempts = 30
)

// AccountLocker serializes ledger operations per account. A transfer locks
// both accounts; the keys are always acquired in ascending account-id order
// so two opposite-direction transfers cannot deadlock against each other.
type AccountLocker struct {
	client *redis.Client
}

func NewAccountLocker(client *redis.Client) *AccountLocker {
	return &AccountLocker{client: client}
}

// LockAccounts takes the per-account locks and returns a release function.
// token identifies the holder (the transaction number works well) and is
// checked on release. On failure every lock taken so far is released.
func (l *AccountLocker) LockAccounts(ctx context.Context, token string, accountIDs ...string) (func(), error) {
	ids := make([]string, len(accountIDs))
	copy(ids, accountIDs)
	sort.Strings(ids)

	held := make([]*DistributedLock, 0, len(ids))
	release := func() {
		// Release in reverse acquisition order.
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock(context.Background())
		}
	}

	for _, id := range ids {
		dl := NewDistributedLock(l.client, fmt.Sprintf("ledger:lock:account:%s", id), token, accountLockExpiry)
		if err := dl.Lock(ctx, accountLockRetry, accountLockAttempts); err != nil {
			release()
			return nil, err
		}
		held = append(held, dl)
	}

	return release, nil
}
