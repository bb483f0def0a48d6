package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// SessionStore keeps session tokens in Redis so they survive restarts and
// are shared across replicas. Implements service.SessionStore.
type SessionStore struct {
	client *redis.Client
}

func NewSessionStore(client *redis.Client) *SessionStore {
	return &SessionStore{client: client}
}

func sessionKey(token string) string {
	return fmt.Sprintf("session:%s", token)
}

func (s *SessionStore) Put(ctx context.Context, token, accountID string, ttl time.Duration) error {
	return s.client.Set(ctx, sessionKey(token), accountID, ttl).Err()
}

func (s *SessionStore) Get(ctx context.Context, token string) (string, error) {
	accountID, err := s.client.Get(ctx, sessionKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	return accountID, nil
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	return s.client.Del(ctx, sessionKey(token)).Err()
}
