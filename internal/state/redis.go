package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeyPrefix namespaces state keys in Redis.
const KeyPrefix = "productif:state:"

// RedisStore keeps state as JSON values whose expiry is enforced by Redis.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
	now func() time.Time
}

// NewRedisStore creates a RedisStore. A zero ttl means states never expire.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl, now: time.Now}
}

type redisValue struct {
	State     Name           `json:"state"`
	Data      map[string]any `json:"data,omitempty"`
	ExpiresAt time.Time      `json:"expiresAt,omitempty"`
}

func key(userID string) string { return KeyPrefix + userID }

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, userID string) (Entry, bool, error) {
	raw, err := s.rdb.Get(ctx, key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("state: get %s: %w", userID, err)
	}
	var v redisValue
	if err := json.Unmarshal(raw, &v); err != nil {
		return Entry{}, false, fmt.Errorf("state: decode %s: %w", userID, err)
	}
	return Entry{UserID: userID, State: v.State, Data: v.Data, ExpiresAt: v.ExpiresAt}, true, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, userID string, st Name, data map[string]any) error {
	v := redisValue{State: st, Data: data}
	if s.ttl > 0 {
		v.ExpiresAt = s.now().Add(s.ttl)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("state: encode %s: %w", userID, err)
	}
	if err := s.rdb.Set(ctx, key(userID), b, s.ttl).Err(); err != nil {
		return fmt.Errorf("state: set %s: %w", userID, err)
	}
	return nil
}

// Clear implements Store.
func (s *RedisStore) Clear(ctx context.Context, userID string) error {
	if err := s.rdb.Del(ctx, key(userID)).Err(); err != nil {
		return fmt.Errorf("state: clear %s: %w", userID, err)
	}
	return nil
}
