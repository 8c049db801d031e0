package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyFormat = "fsm:session:%d"

// RedisClient is the subset of *redis.Client used by RedisStore.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisStore keeps sessions as JSON values with a native Redis TTL so any
// replica can continue a conversation.
type RedisStore[T any] struct {
	rdb RedisClient
	ttl time.Duration
	now func() time.Time
}

// NewRedisStore wraps rdb. A zero ttl stores sessions without expiry.
func NewRedisStore[T any](rdb RedisClient, ttl time.Duration) *RedisStore[T] {
	return &RedisStore[T]{rdb: rdb, ttl: ttl, now: time.Now}
}

func redisKey(userID int64) string {
	return fmt.Sprintf(redisKeyFormat, userID)
}

// Get loads the user's session or returns an Idle one when the key is absent.
func (r *RedisStore[T]) Get(ctx context.Context, userID int64) (Session[T], error) {
	raw, err := r.rdb.Get(ctx, redisKey(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return idle[T](), nil
	}
	if err != nil {
		return idle[T](), fmt.Errorf("state: redis get: %w", err)
	}
	var s Session[T]
	if err := json.Unmarshal(raw, &s); err != nil {
		return idle[T](), fmt.Errorf("state: decode session: %w", err)
	}
	return s, nil
}

// Set writes s and restarts its TTL.
func (r *RedisStore[T]) Set(ctx context.Context, userID int64, s Session[T]) error {
	s.UpdatedAt = r.now().UTC()
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("state: encode session: %w", err)
	}
	if err := r.rdb.Set(ctx, redisKey(userID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("state: redis set: %w", err)
	}
	return nil
}

// Clear deletes the user's session key.
func (r *RedisStore[T]) Clear(ctx context.Context, userID int64) error {
	if err := r.rdb.Del(ctx, redisKey(userID)).Err(); err != nil {
		return fmt.Errorf("state: redis del: %w", err)
	}
	return nil
}
