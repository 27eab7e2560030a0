package state

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	errx "github.com/mailsort/server/internal/core/error"
)

// compareAndClearScript deletes KEYS[1] only while it still holds ARGV[1].
const compareAndClearScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// Store is the subset of the Redis client the slot needs.
type Store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisSlot shares the active model between server instances.
type RedisSlot struct {
	store Store
	key   string
	ttl   time.Duration
}

func NewRedisSlot(store Store, key string, ttl time.Duration) *RedisSlot {
	return &RedisSlot{store: store, key: key, ttl: ttl}
}

func (s *RedisSlot) Get(ctx context.Context) (string, bool, error) {
	id, err := s.store.Get(ctx, s.key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errx.WrapRedis(err)
	}
	return id, id != "", nil
}

func (s *RedisSlot) Set(ctx context.Context, id string) error {
	if err := s.store.Set(ctx, s.key, id, s.ttl).Err(); err != nil {
		return errx.WrapRedis(err)
	}
	return nil
}

func (s *RedisSlot) CompareAndClear(ctx context.Context, id string) (bool, error) {
	n, err := s.store.Eval(ctx, compareAndClearScript, []string{s.key}, id).Int64()
	if err != nil {
		return false, errx.WrapRedis(err)
	}
	return n == 1, nil
}
