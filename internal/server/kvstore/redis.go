package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps entries as plain Redis strings and relies on Redis key
// expiry, so DeleteExpired has nothing to do.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: prefixFor(prefix)}
}

func (s *RedisStore) key(k string) string {
	return s.prefix + k
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := s.rdb.Get(ctx, s.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get storage[%s]: %w", key, err)
	}
	return v, true, nil
}

// Set writes value without expiry. SET discards any previous TTL.
func (s *RedisStore) Set(ctx context.Context, key, value string) error {
	if err := s.rdb.Set(ctx, s.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("failed to set storage[%s]: %w", key, err)
	}
	return nil
}

// SetEx with a zero ttl writes the value and expires it in the same
// transaction.
func (s *RedisStore) SetEx(ctx context.Context, key, value string, ttlSeconds int64) error {
	ttl := clampTTL(ttlSeconds)
	k := s.key(key)

	var err error
	if ttl > 0 {
		err = s.rdb.Set(ctx, k, value, time.Duration(ttl)*time.Second).Err()
	} else {
		_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, k, value, 0)
			p.Expire(ctx, k, 0)
			return nil
		})
	}
	if err != nil {
		return fmt.Errorf("failed to setex storage[%s]: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Del(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete storage[%s]: %w", key, err)
	}
	return nil
}

func (s *RedisStore) DeleteExpired(context.Context) (int64, error) {
	return 0, nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
