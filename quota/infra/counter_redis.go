package infra

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"usage-quota/quota/domain"

	"github.com/redis/go-redis/v9"
)

// RedisCounterStore implementa domain.CounterStore sobre Redis.
//
// INCR dá a atomicidade que linearia incrementos concorrentes do mesmo
// usuário; EXPIRE dá o reset diário preguiçoso sem scheduler. Qualquer erro
// de transporte vira ErrCounterUnavailable — nunca "chave ausente".
type RedisCounterStore struct {
	rdb *redis.Client

	prefix string
}

type RedisCounterOption func(*RedisCounterStore)

func WithCounterPrefix(prefix string) RedisCounterOption {
	return func(s *RedisCounterStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func NewRedisCounterStore(rdb *redis.Client, opts ...RedisCounterOption) *RedisCounterStore {
	s := &RedisCounterStore{
		rdb:    rdb,
		prefix: "quota:usage",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisCounterStore) key(key domain.Key) string {
	return s.prefix + ":" + string(key)
}

func (s *RedisCounterStore) Get(ctx context.Context, key domain.Key) (int64, error) {
	n, err := s.rdb.Get(ctx, s.key(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, domain.ErrCounterMiss
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrCounterUnavailable, err)
	}
	return n, nil
}

func (s *RedisCounterStore) Increment(ctx context.Context, key domain.Key) (int64, error) {
	n, err := s.rdb.Incr(ctx, s.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrCounterUnavailable, err)
	}
	return n, nil
}

func (s *RedisCounterStore) Seed(ctx context.Context, key domain.Key, value int64, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := s.rdb.SetNX(ctx, s.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCounterUnavailable, err)
	}
	return nil
}

func (s *RedisCounterStore) ExpireAfter(ctx context.Context, key domain.Key, ttl time.Duration) error {
	if err := s.rdb.Expire(ctx, s.key(key), ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCounterUnavailable, err)
	}
	return nil
}

func (s *RedisCounterStore) Delete(ctx context.Context, key domain.Key) error {
	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrCounterUnavailable, err)
	}
	return nil
}
