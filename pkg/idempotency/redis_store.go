package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyNamespace = "task-engine"

// RedisStore implements KeyStore and MessageStore with SETNX reservations
type RedisStore struct {
	client redis.Cmdable
}

// NewRedisStore creates a Redis backed store
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

func requestKey(key string) string {
	return keyNamespace + ":idempotency:" + key
}

func messageKey(id string) string {
	return keyNamespace + ":processed:" + id
}

func (s *RedisStore) Reserve(ctx context.Context, key string, rec *Record, lockTTL time.Duration) (*Record, bool, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, false, fmt.Errorf("marshal idempotency record: %w", err)
	}

	ok, err := s.client.SetNX(ctx, requestKey(key), payload, lockTTL).Result()
	if err != nil {
		return nil, false, fmt.Errorf("setnx: %w", err)
	}
	if ok {
		return rec, true, nil
	}

	stored, err := s.client.Get(ctx, requestKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			// reservation expired between SETNX and GET; let the caller retry
			return nil, false, ErrConcurrentRequest
		}
		return nil, false, fmt.Errorf("read idempotency record: %w", err)
	}

	var existing Record
	if err := json.Unmarshal(stored, &existing); err != nil {
		return nil, false, fmt.Errorf("decode idempotency record: %w", err)
	}
	return &existing, false, nil
}

func (s *RedisStore) Complete(ctx context.Context, key string, rec *Record, retention time.Duration) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal idempotency record: %w", err)
	}
	if err := s.client.Set(ctx, requestKey(key), payload, retention).Err(); err != nil {
		return fmt.Errorf("store idempotency response: %w", err)
	}
	return nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, requestKey(key)).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

func (s *RedisStore) MarkProcessed(ctx context.Context, id string, retention time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, messageKey(id), time.Now().UTC().Format(time.RFC3339), retention).Result()
	if err != nil {
		return false, fmt.Errorf("mark message processed: %w", err)
	}
	return ok, nil
}

func (s *RedisStore) Forget(ctx context.Context, id string) error {
	return s.client.Del(ctx, messageKey(id)).Err()
}
