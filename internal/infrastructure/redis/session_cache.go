package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wms-platform/task-engine/internal/domain"
)

// SessionCache keeps sessionID -> workerID with the heartbeat timeout as TTL.
// MongoDB stays authoritative; a miss only means the caller reads through.
type SessionCache struct {
	client redis.Cmdable
}

// NewSessionCache creates a Redis session cache
func NewSessionCache(client redis.Cmdable) *SessionCache {
	return &SessionCache{client: client}
}

func sessionKey(sessionID string) string {
	return keyNamespace + ":session:" + sessionID
}

func (c *SessionCache) Put(ctx context.Context, sessionID, workerID string, ttl time.Duration) error {
	if err := c.client.Set(ctx, sessionKey(sessionID), workerID, ttl).Err(); err != nil {
		return fmt.Errorf("cache session: %w", err)
	}
	return nil
}

// Get returns domain.ErrNotFound on a miss
func (c *SessionCache) Get(ctx context.Context, sessionID string) (string, error) {
	workerID, err := c.client.Get(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", domain.ErrNotFound
		}
		return "", fmt.Errorf("read session: %w", err)
	}
	return workerID, nil
}

// Touch extends the TTL; it returns domain.ErrNotFound if the entry expired
func (c *SessionCache) Touch(ctx context.Context, sessionID string, ttl time.Duration) error {
	ok, err := c.client.Expire(ctx, sessionKey(sessionID), ttl).Result()
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	if !ok {
		return domain.ErrNotFound
	}
	return nil
}

func (c *SessionCache) Delete(ctx context.Context, sessionID string) error {
	if err := c.client.Del(ctx, sessionKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}
