package credstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisTier is the primary credential tier. Redis may evict entries under
// TTL or memory pressure, which is exactly why the backup tier exists.
type RedisTier struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTier constructs a RedisTier with the given entry lifetime.
func NewRedisTier(client *redis.Client, ttl time.Duration) *RedisTier {
	return &RedisTier{client: client, ttl: ttl}
}

func (t *RedisTier) key(sessionID string) string {
	return "cred:" + sessionID
}

// Write stores the sealed token under the session key.
func (t *RedisTier) Write(ctx context.Context, sessionID, sealed string) error {
	if err := t.client.Set(ctx, t.key(sessionID), sealed, t.ttl).Err(); err != nil {
		return fmt.Errorf("credstore/redis: set: %w", err)
	}
	return nil
}

// Read fetches the sealed token, returning ErrNoToken on a miss.
func (t *RedisTier) Read(ctx context.Context, sessionID string) (string, error) {
	sealed, err := t.client.Get(ctx, t.key(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNoToken
		}
		return "", fmt.Errorf("credstore/redis: get: %w", err)
	}
	return sealed, nil
}

// Delete removes the session entry.
func (t *RedisTier) Delete(ctx context.Context, sessionID string) error {
	if err := t.client.Del(ctx, t.key(sessionID)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("credstore/redis: del: %w", err)
	}
	return nil
}

var _ Tier = (*RedisTier)(nil)
