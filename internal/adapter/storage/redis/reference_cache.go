package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ReferenceCache implements ports.ReferenceCache using Redis. It is the
// best-effort fast path for reference deduplication; the log query inside
// the mutation's transaction remains the authoritative check, so a cold or
// unavailable cache only costs a round-trip, never correctness.
type ReferenceCache struct {
	client *goredis.Client
	prefix string
}

// NewReferenceCache creates a new Redis-backed reference cache.
func NewReferenceCache(client *goredis.Client) *ReferenceCache {
	return &ReferenceCache{
		client: client,
		prefix: "ledger:ref:",
	}
}

// Seen reports whether the dedupe key has been marked.
func (c *ReferenceCache) Seen(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, c.prefix+key).Result()
	if err != nil {
		return false, fmt.Errorf("redis reference check: %w", err)
	}
	return n > 0, nil
}

// Mark records the dedupe key with a TTL. SET NX keeps the original TTL if
// two processes race to mark the same reference.
func (c *ReferenceCache) Mark(ctx context.Context, key string, ttl time.Duration) error {
	err := c.client.SetArgs(ctx, c.prefix+key, 1, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Err()
	if err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("redis reference mark: %w", err)
	}
	return nil
}
