package notifier

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper answers whether a source event has already been turned into
// a notification. At-least-once queues redeliver messages, so without
// this check a redelivered event would persist a second notification
// row for the same logical event. A key is only marked after the
// notification has been persisted; marking earlier would let a failed
// persist masquerade as a handled event and lose the notification.
type Deduper interface {
	// Seen reports whether the key has been marked.
	Seen(ctx context.Context, key string) (bool, error)
	// Mark records the key as handled.
	Mark(ctx context.Context, key string) error
}

// RedisDeduper implements Deduper with plain GET/SET plus a TTL. The
// TTL only needs to outlive the queue's redelivery horizon, not be
// permanent.
type RedisDeduper struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisDeduper constructs a RedisDeduper. A non-positive TTL falls
// back to 24h.
func NewRedisDeduper(rdb *redis.Client, ttl time.Duration) *RedisDeduper {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisDeduper{rdb: rdb, ttl: ttl}
}

// Seen reports whether the key exists. Redis errors are returned so
// the caller can degrade open (process the message and accept a
// possible duplicate rather than lose it).
func (d *RedisDeduper) Seen(ctx context.Context, key string) (bool, error) {
	n, err := d.rdb.Exists(ctx, "notifier:dedupe:"+key).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Mark records the key with the configured TTL.
func (d *RedisDeduper) Mark(ctx context.Context, key string) error {
	return d.rdb.Set(ctx, "notifier:dedupe:"+key, 1, d.ttl).Err()
}
