package api

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	idempotencyHeader = "Idempotency-Key"
	idempotencyPrefix = "tasks:idem:"
	pendingMarker     = "-"
)

// Deduper remembers which task a client-supplied idempotency key created.
type Deduper interface {
	// Reserve claims key. When the key was already claimed it returns the
	// task id recorded for it, or "" while the first request is in flight.
	Reserve(ctx context.Context, key string) (taskID string, fresh bool, err error)
	Complete(ctx context.Context, key, taskID string) error
	Release(ctx context.Context, key string) error
}

// RedisDeduper stores idempotency keys in Redis so all instances agree on
// which create requests were already served.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper using the provided Redis client and TTL.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (r *RedisDeduper) key(key string) string {
	return idempotencyPrefix + key
}

func (r *RedisDeduper) Reserve(ctx context.Context, key string) (string, bool, error) {
	fresh, err := r.client.SetNX(ctx, r.key(key), pendingMarker, r.ttl).Result()
	if err != nil || fresh {
		return "", fresh, err
	}
	val, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between SETNX and GET; try once more.
		fresh, err = r.client.SetNX(ctx, r.key(key), pendingMarker, r.ttl).Result()
		return "", fresh, err
	}
	if err != nil {
		return "", false, err
	}
	if val == pendingMarker {
		return "", false, nil
	}
	return val, false, nil
}

func (r *RedisDeduper) Complete(ctx context.Context, key, taskID string) error {
	return r.client.Set(ctx, r.key(key), taskID, r.ttl).Err()
}

// Release deletes a reserved key so the client may retry after a failure.
func (r *RedisDeduper) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.key(key)).Err()
}
