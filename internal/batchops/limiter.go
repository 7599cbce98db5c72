package batchops

import (
	"context"
	"time"

	"callout-engine/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// DispatchLimiter bounds concurrent provider dispatches per callout so one
// campaign cannot saturate the provider. A nil limiter means unlimited.
type DispatchLimiter interface {
	Acquire(ctx context.Context, calloutID string) (bool, error)
	Release(ctx context.Context, calloutID string)
}

// RedisDispatchLimiter counts in-flight dispatches in redis. The slot TTL
// covers a crash between acquire and release.
type RedisDispatchLimiter struct {
	rdb *redis.Client
	cap int
	ttl time.Duration
}

func NewRedisDispatchLimiter(rdb *redis.Client, cap int) *RedisDispatchLimiter {
	return &RedisDispatchLimiter{rdb: rdb, cap: cap, ttl: time.Minute}
}

func (l *RedisDispatchLimiter) key(calloutID string) string {
	return "callout:" + calloutID + ":dispatching"
}

func (l *RedisDispatchLimiter) Acquire(ctx context.Context, calloutID string) (bool, error) {
	return utils.AcquireConcurrencyCap(ctx, l.rdb, l.key(calloutID), l.cap, l.ttl)
}

func (l *RedisDispatchLimiter) Release(ctx context.Context, calloutID string) {
	_ = utils.ReleaseConcurrencyCap(ctx, l.rdb, l.key(calloutID))
}
