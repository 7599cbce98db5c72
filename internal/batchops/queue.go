package batchops

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Queue carries batch-operation ids from the outbox relay to the workers.
// Delivery is at-least-once; consumers must tolerate redelivery (the worker's
// start transition rejects stale deliveries).
type Queue interface {
	Publish(ctx context.Context, batchOperationID string) error

	// Consume blocks until an id is available or ctx is done.
	Consume(ctx context.Context) (string, error)
}

// RedisQueue is a durable queue on a redis list.
type RedisQueue struct {
	rdb *redis.Client
	key string

	// pollTimeout bounds each BRPOP so ctx cancellation is noticed.
	pollTimeout time.Duration
}

func NewRedisQueue(rdb *redis.Client, key string) *RedisQueue {
	return &RedisQueue{rdb: rdb, key: key, pollTimeout: 5 * time.Second}
}

func (q *RedisQueue) Publish(ctx context.Context, batchOperationID string) error {
	return q.rdb.LPush(ctx, q.key, batchOperationID).Err()
}

func (q *RedisQueue) Consume(ctx context.Context) (string, error) {
	for {
		res, err := q.rdb.BRPop(ctx, q.pollTimeout, q.key).Result()
		if errors.Is(err, redis.Nil) {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			continue
		}
		if err != nil {
			return "", err
		}
		// BRPOP returns [key, value]
		if len(res) == 2 {
			return res[1], nil
		}
	}
}

// MemoryQueue is a channel-backed queue for tests and single-process runs.
type MemoryQueue struct {
	ch chan string
}

func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 64
	}
	return &MemoryQueue{ch: make(chan string, size)}
}

func (q *MemoryQueue) Publish(ctx context.Context, batchOperationID string) error {
	select {
	case q.ch <- batchOperationID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Consume(ctx context.Context) (string, error) {
	select {
	case id := <-q.ch:
		return id, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
