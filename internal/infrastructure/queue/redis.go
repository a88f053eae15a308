// Package queue adapts a Redis list to the worker's job queue contract.
package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ciromunive-dev/snp-bioinfo-service/internal/httpx"
	"github.com/ciromunive-dev/snp-bioinfo-service/internal/ports"
)

// RedisQueue pops job identifiers from a Redis list. Producers LPUSH, the
// worker RPOPs, so identifiers come out FIFO. The pop is atomic across
// worker instances, which is what lets multiple workers share one queue
// without coordination.
type RedisQueue struct {
	client *redis.Client
	name   string
}

var _ ports.JobQueue = (*RedisQueue)(nil)

// NewRedisQueue parses the connection URL, builds the client, and pings it
// up front so a bad URL surfaces at startup rather than on first pop.
func NewRedisQueue(ctx context.Context, rawURL, name string) (*RedisQueue, error) {
	if rawURL == "" {
		return nil, &httpx.ConfigError{Setting: "REDIS_URL", Reason: "is required for the job queue"}
	}
	if name == "" {
		return nil, &httpx.ConfigError{Setting: "QUEUE_NAME", Reason: "must not be empty"}
	}

	options, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, &httpx.ConfigError{Setting: "REDIS_URL", Reason: fmt.Sprintf("is invalid: %v", err)}
	}

	client := redis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisQueue{client: client, name: name}, nil
}

// Pop removes and returns one job identifier, or "" when the queue is empty.
func (q *RedisQueue) Pop(ctx context.Context) (string, error) {
	id, err := q.client.RPop(ctx, q.name).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("rpop %s: %w", q.name, err)
	}
	return id, nil
}

// Close releases the underlying connection pool.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
