// Package redisdb establishes the connection to the durable store.
package redisdb

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// New parses the Redis URL, opens a client and verifies the connection
// with a ping. The caller owns the returned client.
func New(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}
