package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

type Client struct {
	*redis.Client
}

func NewClient(redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Client{client}, nil
}

func (c *Client) Close() error {
	return c.Client.Close()
}

// StateKey is where a user's account/selection snapshot lives.
func StateKey(userID string) string {
	return fmt.Sprintf("state:%s", userID)
}

// EventChannel carries state-change notifications for a user's SSE
// subscribers.
func EventChannel(userID string) string {
	return fmt.Sprintf("events:%s", userID)
}
