package state

import (
	"context"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"

	redisclient "github.com/chatlens/insight-gateway/internal/redis"
)

// RedisStore persists state snapshots in Redis with a sliding TTL.
type RedisStore struct {
	client *redisclient.Client
	ttl    time.Duration
}

func NewRedisStore(client *redisclient.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context, userID string) ([]byte, error) {
	data, err := s.client.Get(ctx, redisclient.StateKey(userID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (s *RedisStore) Save(ctx context.Context, userID string, data []byte) error {
	return s.client.Set(ctx, redisclient.StateKey(userID), data, s.ttl).Err()
}
