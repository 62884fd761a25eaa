package nonce

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "lti-nonce:"

// RedisStore records nonces in Redis, for providers running more than one
// process. Expiry is delegated to Redis key TTLs.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

func (s *RedisStore) SeenBefore(ctx context.Context, nonce string, _ time.Time) (bool, error) {
	stored, err := s.client.SetNX(ctx, redisKeyPrefix+nonce, "1", Window).Result()
	if err != nil {
		return false, err
	}
	return !stored, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
