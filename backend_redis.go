package entitycache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient captures the subset of redis.Client used by the store.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
}

var errRedisClientUnavailable = errors.New("redis store client unavailable")

type redisBackend struct {
	client RedisClient
	prefix string
}

func newRedisBackend(client RedisClient, prefix string) Backend {
	if prefix == "" {
		prefix = defaultStorePrefix
	}
	return &redisBackend{client: client, prefix: prefix}
}

func (b *redisBackend) Driver() Driver { return DriverRedis }

func (b *redisBackend) Read(ctx context.Context, key string) ([]byte, bool, error) {
	if b.client == nil {
		return nil, false, errRedisClientUnavailable
	}
	value, err := b.client.Get(ctx, b.redisKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return value, true, nil
}

func (b *redisBackend) Write(ctx context.Context, key string, body []byte) error {
	if b.client == nil {
		return errRedisClientUnavailable
	}
	// Zero expiration keeps the key until it is overwritten.
	return b.client.Set(ctx, b.redisKey(key), body, 0).Err()
}

func (b *redisBackend) redisKey(key string) string {
	return b.prefix + ":" + key
}
