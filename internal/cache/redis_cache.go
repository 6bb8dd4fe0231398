package cache

import (
	"context"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type RedisRiskCache struct {
	client *redis.Client
}

func NewRedisRiskCache(addr string, password string, db int) *RedisRiskCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisRiskCache{client: client}
}

func (c *RedisRiskCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisRiskCache) Close() error {
	return c.client.Close()
}

func (c *RedisRiskCache) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (c *RedisRiskCache) Set(ctx context.Context, key string, level string, ttl time.Duration) error {
	if level == "" {
		return nil
	}
	return c.client.Set(ctx, key, level, ttl).Err()
}
