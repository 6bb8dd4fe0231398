package cache

import (
	"context"
	"time"
)

type RiskCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, level string, ttl time.Duration) error
}

type NoopRiskCache struct{}

func (NoopRiskCache) Get(_ context.Context, _ string) (string, bool, error) {
	return "", false, nil
}

func (NoopRiskCache) Set(_ context.Context, _ string, _ string, _ time.Duration) error {
	return nil
}
