package cache

import (
	"context"
	"time"
)

// NoOpCache never stores anything; every lookup is a miss. It backs
// CACHE_PROVIDER=none.
type NoOpCache struct{}

func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

func (c *NoOpCache) GetVector(context.Context, string) ([]float32, error) {
	return nil, nil
}

func (c *NoOpCache) SetVector(context.Context, string, []float32, time.Duration) error {
	return nil
}

func (c *NoOpCache) Close() error {
	return nil
}

var _ Cache = (*NoOpCache)(nil)
