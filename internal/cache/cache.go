package cache

import (
	"context"
	"time"
)

// Cache stores embedding vectors by key.
type Cache interface {
	// GetVector retrieves a cached vector by key
	// Returns nil, nil if not found
	GetVector(ctx context.Context, key string) ([]float32, error)

	// SetVector stores a vector with TTL. A zero TTL keeps the entry until evicted.
	SetVector(ctx context.Context, key string, vector []float32, ttl time.Duration) error

	// Close closes the cache connection
	Close() error
}
