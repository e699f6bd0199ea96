package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"semantic-triage/internal/cache"
)

// Cached serves vectors from a cache.Cache and encodes only the misses.
type Cached struct {
	next  Encoder
	cache cache.Cache
	model string
	ttl   time.Duration
	log   *slog.Logger
}

// NewCached wraps next. model must identify next's weights so different
// models never share cache entries.
func NewCached(next Encoder, c cache.Cache, model string, ttl time.Duration, log *slog.Logger) *Cached {
	return &Cached{next: next, cache: c, model: model, ttl: ttl, log: log}
}

func (c *Cached) Dimensions() int { return c.next.Dimensions() }

func (c *Cached) Encode(ctx context.Context, texts []string) ([]Vector, error) {
	if err := validateTexts(texts); err != nil {
		return nil, err
	}
	out := make([]Vector, len(texts))
	keys := make([]string, len(texts))
	var missIdx []int
	var missTexts []string
	for i, t := range texts {
		keys[i] = CacheKey(c.model, t)
		vec, err := c.cache.GetVector(ctx, keys[i])
		if err != nil {
			c.log.Warn("embedding cache read failed", "err", err)
		}
		if err == nil && len(vec) == c.next.Dimensions() {
			out[i] = Vector(vec)
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	encoded, err := c.next.Encode(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = encoded[j]
		if err := c.cache.SetVector(ctx, keys[i], []float32(encoded[j]), c.ttl); err != nil {
			c.log.Warn("embedding cache write failed", "err", err)
		}
	}
	c.log.Debug("embedding cache", "hits", len(texts)-len(missTexts), "misses", len(missTexts))
	return out, nil
}

// CacheKey derives the cache key for text under model.
func CacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return model + ":" + hex.EncodeToString(sum[:])
}

var _ Encoder = (*Cached)(nil)
