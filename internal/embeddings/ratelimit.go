package embeddings

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited waits for a limiter token before each call to the wrapped encoder.
type RateLimited struct {
	next    Encoder
	limiter *rate.Limiter
}

func NewRateLimited(next Encoder, limiter *rate.Limiter) *RateLimited {
	return &RateLimited{next: next, limiter: limiter}
}

func (r *RateLimited) Dimensions() int { return r.next.Dimensions() }

func (r *RateLimited) Encode(ctx context.Context, texts []string) ([]Vector, error) {
	if len(texts) == 0 {
		return []Vector{}, nil
	}
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return r.next.Encode(ctx, texts)
}

var _ Encoder = (*RateLimited)(nil)
