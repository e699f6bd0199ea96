package embeddings

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Lazy builds its Encoder on first use and reuses it for the lifetime of the
// owning execution unit. A failed build is remembered: every later Get returns
// the same error so a broken worker fails its partitions instead of retrying
// the load.
type Lazy struct {
	factory Factory

	once  sync.Once
	enc   Encoder
	err   error
	loads atomic.Int32
}

// NewLazy wraps factory in a once-loader.
func NewLazy(factory Factory) *Lazy {
	return &Lazy{factory: factory}
}

// Get returns the encoder, building it on the first call.
func (l *Lazy) Get(ctx context.Context) (Encoder, error) {
	l.once.Do(func() {
		l.loads.Add(1)
		if l.factory == nil {
			l.err = fmt.Errorf("no encoder factory: %w", ErrEncoderUnavailable)
			return
		}
		enc, err := l.factory(ctx)
		if err != nil {
			l.err = fmt.Errorf("%w: %w", ErrEncoderUnavailable, err)
			return
		}
		if enc == nil {
			l.err = fmt.Errorf("factory returned nil encoder: %w", ErrEncoderUnavailable)
			return
		}
		l.enc = enc
	})
	return l.enc, l.err
}

// Loads reports how many times the factory has been invoked (0 or 1).
func (l *Lazy) Loads() int {
	return int(l.loads.Load())
}
