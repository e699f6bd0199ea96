package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/openai/openai-go/v3"
	"golang.org/x/time/rate"

	"semantic-triage/internal/cache"
	"semantic-triage/internal/config"
	"semantic-triage/internal/embeddings"
	"semantic-triage/internal/logger"
	"semantic-triage/internal/queue"
	"semantic-triage/internal/retry"
	"semantic-triage/internal/store"
)

const (
	connectAttempts = 5
	connectBackoff  = 200 * time.Millisecond
)

// Deps bundles common runtime dependencies for services.
type Deps struct {
	Config config.Config
	Log    *slog.Logger
	// NewEncoder builds a fresh encoder. Each execution unit wraps it in its
	// own embeddings.Lazy; Deps never holds a shared encoder instance.
	NewEncoder embeddings.Factory
	// Model identifies the configured encoder weights.
	Model string
	Cache cache.Cache
	Store store.Store
	Queue queue.Queue

	closers []func() error
}

// Option selects optional components for Build.
type Option func(*options)

type options struct {
	store  bool
	queue  bool
	engine bool
}

// WithStore connects the table store.
func WithStore() Option { return func(o *options) { o.store = true } }

// WithQueue connects the partition queue.
func WithQueue() Option { return func(o *options) { o.queue = true } }

// WithEngine connects what the configured ENGINE needs: the store always,
// the queue when ENGINE=nats.
func WithEngine() Option { return func(o *options) { o.engine = true } }

// Build loads env, config, and shared components for service.
func Build(ctx context.Context, service string, opts ...Option) (Deps, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Deps{}, fmt.Errorf("failed to load environment variables: %w", err)
	}
	cfg := config.Load()
	name := cfg.LoggerName
	if name == "" {
		name = service
	}
	deps := Deps{
		Config: cfg,
		Log:    logger.NewNamed(name, cfg.LogLevel, cfg.LogFormat, nil),
	}

	c, err := buildCache(ctx, cfg, deps.Log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize cache: %w", err)
	}
	deps.Cache = c
	deps.closers = append(deps.closers, c.Close)

	deps.NewEncoder, deps.Model, err = BuildEncoderFactory(cfg, c, deps.Log)
	if err != nil {
		_ = deps.Close()
		return Deps{}, fmt.Errorf("failed to initialize encoder: %w", err)
	}

	if o.engine {
		o.store = true
		o.queue = o.queue || cfg.Engine == EngineNATS
	}
	if o.store {
		st, err := buildStore(ctx, cfg, deps.Log)
		if err != nil {
			_ = deps.Close()
			return Deps{}, fmt.Errorf("failed to initialize store: %w", err)
		}
		deps.Store = st
		deps.closers = append(deps.closers, st.Close)
	}
	if o.queue {
		q, nc, err := buildQueue(ctx, cfg, deps.Log)
		if err != nil {
			_ = deps.Close()
			return Deps{}, fmt.Errorf("failed to initialize queue: %w", err)
		}
		deps.Queue = q
		deps.closers = append(deps.closers, func() error { return nc.Drain() })
	}
	return deps, nil
}

// Close releases connections in reverse order of creation.
func (d *Deps) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}

// BuildEncoderFactory returns a factory for the configured encoder stack
// (provider, then rate limit, then cache) and the model identity.
func BuildEncoderFactory(cfg config.Config, c cache.Cache, log *slog.Logger) (embeddings.Factory, string, error) {
	var base embeddings.Factory
	var model string
	switch cfg.EmbedderProvider {
	case "openai":
		if cfg.OpenAIKey == "" {
			return nil, "", fmt.Errorf("OPENAI_API_KEY is required when EMBEDDER_PROVIDER=openai")
		}
		model = cfg.EmbeddingModel
		base = func(context.Context) (embeddings.Encoder, error) {
			return embeddings.NewOpenAIEncoder(cfg.OpenAIKey, openai.EmbeddingModel(cfg.EmbeddingModel), cfg.EmbeddingDimensions, cfg.EmbedBatchSize)
		}
	case "hash":
		dims := cfg.EmbeddingDimensions
		if dims <= 0 {
			dims = embeddings.DefaultHashDimensions
		}
		model = fmt.Sprintf("hash-%d", dims)
		base = func(context.Context) (embeddings.Encoder, error) {
			return embeddings.NewHashEncoder(dims), nil
		}
	default:
		return nil, "", fmt.Errorf("invalid EMBEDDER_PROVIDER: %s (valid options: openai, hash)", cfg.EmbedderProvider)
	}
	if cfg.EmbedderProvider == "openai" && cfg.EmbeddingDimensions > 0 {
		model = fmt.Sprintf("%s-%d", model, cfg.EmbeddingDimensions)
	}

	factory := func(ctx context.Context) (embeddings.Encoder, error) {
		enc, err := base(ctx)
		if err != nil {
			return nil, err
		}
		if cfg.EmbedRateLimit > 0 {
			enc = embeddings.NewRateLimited(enc, rate.NewLimiter(rate.Limit(cfg.EmbedRateLimit), 1))
		}
		if _, noop := c.(*cache.NoOpCache); c != nil && !noop {
			enc = embeddings.NewCached(enc, c, model, cfg.CacheTTL, log)
		}
		log.Info("encoder loaded", "provider", cfg.EmbedderProvider, "model", model, "dimensions", enc.Dimensions())
		return enc, nil
	}
	return factory, model, nil
}

func buildCache(ctx context.Context, cfg config.Config, log *slog.Logger) (cache.Cache, error) {
	switch cfg.CacheProvider {
	case "", "none":
		return cache.NewNoOpCache(), nil
	case "redis":
		var c *cache.RedisCache
		err := retry.Do(ctx, connectAttempts, connectBackoff, func(context.Context) error {
			var err error
			c, err = cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		log.Info("using Redis embedding cache", "addr", cfg.RedisAddr)
		return c, nil
	default:
		return nil, fmt.Errorf("invalid CACHE_PROVIDER: %s (valid options: none, redis)", cfg.CacheProvider)
	}
}

func buildStore(ctx context.Context, cfg config.Config, log *slog.Logger) (store.Store, error) {
	switch cfg.StoreProvider {
	case "postgres":
		if cfg.DBURL == "" {
			return nil, fmt.Errorf("DB_URL is required when STORE_PROVIDER=postgres")
		}
		var db *store.PostgresStore
		err := retry.Do(ctx, connectAttempts, connectBackoff, func(ctx context.Context) error {
			var err error
			db, err = store.NewPostgres(ctx, cfg.DBURL)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Postgres: %w", err)
		}
		log.Info("using Postgres store")
		return db, nil
	case "memory":
		log.Info("using in-memory store")
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("invalid STORE_PROVIDER: %s (valid options: postgres, memory)", cfg.StoreProvider)
	}
}

func buildQueue(ctx context.Context, cfg config.Config, log *slog.Logger) (queue.Queue, *nats.Conn, error) {
	if cfg.QueueURL == "" {
		return nil, nil, fmt.Errorf("QUEUE_URL is required")
	}
	var nc *nats.Conn
	err := retry.Do(ctx, connectAttempts, connectBackoff, func(context.Context) error {
		var err error
		nc, err = nats.Connect(cfg.QueueURL, nats.Name(cfg.LoggerName))
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	log.Info("using NATS queue", "subject", cfg.PartitionSubject)
	return queue.NewNATS(log, nc, cfg.PartitionSubject, cfg.PartitionTimeout), nc, nil
}
