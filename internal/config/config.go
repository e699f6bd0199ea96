package config

import (
	"log/slog"
	"time"

	"github.com/caarlos0/env/v10"
)

// Config holds runtime configuration for every command. Each command reads
// the keys it needs.
type Config struct {
	// Server
	Port     int    `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	// LogFormat is "line" (timestamp | name | LEVEL | message) or "json".
	LogFormat  string `env:"LOG_FORMAT" envDefault:"line"`
	LoggerName string `env:"LOGGER_NAME"` // defaults to the service name

	// Upload limits
	MaxUploadSize int64 `env:"MAX_UPLOAD_SIZE" envDefault:"10485760"` // 10MB in bytes

	// Embeddings
	EmbedderProvider    string  `env:"EMBEDDER_PROVIDER" envDefault:"openai"` // "openai" or "hash" (local, deterministic)
	OpenAIKey           string  `env:"OPENAI_API_KEY"`
	EmbeddingModel      string  `env:"EMBEDDING_MODEL" envDefault:"text-embedding-3-small"`
	EmbeddingDimensions int     `env:"EMBEDDING_DIMENSIONS" envDefault:"0"` // 0 selects the provider default
	EmbedRateLimit      float64 `env:"EMBED_RATE_LIMIT" envDefault:"0"`     // encode calls per second, 0 disables
	EmbedBatchSize      int     `env:"EMBED_BATCH_SIZE" envDefault:"256"`
	MaxTextTokens       int     `env:"MAX_TEXT_TOKENS" envDefault:"256"`

	// Cache
	CacheProvider string        `env:"CACHE_PROVIDER" envDefault:"none"` // "none" or "redis"
	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	CacheTTL      time.Duration `env:"CACHE_TTL" envDefault:"24h"`

	// Store
	StoreProvider string `env:"STORE_PROVIDER" envDefault:"postgres"` // "postgres" or "memory"
	DBURL         string `env:"DB_URL"`

	// Queue
	Engine           string        `env:"ENGINE" envDefault:"local"` // "local" goroutines or "nats" worker pool
	QueueURL         string        `env:"QUEUE_URL" envDefault:"nats://localhost:4222"`
	PartitionSubject string        `env:"PARTITION_SUBJECT" envDefault:"triage.tasks"`
	PartitionTimeout time.Duration `env:"PARTITION_TIMEOUT" envDefault:"5m"`
	Partitions       int           `env:"PARTITIONS" envDefault:"8"`
	Workers          int           `env:"WORKERS" envDefault:"4"`

	// Batch job
	InputTable    string   `env:"INPUT_TABLE"`
	OutputTable   string   `env:"OUTPUT_TABLE"`
	TextColumn    string   `env:"TEXT_COLUMN" envDefault:"message"`
	ScoreColumn   string   `env:"SCORE_COLUMN" envDefault:"similarity"`
	TargetIntents []string `env:"TARGET_INTENTS" envSeparator:"|"`

	// Triage and QA check
	TopK             int    `env:"TOP_K" envDefault:"8"`
	InputFile        string `env:"INPUT_FILE"`
	Response         string `env:"RESPONSE"`
	ExpectedResponse string `env:"EXPECTED_RESPONSE"`
}

// Load reads configuration from environment variables with defaults.
func Load() Config {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		slog.Warn("failed to parse env; using defaults where set", "err", err)
	}
	return cfg
}
