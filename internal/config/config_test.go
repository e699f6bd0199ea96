package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// Save original env and restore after test
	originalEnv := os.Environ()
	defer func() {
		os.Clearenv()
		for _, env := range originalEnv {
			// Parse and restore each env var
			for i, c := range env {
				if c == '=' {
					os.Setenv(env[:i], env[i+1:])
					break
				}
			}
		}
	}()

	// Clear env to test defaults
	os.Clearenv()

	cfg := Load()

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"Port", cfg.Port, 8080},
		{"LogLevel", cfg.LogLevel, "info"},
		{"LogFormat", cfg.LogFormat, "line"},
		{"MaxUploadSize", cfg.MaxUploadSize, int64(10485760)},
		{"EmbedderProvider", cfg.EmbedderProvider, "openai"},
		{"EmbeddingModel", cfg.EmbeddingModel, "text-embedding-3-small"},
		{"CacheProvider", cfg.CacheProvider, "none"},
		{"CacheTTL", cfg.CacheTTL, 24 * time.Hour},
		{"StoreProvider", cfg.StoreProvider, "postgres"},
		{"Engine", cfg.Engine, "local"},
		{"PartitionSubject", cfg.PartitionSubject, "triage.tasks"},
		{"PartitionTimeout", cfg.PartitionTimeout, 5 * time.Minute},
		{"Partitions", cfg.Partitions, 8},
		{"Workers", cfg.Workers, 4},
		{"ScoreColumn", cfg.ScoreColumn, "similarity"},
		{"TopK", cfg.TopK, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("expected %s=%v, got %v", tt.name, tt.expected, tt.got)
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("EMBEDDER_PROVIDER", "hash")
	t.Setenv("EMBED_RATE_LIMIT", "2.5")

	cfg := Load()

	if cfg.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.LogLevel)
	}
	if cfg.EmbedderProvider != "hash" {
		t.Errorf("expected embedder provider 'hash', got %s", cfg.EmbedderProvider)
	}
	if cfg.EmbedRateLimit != 2.5 {
		t.Errorf("expected rate limit 2.5, got %v", cfg.EmbedRateLimit)
	}
}

func TestLoadTargetIntents(t *testing.T) {
	// Intents are pipe separated so they may contain commas.
	t.Setenv("TARGET_INTENTS", "authentication failure, login denied|request timeout")

	cfg := Load()

	want := []string{"authentication failure, login denied", "request timeout"}
	if len(cfg.TargetIntents) != len(want) {
		t.Fatalf("expected %d intents, got %v", len(want), cfg.TargetIntents)
	}
	for i := range want {
		if cfg.TargetIntents[i] != want[i] {
			t.Errorf("intent %d: expected %q, got %q", i, want[i], cfg.TargetIntents[i])
		}
	}
}
