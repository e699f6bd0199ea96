package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semantic-triage/internal/app"
	"semantic-triage/internal/config"
	"semantic-triage/internal/embeddings"
)

func newTestDeps(cfg config.Config) app.Deps {
	return app.Deps{
		Config: cfg,
		Log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		NewEncoder: func(context.Context) (embeddings.Encoder, error) {
			return embeddings.NewHashEncoder(0), nil
		},
	}
}

const testLogs = `
2025-01-06T14:03:21.121Z WARN  disk full on /var

2025-01-06T14:04:11.005Z ERROR authentication failed for admin
2025-01-06T14:05:44.771Z INFO  cold start
`

func TestRunRanksMostRelevantFirst(t *testing.T) {
	deps := newTestDeps(config.Config{TopK: 2, TargetIntents: []string{"authentication failed"}})

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), deps, strings.NewReader(testLogs), &out))

	report := out.String()
	auth := strings.Index(report, "authentication failed for admin")
	disk := strings.Index(report, "disk full")
	require.NotEqual(t, -1, auth)
	require.NotEqual(t, -1, disk)
	assert.Less(t, auth, disk)
	assert.NotContains(t, report, "cold start", "top 2 excludes the last tie")
}

func TestRunReadsInputFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	require.NoError(t, os.WriteFile(path, []byte(testLogs), 0o600))
	deps := newTestDeps(config.Config{TopK: 1, InputFile: path})

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), deps, strings.NewReader(""), &out))
	assert.Contains(t, out.String(), "similarity")
}

func TestRunRejectsEmptyInput(t *testing.T) {
	deps := newTestDeps(config.Config{TopK: 1})
	err := run(context.Background(), deps, strings.NewReader("\n  \n"), io.Discard)
	assert.Error(t, err)
}

func TestRunMissingFile(t *testing.T) {
	deps := newTestDeps(config.Config{InputFile: filepath.Join(t.TempDir(), "missing.log")})
	err := run(context.Background(), deps, strings.NewReader(""), io.Discard)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
