package dispatch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"semantic-triage/internal/embeddings"
	"semantic-triage/internal/queue"
	"semantic-triage/internal/table"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// countingEncoder counts Encode calls on top of a hash encoder.
type countingEncoder struct {
	*embeddings.HashEncoder
	calls atomic.Int32
}

func (c *countingEncoder) Encode(ctx context.Context, texts []string) ([]embeddings.Vector, error) {
	c.calls.Add(1)
	return c.HashEncoder.Encode(ctx, texts)
}

// loopbackQueue delivers requests straight to a handler in process.
type loopbackQueue struct {
	mu      sync.Mutex
	handler queue.Handler
}

func (q *loopbackQueue) Request(ctx context.Context, task queue.Task) (queue.Reply, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	payload, err := q.handler(ctx, task)
	if err != nil {
		return queue.Reply{TaskID: task.ID, Error: err.Error()}, nil
	}
	return queue.Reply{TaskID: task.ID, Payload: payload}, nil
}

func (q *loopbackQueue) Serve(ctx context.Context, _ queue.TaskType, handler queue.Handler) error {
	q.handler = handler
	return nil
}

func seedLogs(st *table.MemoryStore, n int) {
	messages := []string{
		"authentication failed for user admin",
		"request timeout after 30s",
		"cold start detected in region eu-west-1",
		"user login denied: invalid token",
		"disk usage at 91 percent",
	}
	rows := make([]table.Row, n)
	for i := range rows {
		rows[i] = table.Row{int64(i), fmt.Sprintf("%s #%d", messages[i%len(messages)], i)}
	}
	st.Put("logs", []table.Column{{Name: "id", Type: "bigint"}, {Name: "message", Type: "text"}}, rows)
}
