package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"semantic-triage/internal/embeddings"
	"semantic-triage/internal/queue"
	"semantic-triage/internal/records"
	"semantic-triage/internal/similarity"
	"semantic-triage/internal/table"
)

// Worker is one execution unit. It owns a single lazily built encoder that is
// reused for every partition it handles, and it caches the current job's
// target vectors so they are encoded once per worker, not per row or split.
//
// A Worker processes one partition at a time and is not safe for concurrent
// use. NATS delivers a subscription's messages sequentially, and LocalEngine
// lends each Worker to one goroutine at a time.
type Worker struct {
	name    string
	encoder *embeddings.Lazy
	store   table.Store
	log     *slog.Logger

	targetsJob uuid.UUID
	targets    []embeddings.Vector
}

func NewWorker(name string, encoder *embeddings.Lazy, store table.Store, log *slog.Logger) *Worker {
	return &Worker{
		name:    name,
		encoder: encoder,
		store:   store,
		log:     log.With("worker", name),
	}
}

// Encoder exposes the worker's once-loader, mainly for load accounting.
func (w *Worker) Encoder() *embeddings.Lazy { return w.encoder }

// ScorePartition reads split from the input table, scores it as one batch and
// appends the enriched rows to the output table in input order.
func (w *Worker) ScorePartition(ctx context.Context, job Job, split table.Split) (PartitionResult, error) {
	enc, err := w.encoder.Get(ctx)
	if err != nil {
		return PartitionResult{}, err
	}
	targets, err := w.targetsFor(ctx, enc, job)
	if err != nil {
		return PartitionResult{}, err
	}

	rows, err := w.store.ReadRange(ctx, job.InputTable, split.Offset, split.Limit)
	if err != nil {
		return PartitionResult{}, fmt.Errorf("read %s [%d,+%d): %w", job.InputTable, split.Offset, split.Limit, err)
	}
	if len(rows) != split.Limit {
		return PartitionResult{}, fmt.Errorf("read %s [%d,+%d): got %d rows", job.InputTable, split.Offset, split.Limit, len(rows))
	}

	texts := make([]string, len(rows))
	for i, row := range rows {
		if job.TextIndex < 0 || job.TextIndex >= len(row) {
			return PartitionResult{}, fmt.Errorf("row %d: text column %d out of range", split.Offset+i, job.TextIndex)
		}
		text, err := table.Text(row[job.TextIndex])
		if err != nil {
			return PartitionResult{}, fmt.Errorf("row %d: %w", split.Offset+i, err)
		}
		texts[i] = records.Truncate(text, job.MaxTokens)
	}

	vecs, err := enc.Encode(ctx, texts)
	if err != nil {
		return PartitionResult{}, fmt.Errorf("encode partition: %w", err)
	}
	matrix, err := similarity.Score(vecs, targets)
	if err != nil {
		return PartitionResult{}, fmt.Errorf("score partition: %w", err)
	}

	out := make([]table.Row, len(rows))
	for i, row := range rows {
		enriched := make(table.Row, 0, len(row)+len(matrix[i]))
		enriched = append(enriched, row...)
		for _, s := range matrix[i] {
			enriched = append(enriched, s)
		}
		out[i] = enriched
	}
	if err := w.store.Append(ctx, job.OutputTable, out); err != nil {
		return PartitionResult{}, fmt.Errorf("append to %s: %w", job.OutputTable, err)
	}

	w.log.Debug("partition scored", "job_id", job.ID, "partition", split.Index, "rows", len(out))
	return PartitionResult{Partition: split.Index, Rows: len(out), Worker: w.name}, nil
}

// targetsFor returns the job's target vectors, encoding missing ones once.
func (w *Worker) targetsFor(ctx context.Context, enc embeddings.Encoder, job Job) ([]embeddings.Vector, error) {
	if w.targets != nil && w.targetsJob == job.ID {
		return w.targets, nil
	}
	if len(job.Intents) == 0 {
		return nil, fmt.Errorf("job %s has no target intents", job.ID)
	}

	vecs := make([]embeddings.Vector, len(job.Intents))
	var missing []int
	var texts []string
	for i, in := range job.Intents {
		if len(in.Vector) == enc.Dimensions() {
			vecs[i] = in.Vector
			continue
		}
		missing = append(missing, i)
		texts = append(texts, strings.TrimSpace(in.Text))
	}
	if len(texts) > 0 {
		encoded, err := enc.Encode(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("encode target intents: %w", err)
		}
		for j, i := range missing {
			vecs[i] = encoded[j]
		}
	}

	w.targetsJob, w.targets = job.ID, vecs
	return vecs, nil
}

// Handle is the queue.Handler serving partition tasks.
func (w *Worker) Handle(ctx context.Context, task queue.Task) ([]byte, error) {
	if task.Type != queue.TaskTypeScorePartition {
		return nil, fmt.Errorf("unsupported task type %q", task.Type)
	}
	var pt partitionTask
	if err := json.Unmarshal(task.Payload, &pt); err != nil {
		return nil, fmt.Errorf("decode partition task: %w", err)
	}
	res, err := w.ScorePartition(ctx, pt.Job, pt.Split)
	if err != nil {
		return nil, err
	}
	return json.Marshal(res)
}
