package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"semantic-triage/internal/queue"
	"semantic-triage/internal/table"
)

// Engine runs a job's splits on some pool of workers. Results are returned
// in split order. The first failing split aborts the run with a
// *PartitionError; no split is retried.
type Engine interface {
	Run(ctx context.Context, job Job, splits []table.Split) ([]PartitionResult, error)
}

// LocalEngine runs splits on a fixed set of in-process Workers. The Workers,
// and so their encoders, are built once by NewLocalEngine and reused by every
// Run. A Worker is lent to one goroutine at a time; concurrent runs share the
// same pool.
type LocalEngine struct {
	workers []*Worker
	idle    chan *Worker
}

var errNoWorkers = errors.New("local engine has no workers")

// NewLocalEngine builds workers Workers with newWorker, ids 0..workers-1.
// A nil newWorker yields an engine that can only run empty jobs.
func NewLocalEngine(workers int, newWorker func(id int) *Worker) *LocalEngine {
	if workers <= 0 {
		workers = 1
	}
	e := &LocalEngine{idle: make(chan *Worker, workers)}
	if newWorker == nil {
		return e
	}
	for id := range workers {
		w := newWorker(id)
		e.workers = append(e.workers, w)
		e.idle <- w
	}
	return e
}

// Workers returns the engine's workers in id order.
func (e *LocalEngine) Workers() []*Worker { return e.workers }

type indexedSplit struct {
	pos   int
	split table.Split
}

func (e *LocalEngine) Run(ctx context.Context, job Job, splits []table.Split) ([]PartitionResult, error) {
	results := make([]PartitionResult, len(splits))
	if len(splits) == 0 {
		return results, nil
	}
	if len(e.workers) == 0 {
		return nil, errNoWorkers
	}

	g, ctx := errgroup.WithContext(ctx)
	feed := make(chan indexedSplit)

	g.Go(func() error {
		defer close(feed)
		for i, s := range splits {
			select {
			case feed <- indexedSplit{pos: i, split: s}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for range min(len(e.workers), len(splits)) {
		g.Go(func() error {
			var w *Worker
			select {
			case w = <-e.idle:
			case <-ctx.Done():
				return ctx.Err()
			}
			defer func() { e.idle <- w }()

			for is := range feed {
				if err := ctx.Err(); err != nil {
					return err
				}
				res, err := w.ScorePartition(ctx, job, is.split)
				if err != nil {
					return &PartitionError{Partition: is.split.Index, Err: err}
				}
				results[is.pos] = res
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// QueueEngine sends one task per split to a remote worker pool and waits for
// every reply, keeping at most inflight requests outstanding.
type QueueEngine struct {
	q        queue.Queue
	inflight int
}

func NewQueueEngine(q queue.Queue, inflight int) *QueueEngine {
	if inflight <= 0 {
		inflight = 1
	}
	return &QueueEngine{q: q, inflight: inflight}
}

// Inflight reports the maximum number of outstanding requests.
func (e *QueueEngine) Inflight() int { return e.inflight }

func (e *QueueEngine) Run(ctx context.Context, job Job, splits []table.Split) ([]PartitionResult, error) {
	results := make([]PartitionResult, len(splits))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.inflight)

	for i, s := range splits {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := e.runSplit(ctx, job, s)
			if err != nil {
				return &PartitionError{Partition: s.Index, Err: err}
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *QueueEngine) runSplit(ctx context.Context, job Job, s table.Split) (PartitionResult, error) {
	body, err := json.Marshal(partitionTask{Job: job, Split: s})
	if err != nil {
		return PartitionResult{}, err
	}
	reply, err := e.q.Request(ctx, queue.Task{
		ID:      uuid.New(),
		Type:    queue.TaskTypeScorePartition,
		Payload: body,
	})
	if err != nil {
		return PartitionResult{}, err
	}
	if err := reply.Err(); err != nil {
		return PartitionResult{}, err
	}
	var res PartitionResult
	if err := json.Unmarshal(reply.Payload, &res); err != nil {
		return PartitionResult{}, fmt.Errorf("decode partition result: %w", err)
	}
	return res, nil
}
