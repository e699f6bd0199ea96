package queue

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// TaskType enumerates supported task categories.
type TaskType string

const (
	TaskTypeScorePartition TaskType = "score_partition"
)

// Task represents a unit of work sent to a worker pool.
type Task struct {
	ID      uuid.UUID
	Type    TaskType
	Payload []byte
}

// Reply is the worker's answer to a Task. A non-empty Error means the task failed.
type Reply struct {
	TaskID  uuid.UUID
	Payload []byte
	Error   string
}

// Err returns the remote failure as an error, or nil.
func (r Reply) Err() error {
	if r.Error == "" {
		return nil
	}
	return &RemoteError{TaskID: r.TaskID, Message: r.Error}
}

// RemoteError is a task failure reported by a worker.
type RemoteError struct {
	TaskID  uuid.UUID
	Message string
}

func (e *RemoteError) Error() string {
	return "task " + e.TaskID.String() + " failed on worker: " + e.Message
}

var ErrTaskTypeRequired = errors.New("task type required")

type Handler func(context.Context, Task) ([]byte, error)

// Queue exposes a minimal contract to dispatch tasks and serve them.
// Tasks are delivered to exactly one worker of the pool; there is no
// redelivery when a handler fails.
type Queue interface {
	// Request sends task to one worker and waits for its reply.
	Request(ctx context.Context, task Task) (Reply, error)
	// Serve handles tasks of taskType until ctx is done.
	Serve(ctx context.Context, taskType TaskType, handler Handler) error
}
