package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const defaultRequestTimeout = 5 * time.Minute

// NewNATS constructs a thin NATS-based queue. Subjects are prefix.<task type>.
func NewNATS(log *slog.Logger, nc *nats.Conn, prefix string, timeout time.Duration) Queue {
	if prefix == "" {
		prefix = "tasks"
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &natsQueue{log: log, nc: nc, prefix: prefix, timeout: timeout}
}

type natsQueue struct {
	log     *slog.Logger
	nc      *nats.Conn
	prefix  string
	timeout time.Duration
}

func (q *natsQueue) subject(t TaskType) string {
	return q.prefix + "." + string(t)
}

func (q *natsQueue) Request(ctx context.Context, task Task) (Reply, error) {
	if task.ID == uuid.Nil {
		task.ID = uuid.New()
	}
	if task.Type == "" {
		return Reply{}, ErrTaskTypeRequired
	}
	body, err := json.Marshal(task)
	if err != nil {
		return Reply{}, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, q.timeout)
	defer cancel()
	msg, err := q.nc.RequestWithContext(reqCtx, q.subject(task.Type), body)
	if err != nil {
		return Reply{}, fmt.Errorf("request task %s: %w", task.ID, err)
	}

	var reply Reply
	if err := json.Unmarshal(msg.Data, &reply); err != nil {
		return Reply{}, fmt.Errorf("decode reply for task %s: %w", task.ID, err)
	}
	return reply, nil
}

func (q *natsQueue) Serve(ctx context.Context, taskType TaskType, handler Handler) error {
	subject := q.subject(taskType)
	group := "workers-" + string(taskType)
	sub, err := q.nc.QueueSubscribe(subject, group, func(msg *nats.Msg) {
		q.handleMessage(ctx, msg, handler)
	})
	if err != nil {
		return err
	}
	q.log.Info("serving tasks", "subject", subject, "group", group)
	<-ctx.Done()
	return sub.Drain()
}

func (q *natsQueue) handleMessage(ctx context.Context, msg *nats.Msg, handler Handler) {
	var task Task
	if err := json.Unmarshal(msg.Data, &task); err != nil {
		q.log.Error("failed to decode task", "err", err)
		q.respond(msg, Reply{Error: "malformed task: " + err.Error()})
		return
	}

	payload, err := handler(ctx, task)
	reply := Reply{TaskID: task.ID, Payload: payload}
	if err != nil {
		q.log.Error("task failed", "id", task.ID, "type", task.Type, "err", err)
		reply = Reply{TaskID: task.ID, Error: err.Error()}
	}
	q.respond(msg, reply)
}

func (q *natsQueue) respond(msg *nats.Msg, reply Reply) {
	body, err := json.Marshal(reply)
	if err != nil {
		q.log.Error("failed to encode reply", "id", reply.TaskID, "err", err)
		return
	}
	if err := msg.Respond(body); err != nil {
		q.log.Error("failed to send reply", "id", reply.TaskID, "err", err)
	}
}
