package queue

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockQueue is a mock implementation of Queue using testify/mock.
type MockQueue struct {
	mock.Mock
}

func (m *MockQueue) Request(ctx context.Context, task Task) (Reply, error) {
	args := m.Called(ctx, task)
	reply, _ := args.Get(0).(Reply)
	return reply, args.Error(1)
}

func (m *MockQueue) Serve(ctx context.Context, taskType TaskType, handler Handler) error {
	args := m.Called(ctx, taskType, handler)
	return args.Error(0)
}
