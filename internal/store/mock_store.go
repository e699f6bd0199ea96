package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockLedger is a testify mock for JobLedger.
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) StartJob(ctx context.Context, job JobRecord) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockLedger) FinishJob(ctx context.Context, id uuid.UUID, status JobStatus, rows int, errMsg string) error {
	args := m.Called(ctx, id, status, rows, errMsg)
	return args.Error(0)
}

func (m *MockLedger) GetJob(ctx context.Context, id uuid.UUID) (JobRecord, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(JobRecord), args.Error(1)
}

// MockRegistry is a testify mock for IntentRegistry.
type MockRegistry struct {
	mock.Mock
}

func (m *MockRegistry) SaveIntent(ctx context.Context, intent IntentRecord) error {
	args := m.Called(ctx, intent)
	return args.Error(0)
}

func (m *MockRegistry) GetIntent(ctx context.Context, name string) (IntentRecord, error) {
	args := m.Called(ctx, name)
	return args.Get(0).(IntentRecord), args.Error(1)
}
