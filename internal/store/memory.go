package store

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"semantic-triage/internal/table"
)

// MemoryStore keeps tables, intents and jobs in process. It backs local runs
// and tests.
type MemoryStore struct {
	*table.MemoryStore

	mu      sync.RWMutex
	intents map[string]IntentRecord
	jobs    map[uuid.UUID]JobRecord
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		MemoryStore: table.NewMemoryStore(),
		intents:     make(map[string]IntentRecord),
		jobs:        make(map[uuid.UUID]JobRecord),
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) SaveIntent(ctx context.Context, intent IntentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	intent.Vector = slices.Clone(intent.Vector)
	intent.UpdatedAt = time.Now().UTC()
	s.intents[intent.Name] = intent
	return nil
}

func (s *MemoryStore) GetIntent(ctx context.Context, name string) (IntentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.intents[name]
	if !ok {
		return IntentRecord{}, ErrIntentNotFound
	}
	rec.Vector = slices.Clone(rec.Vector)
	return rec, nil
}

func (s *MemoryStore) StartJob(ctx context.Context, job JobRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job.Status = StatusRunning
	job.ScoreColumns = slices.Clone(job.ScoreColumns)
	if job.StartedAt.IsZero() {
		job.StartedAt = time.Now().UTC()
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *MemoryStore) FinishJob(ctx context.Context, id uuid.UUID, status JobStatus, rows int, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return ErrJobNotFound
	}
	now := time.Now().UTC()
	job.Status = status
	job.Rows = rows
	job.Error = errMsg
	job.FinishedAt = &now
	s.jobs[id] = job
	return nil
}

func (s *MemoryStore) GetJob(ctx context.Context, id uuid.UUID) (JobRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return JobRecord{}, ErrJobNotFound
	}
	job.ScoreColumns = slices.Clone(job.ScoreColumns)
	return job, nil
}

var _ Store = (*MemoryStore)(nil)
