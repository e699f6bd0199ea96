package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"semantic-triage/internal/embeddings"
	"semantic-triage/internal/table"
)

type JobStatus string

const (
	StatusRunning   JobStatus = "running"
	StatusSucceeded JobStatus = "succeeded"
	StatusFailed    JobStatus = "failed"
)

var (
	ErrIntentNotFound = errors.New("intent not found")
	ErrJobNotFound    = errors.New("job not found")
)

// IntentRecord is a target intent with the embedding computed by Model.
type IntentRecord struct {
	Name      string
	Text      string
	Model     string
	Vector    embeddings.Vector
	UpdatedAt time.Time
}

// JobRecord is a ledger entry for one dispatcher run.
type JobRecord struct {
	ID           uuid.UUID
	InputTable   string
	OutputTable  string
	TextColumn   string
	ScoreColumns []string
	Partitions   int
	Status       JobStatus
	Rows         int
	Error        string
	StartedAt    time.Time
	FinishedAt   *time.Time
}

// IntentRegistry persists precomputed target intent embeddings.
type IntentRegistry interface {
	SaveIntent(ctx context.Context, intent IntentRecord) error
	GetIntent(ctx context.Context, name string) (IntentRecord, error)
}

// JobLedger records dispatcher runs.
type JobLedger interface {
	StartJob(ctx context.Context, job JobRecord) error
	FinishJob(ctx context.Context, id uuid.UUID, status JobStatus, rows int, errMsg string) error
	GetJob(ctx context.Context, id uuid.UUID) (JobRecord, error)
}

// Store defines the persistence contract; an external DB implementation can replace this.
type Store interface {
	table.Store
	IntentRegistry
	JobLedger
	Close() error
}
