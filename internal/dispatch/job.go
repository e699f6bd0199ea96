// Package dispatch scores large tables by fanning partitions out to workers.
package dispatch

import (
	"fmt"

	"github.com/google/uuid"

	"semantic-triage/internal/embeddings"
	"semantic-triage/internal/table"
)

// Intent is a target intent shipped with a job. Vector is optional; when it is
// empty or does not match the worker's encoder, the worker encodes Text.
type Intent struct {
	Name   string            `json:"name"`
	Text   string            `json:"text"`
	Vector embeddings.Vector `json:"vector,omitempty"`
}

// Job is everything a worker needs to score any split of the input table.
type Job struct {
	ID           uuid.UUID `json:"id"`
	InputTable   string    `json:"input_table"`
	OutputTable  string    `json:"output_table"`
	TextColumn   string    `json:"text_column"`
	TextIndex    int       `json:"text_index"`
	ScoreColumns []string  `json:"score_columns"`
	Intents      []Intent  `json:"intents"`
	MaxTokens    int       `json:"max_tokens,omitempty"`
}

// PartitionResult reports a finished split.
type PartitionResult struct {
	Partition int    `json:"partition"`
	Rows      int    `json:"rows"`
	Worker    string `json:"worker"`
}

// PartitionError identifies the split whose task failed.
type PartitionError struct {
	Partition int
	Err       error
}

func (e *PartitionError) Error() string {
	return fmt.Sprintf("partition %d: %v", e.Partition, e.Err)
}

func (e *PartitionError) Unwrap() error { return e.Err }

// partitionTask is the wire payload of a queue task.
type partitionTask struct {
	Job   Job         `json:"job"`
	Split table.Split `json:"split"`
}

// ScoreColumns names the output columns: base for a single intent,
// base_<intent name> for each intent otherwise.
func ScoreColumns(base string, intents []Intent) []string {
	if len(intents) == 1 {
		return []string{base}
	}
	cols := make([]string, len(intents))
	for i, in := range intents {
		cols[i] = base + "_" + in.Name
	}
	return cols
}
