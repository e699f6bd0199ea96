package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"semantic-triage/internal/pipeline"
	"semantic-triage/internal/store"
	"semantic-triage/internal/table"
)

const DefaultScoreColumn = "similarity"

var (
	ErrInvalidRequest = errors.New("invalid scoring request")
	ErrColumnConflict = errors.New("score column already exists in input table")
)

// Request describes one batch scoring run.
type Request struct {
	InputTable  string   `json:"input_table" validate:"required"`
	OutputTable string   `json:"output_table" validate:"required"`
	TextColumn  string   `json:"text_column" validate:"required"`
	ScoreColumn string   `json:"score_column,omitempty"`
	Intents     []Intent `json:"intents" validate:"required,min=1,dive"`
	Partitions  int      `json:"partitions,omitempty" validate:"gte=0"`
}

// Report summarizes a successful run.
type Report struct {
	JobID        uuid.UUID         `json:"job_id"`
	InputTable   string            `json:"input_table"`
	OutputTable  string            `json:"output_table"`
	Rows         int               `json:"rows"`
	Partitions   int               `json:"partitions"`
	ScoreColumns []string          `json:"score_columns"`
	Results      []PartitionResult `json:"results"`
	Duration     time.Duration     `json:"duration"`
}

type Options struct {
	// Partitions is used when a request does not set its own.
	Partitions int
	MaxTokens  int
	// Ledger, when set, records each run's start and outcome.
	Ledger store.JobLedger
}

// Dispatcher partitions an input table, runs the splits on an Engine and owns
// the output table's lifecycle. The output table exists after Run only if
// every partition succeeded.
type Dispatcher struct {
	store  table.Store
	engine Engine
	log    *slog.Logger
	opts   Options
}

func NewDispatcher(st table.Store, engine Engine, log *slog.Logger, opts Options) *Dispatcher {
	if opts.Partitions <= 0 {
		opts.Partitions = 1
	}
	return &Dispatcher{store: st, engine: engine, log: log, opts: opts}
}

func (d *Dispatcher) Run(ctx context.Context, req Request) (Report, error) {
	start := time.Now()
	job, err := d.prepare(ctx, req)
	if err != nil {
		return Report{}, err
	}
	log := d.log.With("job_id", job.ID, "input", job.InputTable, "output", job.OutputTable)

	total, err := d.store.Count(ctx, job.InputTable)
	if err != nil {
		return Report{}, fmt.Errorf("count %s: %w", job.InputTable, err)
	}
	partitions := req.Partitions
	if partitions <= 0 {
		partitions = d.opts.Partitions
	}
	splits := table.Plan(total, partitions)

	extra := make([]table.Column, len(job.ScoreColumns))
	for i, c := range job.ScoreColumns {
		extra[i] = table.Column{Name: c, Type: "real"}
	}
	if err := d.store.CreateDerived(ctx, job.InputTable, job.OutputTable, extra); err != nil {
		return Report{}, fmt.Errorf("create %s: %w", job.OutputTable, err)
	}

	d.startJob(ctx, job, len(splits), log)
	log.Info("dispatching job", "rows", total, "partitions", len(splits))

	results, err := d.engine.Run(ctx, job, splits)
	if err == nil {
		err = checkCoverage(results, splits, total)
	}
	if err == nil {
		err = d.checkOutput(ctx, job.OutputTable, total)
	}
	if err != nil {
		// Drop with a fresh context: ctx is likely cancelled by now.
		if dropErr := d.store.Drop(context.WithoutCancel(ctx), job.OutputTable); dropErr != nil {
			log.Error("failed to drop partial output", "error", dropErr)
		}
		d.finishJob(ctx, job.ID, store.StatusFailed, 0, err.Error(), log)
		log.Error("job failed", "error", err)
		return Report{}, err
	}

	d.finishJob(ctx, job.ID, store.StatusSucceeded, total, "", log)
	rep := Report{
		JobID:        job.ID,
		InputTable:   job.InputTable,
		OutputTable:  job.OutputTable,
		Rows:         total,
		Partitions:   len(splits),
		ScoreColumns: job.ScoreColumns,
		Results:      results,
		Duration:     time.Since(start),
	}
	log.Info("job finished", "rows", rep.Rows, "duration", rep.Duration)
	return rep, nil
}

// prepare validates req against the input schema and builds the Job.
func (d *Dispatcher) prepare(ctx context.Context, req Request) (Job, error) {
	req.InputTable = strings.TrimSpace(req.InputTable)
	req.OutputTable = strings.TrimSpace(req.OutputTable)
	switch {
	case req.InputTable == "" || req.OutputTable == "":
		return Job{}, fmt.Errorf("%w: input and output tables are required", ErrInvalidRequest)
	case req.InputTable == req.OutputTable:
		return Job{}, fmt.Errorf("%w: output table must differ from input table", ErrInvalidRequest)
	case req.TextColumn == "":
		return Job{}, fmt.Errorf("%w: text column is required", ErrInvalidRequest)
	case len(req.Intents) == 0:
		return Job{}, fmt.Errorf("%w: at least one target intent is required", ErrInvalidRequest)
	}

	intents := make([]Intent, len(req.Intents))
	for i, in := range req.Intents {
		in.Text = strings.TrimSpace(in.Text)
		if in.Text == "" && len(in.Vector) == 0 {
			return Job{}, fmt.Errorf("%w: intent %d has no text", ErrInvalidRequest, i)
		}
		if in.Name == "" {
			in.Name = fmt.Sprintf("intent_%d", i+1)
		}
		intents[i] = in
	}

	cols, err := d.store.Schema(ctx, req.InputTable)
	if err != nil {
		return Job{}, fmt.Errorf("schema %s: %w", req.InputTable, err)
	}
	textIndex, err := table.ColumnIndex(cols, req.TextColumn)
	if err != nil {
		return Job{}, err
	}

	base := req.ScoreColumn
	if base == "" {
		base = DefaultScoreColumn
	}
	scoreCols := ScoreColumns(base, intents)
	for _, c := range scoreCols {
		if _, err := table.ColumnIndex(cols, c); err == nil {
			return Job{}, fmt.Errorf("%s: %w", c, ErrColumnConflict)
		}
	}
	if dup := firstDuplicate(scoreCols); dup != "" {
		return Job{}, fmt.Errorf("%w: duplicate score column %s", ErrInvalidRequest, dup)
	}

	return Job{
		ID:           uuid.New(),
		InputTable:   req.InputTable,
		OutputTable:  req.OutputTable,
		TextColumn:   req.TextColumn,
		TextIndex:    textIndex,
		ScoreColumns: scoreCols,
		Intents:      intents,
		MaxTokens:    d.opts.MaxTokens,
	}, nil
}

// checkCoverage verifies every split reported exactly its planned rows.
func checkCoverage(results []PartitionResult, splits []table.Split, total int) error {
	if len(results) != len(splits) {
		return fmt.Errorf("got %d partition results for %d splits", len(results), len(splits))
	}
	sum := 0
	for i, r := range results {
		if r.Rows != splits[i].Limit {
			return &PartitionError{Partition: splits[i].Index, Err: fmt.Errorf("wrote %d of %d rows", r.Rows, splits[i].Limit)}
		}
		sum += r.Rows
	}
	if sum != total {
		return fmt.Errorf("wrote %d of %d rows", sum, total)
	}
	return nil
}

// checkOutput verifies the output table holds exactly total rows, whatever
// the workers reported.
func (d *Dispatcher) checkOutput(ctx context.Context, name string, total int) error {
	n, err := d.store.Count(ctx, name)
	if err != nil {
		return fmt.Errorf("count %s: %w", name, err)
	}
	if n != total {
		return fmt.Errorf("%s holds %d rows, want %d", name, n, total)
	}
	return nil
}

func firstDuplicate(names []string) string {
	sorted := slices.Clone(names)
	slices.Sort(sorted)
	for i := 1; i < len(sorted); i++ {
		if sorted[i] == sorted[i-1] {
			return sorted[i]
		}
	}
	return ""
}

func (d *Dispatcher) startJob(ctx context.Context, job Job, partitions int, log *slog.Logger) {
	if d.opts.Ledger == nil {
		return
	}
	err := d.opts.Ledger.StartJob(ctx, store.JobRecord{
		ID:           job.ID,
		InputTable:   job.InputTable,
		OutputTable:  job.OutputTable,
		TextColumn:   job.TextColumn,
		ScoreColumns: job.ScoreColumns,
		Partitions:   partitions,
	})
	if err != nil {
		log.Warn("failed to record job start", "error", err)
	}
}

func (d *Dispatcher) finishJob(ctx context.Context, id uuid.UUID, status store.JobStatus, rows int, errMsg string, log *slog.Logger) {
	if d.opts.Ledger == nil {
		return
	}
	if err := d.opts.Ledger.FinishJob(context.WithoutCancel(ctx), id, status, rows, errMsg); err != nil {
		log.Warn("failed to record job outcome", "error", err)
	}
}

// IntentsFromTexts names plain target texts the same way the single-machine
// pipeline does.
func IntentsFromTexts(texts []string) []Intent {
	named := pipeline.NamedIntents(texts)
	out := make([]Intent, len(named))
	for i, n := range named {
		out[i] = Intent{Name: n.Name, Text: n.Text}
	}
	return out
}
