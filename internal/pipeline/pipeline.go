// Package pipeline runs the single-machine encode, score and rank flow.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"semantic-triage/internal/embeddings"
	"semantic-triage/internal/rank"
	"semantic-triage/internal/similarity"
)

// Intent is a semantic reference point that candidates are compared against.
type Intent struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

// Targets are encoded intents. They are computed once per run and only read
// afterwards.
type Targets struct {
	Intents []Intent
	Vectors []embeddings.Vector
}

// ScoredRecord is a text paired with its score against every target.
type ScoredRecord struct {
	Index      int       `json:"index"`
	Text       string    `json:"text"`
	Scores     []float32 `json:"scores"`
	Best       float32   `json:"best"`
	BestTarget int       `json:"best_target"`
}

// Result holds scored records in input order.
type Result struct {
	Targets Targets
	Records []ScoredRecord
}

// Top returns up to k records by descending best score, first seen wins ties.
func (r Result) Top(k int) []ScoredRecord {
	return rank.TopK(r.Records, k, func(rec ScoredRecord) float32 { return rec.Best })
}

// Pipeline scores batches of texts with one encoder.
type Pipeline struct {
	encoder embeddings.Encoder
	log     *slog.Logger
}

func New(encoder embeddings.Encoder, log *slog.Logger) *Pipeline {
	return &Pipeline{encoder: encoder, log: log}
}

// NamedIntents turns raw intent texts into Intents named intent_1, intent_2, ...
func NamedIntents(texts []string) []Intent {
	intents := make([]Intent, 0, len(texts))
	for i, t := range texts {
		intents = append(intents, Intent{Name: fmt.Sprintf("intent_%d", i+1), Text: strings.TrimSpace(t)})
	}
	return intents
}

// Targets encodes intents in one batch.
func (p *Pipeline) Targets(ctx context.Context, intents []Intent) (Targets, error) {
	if len(intents) == 0 {
		return Targets{}, errors.New("at least one target intent required")
	}
	texts := make([]string, len(intents))
	for i, in := range intents {
		texts[i] = in.Text
	}
	vecs, err := p.encoder.Encode(ctx, texts)
	if err != nil {
		return Targets{}, fmt.Errorf("encode target intents: %w", err)
	}
	return Targets{Intents: intents, Vectors: vecs}, nil
}

// Score encodes texts as one batch and scores them against targets.
func (p *Pipeline) Score(ctx context.Context, texts []string, targets Targets) (Result, error) {
	vecs, err := p.encoder.Encode(ctx, texts)
	if err != nil {
		return Result{}, fmt.Errorf("encode candidates: %w", err)
	}
	matrix, err := similarity.Score(vecs, targets.Vectors)
	if err != nil {
		return Result{}, fmt.Errorf("score candidates: %w", err)
	}

	records := make([]ScoredRecord, len(texts))
	for i, text := range texts {
		best, at := matrix.Max(i)
		records[i] = ScoredRecord{
			Index:      i,
			Text:       text,
			Scores:     matrix[i],
			Best:       best,
			BestTarget: at,
		}
	}
	p.log.Debug("scored batch", "records", len(records), "targets", len(targets.Vectors))
	return Result{Targets: targets, Records: records}, nil
}

// Run encodes intents and scores texts against them.
func (p *Pipeline) Run(ctx context.Context, texts []string, intents []Intent) (Result, error) {
	targets, err := p.Targets(ctx, intents)
	if err != nil {
		return Result{}, err
	}
	return p.Score(ctx, texts, targets)
}
