package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Vector is a simple float32 slice wrapper.
type Vector []float32

var (
	ErrEmptyText          = errors.New("text cannot be empty")
	ErrDimensionMismatch  = errors.New("embedding dimension mismatch")
	ErrEncoderUnavailable = errors.New("encoder unavailable")
)

// Encoder maps texts to vectors, one per text, in input order. All vectors
// returned by one Encoder share Dimensions().
type Encoder interface {
	Encode(ctx context.Context, texts []string) ([]Vector, error)
	Dimensions() int
}

// Factory builds an Encoder. Building is expensive (model load, client setup)
// and should happen once per execution unit; see Lazy.
type Factory func(ctx context.Context) (Encoder, error)

// validateTexts rejects empty or whitespace-only inputs.
func validateTexts(texts []string) error {
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("text at index %d: %w", i, ErrEmptyText)
		}
	}
	return nil
}

// checkDimensions verifies every vector has exactly dims entries.
func checkDimensions(vectors []Vector, dims int) error {
	for i, v := range vectors {
		if len(v) != dims {
			return fmt.Errorf("vector %d has %d dimensions, want %d: %w", i, len(v), dims, ErrDimensionMismatch)
		}
	}
	return nil
}
