// Package similarity scores batches of embedding vectors by cosine similarity.
package similarity

import (
	"errors"
	"fmt"
	"math"

	"semantic-triage/internal/embeddings"
)

// ErrDimensionMismatch is returned when candidate and target widths differ.
var ErrDimensionMismatch = errors.New("similarity: dimension mismatch")

// Sentinel is the score assigned when either vector has zero norm.
const Sentinel float32 = 0

// Matrix holds one row per candidate and one column per target.
type Matrix [][]float32

// Score computes cosine similarity for every (candidate, target) pair in one
// pass. Norms are computed once per vector. Results are clamped to [-1, 1];
// zero-norm vectors and non-finite results score Sentinel.
func Score(candidates, targets []embeddings.Vector) (Matrix, error) {
	if len(candidates) == 0 {
		return Matrix{}, nil
	}
	if len(targets) == 0 {
		return nil, errors.New("similarity: at least one target required")
	}
	dims := len(targets[0])
	for j, t := range targets {
		if len(t) != dims {
			return nil, fmt.Errorf("target %d has %d dimensions, want %d: %w", j, len(t), dims, ErrDimensionMismatch)
		}
	}
	for i, c := range candidates {
		if len(c) != dims {
			return nil, fmt.Errorf("candidate %d has %d dimensions, want %d: %w", i, len(c), dims, ErrDimensionMismatch)
		}
	}

	targetNorms := norms(targets)
	candidateNorms := norms(candidates)

	out := make(Matrix, len(candidates))
	cells := make([]float32, len(candidates)*len(targets))
	for i, c := range candidates {
		row := cells[i*len(targets) : (i+1)*len(targets) : (i+1)*len(targets)]
		for j, t := range targets {
			row[j] = cosine(dot(c, t), candidateNorms[i], targetNorms[j])
		}
		out[i] = row
	}
	return out, nil
}

// Cosine returns the cosine similarity of a and b with the same conventions as
// Score. Vectors of different length score Sentinel.
func Cosine(a, b embeddings.Vector) float32 {
	if len(a) != len(b) {
		return Sentinel
	}
	return cosine(dot(a, b), norm(a), norm(b))
}

// Column returns the scores against target j.
func (m Matrix) Column(j int) []float32 {
	col := make([]float32, len(m))
	for i, row := range m {
		col[i] = row[j]
	}
	return col
}

// Max returns the highest score in row i and the target index holding it.
// The first target wins ties.
func (m Matrix) Max(i int) (float32, int) {
	row := m[i]
	if len(row) == 0 {
		return Sentinel, -1
	}
	best, at := row[0], 0
	for j := 1; j < len(row); j++ {
		if row[j] > best {
			best, at = row[j], j
		}
	}
	return best, at
}

func cosine(dot, na, nb float64) float32 {
	if na == 0 || nb == 0 {
		return Sentinel
	}
	s := dot / (na * nb)
	switch {
	case math.IsNaN(s) || math.IsInf(s, 0):
		return Sentinel
	case s > 1:
		return 1
	case s < -1:
		return -1
	}
	return float32(s)
}

func dot(a, b embeddings.Vector) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func norm(v embeddings.Vector) float64 {
	return math.Sqrt(dot(v, v))
}

func norms(vs []embeddings.Vector) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = norm(v)
	}
	return out
}
