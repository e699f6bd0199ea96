package embeddings

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const (
	DefaultHashDimensions = 384
	// stemLength is the rune prefix kept per token, so "failed" and
	// "failures" land in the same bucket.
	stemLength = 4
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "in": {}, "is": {}, "it": {}, "of": {}, "on": {}, "or": {},
	"the": {}, "to": {}, "was": {}, "were": {}, "with": {},
}

// HashEncoder is a deterministic local encoder based on feature hashing of
// word stems. It needs no model download and is used for offline runs and tests.
type HashEncoder struct {
	dims int
}

// NewHashEncoder creates a hashing encoder. dims <= 0 selects DefaultHashDimensions.
func NewHashEncoder(dims int) *HashEncoder {
	if dims <= 0 {
		dims = DefaultHashDimensions
	}
	return &HashEncoder{dims: dims}
}

func (e *HashEncoder) Dimensions() int { return e.dims }

func (e *HashEncoder) Encode(ctx context.Context, texts []string) ([]Vector, error) {
	if err := validateTexts(texts); err != nil {
		return nil, err
	}
	out := make([]Vector, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.encodeOne(text)
	}
	return out, nil
}

func (e *HashEncoder) encodeOne(text string) Vector {
	vec := make(Vector, e.dims)
	for _, tok := range tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[h.Sum32()%uint32(e.dims)]++
	}
	return normalize(vec)
}

// tokenize lowercases, splits on non letters/digits, drops stopwords and
// truncates each token to its stem prefix.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, skip := stopwords[f]; skip {
			continue
		}
		runes := []rune(f)
		if len(runes) > stemLength {
			runes = runes[:stemLength]
		}
		tokens = append(tokens, string(runes))
	}
	return tokens
}

// normalize scales v to unit length. The zero vector is returned unchanged.
func normalize(v Vector) Vector {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	mag := math.Sqrt(sum)
	for i := range v {
		v[i] = float32(float64(v[i]) / mag)
	}
	return v
}

var _ Encoder = (*HashEncoder)(nil)
