package embeddings

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	defaultEmbeddingTimeout = 30 * time.Second
	defaultBatchSize        = 256
	defaultOpenAIDimensions = 1536
)

// OpenAIEncoder calls OpenAI's embeddings API.
type OpenAIEncoder struct {
	model     openai.EmbeddingModel
	dims      int
	batchSize int
	client    *openai.Client
}

// NewOpenAIEncoder creates a new OpenAI encoder. dims is passed to the API
// so shorter vectors can be requested from the text-embedding-3 family.
func NewOpenAIEncoder(apiKey string, model openai.EmbeddingModel, dims, batchSize int, opts ...option.RequestOption) (*OpenAIEncoder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key required")
	}
	if model == "" {
		model = openai.EmbeddingModelTextEmbedding3Small
	}
	if dims <= 0 {
		dims = defaultOpenAIDimensions
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	cli := openai.NewClient(append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...)
	return &OpenAIEncoder{
		model:     model,
		dims:      dims,
		batchSize: batchSize,
		client:    &cli,
	}, nil
}

func (e *OpenAIEncoder) Dimensions() int { return e.dims }

// Model returns the model identity used for cache keys.
func (e *OpenAIEncoder) Model() string { return string(e.model) }

func (e *OpenAIEncoder) Encode(ctx context.Context, texts []string) ([]Vector, error) {
	if e == nil || e.client == nil {
		return nil, fmt.Errorf("nil openai encoder")
	}
	if err := validateTexts(texts); err != nil {
		return nil, err
	}
	out := make([]Vector, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		batch, err := e.encodeBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d:%d]: %w", start, end, err)
		}
		out = append(out, batch...)
	}
	return out, nil
}

func (e *OpenAIEncoder) encodeBatch(ctx context.Context, texts []string) ([]Vector, error) {
	reqCtx, cancel := context.WithTimeout(ctx, defaultEmbeddingTimeout)
	defer cancel()

	resp, err := e.client.Embeddings.New(reqCtx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfArrayOfStrings: texts,
		},
		Model:      e.model,
		Dimensions: openai.Int(int64(e.dims)),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai: got %d embeddings for %d texts", len(resp.Data), len(texts))
	}
	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	// Convert []float64 to []float32
	vectors := make([]Vector, len(data))
	for i, d := range data {
		vec := make(Vector, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		vectors[i] = vec
	}
	if err := checkDimensions(vectors, e.dims); err != nil {
		return nil, err
	}
	return vectors, nil
}

var _ Encoder = (*OpenAIEncoder)(nil)
