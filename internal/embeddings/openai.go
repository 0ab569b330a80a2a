package embeddings

import (
	"context"
	"fmt"

	"github.com/mwiater/llmpanel/internal/logging"
	"github.com/mwiater/llmpanel/internal/providers/openai"
	goopenai "github.com/sashabaranov/go-openai"
)

// OpenAI embeds text with the OpenAI embeddings endpoint.
type OpenAI struct {
	client *goopenai.Client
	model  string
}

var _ Embedder = (*OpenAI)(nil)

// NewOpenAI constructs an OpenAI embedder for model.
func NewOpenAI(opts openai.Options, model string) (*OpenAI, error) {
	client, err := openai.NewClient(opts)
	if err != nil {
		return nil, err
	}
	return &OpenAI{client: client, model: model}, nil
}

// Embed returns the embedding of text as float64 values.
func (e *OpenAI) Embed(ctx context.Context, text string) ([]float64, error) {
	logging.LogRequest("out", "openai", e.model, text)
	resp, err := e.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input: []string{text},
		Model: goopenai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("openai embedding with %s: %w", e.model, err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, ErrEmptyVector
	}
	vector := make([]float64, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vector[i] = float64(v)
	}
	return vector, nil
}

// Model returns the embedding model name.
func (e *OpenAI) Model() string {
	return e.model
}
