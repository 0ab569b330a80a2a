package embeddings

import (
	"context"
	"fmt"

	"github.com/mwiater/llmpanel/internal/logging"
	"github.com/mwiater/llmpanel/internal/providers/google"
	"google.golang.org/genai"
)

// Google embeds text with the Gemini embedding API.
type Google struct {
	client *genai.Client
	model  string
}

var _ Embedder = (*Google)(nil)

// NewGoogle constructs a Gemini embedder for model.
func NewGoogle(ctx context.Context, opts google.Options, model string) (*Google, error) {
	client, err := google.NewClient(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Google{client: client, model: model}, nil
}

// Embed returns the embedding of text.
func (e *Google) Embed(ctx context.Context, text string) ([]float64, error) {
	logging.LogRequest("out", "google", e.model, text)
	resp, err := e.client.Models.EmbedContent(ctx, e.model, []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: text}}},
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("gemini embedding with %s: %w", e.model, err)
	}
	if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil || len(resp.Embeddings[0].Values) == 0 {
		return nil, ErrEmptyVector
	}
	values := resp.Embeddings[0].Values
	vector := make([]float64, len(values))
	for i, v := range values {
		vector[i] = float64(v)
	}
	return vector, nil
}

// Model returns the embedding model name.
func (e *Google) Model() string {
	return e.model
}
