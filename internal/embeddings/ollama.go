package embeddings

import (
	"context"
	"fmt"
	"time"

	"github.com/mwiater/llmpanel/internal/logging"
	ollamaprovider "github.com/mwiater/llmpanel/internal/providers/ollama"
	ollama "github.com/ollama/ollama/api"
)

// Ollama embeds text with a local Ollama server.
type Ollama struct {
	oc    *ollama.Client
	model string
}

var _ Embedder = (*Ollama)(nil)

// NewOllama constructs an Ollama embedder for the server at host.
func NewOllama(host string, timeout time.Duration, model string) (*Ollama, error) {
	oc, err := ollamaprovider.NewClient(host, timeout)
	if err != nil {
		return nil, err
	}
	return &Ollama{oc: oc, model: model}, nil
}

// Embed returns the embedding of text.
func (e *Ollama) Embed(ctx context.Context, text string) ([]float64, error) {
	logging.LogRequest("out", "ollama", e.model, text)
	res, err := e.oc.Embeddings(ctx, &ollama.EmbeddingRequest{
		Model:  e.model,
		Prompt: text,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embedding with %s: %w", e.model, err)
	}
	if len(res.Embedding) == 0 {
		return nil, ErrEmptyVector
	}
	return res.Embedding, nil
}

// Model returns the embedding model name.
func (e *Ollama) Model() string {
	return e.model
}
