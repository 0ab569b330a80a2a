// Package embeddings turns text into vectors through OpenAI, Ollama or Gemini,
// with an optional Redis-backed cache.
package embeddings

import (
	"context"
	"errors"

	"github.com/mwiater/llmpanel/internal/providers"
)

// ErrEmptyVector is returned when a backend answers with no embedding.
var ErrEmptyVector = errors.New("embedding response returned empty vector")

// Embedder computes the embedding for a single text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	// Model names the embedding model, for cache keys and metrics.
	Model() string
}

// Retrying retries transient embedding failures.
type Retrying struct {
	inner       Embedder
	cfg         providers.RetryConfig
	isRetryable func(error) bool
}

var _ Embedder = (*Retrying)(nil)

// WithRetry decorates inner with providers.RetryWithBackoff.
func WithRetry(inner Embedder, cfg providers.RetryConfig, isRetryable func(error) bool) *Retrying {
	return &Retrying{inner: inner, cfg: cfg, isRetryable: isRetryable}
}

// Embed calls the wrapped embedder, retrying transient errors.
func (r *Retrying) Embed(ctx context.Context, text string) ([]float64, error) {
	return providers.RetryWithBackoff(ctx, r.cfg, "embed/"+r.inner.Model(), r.isRetryable, func() ([]float64, error) {
		return r.inner.Embed(ctx, text)
	})
}

// Model returns the wrapped embedder's model.
func (r *Retrying) Model() string {
	return r.inner.Model()
}
