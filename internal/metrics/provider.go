// internal/metrics/provider.go
package metrics

import (
	"context"
	"time"

	"github.com/mwiater/llmpanel/internal/embeddings"
	"github.com/mwiater/llmpanel/internal/providers"
)

// Provider is a decorator that wraps a ChatProvider to record metrics.
type Provider struct {
	wrapped providers.ChatProvider
	metrics *Metrics
}

// NewProvider creates a new metrics-enabled provider that wraps an existing ChatProvider.
func NewProvider(wrapped providers.ChatProvider, m *Metrics) *Provider {
	return &Provider{wrapped: wrapped, metrics: m}
}

// Complete times the wrapped call and records its outcome.
func (p *Provider) Complete(ctx context.Context, req providers.Request) (providers.Response, error) {
	start := time.Now()
	resp, err := p.wrapped.Complete(ctx, req)
	elapsed := time.Since(start)

	m := p.metrics
	m.requests.WithLabelValues(req.Provider, req.Model, status(err)).Inc()
	m.duration.WithLabelValues(req.Provider, req.Model).Observe(elapsed.Seconds())
	if err == nil {
		m.tokens.WithLabelValues(req.Model, "input").Add(float64(resp.Usage.InputTokens))
		m.tokens.WithLabelValues(req.Model, "output").Add(float64(resp.Usage.OutputTokens))
		if resp.Latency == 0 {
			resp.Latency = elapsed
		}
	}
	m.aggregator.Record(req.Model, resp, err)
	return resp, err
}

// Close passes the call through to the wrapped provider.
func (p *Provider) Close() error {
	return p.wrapped.Close()
}

// Embedder wraps an embeddings.Embedder to count requests.
type Embedder struct {
	wrapped embeddings.Embedder
	metrics *Metrics
}

// NewEmbedder creates a metrics-enabled embedder.
func NewEmbedder(wrapped embeddings.Embedder, m *Metrics) *Embedder {
	return &Embedder{wrapped: wrapped, metrics: m}
}

// Embed passes the call through and counts it.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vector, err := e.wrapped.Embed(ctx, text)
	e.metrics.embeddings.WithLabelValues(e.wrapped.Model(), status(err)).Inc()
	return vector, err
}

// Model returns the wrapped embedder's model.
func (e *Embedder) Model() string {
	return e.wrapped.Model()
}
