// internal/metrics/metrics.go
// Package metrics records request counts, latencies and token usage for
// provider and embedding calls.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics owns a private registry so a command run can export exactly what it recorded.
type Metrics struct {
	registry   *prometheus.Registry
	requests   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	tokens     *prometheus.CounterVec
	embeddings *prometheus.CounterVec
	aggregator *Aggregator
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llmpanel_requests_total",
				Help: "Total number of chat completion requests",
			},
			[]string{"provider", "model", "status"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llmpanel_request_duration_seconds",
				Help:    "Latency of chat completion requests",
				Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
			},
			[]string{"provider", "model"},
		),
		tokens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llmpanel_tokens_total",
				Help: "Tokens reported by providers",
			},
			[]string{"model", "kind"},
		),
		embeddings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llmpanel_embeddings_total",
				Help: "Total number of embedding requests",
			},
			[]string{"model", "status"},
		),
		aggregator: NewAggregator(),
	}
}

// Aggregator returns the per-model running statistics.
func (m *Metrics) Aggregator() *Aggregator {
	return m.aggregator
}

// WriteFile writes the registry in the text exposition format.
func (m *Metrics) WriteFile(path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create metrics directory: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
