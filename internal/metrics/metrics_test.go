package metrics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mwiater/llmpanel/internal/providers"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	err    error
	closed bool
}

func (s *stubProvider) Complete(ctx context.Context, req providers.Request) (providers.Response, error) {
	if s.err != nil {
		return providers.Response{}, s.err
	}
	return providers.Response{
		Model:   req.Model,
		Content: "ok",
		Usage:   providers.Usage{InputTokens: 10, OutputTokens: 4},
		Latency: 200 * time.Millisecond,
	}, nil
}

func (s *stubProvider) Close() error {
	s.closed = true
	return nil
}

type stubEmbedder struct{ err error }

func (s stubEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	return []float64{1}, s.err
}

func (s stubEmbedder) Model() string { return "embed-model" }

func TestProviderRecordsRequests(t *testing.T) {
	m := New()
	ok := NewProvider(&stubProvider{}, m)
	failing := NewProvider(&stubProvider{err: errors.New("boom")}, m)
	req := providers.Request{Provider: "openrouter", Model: "gpt-4o"}

	_, err := ok.Complete(context.Background(), req)
	require.NoError(t, err)
	_, err = ok.Complete(context.Background(), req)
	require.NoError(t, err)
	_, err = failing.Complete(context.Background(), req)
	require.Error(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("openrouter", "gpt-4o", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("openrouter", "gpt-4o", "error")))
	assert.Equal(t, 20.0, testutil.ToFloat64(m.tokens.WithLabelValues("gpt-4o", "input")))
	assert.Equal(t, 8.0, testutil.ToFloat64(m.tokens.WithLabelValues("gpt-4o", "output")))

	snapshot := m.Aggregator().Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, int64(3), snapshot[0].Requests)
	assert.Equal(t, int64(1), snapshot[0].Failures)
	assert.InDelta(t, 200.0, snapshot[0].LatencyMillis.Mean, 1e-9)

	require.NoError(t, ok.Close())
}

func TestEmbedderCountsRequests(t *testing.T) {
	m := New()
	_, _ = NewEmbedder(stubEmbedder{}, m).Embed(context.Background(), "x")
	_, _ = NewEmbedder(stubEmbedder{err: errors.New("x")}, m).Embed(context.Background(), "x")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.embeddings.WithLabelValues("embed-model", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.embeddings.WithLabelValues("embed-model", "error")))
	assert.Equal(t, "embed-model", NewEmbedder(stubEmbedder{}, m).Model())
}

func TestWriteFile(t *testing.T) {
	m := New()
	_, err := NewProvider(&stubProvider{}, m).Complete(context.Background(), providers.Request{Provider: "openai", Model: "gpt-4o"})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "out", "llmpanel.prom")
	require.NoError(t, m.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `llmpanel_requests_total{model="gpt-4o",provider="openai",status="ok"} 1`)
}

func TestRunningStat(t *testing.T) {
	var rs RunningStat
	for _, v := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		updateRunningStat(&rs, v)
	}
	assert.InDelta(t, 5.0, rs.Mean, 1e-9)
	assert.Equal(t, 2.0, rs.Min)
	assert.Equal(t, 9.0, rs.Max)
	assert.InDelta(t, 2.138, rs.StdDev(), 1e-3)

	assert.Equal(t, 0.0, RunningStat{Count: 1}.StdDev())
}

func TestAggregatorKeepsFirstSeenOrder(t *testing.T) {
	a := NewAggregator()
	a.Record("b", providers.Response{}, nil)
	a.Record("a", providers.Response{}, nil)
	a.Record("b", providers.Response{}, nil)

	snapshot := a.Snapshot()
	require.Len(t, snapshot, 2)
	assert.Equal(t, "b", snapshot[0].ModelName)
	assert.Equal(t, "a", snapshot[1].ModelName)
}

func TestAggregatorSnapshotFollowsRequestedOrder(t *testing.T) {
	a := NewAggregator()
	a.Record("slow", providers.Response{}, nil)
	a.Record("fast", providers.Response{}, nil)
	a.Record("extra", providers.Response{}, nil)

	var names []string
	for _, m := range a.Snapshot("fast", "missing", "slow", "fast") {
		names = append(names, m.ModelName)
	}
	assert.Equal(t, []string{"fast", "slow", "extra"}, names)
}
