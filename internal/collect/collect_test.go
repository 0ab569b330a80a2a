package collect

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mwiater/llmpanel/internal/appconfig"
	"github.com/mwiater/llmpanel/internal/logging"
	"github.com/mwiater/llmpanel/internal/providers"
	"github.com/mwiater/llmpanel/internal/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	mu       sync.Mutex
	requests []providers.Request
	fail     map[string]error
	delays   map[string]time.Duration
}

func (s *stubProvider) Complete(ctx context.Context, req providers.Request) (providers.Response, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if d := s.delays[req.Model]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return providers.Response{}, ctx.Err()
		}
	}
	if err := s.fail[req.Model]; err != nil {
		return providers.Response{}, err
	}
	return providers.Response{Model: req.Model, Content: fmt.Sprintf("%s says %s", req.Model, req.Messages[0].Content)}, nil
}

func (s *stubProvider) Close() error { return nil }

func writePrompts(t *testing.T, rows ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "prompts.csv")
	content := "question,question_context\n"
	for _, row := range rows {
		content += row + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func baseOptions(t *testing.T, input string) Options {
	return Options{
		Input:          input,
		Output:         filepath.Join(t.TempDir(), "multillm.csv"),
		QuestionColumn: "question",
		ContextColumn:  "question_context",
		SystemPrompt:   "be helpful",
		Targets: []Target{
			{Backend: "openrouter", Model: "slow-model"},
			{Backend: "openrouter", Model: "fast-model"},
			{Backend: "ollama", Model: "local"},
		},
		Concurrency: 3,
	}
}

func TestRunWritesOneRowPerPromptInModelOrder(t *testing.T) {
	input := writePrompts(t, "q1,ctx1", "q2,ctx2")
	opts := baseOptions(t, input)
	stub := &stubProvider{delays: map[string]time.Duration{"slow-model": 20 * time.Millisecond}}

	res, err := Run(context.Background(), stub, opts)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Questions)
	assert.Equal(t, 6, res.Answered())
	assert.Equal(t, 0, res.Failed())

	out, err := table.Read(opts.Output)
	require.NoError(t, err)
	assert.Equal(t, []string{"Question", "slow-model", "fast-model", "local"}, out.Header)
	want := [][]string{
		{"q1", "slow-model says ctx1", "fast-model says ctx1", "local says ctx1"},
		{"q2", "slow-model says ctx2", "fast-model says ctx2", "local says ctx2"},
	}
	if diff := cmp.Diff(want, out.Rows); diff != "" {
		t.Fatalf("output mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, stub.requests, 6)
	for _, req := range stub.requests {
		assert.Equal(t, "be helpful", req.SystemPrompt)
		require.NotNil(t, req.Temperature)
		assert.Zero(t, *req.Temperature)
		if req.Model == "local" {
			assert.Equal(t, "ollama", req.Provider)
		} else {
			assert.Equal(t, "openrouter", req.Provider)
		}
	}
}

func TestRunLeavesExchangeLoggingToProviders(t *testing.T) {
	var buf bytes.Buffer
	logging.InitWriter(&buf)
	logging.SetDebug(true)
	t.Cleanup(func() {
		logging.SetDebug(false)
		_ = logging.Close()
	})

	opts := baseOptions(t, writePrompts(t, "q1,ctx1"))
	_, err := Run(context.Background(), &stubProvider{}, opts)
	require.NoError(t, err)

	assert.NotContains(t, buf.String(), "[OUT]")
	assert.NotContains(t, buf.String(), "[IN]")
}

func TestRunLeavesFailedCellsEmpty(t *testing.T) {
	input := writePrompts(t, "q1,ctx1")
	opts := baseOptions(t, input)
	stub := &stubProvider{fail: map[string]error{"fast-model": errors.New("boom")}}

	res, err := Run(context.Background(), stub, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed())
	assert.Equal(t, ModelCount{Model: "fast-model", Failed: 1}, res.Models[1])

	out, err := table.Read(opts.Output)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"q1", "slow-model says ctx1", "", "local says ctx1"}}, out.Rows)
}

func TestRunFailFastStops(t *testing.T) {
	input := writePrompts(t, "q1,ctx1", "q2,ctx2")
	opts := baseOptions(t, input)
	opts.FailFast = true
	stub := &stubProvider{fail: map[string]error{"local": errors.New("down")}}

	_, err := Run(context.Background(), stub, opts)
	require.Error(t, err)
	assert.ErrorContains(t, err, "model local")

	out, err := table.Read(opts.Output)
	require.NoError(t, err)
	assert.Empty(t, out.Rows)
}

func TestRunHonoursCancellationDuringDelay(t *testing.T) {
	input := writePrompts(t, "q1,ctx1", "q2,ctx2")
	opts := baseOptions(t, input)
	opts.QuestionDelay = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	res, err := Run(ctx, &stubProvider{}, opts)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, res.Questions)
}

func TestRunValidatesInput(t *testing.T) {
	input := writePrompts(t, "q1,ctx1")

	_, err := Run(context.Background(), nil, baseOptions(t, input))
	assert.Error(t, err)

	opts := baseOptions(t, input)
	opts.Targets = nil
	_, err = Run(context.Background(), &stubProvider{}, opts)
	assert.ErrorContains(t, err, "no models")

	opts = baseOptions(t, input)
	opts.ContextColumn = "context"
	_, err = Run(context.Background(), &stubProvider{}, opts)
	assert.ErrorContains(t, err, `column "context" not found`)
}

func TestTargetsFromRoutesVendorKeysToDefault(t *testing.T) {
	cfg := appconfig.Default()
	opts := appconfig.ModelOptions{Entries: []appconfig.ProviderModels{
		{Provider: "meta-llama", Models: []string{"meta-llama/llama-3-8b"}},
		{Provider: "ollama", Models: []string{"llama3.1:8b"}},
		{Provider: "claude", Models: []string{"claude-3-haiku"}},
	}}

	targets := TargetsFrom(&cfg, opts)
	want := []Target{
		{Backend: "openrouter", Model: "meta-llama/llama-3-8b"},
		{Backend: "ollama", Model: "llama3.1:8b"},
		{Backend: "anthropic", Model: "claude-3-haiku"},
	}
	if diff := cmp.Diff(want, targets); diff != "" {
		t.Fatalf("targets mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []string{"openrouter", "ollama", "anthropic"}, Backends(targets))
}
