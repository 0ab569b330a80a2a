// internal/providers/ollama/provider_test.go
package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mwiater/llmpanel/internal/providers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplete(t *testing.T) {
	var captured map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3.1:8b","message":{"role":"assistant","content":"{\"ok\":true}"},"done":true,"done_reason":"stop","prompt_eval_count":11,"eval_count":5}` + "\n"))
	}))
	defer srv.Close()

	p, err := New(srv.URL, 5*time.Second)
	require.NoError(t, err)

	resp, err := p.Complete(context.Background(), providers.Request{
		Model:        "llama3.1:8b",
		SystemPrompt: "sys",
		Messages:     []providers.ChatMessage{providers.UserMessage("hello")},
		Temperature:  providers.Float(0),
		JSONMode:     true,
	})
	require.NoError(t, err)

	assert.Equal(t, `{"ok":true}`, resp.Content)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, providers.Usage{InputTokens: 11, OutputTokens: 5}, resp.Usage)

	assert.Equal(t, false, captured["stream"])
	assert.Equal(t, "json", captured["format"])
	assert.Equal(t, map[string]any{"temperature": 0.0}, captured["options"])
	messages := captured["messages"].([]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0].(map[string]any)["role"])
}

func TestCompleteServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	p, err := New(srv.URL, 5*time.Second)
	require.NoError(t, err)

	_, err = p.Complete(context.Background(), providers.Request{Model: "m", Messages: []providers.ChatMessage{providers.UserMessage("x")}})
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
}

func TestBuildRequestOmitsEmptyOptions(t *testing.T) {
	req := buildRequest(providers.Request{Model: "m", Messages: []providers.ChatMessage{{Content: "x"}}})
	assert.Nil(t, req.Options)
	assert.Empty(t, req.Format)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "user", req.Messages[0].Role)
}
