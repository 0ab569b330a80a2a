// internal/providers/ollama/provider.go
// Package ollama provides a ChatProvider backed by an Ollama server.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mwiater/llmpanel/internal/logging"
	"github.com/mwiater/llmpanel/internal/providers"
	ollama "github.com/ollama/ollama/api"
)

// DefaultHost is used when neither the config nor OLLAMA_HOST name a server.
const DefaultHost = "http://localhost:11434"

// Provider implements the providers.ChatProvider interface using the Ollama chat API.
type Provider struct {
	host   string
	client *ollama.Client
}

// NewClient parses host and builds an API client with the given timeout.
// It is shared with the embeddings package.
func NewClient(host string, timeout time.Duration) (*ollama.Client, error) {
	if strings.TrimSpace(host) == "" {
		host = DefaultHost
	}
	base, err := url.Parse(strings.TrimRight(host, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse ollama address %q: %w", host, err)
	}
	return ollama.NewClient(base, &http.Client{Timeout: timeout}), nil
}

// New constructs a Provider for the server at host.
func New(host string, timeout time.Duration) (*Provider, error) {
	client, err := NewClient(host, timeout)
	if err != nil {
		return nil, err
	}
	return &Provider{host: host, client: client}, nil
}

// Complete sends a non-streaming chat request.
func (p *Provider) Complete(ctx context.Context, req providers.Request) (providers.Response, error) {
	chatReq := buildRequest(req)
	logging.LogRequest("out", "ollama", req.Model, chatReq)

	start := time.Now()
	var (
		content strings.Builder
		final   ollama.ChatResponse
	)
	err := p.client.Chat(ctx, chatReq, func(resp ollama.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		if resp.Done {
			final = resp
		}
		return nil
	})
	if err != nil {
		return providers.Response{}, fmt.Errorf("ollama chat for %s: %w", req.Model, err)
	}
	latency := time.Since(start)
	logging.LogRequest("in", "ollama", req.Model, final)

	if content.Len() == 0 {
		return providers.Response{}, fmt.Errorf("ollama %s: %w", req.Model, providers.ErrEmptyResponse)
	}
	model := final.Model
	if model == "" {
		model = req.Model
	}
	return providers.Response{
		Model:        model,
		Content:      content.String(),
		FinishReason: final.DoneReason,
		Usage: providers.Usage{
			InputTokens:  final.PromptEvalCount,
			OutputTokens: final.EvalCount,
		},
		Latency: latency,
	}, nil
}

// Close is a no-op.
func (p *Provider) Close() error {
	return nil
}

func buildRequest(req providers.Request) *ollama.ChatRequest {
	stream := false
	messages := make([]ollama.Message, 0, len(req.Messages)+1)
	if strings.TrimSpace(req.SystemPrompt) != "" {
		messages = append(messages, ollama.Message{Role: "system", Content: req.SystemPrompt})
	}
	for _, m := range req.Messages {
		role := strings.ToLower(strings.TrimSpace(m.Role))
		if role == "" {
			role = "user"
		}
		messages = append(messages, ollama.Message{Role: role, Content: m.Content})
	}

	options := map[string]interface{}{}
	if req.Temperature != nil {
		options["temperature"] = *req.Temperature
	}
	if req.MaxTokens > 0 {
		options["num_predict"] = req.MaxTokens
	}

	chatReq := &ollama.ChatRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   &stream,
	}
	if len(options) > 0 {
		chatReq.Options = options
	}
	if req.JSONMode {
		chatReq.Format = "json"
	}
	return chatReq
}

// IsRetryable reports whether err is a transient Ollama server error.
func IsRetryable(err error) bool {
	var statusErr ollama.StatusError
	if errors.As(err, &statusErr) {
		return providers.RetryableStatus(statusErr.StatusCode)
	}
	return false
}
