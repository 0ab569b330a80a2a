// internal/providers/openai/provider.go
// Package openai implements providers.ChatProvider for OpenAI and any
// OpenAI-compatible endpoint such as OpenRouter.
package openai

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/mwiater/llmpanel/internal/logging"
	"github.com/mwiater/llmpanel/internal/providers"
	goopenai "github.com/sashabaranov/go-openai"
)

// Provider talks to a single OpenAI-compatible base URL.
type Provider struct {
	name   string
	client *goopenai.Client
}

// Options configures a Provider.
type Options struct {
	// Name is used in logs and errors, e.g. "openrouter".
	Name    string
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// NewClient builds a go-openai client for opts. An empty BaseURL uses the
// OpenAI default. It is shared with the embeddings package.
func NewClient(opts Options) (*goopenai.Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		name := opts.Name
		if name == "" {
			name = "openai"
		}
		return nil, fmt.Errorf("%s: missing API key", name)
	}
	config := goopenai.DefaultConfig(opts.APIKey)
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		config.BaseURL = strings.TrimRight(base, "/")
	}
	if opts.Timeout > 0 {
		config.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	return goopenai.NewClientWithConfig(config), nil
}

// New constructs a Provider.
func New(opts Options) (*Provider, error) {
	client, err := NewClient(opts)
	if err != nil {
		return nil, err
	}
	name := opts.Name
	if name == "" {
		name = "openai"
	}
	return &Provider{name: name, client: client}, nil
}

// Complete sends a chat completion request and returns the first choice.
func (p *Provider) Complete(ctx context.Context, req providers.Request) (providers.Response, error) {
	chatReq := buildRequest(req)
	logging.LogRequest("out", p.name, req.Model, chatReq)

	start := time.Now()
	resp, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return providers.Response{}, fmt.Errorf("%s chat completion for %s: %w", p.name, req.Model, err)
	}
	latency := time.Since(start)
	logging.LogRequest("in", p.name, req.Model, resp)

	if len(resp.Choices) == 0 {
		return providers.Response{}, fmt.Errorf("%s %s: %w", p.name, req.Model, providers.ErrEmptyResponse)
	}
	choice := resp.Choices[0]
	model := resp.Model
	if model == "" {
		model = req.Model
	}
	return providers.Response{
		Model:        model,
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		Usage: providers.Usage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
		},
		Latency: latency,
	}, nil
}

// Close is a no-op; the HTTP client holds no resources that need releasing.
func (p *Provider) Close() error {
	return nil
}

func buildRequest(req providers.Request) goopenai.ChatCompletionRequest {
	messages := make([]goopenai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if strings.TrimSpace(req.SystemPrompt) != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    goopenai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, m := range req.Messages {
		messages = append(messages, goopenai.ChatCompletionMessage{
			Role:    normalizeRole(m.Role),
			Content: m.Content,
		})
	}

	chatReq := goopenai.ChatCompletionRequest{
		Model:    req.Model,
		Messages: messages,
	}
	if req.Temperature != nil {
		chatReq.Temperature = temperature(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if req.JSONMode {
		chatReq.ResponseFormat = &goopenai.ChatCompletionResponseFormat{
			Type: goopenai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	return chatReq
}

// temperature maps 0 to the smallest positive float32; the request field is
// omitempty and a literal 0 would fall back to the server default.
func temperature(v float64) float32 {
	if v <= 0 {
		return math.SmallestNonzeroFloat32
	}
	return float32(v)
}

func normalizeRole(role string) string {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case "system":
		return goopenai.ChatMessageRoleSystem
	case "assistant":
		return goopenai.ChatMessageRoleAssistant
	default:
		return goopenai.ChatMessageRoleUser
	}
}

// IsRetryable reports whether err is a transient OpenAI API error.
func IsRetryable(err error) bool {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return providers.RetryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return providers.RetryableStatus(reqErr.HTTPStatusCode)
	}
	return false
}
