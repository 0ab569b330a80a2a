// internal/providers/anthropic/provider.go
// Package anthropic implements providers.ChatProvider on the Claude Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/mwiater/llmpanel/internal/logging"
	"github.com/mwiater/llmpanel/internal/providers"
)

// DefaultMaxTokens is sent when the request does not set MaxTokens; the API requires one.
const DefaultMaxTokens = 4096

const jsonInstruction = "Respond with a single JSON object and nothing else."

// Provider sends requests to Claude.
type Provider struct {
	client sdk.Client
}

// Options configures a Provider.
type Options struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// New constructs a Provider. SDK-level retries are disabled; callers wrap
// the provider with providers.WithRetry instead.
func New(opts Options) (*Provider, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("anthropic: missing API key")
	}
	clientOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(base))
	}
	if opts.Timeout > 0 {
		clientOpts = append(clientOpts, option.WithRequestTimeout(opts.Timeout))
	}
	return &Provider{client: sdk.NewClient(clientOpts...)}, nil
}

// Complete sends a single Messages request and concatenates the text blocks of the reply.
func (p *Provider) Complete(ctx context.Context, req providers.Request) (providers.Response, error) {
	params := buildParams(req)
	logging.LogRequest("out", "anthropic", req.Model, params)

	start := time.Now()
	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return providers.Response{}, fmt.Errorf("anthropic message for %s: %w", req.Model, err)
	}
	latency := time.Since(start)
	logging.LogRequest("in", "anthropic", req.Model, msg.RawJSON())

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return providers.Response{}, fmt.Errorf("anthropic %s: %w", req.Model, providers.ErrEmptyResponse)
	}

	model := string(msg.Model)
	if model == "" {
		model = req.Model
	}
	return providers.Response{
		Model:        model,
		Content:      text.String(),
		FinishReason: string(msg.StopReason),
		Usage: providers.Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
		Latency: latency,
	}, nil
}

// Close is a no-op.
func (p *Provider) Close() error {
	return nil
}

func buildParams(req providers.Request) sdk.MessageNewParams {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: int64(maxTokens),
	}

	system := strings.TrimSpace(req.SystemPrompt)
	if req.JSONMode {
		if system != "" {
			system += "\n\n"
		}
		system += jsonInstruction
	}
	if system != "" {
		params.System = []sdk.TextBlockParam{{Text: system}}
	}
	if req.Temperature != nil {
		params.Temperature = sdk.Float(*req.Temperature)
	}

	for _, m := range req.Messages {
		block := sdk.NewTextBlock(m.Content)
		if strings.EqualFold(strings.TrimSpace(m.Role), "assistant") {
			params.Messages = append(params.Messages, sdk.NewAssistantMessage(block))
			continue
		}
		params.Messages = append(params.Messages, sdk.NewUserMessage(block))
	}
	return params
}

// IsRetryable checks if an error is a retryable Claude API error.
// Returns true for rate limit, overloaded, and transient server errors.
func IsRetryable(err error) bool {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return providers.RetryableStatus(apiErr.StatusCode)
	}
	return false
}
