// internal/providers/google/provider.go
// Package google implements providers.ChatProvider on the Gemini API.
package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mwiater/llmpanel/internal/logging"
	"github.com/mwiater/llmpanel/internal/providers"
	"google.golang.org/genai"
)

// Options configures a Provider.
type Options struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
}

// Provider sends GenerateContent requests.
type Provider struct {
	client *genai.Client
}

// NewClient builds a Gemini API client. It is shared with the embeddings package.
func NewClient(ctx context.Context, opts Options) (*genai.Client, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("google: missing API key")
	}
	cfg := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if base := strings.TrimSpace(opts.BaseURL); base != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: base}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return client, nil
}

// New constructs a Provider.
func New(ctx context.Context, opts Options) (*Provider, error) {
	client, err := NewClient(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Provider{client: client}, nil
}

// Complete generates content for the request and returns the first candidate's text.
func (p *Provider) Complete(ctx context.Context, req providers.Request) (providers.Response, error) {
	contents, config := buildRequest(req)
	logging.LogRequest("out", "google", req.Model, contents)

	start := time.Now()
	resp, err := p.client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return providers.Response{}, fmt.Errorf("gemini generate content for %s: %w", req.Model, err)
	}
	latency := time.Since(start)
	logging.LogRequest("in", "google", req.Model, resp)

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return providers.Response{}, fmt.Errorf("gemini %s: %w", req.Model, providers.ErrEmptyResponse)
	}
	candidate := resp.Candidates[0]
	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil && !part.Thought {
			text.WriteString(part.Text)
		}
	}

	out := providers.Response{
		Model:        req.Model,
		Content:      text.String(),
		FinishReason: string(candidate.FinishReason),
		Latency:      latency,
	}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if resp.UsageMetadata != nil {
		out.Usage = providers.Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}
	return out, nil
}

// Close is a no-op.
func (p *Provider) Close() error {
	return nil
}

func buildRequest(req providers.Request) ([]*genai.Content, *genai.GenerateContentConfig) {
	config := &genai.GenerateContentConfig{}
	if req.Temperature != nil {
		config.Temperature = ptr(float32(*req.Temperature))
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if strings.TrimSpace(req.SystemPrompt) != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemPrompt}},
		}
	}
	if req.JSONMode {
		config.ResponseMIMEType = "application/json"
	}

	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := "user"
		if strings.EqualFold(strings.TrimSpace(m.Role), "assistant") {
			role = "model"
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	return contents, config
}

func ptr[T any](v T) *T {
	return &v
}

// IsRetryable checks if an error is a retryable Gemini API error.
// Returns true for rate limit, quota exhaustion, and transient server errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "Resource exhausted") ||
		strings.Contains(errStr, "RESOURCE_EXHAUSTED") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "Overloaded") ||
		strings.Contains(errStr, "UNAVAILABLE") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "quota exceeded") ||
		strings.Contains(errStr, "Internal error") ||
		strings.Contains(errStr, "server error")
}
