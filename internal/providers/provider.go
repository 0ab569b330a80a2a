// internal/providers/provider.go

// Package providers defines the interfaces for interacting with different AI model providers.
// It provides a common abstraction layer for sending a chat completion request and reading
// back the answer, regardless of the underlying provider implementation (e.g., OpenAI, Ollama).
package providers

import (
	"context"
	"errors"
	"time"
)

// ErrEmptyResponse is returned when a provider answers without any content.
var ErrEmptyResponse = errors.New("provider returned no content")

// ChatMessage represents a single message in a chat conversation.
// It contains the role of the message sender (e.g., "user", "assistant") and the message content.
type ChatMessage struct {
	Role    string
	Content string
}

// UserMessage is a convenience constructor for a user turn.
func UserMessage(content string) ChatMessage {
	return ChatMessage{Role: "user", Content: content}
}

// Request encapsulates everything needed for one non-streaming completion.
type Request struct {
	// Provider names the backend the request is routed to (e.g. "openrouter").
	Provider     string
	Model        string
	SystemPrompt string
	Messages     []ChatMessage
	// Temperature is nil when the backend default should be used.
	Temperature *float64
	// JSONMode asks the backend to answer with a single JSON object.
	JSONMode  bool
	MaxTokens int
}

// Usage reports token counts for a completed request.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Response is the outcome of a completed request.
type Response struct {
	Model        string
	Content      string
	FinishReason string
	Usage        Usage
	Latency      time.Duration
}

// ChatProvider is the interface that all model providers must implement.
type ChatProvider interface {
	// Complete sends the request and waits for the full answer.
	Complete(ctx context.Context, req Request) (Response, error)
	// Close cleans up any resources used by the provider.
	Close() error
}

// Float returns a pointer to v, for optional request fields.
func Float(v float64) *float64 {
	return &v
}
