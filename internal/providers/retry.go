package providers

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/chainguard-dev/clog"
)

// RetryConfig configures retry behavior for API calls.
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts. 0 means do not retry at all.
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	// MaxJitter is the maximum random jitter added to each backoff.
	MaxJitter time.Duration
}

// DefaultRetryConfig returns the retry settings used when the config file sets none.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:  3,
		BaseBackoff: 1 * time.Second,
		MaxBackoff:  60 * time.Second,
		MaxJitter:   500 * time.Millisecond,
	}
}

// Validate checks that the retry configuration has valid values.
func (c RetryConfig) Validate() error {
	if c.MaxRetries < 0 {
		return errors.New("max retries cannot be negative")
	}
	if c.BaseBackoff < 0 || c.MaxBackoff < 0 || c.MaxJitter < 0 {
		return errors.New("backoff durations cannot be negative")
	}
	return nil
}

// RetryableStatus reports whether an HTTP status is worth retrying.
func RetryableStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504, 529:
		return true
	}
	return false
}

// RetryWithBackoff executes fn with exponential backoff.
// It only retries on errors that isRetryable accepts.
func RetryWithBackoff[T any](ctx context.Context, cfg RetryConfig, operation string, isRetryable func(error) bool, fn func() (T, error)) (T, error) {
	var result T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result, lastErr = fn()
		if lastErr == nil {
			return result, nil
		}
		if !isRetryable(lastErr) {
			return result, lastErr
		}
		if attempt >= cfg.MaxRetries {
			break
		}

		backoff := min(cfg.BaseBackoff<<attempt, cfg.MaxBackoff)
		var jitter time.Duration
		if cfg.MaxJitter > 0 {
			n, err := rand.Int(rand.Reader, big.NewInt(int64(cfg.MaxJitter)))
			if err == nil {
				jitter = time.Duration(n.Int64())
			}
		}

		clog.FromContext(ctx).With("operation", operation).
			With("attempt", attempt+1).
			With("max_retries", cfg.MaxRetries).
			With("backoff", backoff+jitter).
			With("error", lastErr.Error()).
			Warn("Transient provider error, retrying")

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(backoff + jitter):
		}
	}

	if cfg.MaxRetries == 0 {
		return result, lastErr
	}
	return result, fmt.Errorf("%s failed after %d retries: %w", operation, cfg.MaxRetries, lastErr)
}

// Retrying wraps a ChatProvider so transient failures are retried.
type Retrying struct {
	wrapped     ChatProvider
	cfg         RetryConfig
	isRetryable func(error) bool
}

// WithRetry decorates provider with RetryWithBackoff using the given classifier.
func WithRetry(provider ChatProvider, cfg RetryConfig, isRetryable func(error) bool) *Retrying {
	return &Retrying{wrapped: provider, cfg: cfg, isRetryable: isRetryable}
}

// Complete calls the wrapped provider, retrying transient errors.
func (r *Retrying) Complete(ctx context.Context, req Request) (Response, error) {
	operation := fmt.Sprintf("%s/%s", req.Provider, req.Model)
	return RetryWithBackoff(ctx, r.cfg, operation, r.isRetryable, func() (Response, error) {
		return r.wrapped.Complete(ctx, req)
	})
}

// Close passes the call through to the wrapped provider.
func (r *Retrying) Close() error {
	return r.wrapped.Close()
}
