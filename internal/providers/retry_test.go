package providers

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:  3,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  10 * time.Millisecond,
		MaxJitter:   time.Millisecond,
	}
}

func alwaysRetryable(err error) bool { return err != nil }

func TestRetryWithBackoffSuccessAfterRetries(t *testing.T) {
	t.Parallel()
	var attempts atomic.Int32

	result, err := RetryWithBackoff(context.Background(), testRetryConfig(), "test_op", alwaysRetryable, func() (string, error) {
		if attempts.Add(1) < 3 {
			return "", errors.New("429")
		}
		return "recovered", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", result)
	assert.EqualValues(t, 3, attempts.Load())
}

func TestRetryWithBackoffExhausted(t *testing.T) {
	t.Parallel()
	var attempts atomic.Int32
	sentinel := errors.New("overloaded")

	_, err := RetryWithBackoff(context.Background(), testRetryConfig(), "test_op", alwaysRetryable, func() (int, error) {
		attempts.Add(1)
		return 0, sentinel
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel)
	assert.Contains(t, err.Error(), "test_op failed after 3 retries")
	assert.EqualValues(t, 4, attempts.Load())
}

func TestRetryWithBackoffNonRetryable(t *testing.T) {
	t.Parallel()
	var attempts atomic.Int32
	sentinel := errors.New("bad request")

	_, err := RetryWithBackoff(context.Background(), testRetryConfig(), "test_op", func(error) bool { return false }, func() (int, error) {
		attempts.Add(1)
		return 0, sentinel
	})
	assert.Equal(t, sentinel, err)
	assert.EqualValues(t, 1, attempts.Load())
}

func TestRetryWithBackoffZeroRetriesReturnsRawError(t *testing.T) {
	t.Parallel()
	sentinel := errors.New("503")
	cfg := testRetryConfig()
	cfg.MaxRetries = 0

	_, err := RetryWithBackoff(context.Background(), cfg, "test_op", alwaysRetryable, func() (int, error) {
		return 0, sentinel
	})
	assert.Equal(t, sentinel, err)
}

func TestRetryWithBackoffContextCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := testRetryConfig()
	cfg.BaseBackoff = time.Hour
	cfg.MaxBackoff = time.Hour

	_, err := RetryWithBackoff(ctx, cfg, "test_op", alwaysRetryable, func() (int, error) {
		return 0, errors.New("429")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRetryableStatus(t *testing.T) {
	t.Parallel()
	for _, code := range []int{429, 500, 502, 503, 504, 529} {
		assert.True(t, RetryableStatus(code), code)
	}
	for _, code := range []int{200, 400, 401, 404} {
		assert.False(t, RetryableStatus(code), code)
	}
}

type flakyProvider struct {
	failures int
	calls    int
	closed   bool
}

func (f *flakyProvider) Complete(ctx context.Context, req Request) (Response, error) {
	f.calls++
	if f.calls <= f.failures {
		return Response{}, errors.New("503")
	}
	return Response{Model: req.Model, Content: "ok"}, nil
}

func (f *flakyProvider) Close() error {
	f.closed = true
	return nil
}

func TestWithRetry(t *testing.T) {
	t.Parallel()
	flaky := &flakyProvider{failures: 2}
	provider := WithRetry(flaky, testRetryConfig(), alwaysRetryable)

	resp, err := provider.Complete(context.Background(), Request{Provider: "openai", Model: "gpt-4o"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 3, flaky.calls)

	require.NoError(t, provider.Close())
	assert.True(t, flaky.closed)
}
