// internal/providerfactory/factory.go
package providerfactory

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/chainguard-dev/clog"
	"github.com/mwiater/llmpanel/internal/appconfig"
	"github.com/mwiater/llmpanel/internal/embeddings"
	"github.com/mwiater/llmpanel/internal/metrics"
	"github.com/mwiater/llmpanel/internal/providers"
	"github.com/mwiater/llmpanel/internal/providers/anthropic"
	"github.com/mwiater/llmpanel/internal/providers/google"
	"github.com/mwiater/llmpanel/internal/providers/multiplex"
	"github.com/mwiater/llmpanel/internal/providers/ollama"
	"github.com/mwiater/llmpanel/internal/providers/openai"
)

// Route maps a model-options provider key to the backend that serves it.
// Keys naming a configured or built-in provider go there; anything else
// (vendor prefixes such as "meta-llama") goes to the default provider.
func Route(cfg *appconfig.Config, providerKey string) string {
	key := multiplex.Normalize(providerKey)
	if _, ok := cfg.Provider(key); ok {
		return key
	}
	return multiplex.Normalize(cfg.DefaultProvider)
}

// RetryConfig converts the configured retry section and validates the result.
func RetryConfig(cfg *appconfig.Config) (providers.RetryConfig, error) {
	base, ceiling := cfg.Retry.Backoff()
	rc := providers.DefaultRetryConfig()
	rc.MaxRetries = cfg.Retry.MaxRetries
	if base > 0 {
		rc.BaseBackoff = base
	}
	if ceiling > 0 {
		rc.MaxBackoff = ceiling
	}
	if err := rc.Validate(); err != nil {
		return providers.RetryConfig{}, fmt.Errorf("retry config: %w", err)
	}
	return rc, nil
}

// NewChatProvider builds the backends named in backendNames, each with
// retries, behind a multiplexer. When m is non-nil the result records metrics.
func NewChatProvider(ctx context.Context, cfg *appconfig.Config, secrets appconfig.Secrets, backendNames []string, m *metrics.Metrics) (providers.ChatProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config provided to provider factory")
	}
	names := dedupe(backendNames)
	if len(names) == 0 {
		return nil, fmt.Errorf("no providers requested")
	}

	retryCfg, err := RetryConfig(cfg)
	if err != nil {
		return nil, err
	}
	built := make(map[string]providers.ChatProvider, len(names))
	for _, name := range names {
		backend, classify, err := newBackend(ctx, cfg, secrets, name)
		if err != nil {
			for _, p := range built {
				_ = p.Close()
			}
			return nil, err
		}
		built[name] = providers.WithRetry(backend, retryCfg, classify)
		clog.FromContext(ctx).With("provider", name).Debug("provider ready")
	}

	var provider providers.ChatProvider = multiplex.New(built)
	if m != nil {
		provider = metrics.NewProvider(provider, m)
	}
	return provider, nil
}

func newBackend(ctx context.Context, cfg *appconfig.Config, secrets appconfig.Secrets, name string) (providers.ChatProvider, func(error) bool, error) {
	pc, ok := cfg.Provider(name)
	if !ok {
		return nil, nil, fmt.Errorf("unknown provider %q (known: %s)", name, strings.Join(cfg.ProviderNames(), ", "))
	}
	timeout := cfg.RequestTimeout()

	switch multiplex.Normalize(pc.Type) {
	case "openai", "openrouter":
		key, err := secrets.Require(pc.APIKeyEnv)
		if err != nil {
			return nil, nil, fmt.Errorf("provider %s: %w", name, err)
		}
		p, err := openai.New(openai.Options{Name: name, APIKey: key, BaseURL: pc.BaseURL, Timeout: timeout})
		return p, openai.IsRetryable, err
	case "anthropic":
		key, err := secrets.Require(pc.APIKeyEnv)
		if err != nil {
			return nil, nil, fmt.Errorf("provider %s: %w", name, err)
		}
		p, err := anthropic.New(anthropic.Options{APIKey: key, BaseURL: pc.BaseURL, Timeout: timeout})
		return p, anthropic.IsRetryable, err
	case "google":
		key, err := secrets.Require(pc.APIKeyEnv)
		if err != nil {
			return nil, nil, fmt.Errorf("provider %s: %w", name, err)
		}
		p, err := google.New(ctx, google.Options{APIKey: key, BaseURL: pc.BaseURL, Timeout: timeout})
		return p, google.IsRetryable, err
	case "ollama":
		p, err := ollama.New(ollamaHost(pc, secrets), timeout)
		return p, ollama.IsRetryable, err
	default:
		return nil, nil, fmt.Errorf("provider %s has unsupported type %q", name, pc.Type)
	}
}

// NewEmbedder builds the embedder for (providerName, model) with retries,
// optional metrics, and a Redis cache when an address is configured.
// The returned closer releases the cache connection.
func NewEmbedder(ctx context.Context, cfg *appconfig.Config, secrets appconfig.Secrets, providerName, model string, m *metrics.Metrics) (embeddings.Embedder, io.Closer, error) {
	name := multiplex.Normalize(providerName)
	pc, ok := cfg.Provider(name)
	if !ok {
		return nil, nil, fmt.Errorf("unknown embedding provider %q", providerName)
	}
	retryCfg, err := RetryConfig(cfg)
	if err != nil {
		return nil, nil, err
	}
	timeout := cfg.RequestTimeout()

	var (
		embedder embeddings.Embedder
		classify func(error) bool
	)
	switch multiplex.Normalize(pc.Type) {
	case "openai", "openrouter":
		key, keyErr := secrets.Require(pc.APIKeyEnv)
		if keyErr != nil {
			return nil, nil, fmt.Errorf("embedding provider %s: %w", name, keyErr)
		}
		embedder, err = embeddings.NewOpenAI(openai.Options{Name: name, APIKey: key, BaseURL: pc.BaseURL, Timeout: timeout}, model)
		classify = openai.IsRetryable
	case "google":
		key, keyErr := secrets.Require(pc.APIKeyEnv)
		if keyErr != nil {
			return nil, nil, fmt.Errorf("embedding provider %s: %w", name, keyErr)
		}
		embedder, err = embeddings.NewGoogle(ctx, google.Options{APIKey: key, BaseURL: pc.BaseURL, Timeout: timeout}, model)
		classify = google.IsRetryable
	case "ollama":
		embedder, err = embeddings.NewOllama(ollamaHost(pc, secrets), timeout, model)
		classify = ollama.IsRetryable
	default:
		return nil, nil, fmt.Errorf("provider %s (%s) does not support embeddings", name, pc.Type)
	}
	if err != nil {
		return nil, nil, err
	}

	embedder = embeddings.WithRetry(embedder, retryCfg, classify)
	if m != nil {
		embedder = metrics.NewEmbedder(embedder, m)
	}

	addr := strings.TrimSpace(cfg.Embed.RedisAddr)
	if addr == "" {
		addr = strings.TrimSpace(secrets.RedisAddr)
	}
	if addr == "" {
		return embedder, nopCloser{}, nil
	}
	cache, err := embeddings.NewRedisCache(ctx, addr)
	if err != nil {
		return nil, nil, err
	}
	clog.FromContext(ctx).With("addr", addr).Info("embedding cache enabled")
	return embeddings.NewCached(embedder, cache), cache, nil
}

func ollamaHost(pc appconfig.ProviderConfig, secrets appconfig.Secrets) string {
	if strings.TrimSpace(pc.BaseURL) != "" {
		return pc.BaseURL
	}
	return secrets.OllamaHost
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		n := multiplex.Normalize(name)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
