// internal/providers/multiplex/provider.go
// Package multiplex routes provider calls based on the request's provider name.
package multiplex

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/mwiater/llmpanel/internal/providers"
)

// Provider delegates calls to an underlying provider based on Request.Provider.
type Provider struct {
	providers map[string]providers.ChatProvider
}

// New constructs a Provider from a map of provider name to implementation.
func New(providerMap map[string]providers.ChatProvider) *Provider {
	normalized := make(map[string]providers.ChatProvider, len(providerMap))
	for key, provider := range providerMap {
		normalized[Normalize(key)] = provider
	}
	return &Provider{providers: normalized}
}

// Complete forwards the request to the provider registered for req.Provider.
func (p *Provider) Complete(ctx context.Context, req providers.Request) (providers.Response, error) {
	provider, err := p.providerFor(req.Provider)
	if err != nil {
		return providers.Response{}, err
	}
	return provider.Complete(ctx, req)
}

// Names lists the registered provider names.
func (p *Provider) Names() []string {
	names := make([]string, 0, len(p.providers))
	for name := range p.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close cleans up any resources used by the provider.
func (p *Provider) Close() error {
	var firstErr error
	seen := map[providers.ChatProvider]struct{}{}
	for _, provider := range p.providers {
		if _, ok := seen[provider]; ok {
			continue
		}
		seen[provider] = struct{}{}
		if err := provider.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (p *Provider) providerFor(name string) (providers.ChatProvider, error) {
	if provider, ok := p.providers[Normalize(name)]; ok {
		return provider, nil
	}
	return nil, fmt.Errorf("no provider registered for %q", name)
}

// Normalize folds case and provider aliases onto a canonical name.
func Normalize(name string) string {
	normalized := strings.ToLower(strings.TrimSpace(name))
	switch normalized {
	case "claude":
		return "anthropic"
	case "gemini":
		return "google"
	case "open-router":
		return "openrouter"
	default:
		return normalized
	}
}
