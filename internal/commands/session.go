package llmpanel

import (
	"context"
	"fmt"
	"io"

	"github.com/chainguard-dev/clog"
	"github.com/mwiater/llmpanel/internal/appconfig"
	"github.com/mwiater/llmpanel/internal/embeddings"
	"github.com/mwiater/llmpanel/internal/logging"
	"github.com/mwiater/llmpanel/internal/metrics"
	"github.com/mwiater/llmpanel/internal/providerfactory"
	"github.com/mwiater/llmpanel/internal/providers"
	"github.com/spf13/cobra"
)

// session carries what every pipeline command needs: the merged config,
// resolved secrets, a logger-bearing context and the metrics registry.
type session struct {
	ctx     context.Context
	cfg     *appconfig.Config
	secrets appconfig.Secrets
	metrics *metrics.Metrics
	closers []io.Closer
}

func newSession(cmd *cobra.Command) (*session, error) {
	cfg := GetConfig()
	if cfg == nil {
		loaded, err := appconfig.Load(cfgFile)
		if err != nil {
			logging.Logger().Warn("using default configuration", "error", err)
			loaded = appconfig.Default()
		}
		cfg = &loaded
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = logging.WithContext(ctx)

	secrets, err := appconfig.LoadSecrets(ctx, cfg.Dotenv)
	if err != nil {
		return nil, fmt.Errorf("load secrets: %w", err)
	}
	logging.LogEvent("command=%s config=%s concurrency=%d failFast=%t", cmd.CommandPath(), cfg.ConfigPath, cfg.Concurrency, cfg.FailFast)
	return &session{ctx: ctx, cfg: cfg, secrets: secrets, metrics: metrics.New()}, nil
}

func (s *session) modelOptions() (appconfig.ModelOptions, error) {
	return appconfig.LoadModelOptions(s.cfg.ModelOptions)
}

func (s *session) chatProvider(backends ...string) (providers.ChatProvider, error) {
	provider, err := providerfactory.NewChatProvider(s.ctx, s.cfg, s.secrets, backends, s.metrics)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, provider)
	return provider, nil
}

func (s *session) embedder(providerName, model string) (embeddings.Embedder, error) {
	embedder, closer, err := providerfactory.NewEmbedder(s.ctx, s.cfg, s.secrets, providerName, model, s.metrics)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, closer)
	return embedder, nil
}

// close releases clients and writes the metrics file when one is configured.
func (s *session) close() error {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i].Close()
	}
	if s.cfg.MetricsFile == "" {
		return nil
	}
	if err := s.metrics.WriteFile(s.cfg.MetricsFile); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	clog.FromContext(s.ctx).With("path", s.cfg.MetricsFile).Info("metrics written")
	return nil
}
