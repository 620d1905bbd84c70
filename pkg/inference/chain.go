package inference

import (
	"context"
	"log/slog"

	"github.com/teslashibe/go-persona/internal/failover"
)

// Chain answers with the first provider that succeeds, typically the
// configured model followed by a cheaper fallback model.
type Chain struct {
	providers []Provider
	logger    *slog.Logger
}

// NewChain builds a Chain that logs through slog.Default.
func NewChain(providers ...Provider) (*Chain, error) {
	return NewChainWithLogger(slog.Default(), providers...)
}

// NewChainWithLogger builds a Chain over providers, tried in order.
func NewChainWithLogger(logger *slog.Logger, providers ...Provider) (*Chain, error) {
	if len(providers) == 0 {
		return nil, ErrProviderUnavailable
	}
	return &Chain{
		providers: providers,
		logger:    logger.With("component", "inference.chain"),
	}, nil
}

func (c *Chain) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	resp, err := failover.First(ctx, c.logger, c.providers, func(p Provider) (*ChatResponse, error) {
		return p.Chat(ctx, req)
	})
	return resp, WrapError("chain", err)
}

// Stream falls back only while opening. A stream that fails after it
// started reading is not replayed on another provider.
func (c *Chain) Stream(ctx context.Context, req *ChatRequest) (Stream, error) {
	s, err := failover.First(ctx, c.logger, c.providers, func(p Provider) (Stream, error) {
		return p.Stream(ctx, req)
	})
	return s, WrapError("chain", err)
}

// Health passes while any provider is healthy.
func (c *Chain) Health(ctx context.Context) error {
	err := failover.AnyHealthy(ctx, c.providers, func(ctx context.Context, p Provider) error {
		return p.Health(ctx)
	})
	return WrapError("chain", err)
}

func (c *Chain) Close() error {
	return failover.CloseAll(c.providers)
}

// Providers returns the providers in the order they are tried.
func (c *Chain) Providers() []Provider {
	return c.providers
}

var _ Provider = (*Chain)(nil)
