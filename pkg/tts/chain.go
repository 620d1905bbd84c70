package tts

import (
	"context"
	"log/slog"

	"github.com/teslashibe/go-persona/internal/failover"
)

// Chain speaks with the first provider that succeeds.
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
		logger:    logger.With("component", "tts.chain"),
	}, nil
}

func (c *Chain) Synthesize(ctx context.Context, req *Request) (*AudioResult, error) {
	res, err := failover.First(ctx, c.logger, c.providers, func(p Provider) (*AudioResult, error) {
		return p.Synthesize(ctx, req)
	})
	return res, WrapError("chain", err)
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

var _ Provider = (*Chain)(nil)
