package inference

import (
	"log/slog"
	"time"

	"github.com/teslashibe/go-persona/internal/failover"
)

// Defaults applied by DefaultConfig.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
)

// Config configures a Provider.
type Config struct {
	// BaseURL selects any OpenAI-compatible endpoint, e.g. a local Ollama.
	BaseURL string

	// APIKey may stay empty for local backends.
	APIKey string

	Model string

	// Timeout bounds a whole-reply call. StreamTimeout bounds only the wait
	// for a stream's response headers; the body runs under the caller's context.
	Timeout       time.Duration
	StreamTimeout time.Duration

	// Retry applies to opening a call, never to a stream already reading.
	Retry failover.Backoff

	Logger *slog.Logger
}

// Option mutates a Config.
type Option func(*Config)

func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithStreamTimeout bounds the wait for a stream to start.
func WithStreamTimeout(d time.Duration) Option {
	return func(c *Config) { c.StreamTimeout = d }
}

// WithRetry retries rate-limited, 5xx and transport failures up to
// retries times, waiting delay, 2*delay and so on between attempts.
func WithRetry(retries int, delay time.Duration) Option {
	return func(c *Config) { c.Retry = failover.Backoff{Retries: retries, Delay: delay} }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig targets OpenAI with a small, fast chat model.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:       DefaultBaseURL,
		Model:         DefaultModel,
		Timeout:       30 * time.Second,
		StreamTimeout: 30 * time.Second,
		Retry:         failover.Backoff{Retries: 2, Delay: 200 * time.Millisecond},
		Logger:        slog.Default(),
	}
}

// Apply runs opts in order.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate rejects a config no call could succeed with.
func (c *Config) Validate() error {
	if c.Model == "" {
		return ErrNoModel
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}
