package tts

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/teslashibe/go-persona/internal/failover"
)

// Accepted speaking rates.
const (
	MinSpeed = 0.25
	MaxSpeed = 4.0
)

// Config configures a Provider. Fields a backend has no use for are ignored.
type Config struct {
	APIKey  string
	BaseURL string

	Voice string
	Model string
	Speed float64

	// OutputFormat and Settings apply to ElevenLabs only.
	OutputFormat string
	Settings     VoiceSettings

	Timeout time.Duration
	Retry   failover.Backoff

	Logger *slog.Logger
}

// Option mutates a Config.
type Option func(*Config)

func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithVoice sets the default voice: an OpenAI voice name, or an
// ElevenLabs preset name or voice id.
func WithVoice(voice string) Option {
	return func(c *Config) { c.Voice = voice }
}

func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

func WithSpeed(speed float64) Option {
	return func(c *Config) { c.Speed = speed }
}

func WithOutputFormat(format string) Option {
	return func(c *Config) { c.OutputFormat = format }
}

func WithVoiceSettings(s VoiceSettings) Option {
	return func(c *Config) { c.Settings = s }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithRetry retries rate-limited, 5xx and transport failures.
func WithRetry(retries int, delay time.Duration) Option {
	return func(c *Config) { c.Retry = failover.Backoff{Retries: retries, Delay: delay} }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig leaves Voice and Model to the provider constructors.
func DefaultConfig() *Config {
	return &Config{
		Speed:        1.0,
		OutputFormat: FormatMP3,
		Settings:     DefaultVoiceSettings(),
		Timeout:      30 * time.Second,
		Retry:        failover.Backoff{Retries: 2, Delay: 200 * time.Millisecond},
		Logger:       slog.Default(),
	}
}

// Apply runs opts in order.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate checks the fields every backend needs.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	if c.Speed < MinSpeed || c.Speed > MaxSpeed {
		return fmt.Errorf("tts: speed %v outside %v-%v", c.Speed, MinSpeed, MaxSpeed)
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}
