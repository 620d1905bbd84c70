package stt

import (
	"log/slog"
	"time"
)

// Config configures a Provider.
type Config struct {
	APIKey  string
	BaseURL string

	Model string

	// Language is the ISO-639-1 code of the expected speech.
	Language string

	// Prompt biases spelling of names and domain vocabulary.
	Prompt string

	Temperature float32

	// DefaultFilename names uploads whose request has none. Whisper infers
	// the container from the extension.
	DefaultFilename string

	Timeout time.Duration
	Logger  *slog.Logger
}

// Option mutates a Config.
type Option func(*Config)

func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

func WithLanguage(lang string) Option {
	return func(c *Config) { c.Language = lang }
}

func WithPrompt(prompt string) Option {
	return func(c *Config) { c.Prompt = prompt }
}

func WithTemperature(t float32) Option {
	return func(c *Config) { c.Temperature = t }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig transcribes English with whisper-1 at a low temperature.
func DefaultConfig() *Config {
	return &Config{
		Model:           ModelWhisper1,
		Language:        "en",
		Temperature:     0.2,
		DefaultFilename: "audio.webm",
		Timeout:         30 * time.Second,
		Logger:          slog.Default(),
	}
}

// Apply runs opts in order.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

// Validate requires a key and fills a missing logger.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return ErrNoAPIKey
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return nil
}
