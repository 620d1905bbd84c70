// Package config loads go-persona settings from the environment.
// An optional .env file is read first; real environment variables win.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults for the service.
const (
	DefaultPort             = 3000
	DefaultCORSOrigin       = "http://localhost:3000"
	DefaultRateLimitWindow  = 900000 * time.Millisecond
	DefaultRateLimitMax     = 100
	DefaultChatModel        = "gpt-4o-mini"
	DefaultSTTModel         = "whisper-1"
	DefaultSTTLanguage      = "en"
	DefaultTTSModel         = "tts-1"
	DefaultTTSVoice         = "nova"
	DefaultTTSSpeed         = 1.0
	DefaultProviderTimeout  = 30 * time.Second
	DefaultRequestTimeout   = 2 * time.Minute
	DefaultSessionIdleTTL   = 30 * time.Minute
	DefaultLogLevel         = "info"
	SessionModeSingle       = "single"
	SessionModePerSession   = "per-session"
	EnvironmentProduction   = "production"
	EnvironmentDevelopment  = "development"
	defaultEnvFile          = ".env"
	rateLimitWindowEnvUnits = time.Millisecond
)

// ErrNoAPIKey is returned when OPENAI_API_KEY is missing.
var ErrNoAPIKey = errors.New("config: OPENAI_API_KEY is required")

// Config is the full service configuration.
type Config struct {
	// Server
	Port            int
	CORSOrigins     []string
	RateLimitWindow time.Duration
	RateLimitMax    int
	RequestTimeout  time.Duration
	Environment     string
	LogLevel        string

	// OpenAI
	OpenAIKey         string
	OpenAIBaseURL     string
	ChatModel         string
	FallbackChatModel string
	STTModel          string
	STTLanguage       string
	TTSModel          string
	TTSVoice          string
	TTSSpeed          float64
	ProviderTimeout   time.Duration

	// ElevenLabs (optional secondary synthesis)
	ElevenLabsKey   string
	ElevenLabsVoice string

	// Sessions
	SessionMode    string
	SessionIdleTTL time.Duration

	// Persona
	PersonaFile string
}

// Load reads .env (if present) and the environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(defaultEnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config: read %s: %w", defaultEnvFile, err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables only.
func FromEnv() (*Config, error) {
	var errs []error

	cfg := &Config{
		Port:              envInt("PORT", DefaultPort, &errs),
		CORSOrigins:       envList("CORS_ORIGIN", []string{DefaultCORSOrigin}),
		RateLimitWindow:   envMillis("RATE_LIMIT_WINDOW_MS", DefaultRateLimitWindow, &errs),
		RateLimitMax:      envInt("RATE_LIMIT_MAX_REQUESTS", DefaultRateLimitMax, &errs),
		RequestTimeout:    envDuration("REQUEST_TIMEOUT", DefaultRequestTimeout, &errs),
		Environment:       envString("GO_ENV", EnvironmentDevelopment),
		LogLevel:          envString("LOG_LEVEL", DefaultLogLevel),
		OpenAIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:     os.Getenv("OPENAI_BASE_URL"),
		ChatModel:         envString("CHAT_MODEL", DefaultChatModel),
		FallbackChatModel: os.Getenv("FALLBACK_CHAT_MODEL"),
		STTModel:          envString("STT_MODEL", DefaultSTTModel),
		STTLanguage:       envString("STT_LANGUAGE", DefaultSTTLanguage),
		TTSModel:          envString("TTS_MODEL", DefaultTTSModel),
		TTSVoice:          envString("TTS_VOICE", DefaultTTSVoice),
		TTSSpeed:          envFloat("TTS_SPEED", DefaultTTSSpeed, &errs),
		ProviderTimeout:   envDuration("PROVIDER_TIMEOUT", DefaultProviderTimeout, &errs),
		ElevenLabsKey:     os.Getenv("ELEVENLABS_API_KEY"),
		ElevenLabsVoice:   os.Getenv("ELEVENLABS_VOICE_ID"),
		SessionMode:       envString("SESSION_MODE", SessionModePerSession),
		SessionIdleTTL:    envDuration("SESSION_IDLE_TTL", DefaultSessionIdleTTL, &errs),
		PersonaFile:       os.Getenv("PERSONA_FILE"),
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// Validate checks required values and ranges.
func (c *Config) Validate() error {
	if c.OpenAIKey == "" {
		return ErrNoAPIKey
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: PORT out of range: %d", c.Port)
	}
	if c.RateLimitMax <= 0 {
		return fmt.Errorf("config: RATE_LIMIT_MAX_REQUESTS must be positive, got %d", c.RateLimitMax)
	}
	if c.RateLimitWindow <= 0 {
		return fmt.Errorf("config: RATE_LIMIT_WINDOW_MS must be positive, got %s", c.RateLimitWindow)
	}
	if c.TTSSpeed < 0.25 || c.TTSSpeed > 4.0 {
		return fmt.Errorf("config: TTS_SPEED must be within 0.25-4.0, got %v", c.TTSSpeed)
	}
	switch c.SessionMode {
	case SessionModeSingle, SessionModePerSession:
	default:
		return fmt.Errorf("config: SESSION_MODE must be %q or %q, got %q",
			SessionModeSingle, SessionModePerSession, c.SessionMode)
	}
	return nil
}

// IsProduction reports whether error details should be hidden from clients.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvironmentProduction
}

// HasElevenLabs reports whether the secondary synthesis provider is configured.
func (c *Config) HasElevenLabs() bool {
	return c.ElevenLabsKey != "" && c.ElevenLabsVoice != ""
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func envString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int, errs *[]error) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("config: %s: %w", key, err))
		return def
	}
	return n
}

func envFloat(key string, def float64, errs *[]error) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("config: %s: %w", key, err))
		return def
	}
	return f
}

func envDuration(key string, def time.Duration, errs *[]error) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("config: %s: %w", key, err))
		return def
	}
	return d
}

// envMillis reads an integer count of milliseconds.
func envMillis(key string, def time.Duration, errs *[]error) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("config: %s: %w", key, err))
		return def
	}
	return time.Duration(n) * rateLimitWindowEnvUnits
}

func envList(key string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
