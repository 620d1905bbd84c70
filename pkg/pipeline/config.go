package pipeline

import (
	"errors"
	"log/slog"
	"time"

	"github.com/teslashibe/go-persona/pkg/stt"
	"github.com/teslashibe/go-persona/pkg/tts"
)

// Config holds the tuning of both paths.
// Parameters are organized by stage.
type Config struct {
	// Chunking
	ChunkSize int // Bytes per chunk when splitting an upload (default: 8 KiB)

	// Transcription windows
	FlushBytes       int     // Buffered bytes that force a window (default: 64 KiB)
	FlushEveryChunks int     // Chunk count multiple that forces a window, 0 disables (default: 10)
	OverlapRatio     float64 // Share of a window kept for the next one (default: 0.2)
	OverlapMax       int     // Upper bound on retained bytes (default: 16 KiB)

	// Partial answers
	PartialMinChars int // Accumulated input length before the first partial call (default: 10)
	PartialStep     int // New characters needed between partial calls (default: 5)

	// Utterances
	UtteranceChars int // Buffer length that forces an utterance (default: 50)

	// Synthesis
	Voice string  // Default voice (default: nova)
	Speed float64 // Speaking rate, 0 keeps the provider's (default: 0)

	// Plumbing
	ChannelCapacity  int           // Capacity of every stage channel (default: 16)
	CallTimeout      time.Duration // Upper bound on each provider call (default: 30s)
	MaxAudioBytes    int           // Largest streamed source accepted (default: 25 MiB)
	Language         string        // Transcription language hint (default: "en")
	Prompt           string        // Transcription context prompt
	HideErrorDetails bool          // Leave details out of ERROR records

	Logger *slog.Logger
}

// DefaultConfig returns a Config with the standard thresholds.
func DefaultConfig() Config {
	return Config{
		ChunkSize: 8 << 10,

		FlushBytes:       64 << 10,
		FlushEveryChunks: 10,
		OverlapRatio:     0.2,
		OverlapMax:       16 << 10,

		PartialMinChars: 10,
		PartialStep:     5,

		UtteranceChars: 50,

		Voice: tts.DefaultVoice,

		ChannelCapacity: 16,
		CallTimeout:     30 * time.Second,
		MaxAudioBytes:   stt.MaxUploadBytes,
		Language:        "en",
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return errors.New("pipeline: chunk size must be positive")
	}
	if c.FlushBytes <= 0 {
		return errors.New("pipeline: flush bytes must be positive")
	}
	if c.FlushEveryChunks < 0 {
		return errors.New("pipeline: flush chunk count must not be negative")
	}
	if c.OverlapRatio < 0 || c.OverlapRatio >= 1 {
		return errors.New("pipeline: overlap ratio must be in [0, 1)")
	}
	if c.OverlapMax < 0 {
		return errors.New("pipeline: overlap max must not be negative")
	}
	if c.PartialMinChars < 0 || c.PartialStep < 0 {
		return errors.New("pipeline: partial triggers must not be negative")
	}
	if c.UtteranceChars <= 0 {
		return errors.New("pipeline: utterance length must be positive")
	}
	if c.ChannelCapacity < 0 {
		return errors.New("pipeline: channel capacity must not be negative")
	}
	return nil
}

// WithChunkSize returns a copy with the upload chunk size set.
func (c Config) WithChunkSize(n int) Config {
	c.ChunkSize = n
	return c
}

// WithFlush returns a copy with both window triggers set.
func (c Config) WithFlush(bytes, everyChunks int) Config {
	c.FlushBytes = bytes
	c.FlushEveryChunks = everyChunks
	return c
}

// WithOverlap returns a copy with the window overlap set.
func (c Config) WithOverlap(ratio float64, max int) Config {
	c.OverlapRatio = ratio
	c.OverlapMax = max
	return c
}

// WithPartial returns a copy with the partial answer triggers set.
func (c Config) WithPartial(minChars, step int) Config {
	c.PartialMinChars = minChars
	c.PartialStep = step
	return c
}

// WithVoice returns a copy with the default voice and speed set.
func (c Config) WithVoice(voice string, speed float64) Config {
	c.Voice = voice
	c.Speed = speed
	return c
}

// WithTranscription returns a copy with the language hint and prompt set.
func (c Config) WithTranscription(language, prompt string) Config {
	c.Language = language
	c.Prompt = prompt
	return c
}

// WithCallTimeout returns a copy with the per-call timeout set.
func (c Config) WithCallTimeout(d time.Duration) Config {
	c.CallTimeout = d
	return c
}

// WithHiddenErrorDetails returns a copy that keeps error details out of streams.
func (c Config) WithHiddenErrorDetails(hide bool) Config {
	c.HideErrorDetails = hide
	return c
}

// WithLogger returns a copy with the logger set.
func (c Config) WithLogger(l *slog.Logger) Config {
	c.Logger = l
	return c
}

func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
