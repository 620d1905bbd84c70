// Package stt provides a unified interface for speech-to-text providers.
//
// Providers take a whole encoded audio payload (wav, mp3, webm, ogg) and return
// its transcript. Buffering of streamed audio into windows happens upstream in
// the pipeline package; a provider is called once per window.
//
// Example usage:
//
//	provider, _ := stt.NewOpenAI(
//	    stt.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	    stt.WithLanguage("en"),
//	)
//	defer provider.Close()
//
//	result, _ := provider.Transcribe(ctx, &stt.Request{Audio: data, Filename: "clip.webm"})
package stt

import "context"

// Provider defines the speech-to-text provider interface.
type Provider interface {
	// Transcribe converts one encoded audio payload to text.
	// Implementations do not retry; callers own retry and fallback policy.
	Transcribe(ctx context.Context, req *Request) (*Result, error)

	// Health checks provider connectivity and API key validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// Request is a single transcription call.
type Request struct {
	// Audio is the encoded audio payload.
	Audio []byte

	// Filename carries the container type to the provider (e.g. "audio.webm").
	// When empty the provider default is used.
	Filename string

	// Language overrides the configured ISO-639-1 language.
	Language string

	// Prompt overrides the configured context prompt.
	Prompt string
}

// Result is a completed transcription.
type Result struct {
	// Text is the transcript, untrimmed as returned by the provider.
	Text string

	// Bytes is the size of the audio that was transcribed.
	Bytes int

	// LatencyMs is the provider round trip in milliseconds.
	LatencyMs int64
}
