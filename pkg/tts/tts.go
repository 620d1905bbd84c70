// Package tts turns reply text into speech.
//
// OpenAI is the primary backend; ElevenLabs can sit behind it in a Chain.
// Text written for reading should pass through Prepared first so that
// acronyms, symbols and punctuation come out the way a person would say them.
//
//	speech, _ := tts.NewOpenAI(tts.WithAPIKey(key), tts.WithVoice(tts.VoiceNova))
//	res, _ := tts.Prepared(speech).Synthesize(ctx, &tts.Request{Text: "The API is up."})
//	// res.Audio holds MP3 bytes
package tts

import "context"

// Provider synthesizes whole utterances.
type Provider interface {
	Synthesize(ctx context.Context, req *Request) (*AudioResult, error)

	// Health reports whether the backend accepts the configured key.
	Health(ctx context.Context) error

	Close() error
}

// Request is one utterance. Empty Voice and zero Speed keep the
// provider's configured values.
type Request struct {
	Text  string
	Voice string
	Speed float64
}

// AudioResult is the synthesized utterance.
type AudioResult struct {
	Audio []byte

	// ContentType is the MIME type of Audio, e.g. audio/mpeg.
	ContentType string

	// Voice is the voice that actually spoke.
	Voice string

	CharCount int
	LatencyMs int64
}

const contentTypeMP3 = "audio/mpeg"
