package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/teslashibe/go-persona/internal/failover"
	"github.com/teslashibe/go-persona/internal/httpc"
)

const (
	elevenLabsBaseURL  = "https://api.elevenlabs.io/v1"
	providerElevenLabs = "elevenlabs"

	// maxErrorBody bounds how much of a failed response is read.
	maxErrorBody = 64 << 10
)

// ElevenLabs models.
const (
	ModelTurboV2_5      = "eleven_turbo_v2_5"
	ModelFlashV2_5      = "eleven_flash_v2_5"
	ModelMultilingualV2 = "eleven_multilingual_v2"
)

// ElevenLabs output formats.
const (
	FormatMP3   = "mp3_44100_128"
	FormatPCM24 = "pcm_24000"
)

// VoiceSettings tunes ElevenLabs delivery. Values range 0 to 1.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	SpeakerBoost    bool    `json:"use_speaker_boost"`
	Speed           float64 `json:"speed,omitempty"`
}

// DefaultVoiceSettings favors a steady, recognizable voice.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{Stability: 0.5, SimilarityBoost: 0.75, SpeakerBoost: true}
}

type elevenLabsPayload struct {
	Text     string        `json:"text"`
	ModelID  string        `json:"model_id"`
	Settings VoiceSettings `json:"voice_settings"`
}

// ElevenLabs synthesizes through the ElevenLabs API. Request voices that
// are not ElevenLabs presets are ignored, so it can stand in for OpenAI
// inside a Chain without understanding OpenAI voice names.
type ElevenLabs struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewElevenLabs creates a provider. A voice is required; preset names
// such as "rachel" resolve to their ids.
func NewElevenLabs(opts ...Option) (*ElevenLabs, error) {
	cfg := DefaultConfig()
	cfg.Model = ModelTurboV2_5
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Voice == "" {
		return nil, ErrNoVoiceID
	}
	cfg.Voice = ResolveElevenLabsVoice(cfg.Voice)

	base := cfg.BaseURL
	if base == "" {
		base = elevenLabsBaseURL
	}
	return &ElevenLabs{
		config:  cfg,
		client:  httpc.NewClient(cfg.Timeout),
		logger:  cfg.Logger.With("component", "tts.elevenlabs"),
		baseURL: strings.TrimSuffix(base, "/"),
	}, nil
}

// Synthesize speaks r.Text in the configured output format.
func (e *ElevenLabs) Synthesize(ctx context.Context, r *Request) (*AudioResult, error) {
	if r == nil || strings.TrimSpace(r.Text) == "" {
		return nil, WrapError(providerElevenLabs, ErrEmptyText)
	}
	start := time.Now()

	voice := e.config.Voice
	if IsElevenLabsPreset(r.Voice) {
		voice = ResolveElevenLabsVoice(r.Voice)
	}
	settings := e.config.Settings
	settings.Speed = e.config.Speed
	if r.Speed != 0 {
		settings.Speed = r.Speed
	}

	body, err := sonic.Marshal(elevenLabsPayload{Text: r.Text, ModelID: e.config.Model, Settings: settings})
	if err != nil {
		return nil, WrapError(providerElevenLabs, fmt.Errorf("encode payload: %w", err))
	}
	endpoint := fmt.Sprintf("%s/text-to-speech/%s?output_format=%s",
		e.baseURL, url.PathEscape(voice), url.QueryEscape(e.config.OutputFormat))

	audio, err := failover.Retry(ctx, e.config.Retry, e.logger, func(ctx context.Context) ([]byte, error) {
		return e.do(ctx, http.MethodPost, endpoint, body)
	})
	if err == nil && len(audio) == 0 {
		err = ErrEmptyAudio
	}
	if err != nil {
		return nil, WrapError(providerElevenLabs, err)
	}

	latency := time.Since(start).Milliseconds()
	e.logger.Debug("synthesized",
		"model", e.config.Model,
		"chars", len(r.Text),
		"bytes", len(audio),
		"latency_ms", latency,
	)
	return &AudioResult{
		Audio:       audio,
		ContentType: e.contentType(),
		Voice:       voice,
		CharCount:   len(r.Text),
		LatencyMs:   latency,
	}, nil
}

// Health fetches the account, which fails on a bad key.
func (e *ElevenLabs) Health(ctx context.Context) error {
	if _, err := e.do(ctx, http.MethodGet, e.baseURL+"/user", nil); err != nil {
		return WrapError(providerElevenLabs, fmt.Errorf("health check: %w", err))
	}
	return nil
}

func (e *ElevenLabs) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

// VoiceID returns the resolved default voice id.
func (e *ElevenLabs) VoiceID() string {
	return e.config.Voice
}

// do sends one request and returns the body of a 200 answer.
func (e *ElevenLabs) do(ctx context.Context, method, endpoint string, body []byte) ([]byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("xi-api-key", e.config.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", e.contentType())
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, parseElevenLabsError(resp)
	}
	return io.ReadAll(resp.Body)
}

func (e *ElevenLabs) contentType() string {
	if strings.HasPrefix(e.config.OutputFormat, "pcm_") {
		return "audio/pcm"
	}
	return contentTypeMP3
}

// parseElevenLabsError reads {"detail":{"status","message"}} bodies and
// falls back to the raw text.
func parseElevenLabsError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body struct {
		Detail struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"detail"`
	}
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(raw), Provider: providerElevenLabs}
	if sonic.Unmarshal(raw, &body) == nil && body.Detail.Message != "" {
		apiErr.Message = body.Detail.Message
		apiErr.Code = body.Detail.Status
	}
	return apiErr
}

var _ Provider = (*ElevenLabs)(nil)
