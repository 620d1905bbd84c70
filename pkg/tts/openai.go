package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/teslashibe/go-persona/internal/failover"
	"github.com/teslashibe/go-persona/internal/httpc"
)

const providerOpenAI = "openai"

// OpenAI voices.
const (
	VoiceAlloy   = string(openai.VoiceAlloy)
	VoiceEcho    = string(openai.VoiceEcho)
	VoiceFable   = string(openai.VoiceFable)
	VoiceOnyx    = string(openai.VoiceOnyx)
	VoiceNova    = string(openai.VoiceNova)
	VoiceShimmer = string(openai.VoiceShimmer)
)

// OpenAI speech models. tts-1 answers faster, tts-1-hd sounds better.
const (
	ModelTTS1   = string(openai.TTSModel1)
	ModelTTS1HD = string(openai.TTSModel1HD)
)

// OpenAI synthesizes MP3 through the OpenAI speech endpoint.
type OpenAI struct {
	config *Config
	client *openai.Client
	logger *slog.Logger
}

// NewOpenAI creates a speech provider. Voice defaults to nova and model to tts-1.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.Voice = DefaultVoice
	cfg.Model = ModelTTS1
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Voice == "" {
		cfg.Voice = DefaultVoice
	}

	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}
	cc.HTTPClient = httpc.NewClient(cfg.Timeout)

	return &OpenAI{
		config: cfg,
		client: openai.NewClientWithConfig(cc),
		logger: cfg.Logger.With("component", "tts.openai"),
	}, nil
}

// Synthesize speaks r.Text.
func (o *OpenAI) Synthesize(ctx context.Context, r *Request) (*AudioResult, error) {
	if r == nil || strings.TrimSpace(r.Text) == "" {
		return nil, WrapError(providerOpenAI, ErrEmptyText)
	}
	start := time.Now()

	voice := r.Voice
	if voice == "" {
		voice = o.config.Voice
	}
	speed := o.config.Speed
	if r.Speed != 0 {
		speed = r.Speed
	}
	req := openai.CreateSpeechRequest{
		Model:          openai.SpeechModel(o.config.Model),
		Input:          r.Text,
		Voice:          openai.SpeechVoice(voice),
		ResponseFormat: openai.SpeechResponseFormatMp3,
		Speed:          speed,
	}

	audio, err := failover.Retry(ctx, o.config.Retry, o.logger, func(ctx context.Context) ([]byte, error) {
		resp, err := o.client.CreateSpeech(ctx, req)
		if err != nil {
			return nil, convertError(err)
		}
		defer resp.Close()
		return io.ReadAll(resp)
	})
	if err == nil && len(audio) == 0 {
		err = ErrEmptyAudio
	}
	if err != nil {
		return nil, WrapError(providerOpenAI, err)
	}

	latency := time.Since(start).Milliseconds()
	o.logger.Debug("synthesized",
		"voice", voice,
		"chars", len(r.Text),
		"bytes", len(audio),
		"latency_ms", latency,
	)
	return &AudioResult{
		Audio:       audio,
		ContentType: contentTypeMP3,
		Voice:       voice,
		CharCount:   len(r.Text),
		LatencyMs:   latency,
	}, nil
}

// Health lists models, which needs a valid key and no synthesis credit.
func (o *OpenAI) Health(ctx context.Context) error {
	if _, err := o.client.ListModels(ctx); err != nil {
		return WrapError(providerOpenAI, fmt.Errorf("health check: %w", convertError(err)))
	}
	return nil
}

func (o *OpenAI) Close() error {
	return nil
}

// VoiceID returns the default voice.
func (o *OpenAI) VoiceID() string {
	return o.config.Voice
}

func convertError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code, _ := apiErr.Code.(string)
		return &APIError{
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
			Code:       code,
			Provider:   providerOpenAI,
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &APIError{
			StatusCode: reqErr.HTTPStatusCode,
			Message:    reqErr.Error(),
			Provider:   providerOpenAI,
		}
	}
	return err
}

var _ Provider = (*OpenAI)(nil)
