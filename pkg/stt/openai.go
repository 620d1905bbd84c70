package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/teslashibe/go-persona/internal/httpc"
)

const providerOpenAI = "openai"

// OpenAI model options.
const (
	ModelWhisper1 = openai.Whisper1
)

// OpenAI implements Provider with the Whisper transcription endpoint.
type OpenAI struct {
	config *Config
	client *openai.Client
	logger *slog.Logger
}

// NewOpenAI creates a Whisper provider.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.HTTPClient = httpc.NewClient(cfg.Timeout)

	return &OpenAI{
		config: cfg,
		client: openai.NewClientWithConfig(clientCfg),
		logger: cfg.Logger.With("component", "stt.openai"),
	}, nil
}

// Transcribe sends one audio payload to Whisper.
func (o *OpenAI) Transcribe(ctx context.Context, req *Request) (*Result, error) {
	if req == nil || len(req.Audio) == 0 {
		return nil, WrapError(providerOpenAI, ErrEmptyAudio)
	}

	start := time.Now()

	filename := req.Filename
	if filename == "" {
		filename = o.config.DefaultFilename
	}
	language := req.Language
	if language == "" {
		language = o.config.Language
	}
	prompt := req.Prompt
	if prompt == "" {
		prompt = o.config.Prompt
	}

	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:       o.config.Model,
		FilePath:    filename,
		Reader:      bytes.NewReader(req.Audio),
		Prompt:      prompt,
		Temperature: o.config.Temperature,
		Language:    language,
		Format:      openai.AudioResponseFormatJSON,
	})
	latency := time.Since(start).Milliseconds()
	if err != nil {
		return nil, WrapError(providerOpenAI, convertError(err))
	}

	o.logger.Debug("transcribed audio",
		"bytes", len(req.Audio),
		"chars", len(resp.Text),
		"latency_ms", latency,
	)

	return &Result{
		Text:      resp.Text,
		Bytes:     len(req.Audio),
		LatencyMs: latency,
	}, nil
}

// Health checks API connectivity by listing models.
func (o *OpenAI) Health(ctx context.Context) error {
	if _, err := o.client.ListModels(ctx); err != nil {
		return WrapError(providerOpenAI, fmt.Errorf("health check: %w", convertError(err)))
	}
	return nil
}

// Close releases resources.
func (o *OpenAI) Close() error {
	return nil
}

// convertError maps go-openai errors onto APIError so callers can inspect status codes.
func convertError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code := ""
		if s, ok := apiErr.Code.(string); ok {
			code = s
		}
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

// Verify OpenAI implements Provider at compile time.
var _ Provider = (*OpenAI)(nil)
