package inference

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/teslashibe/go-persona/internal/failover"
	"github.com/teslashibe/go-persona/internal/httpc"
)

const providerOpenAI = "openai"

// OpenAI talks to any OpenAI-compatible chat completion API.
type OpenAI struct {
	config *Config

	// whole carries a request timeout; streaming only bounds the header wait.
	whole     *openai.Client
	streaming *openai.Client

	logger *slog.Logger
}

// NewOpenAI creates a chat provider.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client := func(timeout time.Duration, streaming bool) *openai.Client {
		cc := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			cc.BaseURL = cfg.BaseURL
		}
		if streaming {
			cc.HTTPClient = httpc.NewStreamingClient(timeout)
		} else {
			cc.HTTPClient = httpc.NewClient(timeout)
		}
		return openai.NewClientWithConfig(cc)
	}

	return &OpenAI{
		config:    cfg,
		whole:     client(cfg.Timeout, false),
		streaming: client(cfg.StreamTimeout, true),
		logger:    cfg.Logger.With("component", "inference.openai", "model", cfg.Model),
	}, nil
}

// Chat asks for the whole reply.
func (o *OpenAI) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	start := time.Now()
	body := o.request(req)

	resp, err := failover.Retry(ctx, o.config.Retry, o.logger,
		func(ctx context.Context) (openai.ChatCompletionResponse, error) {
			r, err := o.whole.CreateChatCompletion(ctx, body)
			return r, convertError(err)
		})
	if err != nil {
		return nil, WrapError(providerOpenAI, err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, WrapError(providerOpenAI, ErrNoContent)
	}

	choice := resp.Choices[0]
	out := &ChatResponse{
		Message:      NewAssistantMessage(choice.Message.Content),
		FinishReason: string(choice.FinishReason),
		Usage: Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		Model:     resp.Model,
		LatencyMs: time.Since(start).Milliseconds(),
	}

	o.logger.Debug("chat complete",
		"tokens", out.Usage.TotalTokens,
		"finish", out.FinishReason,
		"latency_ms", out.LatencyMs,
	)
	return out, nil
}

// Stream opens a streamed reply. Opening is retried; reading is not.
func (o *OpenAI) Stream(ctx context.Context, req *ChatRequest) (Stream, error) {
	body := o.request(req)

	s, err := failover.Retry(ctx, o.config.Retry, o.logger,
		func(ctx context.Context) (*openai.ChatCompletionStream, error) {
			s, err := o.streaming.CreateChatCompletionStream(ctx, body)
			return s, convertError(err)
		})
	if err != nil {
		return nil, WrapError(providerOpenAI, err)
	}
	return &openAIStream{stream: s}, nil
}

// Health lists models, which needs a valid key but no tokens.
func (o *OpenAI) Health(ctx context.Context) error {
	if _, err := o.whole.ListModels(ctx); err != nil {
		return WrapError(providerOpenAI, fmt.Errorf("health check: %w", convertError(err)))
	}
	return nil
}

func (o *OpenAI) Close() error {
	return nil
}

func (o *OpenAI) request(req *ChatRequest) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = o.config.Model
	}
	msgs := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content}
	}
	return openai.ChatCompletionRequest{
		Model:            model,
		Messages:         msgs,
		MaxTokens:        req.MaxTokens,
		Temperature:      float32(req.Temperature),
		TopP:             float32(req.TopP),
		PresencePenalty:  float32(req.PresencePenalty),
		FrequencyPenalty: float32(req.FrequencyPenalty),
		Stop:             req.Stop,
	}
}

// openAIStream adapts go-openai's stream reader to Stream.
type openAIStream struct {
	mu     sync.Mutex
	stream *openai.ChatCompletionStream
	closed bool
	done   bool
}

func (s *openAIStream) Recv() (*StreamChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrStreamClosed
	}
	if s.done {
		return &StreamChunk{Done: true}, nil
	}

	for {
		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			s.done = true
			return &StreamChunk{Done: true}, nil
		}
		if err != nil {
			return nil, WrapError(providerOpenAI, convertError(err))
		}
		if len(resp.Choices) == 0 {
			continue
		}
		c := resp.Choices[0]
		chunk := &StreamChunk{Delta: c.Delta.Content, FinishReason: string(c.FinishReason)}
		if chunk.Delta == "" && chunk.FinishReason == "" {
			continue
		}
		return chunk, nil
	}
}

func (s *openAIStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.stream.Close()
}

// convertError lifts go-openai failures into APIError so retry and
// fallback decisions can read the status code.
func convertError(err error) error {
	if err == nil {
		return nil
	}
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
