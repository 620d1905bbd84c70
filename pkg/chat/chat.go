// Package chat runs persona conversations over a chat completion provider.
//
// Reply and StreamReply are authoritative turns: they read and extend the
// session history. StreamPartial is a stateless one-shot used to answer
// speculatively while speech is still being transcribed.
package chat

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/teslashibe/go-persona/pkg/inference"
	"github.com/teslashibe/go-persona/pkg/persona"
	"github.com/teslashibe/go-persona/pkg/session"
)

// Generation parameters for each kind of call.
const (
	ReplyMaxTokens     = 500
	ReplyTemperature   = 0.7
	ReplyPenalty       = 0.1
	PartialMaxTokens   = 100
	PartialTemperature = 0.6

	partialInputPrefix = "Partial input: "
)

// Service answers user turns as a persona.
type Service struct {
	provider inference.Provider
	persona  *persona.Persona
	timeout  time.Duration
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithTimeout bounds each provider call. Zero leaves it to the provider.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.timeout = d
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// New creates a Service. A nil persona uses persona.Default.
func New(provider inference.Provider, p *persona.Persona, opts ...Option) *Service {
	if p == nil {
		p = persona.Default()
	}
	s := &Service{
		provider: provider,
		persona:  p,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "chat.service")
	return s
}

// Persona returns the persona the service speaks as.
func (s *Service) Persona() *persona.Persona {
	return s.persona
}

// FirstMessage returns the persona's greeting.
func (s *Service) FirstMessage() string {
	return s.persona.FirstMessage
}

// Clear forgets the session's conversation.
func (s *Service) Clear(sess *session.Session) {
	sess.Clear()
}

// Reply appends input as a user turn, asks for a whole answer and appends it
// as the assistant turn. On failure the user turn is withdrawn again.
func (s *Service) Reply(ctx context.Context, sess *session.Session, input string) (string, error) {
	user := sess.Append(inference.NewUserMessage(input))

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.provider.Chat(ctx, s.replyRequest(sess))
	if err != nil {
		sess.Remove(user)
		return "", inference.WrapError("chat", err)
	}
	text := resp.Message.Content
	if strings.TrimSpace(text) == "" {
		sess.Remove(user)
		return "", inference.WrapError("chat", inference.ErrNoContent)
	}

	sess.Append(inference.NewAssistantMessage(text))
	s.logger.Debug("reply complete",
		"session_id", sess.ID,
		"chars", len(text),
		"history", sess.Len(),
	)
	return text, nil
}

// StreamReply is Reply with the answer streamed: every delta goes to fn as it
// arrives. The full answer is appended to history only when the stream
// finishes with content. An error from fn stops the stream and is returned.
func (s *Service) StreamReply(ctx context.Context, sess *session.Session, input string, fn func(delta string) error) (string, error) {
	text, _, err := s.StreamTurn(ctx, sess, input, fn)
	return text, err
}

// StreamTurn is StreamReply that also returns the user and assistant
// messages it recorded, so a caller whose wider attempt fails later can
// withdraw exactly those with Session.Remove.
func (s *Service) StreamTurn(ctx context.Context, sess *session.Session, input string, fn func(delta string) error) (string, session.Turn, error) {
	user := sess.Append(inference.NewUserMessage(input))

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	stream, err := s.provider.Stream(ctx, s.replyRequest(sess))
	if err != nil {
		sess.Remove(user)
		return "", session.Turn{}, inference.WrapError("chat", err)
	}
	text, err := inference.Collect(stream, fn)
	if err != nil {
		sess.Remove(user)
		return text, session.Turn{}, inference.WrapError("chat", err)
	}
	if strings.TrimSpace(text) == "" {
		sess.Remove(user)
		return "", session.Turn{}, inference.WrapError("chat", inference.ErrNoContent)
	}

	turn := user.Join(sess.Append(inference.NewAssistantMessage(text)))
	s.logger.Debug("streamed reply complete",
		"session_id", sess.ID,
		"chars", len(text),
		"history", sess.Len(),
	)
	return text, turn, nil
}

// StreamPartial streams a short speculative answer to input without reading
// or touching any history.
func (s *Service) StreamPartial(ctx context.Context, input string, fn func(delta string) error) (string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	stream, err := s.provider.Stream(ctx, &inference.ChatRequest{
		Messages: []inference.Message{
			inference.NewSystemMessage(s.persona.PartialSystemPrompt()),
			inference.NewUserMessage(partialInputPrefix + input),
		},
		MaxTokens:   PartialMaxTokens,
		Temperature: PartialTemperature,
	})
	if err != nil {
		return "", inference.WrapError("chat", err)
	}
	text, err := inference.Collect(stream, fn)
	if err != nil {
		return text, inference.WrapError("chat", err)
	}
	return text, nil
}

// Health checks the underlying provider.
func (s *Service) Health(ctx context.Context) error {
	return s.provider.Health(ctx)
}

func (s *Service) replyRequest(sess *session.Session) *inference.ChatRequest {
	history := sess.Messages()
	messages := make([]inference.Message, 0, len(history)+1)
	messages = append(messages, inference.NewSystemMessage(s.persona.SystemPrompt))
	messages = append(messages, history...)
	return &inference.ChatRequest{
		Messages:         messages,
		MaxTokens:        ReplyMaxTokens,
		Temperature:      ReplyTemperature,
		PresencePenalty:  ReplyPenalty,
		FrequencyPenalty: ReplyPenalty,
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}
