package inference

import (
	"context"
	"sync"

	"github.com/teslashibe/go-persona/internal/calllog"
)

// Mock is a scriptable Provider for tests. Nil funcs fall back to
// canned behavior; every call is recorded.
type Mock struct {
	ChatFunc func(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// StreamFunc defaults to streaming the ChatFunc reply as one delta.
	StreamFunc func(ctx context.Context, req *ChatRequest) (Stream, error)

	HealthFunc func(ctx context.Context) error

	log calllog.Log[*ChatRequest]
}

// MockCall is one recorded call. Request is a copy taken at call time.
type MockCall struct {
	Method  string
	Request *ChatRequest
}

// NewMock answers every prompt with "Mock response".
func NewMock() *Mock {
	return &Mock{
		ChatFunc: func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
			return &ChatResponse{
				Message:      NewAssistantMessage("Mock response"),
				FinishReason: "stop",
				Usage:        Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
			}, nil
		},
	}
}

// WithError returns a Mock on which every call fails with err.
func WithError(err error) *Mock {
	return &Mock{
		ChatFunc:   func(context.Context, *ChatRequest) (*ChatResponse, error) { return nil, err },
		StreamFunc: func(context.Context, *ChatRequest) (Stream, error) { return nil, err },
		HealthFunc: func(context.Context) error { return err },
	}
}

func (m *Mock) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	m.record("Chat", req)
	if m.ChatFunc == nil {
		return nil, WrapError("mock", ErrProviderUnavailable)
	}
	return m.ChatFunc(ctx, req)
}

func (m *Mock) Stream(ctx context.Context, req *ChatRequest) (Stream, error) {
	m.record("Stream", req)
	switch {
	case m.StreamFunc != nil:
		return m.StreamFunc(ctx, req)
	case m.ChatFunc != nil:
		resp, err := m.ChatFunc(ctx, req)
		if err != nil {
			return nil, err
		}
		return NewMockStream(resp.Message.Content), nil
	}
	return nil, WrapError("mock", ErrProviderUnavailable)
}

func (m *Mock) Health(ctx context.Context) error {
	m.record("Health", nil)
	if m.HealthFunc == nil {
		return nil
	}
	return m.HealthFunc(ctx)
}

func (m *Mock) Close() error {
	m.record("Close", nil)
	return nil
}

func (m *Mock) record(method string, req *ChatRequest) {
	if req != nil {
		cp := *req
		cp.Messages = append([]Message(nil), req.Messages...)
		req = &cp
	}
	m.log.Add(method, req)
}

// Calls returns every recorded call in order.
func (m *Mock) Calls() []MockCall {
	entries := m.log.All()
	out := make([]MockCall, len(entries))
	for i, e := range entries {
		out[i] = MockCall{Method: e.Method, Request: e.Args}
	}
	return out
}

func (m *Mock) CallCount(method string) int {
	return m.log.Count(method)
}

// LastCall returns the most recent call, or nil before the first one.
func (m *Mock) LastCall() *MockCall {
	e, ok := m.log.Last()
	if !ok {
		return nil
	}
	return &MockCall{Method: e.Method, Request: e.Args}
}

func (m *Mock) Reset() {
	m.log.Reset()
}

// NewMockStream streams deltas in order and then finishes.
func NewMockStream(deltas ...string) Stream {
	return &scriptedStream{deltas: deltas}
}

// NewFailingStream streams deltas and then fails with err.
func NewFailingStream(err error, deltas ...string) Stream {
	return &scriptedStream{deltas: deltas, err: err}
}

type scriptedStream struct {
	mu     sync.Mutex
	deltas []string
	err    error
	closed bool
}

func (s *scriptedStream) Recv() (*StreamChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.closed:
		return nil, ErrStreamClosed
	case len(s.deltas) > 0:
		d := s.deltas[0]
		s.deltas = s.deltas[1:]
		return &StreamChunk{Delta: d}, nil
	case s.err != nil:
		return nil, s.err
	}
	return &StreamChunk{FinishReason: "stop", Done: true}, nil
}

func (s *scriptedStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

var _ Provider = (*Mock)(nil)
