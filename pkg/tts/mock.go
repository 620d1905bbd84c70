package tts

import (
	"context"
	"time"

	"github.com/teslashibe/go-persona/internal/calllog"
)

// Mock is a scriptable Provider for tests. Its default audio is the text
// prefixed with "audio:", which keeps ordering assertions readable.
type Mock struct {
	SynthesizeFunc func(ctx context.Context, req *Request) (*AudioResult, error)
	HealthFunc     func(ctx context.Context) error

	log calllog.Log[Request]
}

// MockCall is one recorded call.
type MockCall struct {
	Method string
	Text   string
	Voice  string
}

// NewMock returns a Mock that always succeeds.
func NewMock() *Mock {
	return &Mock{
		SynthesizeFunc: func(ctx context.Context, req *Request) (*AudioResult, error) {
			return &AudioResult{
				Audio:       []byte("audio:" + req.Text),
				ContentType: contentTypeMP3,
				Voice:       req.Voice,
				CharCount:   len(req.Text),
				LatencyMs:   1,
			}, nil
		},
	}
}

// WithError returns a Mock on which every call fails with err.
func WithError(err error) *Mock {
	return &Mock{
		SynthesizeFunc: func(context.Context, *Request) (*AudioResult, error) { return nil, err },
		HealthFunc:     func(context.Context) error { return err },
	}
}

// WithLatency delays every synthesis of m by d, or until ctx ends.
func WithLatency(m *Mock, d time.Duration) *Mock {
	next := m.SynthesizeFunc
	m.SynthesizeFunc = func(ctx context.Context, req *Request) (*AudioResult, error) {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if next == nil {
			return nil, WrapError("mock", ErrProviderUnavailable)
		}
		return next(ctx, req)
	}
	return m
}

func (m *Mock) Synthesize(ctx context.Context, req *Request) (*AudioResult, error) {
	var args Request
	if req != nil {
		args = *req
	}
	m.log.Add("Synthesize", args)
	if m.SynthesizeFunc == nil {
		return nil, WrapError("mock", ErrProviderUnavailable)
	}
	return m.SynthesizeFunc(ctx, req)
}

func (m *Mock) Health(ctx context.Context) error {
	m.log.Add("Health", Request{})
	if m.HealthFunc == nil {
		return nil
	}
	return m.HealthFunc(ctx)
}

func (m *Mock) Close() error {
	m.log.Add("Close", Request{})
	return nil
}

// Calls returns every recorded call in order.
func (m *Mock) Calls() []MockCall {
	entries := m.log.All()
	out := make([]MockCall, len(entries))
	for i, e := range entries {
		out[i] = MockCall{Method: e.Method, Text: e.Args.Text, Voice: e.Args.Voice}
	}
	return out
}

// Texts returns the text of every synthesis in order.
func (m *Mock) Texts() []string {
	var out []string
	for _, r := range m.log.Of("Synthesize") {
		out = append(out, r.Text)
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
	return &MockCall{Method: e.Method, Text: e.Args.Text, Voice: e.Args.Voice}
}

func (m *Mock) Reset() {
	m.log.Reset()
}

var _ Provider = (*Mock)(nil)
