package stt

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/teslashibe/go-persona/internal/calllog"
)

// Mock implements Provider for testing.
type Mock struct {
	// TranscribeFunc is called when Transcribe is invoked.
	// If nil, returns a transcript describing the payload size.
	TranscribeFunc func(ctx context.Context, req *Request) (*Result, error)

	// HealthFunc is called when Health is invoked.
	HealthFunc func(ctx context.Context) error

	log calllog.Log[int]
}

// MockCall is one recorded call. Bytes is the size of the audio sent.
type MockCall struct {
	Method string
	Bytes  int
}

// NewMock creates a mock that reports "heard N bytes" for every call.
func NewMock() *Mock {
	return &Mock{
		TranscribeFunc: func(ctx context.Context, req *Request) (*Result, error) {
			return &Result{Text: fmt.Sprintf("heard %d bytes", len(req.Audio)), Bytes: len(req.Audio)}, nil
		},
	}
}

// NewScriptedMock returns a mock that answers successive calls with texts in order.
// Calls past the end of the script return an empty transcript.
func NewScriptedMock(texts ...string) *Mock {
	m := &Mock{}
	var next int
	var mu sync.Mutex
	m.TranscribeFunc = func(ctx context.Context, req *Request) (*Result, error) {
		mu.Lock()
		defer mu.Unlock()
		if next >= len(texts) {
			return &Result{Bytes: len(req.Audio)}, nil
		}
		text := texts[next]
		next++
		return &Result{Text: text, Bytes: len(req.Audio)}, nil
	}
	return m
}

// Transcribe calls TranscribeFunc and records the call.
func (m *Mock) Transcribe(ctx context.Context, req *Request) (*Result, error) {
	n := 0
	if req != nil {
		n = len(req.Audio)
	}
	m.record("Transcribe", n)
	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, req)
	}
	return nil, WrapError("mock", ErrProviderUnavailable)
}

// Health calls HealthFunc and records the call.
func (m *Mock) Health(ctx context.Context) error {
	m.record("Health", 0)
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// Close records the call.
func (m *Mock) Close() error {
	m.record("Close", 0)
	return nil
}

func (m *Mock) record(method string, n int) {
	m.log.Add(method, n)
}

// Calls returns all recorded method calls.
func (m *Mock) Calls() []MockCall {
	entries := m.log.All()
	out := make([]MockCall, len(entries))
	for i, e := range entries {
		out[i] = MockCall{Method: e.Method, Bytes: e.Args}
	}
	return out
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	return m.log.Count(method)
}

// Reset clears all recorded calls.
func (m *Mock) Reset() {
	m.log.Reset()
}

// WithError returns a mock that always fails with err.
func WithError(err error) *Mock {
	return &Mock{
		TranscribeFunc: func(ctx context.Context, req *Request) (*Result, error) {
			return nil, err
		},
		HealthFunc: func(ctx context.Context) error {
			return err
		},
	}
}

// WithLatency wraps a mock to add artificial latency.
func WithLatency(m *Mock, delay time.Duration) *Mock {
	inner := m.TranscribeFunc
	m.TranscribeFunc = func(ctx context.Context, req *Request) (*Result, error) {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		if inner != nil {
			return inner(ctx, req)
		}
		return nil, WrapError("mock", ErrProviderUnavailable)
	}
	return m
}

// Verify Mock implements Provider at compile time.
var _ Provider = (*Mock)(nil)
