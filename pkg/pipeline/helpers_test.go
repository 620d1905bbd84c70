package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-persona/pkg/chat"
	"github.com/teslashibe/go-persona/pkg/inference"
	"github.com/teslashibe/go-persona/pkg/persona"
	"github.com/teslashibe/go-persona/pkg/session"
	"github.com/teslashibe/go-persona/pkg/stt"
	"github.com/teslashibe/go-persona/pkg/tts"
)

// isPartial reports whether req is a speculative partial call.
func isPartial(req *inference.ChatRequest) bool {
	return req.MaxTokens == chat.PartialMaxTokens
}

// scriptedLLM streams partial and reply deltas. A nil reply error answers normally.
func scriptedLLM(partial []string, reply []string) *inference.Mock {
	m := inference.NewMock()
	m.StreamFunc = func(ctx context.Context, req *inference.ChatRequest) (inference.Stream, error) {
		if isPartial(req) {
			return inference.NewMockStream(partial...), nil
		}
		return inference.NewMockStream(reply...), nil
	}
	return m
}

type fixture struct {
	stt  *stt.Mock
	llm  *inference.Mock
	tts  *tts.Mock
	sess *session.Session
	orch *Orchestrator
}

func newFixture(t *testing.T, cfg Config, llm *inference.Mock) *fixture {
	t.Helper()
	f := &fixture{
		stt:  stt.NewMock(),
		llm:  llm,
		tts:  tts.NewMock(),
		sess: session.New("test"),
	}
	f.orch = NewOrchestrator(cfg, f.stt, chat.New(llm, persona.Default()), f.tts)
	return f
}

// drain reads a stream to the end, failing the test if it stalls.
func drain(t *testing.T, ch <-chan Record) []Record {
	t.Helper()
	var out []Record
	timeout := time.After(5 * time.Second)
	for {
		select {
		case r, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, r)
		case <-timeout:
			t.Fatal("stream did not finish")
			return nil
		}
	}
}

func kinds(records []Record) []Kind {
	out := make([]Kind, len(records))
	for i, r := range records {
		out[i] = r.Kind
	}
	return out
}

// without drops records of the given kind, keeping order.
func without(records []Record, kind Kind) []Record {
	var out []Record
	for _, r := range records {
		if r.Kind != kind {
			out = append(out, r)
		}
	}
	return out
}

func audioOf(records []Record) []string {
	var out []string
	for _, r := range records {
		if r.Kind == KindAudio {
			out = append(out, string(r.Audio))
		}
	}
	return out
}

// decode parses a record's JSON body.
func decode(t *testing.T, r Record) map[string]any {
	t.Helper()
	line, err := r.Line()
	require.NoError(t, err)
	_, body, err := ParseLine(string(line))
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, sonic.UnmarshalString(body, &m))
	return m
}

// recordSink collects records from any goroutine.
type recordSink struct {
	mu      sync.Mutex
	records []Record
}

func (s *recordSink) Send(ctx context.Context, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, r)
	return nil
}

func (s *recordSink) all() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Record(nil), s.records...)
}

var errBoom = errors.New("boom")
