package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/teslashibe/go-persona/pkg/chat"
	"github.com/teslashibe/go-persona/pkg/session"
)

// FragmentKind tells a speculative answer delta from an authoritative one.
type FragmentKind int

const (
	// FragmentPartial is a delta of a speculative answer to input heard so far.
	FragmentPartial FragmentKind = iota
	// FragmentComplete is a delta of the answer recorded in history.
	FragmentComplete
)

// String returns the record kind the fragment is reported as.
func (k FragmentKind) String() string {
	if k == FragmentComplete {
		return string(KindComplete)
	}
	return string(KindPartial)
}

// Fragment is one answer delta and the input it answers.
type Fragment struct {
	Kind   FragmentKind
	Text   string
	Source string
}

// Completer answers transcript fragments as they arrive.
//
// While transcription runs, every time the accumulated input has grown enough
// a short partial answer is streamed. When transcription ends the whole input
// is answered once more against the session history. Partial answers are best
// effort; the final answer failing ends the attempt.
type Completer struct {
	chat    *chat.Service
	cfg     Config
	metrics *Tracker
	logger  *slog.Logger

	// turn is the exchange the final answer recorded. Written by Run only.
	turn session.Turn
}

// NewCompleter creates a Completer.
func NewCompleter(svc *chat.Service, cfg Config, metrics *Tracker) *Completer {
	return &Completer{
		chat:    svc,
		cfg:     cfg,
		metrics: metrics,
		logger:  cfg.logger().With("component", "pipeline.completer"),
	}
}

// Run consumes in and writes answer fragments to out, closing out on return.
// It returns ErrEmptyTranscript if nothing was heard.
func (c *Completer) Run(ctx context.Context, sess *session.Session, in <-chan string, out chan<- Fragment) error {
	defer close(out)

	var acc accumulator
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case text, ok := <-in:
			if !ok {
				return c.final(ctx, sess, acc.String(), out)
			}
			if !acc.Add(text) {
				continue
			}
			if !acc.Due(c.cfg.PartialMinChars, c.cfg.PartialStep) {
				continue
			}
			if err := c.partial(ctx, &acc, out); err != nil {
				return err
			}
		}
	}
}

// partial streams one speculative answer. Only a cancelled ctx is returned.
func (c *Completer) partial(ctx context.Context, acc *accumulator, out chan<- Fragment) error {
	input := acc.String()
	_, err := c.chat.StreamPartial(ctx, input, func(delta string) error {
		c.metrics.MarkPartialToken()
		return send(ctx, out, Fragment{Kind: FragmentPartial, Text: delta, Source: input})
	})
	c.metrics.MarkPartialCall(err)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("partial answer failed, continuing", "error", err, "input_chars", acc.Len())
		return nil
	}
	acc.Mark()
	return nil
}

func (c *Completer) final(ctx context.Context, sess *session.Session, input string, out chan<- Fragment) error {
	if input == "" {
		return stageError("completion", ErrEmptyTranscript)
	}
	_, turn, err := c.chat.StreamTurn(ctx, sess, input, func(delta string) error {
		c.metrics.MarkFirstToken()
		return send(ctx, out, Fragment{Kind: FragmentComplete, Text: delta, Source: input})
	})
	c.turn = turn
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return stageError("completion", err)
	}
	return nil
}

// Withdraw removes the exchange the final answer recorded in sess, leaving
// turns added by other requests alone. Call it only after Run has returned.
func (c *Completer) Withdraw(sess *session.Session) int {
	n := sess.Remove(c.turn)
	c.turn = session.Turn{}
	return n
}

// accumulator joins trimmed transcript fragments with single spaces and
// remembers its length at the last successful partial answer.
type accumulator struct {
	b    strings.Builder
	n    int
	last int
}

// Add appends text and reports whether anything was added.
func (a *accumulator) Add(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	if a.b.Len() > 0 {
		a.b.WriteByte(' ')
		a.n++
	}
	a.b.WriteString(text)
	a.n += utf8.RuneCountInString(text)
	return true
}

// Due reports whether a partial answer should be requested.
func (a *accumulator) Due(minChars, step int) bool {
	return a.n >= minChars && a.n-a.last >= step
}

// Mark records the current length as answered.
func (a *accumulator) Mark() {
	a.last = a.n
}

// Len returns the length in characters.
func (a *accumulator) Len() int {
	return a.n
}

func (a *accumulator) String() string {
	return a.b.String()
}
