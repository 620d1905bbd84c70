package pipeline

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/teslashibe/go-persona/pkg/queue"
	"github.com/teslashibe/go-persona/pkg/tts"
)

// Sink receives records. Implementations must be safe for concurrent use:
// text records and audio records are sent from different goroutines.
type Sink interface {
	Send(ctx context.Context, r Record) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, r Record) error

// Send calls f.
func (f SinkFunc) Send(ctx context.Context, r Record) error {
	return f(ctx, r)
}

// Segmenter reports answer fragments and cuts them into utterances for
// synthesis. Utterances are synthesized one at a time in queue order, so AUDIO
// records follow the order of the text they speak.
type Segmenter struct {
	speech  tts.Provider
	cfg     Config
	voice   string
	metrics *Tracker
	logger  *slog.Logger
}

// NewSegmenter creates a Segmenter speaking with voice (cfg.Voice when empty).
// Text is prepared for speech before synthesis.
func NewSegmenter(speech tts.Provider, cfg Config, voice string, metrics *Tracker) *Segmenter {
	if voice == "" {
		voice = cfg.Voice
	}
	return &Segmenter{
		speech:  tts.Prepared(speech),
		cfg:     cfg,
		voice:   voice,
		metrics: metrics,
		logger:  cfg.logger().With("component", "pipeline.segmenter"),
	}
}

// Run reports every fragment to sink and queues utterances for synthesis.
// It returns after in closes and the last utterance has been synthesized.
func (s *Segmenter) Run(ctx context.Context, in <-chan Fragment, sink Sink) error {
	d := newDispatcher(s, sink)
	defer d.wait()

	buf := newUtteranceBuffer(s.cfg.UtteranceChars)
	transcriptSent := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-in:
			if !ok {
				if u, ok := buf.Rest(); ok {
					d.push(ctx, u)
				}
				return nil
			}
			if f.Kind == FragmentComplete && !transcriptSent {
				transcriptSent = true
				if err := sink.Send(ctx, transcriptRecord(f.Source)); err != nil {
					return err
				}
			}
			kind := KindPartial
			if f.Kind == FragmentComplete {
				kind = KindComplete
			}
			if err := sink.Send(ctx, chatRecord(kind, f.Text, f.Source)); err != nil {
				return err
			}
			if u, ok := buf.Add(f.Text); ok {
				d.push(ctx, u)
			}
		}
	}
}

// utteranceBuffer collects fragment text until it is long enough or a
// fragment carries sentence punctuation.
type utteranceBuffer struct {
	b     strings.Builder
	limit int
}

func newUtteranceBuffer(limit int) *utteranceBuffer {
	return &utteranceBuffer{limit: limit}
}

// Add appends text and returns a trimmed utterance when one is due.
func (u *utteranceBuffer) Add(text string) (string, bool) {
	u.b.WriteString(text)
	if utf8.RuneCountInString(u.b.String()) <= u.limit && !strings.ContainsAny(text, ".!?") {
		return "", false
	}
	return u.Rest()
}

// Rest empties the buffer and returns its trimmed content if any.
func (u *utteranceBuffer) Rest() (string, bool) {
	out := strings.TrimSpace(u.b.String())
	u.b.Reset()
	return out, out != ""
}

// Segment cuts texts into utterances exactly as a Segmenter would.
func Segment(texts []string, limit int) []string {
	buf := newUtteranceBuffer(limit)
	var out []string
	for _, t := range texts {
		if u, ok := buf.Add(t); ok {
			out = append(out, u)
		}
	}
	if u, ok := buf.Rest(); ok {
		out = append(out, u)
	}
	return out
}

// dispatcher synthesizes queued utterances with at most one drain goroutine.
type dispatcher struct {
	seg  *Segmenter
	sink Sink

	mu       sync.Mutex
	q        *queue.Queue[string]
	draining bool
	wg       sync.WaitGroup
}

func newDispatcher(seg *Segmenter, sink Sink) *dispatcher {
	return &dispatcher{
		seg:  seg,
		sink: sink,
		q:    queue.New[string](),
	}
}

// push queues text and starts a drain pass if none is running.
func (d *dispatcher) push(ctx context.Context, text string) {
	d.seg.metrics.MarkUtterance()
	d.mu.Lock()
	d.q.Push(text)
	if d.draining {
		d.mu.Unlock()
		return
	}
	d.draining = true
	d.wg.Add(1)
	d.mu.Unlock()

	go d.drain(ctx)
}

// next pops the front utterance or ends the drain pass.
func (d *dispatcher) next() (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	text, ok := d.q.Pop()
	if !ok {
		d.draining = false
	}
	return text, ok
}

// stop ends the drain pass early and drops whatever is queued.
func (d *dispatcher) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.q.Clear()
	d.draining = false
}

func (d *dispatcher) drain(ctx context.Context) {
	defer d.wg.Done()
	for {
		text, ok := d.next()
		if !ok {
			return
		}
		audio, err := d.synthesize(ctx, text)
		d.seg.metrics.MarkAudio(err)
		if err != nil {
			if ctx.Err() != nil {
				d.stop()
				return
			}
			d.seg.logger.Warn("synthesis failed, skipping utterance", "error", err, "chars", len(text))
			continue
		}
		if err := d.sink.Send(ctx, audioRecord(audio)); err != nil {
			d.stop()
			return
		}
	}
}

func (d *dispatcher) synthesize(ctx context.Context, text string) ([]byte, error) {
	if d.seg.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.seg.cfg.CallTimeout)
		defer cancel()
	}
	res, err := d.seg.speech.Synthesize(ctx, &tts.Request{
		Text:  text,
		Voice: d.seg.voice,
		Speed: d.seg.cfg.Speed,
	})
	if err != nil {
		return nil, err
	}
	return res.Audio, nil
}

// wait blocks until the drain pass, if any, has finished.
func (d *dispatcher) wait() {
	d.wg.Wait()
}
