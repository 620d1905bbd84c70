package pipeline

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-persona/pkg/stt"
)

// Transcriber turns a chunk stream into transcript fragments, one per window.
//
// Chunks are buffered until FlushBytes are held or the chunk count reaches a
// multiple of FlushEveryChunks. The buffer is then transcribed whole and only
// a trailing overlap is kept for the next window. When the input ends, any
// buffered audio is transcribed one last time.
type Transcriber struct {
	provider stt.Provider
	cfg      Config
	filename string
	metrics  *Tracker
	logger   *slog.Logger
}

// NewTranscriber creates a Transcriber. filename tells the provider the
// container format, e.g. "audio.webm".
func NewTranscriber(provider stt.Provider, cfg Config, filename string, metrics *Tracker) *Transcriber {
	return &Transcriber{
		provider: provider,
		cfg:      cfg,
		filename: filename,
		metrics:  metrics,
		logger:   cfg.logger().With("component", "pipeline.transcriber"),
	}
}

// Run reads in until it closes and writes non-empty fragments to out.
// Failed windows are logged and skipped. Run closes out before returning.
func (t *Transcriber) Run(ctx context.Context, in <-chan []byte, out chan<- string) error {
	defer close(out)

	results := make(chan Result[string], t.cfg.ChannelCapacity)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(results)
		return t.windows(ctx, in, results)
	})
	g.Go(func() error {
		return filter(ctx, results, out, t.logger, "transcription window")
	})
	return g.Wait()
}

func (t *Transcriber) windows(ctx context.Context, in <-chan []byte, results chan<- Result[string]) error {
	var buf []byte
	chunks := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-in:
			if !ok {
				if len(buf) == 0 {
					return nil
				}
				return t.flush(ctx, buf, results, "final")
			}
			buf = append(buf, chunk...)
			chunks++
			t.metrics.MarkChunk()
			if !t.shouldFlush(len(buf), chunks) {
				continue
			}
			if err := t.flush(ctx, buf, results, "window"); err != nil {
				return err
			}
			buf = t.retain(buf)
		}
	}
}

func (t *Transcriber) shouldFlush(buffered, chunks int) bool {
	if buffered >= t.cfg.FlushBytes {
		return true
	}
	return t.cfg.FlushEveryChunks > 0 && chunks%t.cfg.FlushEveryChunks == 0
}

// retain keeps the trailing overlap of buf in a fresh slice.
func (t *Transcriber) retain(buf []byte) []byte {
	n := overlap(len(buf), t.cfg.OverlapRatio, t.cfg.OverlapMax)
	kept := make([]byte, n, max(n, t.cfg.FlushBytes))
	copy(kept, buf[len(buf)-n:])
	return kept
}

// overlap is min(ratio of size, limit).
func overlap(size int, ratio float64, limit int) int {
	return min(int(float64(size)*ratio), limit)
}

// flush transcribes buf and queues the outcome. Only a cancelled ctx is returned.
func (t *Transcriber) flush(ctx context.Context, buf []byte, results chan<- Result[string], kind string) error {
	text, err := t.transcribe(ctx, buf)
	t.metrics.MarkWindow(err, text != "")
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return send(ctx, results, Fail[string](err))
	}
	t.logger.Debug("transcribed "+kind, "bytes", len(buf), "chars", len(text))
	if text == "" {
		return nil
	}
	return send(ctx, results, Ok(text))
}

func (t *Transcriber) transcribe(ctx context.Context, audio []byte) (string, error) {
	if t.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.CallTimeout)
		defer cancel()
	}
	res, err := t.provider.Transcribe(ctx, &stt.Request{
		Audio:    audio,
		Filename: t.filename,
		Language: t.cfg.Language,
		Prompt:   t.cfg.Prompt,
	})
	if err != nil {
		return "", stt.WrapError("window", err)
	}
	return strings.TrimSpace(res.Text), nil
}
