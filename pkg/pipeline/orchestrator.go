package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-persona/pkg/chat"
	"github.com/teslashibe/go-persona/pkg/session"
	"github.com/teslashibe/go-persona/pkg/stt"
	"github.com/teslashibe/go-persona/pkg/tts"
)

// Mode selects how a voice request is processed.
type Mode string

const (
	// ModeParallel streams records while audio is still being transcribed.
	ModeParallel Mode = "parallel"

	// ModeTraditional answers with one consolidated result.
	ModeTraditional Mode = "traditional"
)

// ParseMode maps a request field to a Mode. Empty means parallel.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeParallel:
		return ModeParallel, nil
	case ModeTraditional:
		return ModeTraditional, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// errStreamFailed is the client-facing message of ERROR records.
const errStreamFailed = "Voice processing failed"

// VoiceRequest is one spoken turn.
type VoiceRequest struct {
	Mode    Mode
	Session *session.Session

	// Audio is a complete upload. When nil, Source is read until it closes.
	Audio  []byte
	Source <-chan []byte

	// Filename carries the container type, e.g. "audio.webm".
	Filename string

	// Voice overrides the configured voice.
	Voice string

	// ReturnAudio asks the traditional path for synthesized audio.
	ReturnAudio bool

	// RequestID tags log lines.
	RequestID string
}

// Outcome is the answer to a VoiceRequest: either a record stream or one result.
type Outcome struct {
	// Mode is the path that produced the answer.
	Mode Mode

	// Stream yields records until it closes; the last one is DONE or ERROR.
	// The consumer must drain it or cancel the request context.
	Stream <-chan Record

	// Result is set when the traditional path answered.
	Result *TraditionalResult

	// Fallback reports that a parallel attempt failed and Result replaced it.
	Fallback bool

	// Cause is the failure that triggered the fallback.
	Cause error
}

// Orchestrator runs voice turns on either path.
type Orchestrator struct {
	cfg     Config
	stt     stt.Provider
	chat    *chat.Service
	tts     tts.Provider
	metrics *MetricsCollector
	logger  *slog.Logger
}

// NewOrchestrator creates an Orchestrator. Synthesis always receives text
// prepared for speech.
func NewOrchestrator(cfg Config, transcriber stt.Provider, svc *chat.Service, speech tts.Provider) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg,
		stt:     transcriber,
		chat:    svc,
		tts:     tts.Prepared(speech),
		metrics: NewMetricsCollector(),
		logger:  cfg.logger().With("component", "pipeline.orchestrator"),
	}
}

// Config returns the orchestrator's configuration.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// Metrics returns the collector of finished parallel turns.
func (o *Orchestrator) Metrics() *MetricsCollector {
	return o.metrics
}

// Chat returns the conversation service.
func (o *Orchestrator) Chat() *chat.Service {
	return o.chat
}

// Voice processes req on the requested path.
//
// A parallel attempt that fails before producing its first record is rolled
// back and answered by the traditional path instead. Once the first record
// exists Voice returns the stream, and a later failure ends it with ERROR.
func (o *Orchestrator) Voice(ctx context.Context, req *VoiceRequest) (*Outcome, error) {
	if req == nil || req.Session == nil {
		return nil, ErrNoSession
	}
	if len(req.Audio) == 0 && req.Source == nil {
		return nil, ErrNoAudio
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	switch req.Mode {
	case "", ModeParallel:
		return o.parallel(ctx, req)
	case ModeTraditional:
		audio := req.Audio
		if len(audio) == 0 {
			var err error
			if audio, err = collect(ctx, req.Source, o.cfg.MaxAudioBytes); err != nil {
				return nil, err
			}
		}
		res, err := o.Traditional(ctx, &TraditionalRequest{
			Session:     req.Session,
			Audio:       audio,
			Filename:    req.Filename,
			Voice:       req.Voice,
			ReturnAudio: req.ReturnAudio,
		})
		if err != nil {
			return nil, err
		}
		return &Outcome{Mode: ModeTraditional, Result: res}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, req.Mode)
	}
}

func (o *Orchestrator) parallel(ctx context.Context, req *VoiceRequest) (*Outcome, error) {
	logger := o.logger.With("session_id", req.Session.ID, "request_id", req.RequestID)
	tracker := NewTracker()
	completer := NewCompleter(o.chat, o.cfg, tracker)

	attemptCtx, cancelAttempt := context.WithCancelCause(ctx)

	var (
		chunks <-chan []byte
		source *tee
	)
	if len(req.Audio) > 0 {
		chunks = Chunk(attemptCtx, req.Audio, o.cfg.ChunkSize)
	} else {
		source = newTee(ctx, attemptCtx, req.Source, o.cfg.MaxAudioBytes, cancelAttempt)
		chunks = source.chunks
	}

	raw := make(chan Record)
	sink := SinkFunc(func(ctx context.Context, r Record) error {
		return send(ctx, raw, r)
	})

	transcripts := make(chan string, o.cfg.ChannelCapacity)
	fragments := make(chan Fragment, o.cfg.ChannelCapacity)

	g, gctx := errgroup.WithContext(attemptCtx)
	g.Go(func() error {
		return NewTranscriber(o.stt, o.cfg, req.Filename, tracker).Run(gctx, chunks, transcripts)
	})
	g.Go(func() error {
		return completer.Run(gctx, req.Session, transcripts, fragments)
	})
	g.Go(func() error {
		return NewSegmenter(o.tts, o.cfg, req.Voice, tracker).Run(gctx, fragments, sink)
	})

	errc := make(chan error, 1)
	go func() {
		err := g.Wait()
		if cause := context.Cause(attemptCtx); errors.Is(cause, ErrAudioTooLarge) {
			err = cause
		}
		errc <- err
	}()

	select {
	case first := <-raw:
		out := make(chan Record, o.cfg.ChannelCapacity)
		s := &stream{
			o:         o,
			out:       out,
			raw:       raw,
			errc:      errc,
			cancel:    cancelAttempt,
			tracker:   tracker,
			sess:      req.Session,
			completer: completer,
			logger:    logger,
		}
		go s.forward(ctx, first)
		return &Outcome{Mode: ModeParallel, Stream: out}, nil

	case err := <-errc:
		cancelAttempt(nil)
		if err == nil {
			err = stageError("attempt", ErrEmptyTranscript)
		}
		return o.fallback(ctx, req, source, completer, err, logger)
	}
}

// fallback answers req on the traditional path after a failed parallel attempt.
func (o *Orchestrator) fallback(ctx context.Context, req *VoiceRequest, source *tee, completer *Completer, cause error, logger *slog.Logger) (*Outcome, error) {
	completer.Withdraw(req.Session)

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if errors.Is(cause, ErrAudioTooLarge) {
		return nil, cause
	}

	audio := req.Audio
	if source != nil {
		var err error
		if audio, err = source.Audio(ctx); err != nil {
			return nil, err
		}
	}

	logger.Warn("parallel attempt failed before streaming, falling back", "error", cause)

	res, err := o.Traditional(ctx, &TraditionalRequest{
		Session:     req.Session,
		Audio:       audio,
		Filename:    req.Filename,
		Voice:       req.Voice,
		ReturnAudio: req.ReturnAudio,
	})
	if err != nil {
		return nil, err
	}
	return &Outcome{Mode: ModeTraditional, Result: res, Fallback: true, Cause: cause}, nil
}

// stream forwards a committed parallel attempt to its consumer.
type stream struct {
	o       *Orchestrator
	out     chan<- Record
	raw     <-chan Record
	errc    <-chan error
	cancel  context.CancelCauseFunc
	tracker *Tracker
	sess    *session.Session
	logger  *slog.Logger

	completer *Completer
}

// forward copies records until the attempt ends, then closes with DONE or
// ERROR. When ctx ends records are dropped but the attempt is still awaited.
func (s *stream) forward(ctx context.Context, first Record) {
	defer close(s.out)
	defer s.cancel(nil)

	emit := func(r Record) {
		_ = send(ctx, s.out, r)
	}

	emit(first)
	for {
		select {
		case r := <-s.raw:
			emit(r)
		case err := <-s.errc:
			m := s.tracker.Done()
			if err != nil {
				s.completer.Withdraw(s.sess)
				s.logger.Error("parallel attempt failed after streaming began",
					"error", err,
					"records_audio", m.AudioOut,
				)
				details := err.Error()
				if s.o.cfg.HideErrorDetails {
					details = ""
				}
				emit(errorRecord(errStreamFailed, details))
				return
			}
			s.o.metrics.Record(m)
			s.logger.Info("parallel turn complete",
				"latency", m.FormatLatency(),
				"windows", m.Windows,
				"utterances", m.Utterances,
				"audio", m.AudioOut,
			)
			emit(doneRecord(m.Report()))
			return
		}
	}
}

// collect reads src until it closes.
func collect(ctx context.Context, src <-chan []byte, limit int) ([]byte, error) {
	var buf []byte
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case c, ok := <-src:
			if !ok {
				if len(buf) == 0 {
					return nil, ErrNoAudio
				}
				return buf, nil
			}
			if limit > 0 && len(buf)+len(c) > limit {
				return nil, ErrAudioTooLarge
			}
			buf = append(buf, c...)
		}
	}
}
