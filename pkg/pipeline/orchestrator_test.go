package pipeline

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-persona/pkg/inference"
	"github.com/teslashibe/go-persona/pkg/session"
	"github.com/teslashibe/go-persona/pkg/stt"
	"github.com/teslashibe/go-persona/pkg/tts"
)

func TestParseMode(t *testing.T) {
	m, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeParallel, m)

	m, err = ParseMode("traditional")
	require.NoError(t, err)
	assert.Equal(t, ModeTraditional, m)

	_, err = ParseMode("turbo")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestVoiceValidation(t *testing.T) {
	f := newFixture(t, DefaultConfig(), inference.NewMock())
	ctx := context.Background()

	_, err := f.orch.Voice(ctx, &VoiceRequest{Audio: []byte("x")})
	assert.ErrorIs(t, err, ErrNoSession)

	_, err = f.orch.Voice(ctx, &VoiceRequest{Session: f.sess})
	assert.ErrorIs(t, err, ErrNoAudio)

	_, err = f.orch.Voice(ctx, &VoiceRequest{Session: f.sess, Audio: []byte("x"), Mode: "turbo"})
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestVoiceParallelStreams(t *testing.T) {
	llm := scriptedLLM([]string{"Thinking", "..."}, []string{"Hello", " there.", " Nice to meet you!"})
	f := newFixture(t, DefaultConfig(), llm)

	out, err := f.orch.Voice(context.Background(), &VoiceRequest{
		Session:  f.sess,
		Audio:    make([]byte, 20<<10),
		Filename: "audio.webm",
	})
	require.NoError(t, err)
	require.NotNil(t, out.Stream)
	assert.Equal(t, ModeParallel, out.Mode)
	assert.False(t, out.Fallback)
	assert.Nil(t, out.Result)

	records := drain(t, out.Stream)
	require.NotEmpty(t, records)

	last := records[len(records)-1]
	assert.Equal(t, KindDone, last.Kind)
	assert.Equal(t, "parallel", decode(t, last)["processingMode"])

	text := without(without(records, KindAudio), KindDone)
	assert.Equal(t, []Kind{
		KindPartial, KindPartial,
		KindTranscript,
		KindComplete, KindComplete, KindComplete,
	}, kinds(text))
	assert.Equal(t, "heard 20480 bytes", decode(t, text[2])["transcript"])

	assert.Equal(t, spoken("Thinking...", "Hello there.", "Nice to meet you!"), audioOf(records))

	history := f.sess.Messages()
	require.Len(t, history, 2)
	assert.Equal(t, "heard 20480 bytes", history[0].Content)
	assert.Equal(t, "Hello there. Nice to meet you!", history[1].Content)

	assert.Equal(t, 1, f.orch.Metrics().Count())
}

// failingReply answers partial calls and fails the authoritative call.
func failingReply(partial []string) *inference.Mock {
	m := inference.NewMock()
	m.ChatFunc = func(ctx context.Context, req *inference.ChatRequest) (*inference.ChatResponse, error) {
		return &inference.ChatResponse{Message: inference.NewAssistantMessage("Fallback answer.")}, nil
	}
	m.StreamFunc = func(ctx context.Context, req *inference.ChatRequest) (inference.Stream, error) {
		if isPartial(req) && partial != nil {
			return inference.NewMockStream(partial...), nil
		}
		return nil, errBoom
	}
	return m
}

func TestVoiceFallbackBeforeFirstRecord(t *testing.T) {
	f := newFixture(t, DefaultConfig(), failingReply(nil))
	audio := make([]byte, 12<<10)

	out, err := f.orch.Voice(context.Background(), &VoiceRequest{
		Session:     f.sess,
		Audio:       audio,
		ReturnAudio: true,
	})
	require.NoError(t, err)
	assert.Nil(t, out.Stream)
	assert.True(t, out.Fallback)
	assert.Equal(t, ModeTraditional, out.Mode)

	var pe *PipelineError
	require.ErrorAs(t, out.Cause, &pe)
	assert.Equal(t, "completion", pe.Stage)

	res := out.Result
	require.NotNil(t, res)
	assert.Equal(t, "heard 12288 bytes", res.Transcript)
	assert.Equal(t, "Fallback answer.", res.Response)
	assert.Equal(t, ProcessingInfo{Mode: "traditional", VoiceModel: tts.DefaultVoice, TextOptimized: true, AudioFormat: "mp3"}, res.ProcessingInfo)
	assert.Equal(t, "mp3", res.AudioFormat)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte(spoken("Fallback answer.")[0])), res.AudioResponse)

	// The failed attempt's user turn was rolled back before the fallback ran.
	history := f.sess.Messages()
	require.Len(t, history, 2)
	assert.Equal(t, inference.RoleUser, history[0].Role)
	assert.Equal(t, inference.RoleAssistant, history[1].Role)

	// Same shape as a direct traditional call.
	direct, err := f.orch.Traditional(context.Background(), &TraditionalRequest{
		Session:     session.New("other"),
		Audio:       audio,
		ReturnAudio: true,
	})
	require.NoError(t, err)
	assert.Equal(t, direct.Transcript, res.Transcript)
	assert.Equal(t, direct.Response, res.Response)
	assert.Equal(t, direct.ProcessingInfo, res.ProcessingInfo)
	assert.Equal(t, direct.AudioResponse, res.AudioResponse)
}

func TestVoiceLateFailureEmitsError(t *testing.T) {
	release := make(chan struct{})
	llm := inference.NewMock()
	llm.StreamFunc = func(ctx context.Context, req *inference.ChatRequest) (inference.Stream, error) {
		if isPartial(req) {
			return inference.NewMockStream("Let me think."), nil
		}
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return nil, errBoom
	}
	f := newFixture(t, DefaultConfig(), llm)

	out, err := f.orch.Voice(context.Background(), &VoiceRequest{
		Session: f.sess,
		Audio:   make([]byte, 12<<10),
	})
	require.NoError(t, err)
	require.NotNil(t, out.Stream, "first record commits the stream")
	close(release)

	records := drain(t, out.Stream)
	require.NotEmpty(t, records)
	assert.Equal(t, KindPartial, records[0].Kind)

	last := records[len(records)-1]
	assert.Equal(t, KindError, last.Kind)
	assert.Equal(t, "Voice processing failed", decode(t, last)["error"])
	assert.NotContains(t, kinds(records), KindDone)

	// No fallback ran and the failed turn left no history.
	assert.Zero(t, llm.CallCount("Chat"))
	assert.False(t, out.Fallback)
	assert.Zero(t, f.sess.Len())
	assert.Zero(t, f.orch.Metrics().Count())
}

func TestVoiceLateFailureKeepsConcurrentTurns(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	llm := inference.NewMock()
	llm.StreamFunc = func(ctx context.Context, req *inference.ChatRequest) (inference.Stream, error) {
		if isPartial(req) {
			return inference.NewMockStream("Let me think."), nil
		}
		once.Do(func() { close(entered) })
		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return nil, errBoom
	}
	f := newFixture(t, DefaultConfig(), llm)

	out, err := f.orch.Voice(context.Background(), &VoiceRequest{
		Session: f.sess,
		Audio:   make([]byte, 12<<10),
	})
	require.NoError(t, err)
	require.NotNil(t, out.Stream)
	<-entered

	// A typed turn on the same session completes while the voice turn hangs.
	reply, err := f.orch.Chat().Reply(context.Background(), f.sess, "typed question")
	require.NoError(t, err)
	assert.Equal(t, "Mock response", reply)
	require.Equal(t, 3, f.sess.Len())
	close(release)

	records := drain(t, out.Stream)
	assert.Equal(t, KindError, records[len(records)-1].Kind)

	history := f.sess.Messages()
	require.Len(t, history, 2)
	assert.Equal(t, inference.NewUserMessage("typed question"), history[0])
	assert.Equal(t, inference.NewAssistantMessage("Mock response"), history[1])
}

func TestVoiceFallbackKeepsEarlierHistory(t *testing.T) {
	f := newFixture(t, DefaultConfig(), failingReply(nil))
	f.sess.Append(inference.NewUserMessage("before"), inference.NewAssistantMessage("answer"))

	out, err := f.orch.Voice(context.Background(), &VoiceRequest{Session: f.sess, Audio: make([]byte, 12<<10)})
	require.NoError(t, err)
	require.True(t, out.Fallback)

	history := f.sess.Messages()
	require.Len(t, history, 4)
	assert.Equal(t, "before", history[0].Content)
	assert.Equal(t, "heard 12288 bytes", history[2].Content)
	assert.Equal(t, "Fallback answer.", history[3].Content)
}

func TestVoiceHiddenErrorDetails(t *testing.T) {
	release := make(chan struct{})
	llm := inference.NewMock()
	llm.StreamFunc = func(ctx context.Context, req *inference.ChatRequest) (inference.Stream, error) {
		if isPartial(req) {
			return inference.NewMockStream("Hmm."), nil
		}
		<-release
		return nil, errBoom
	}
	f := newFixture(t, DefaultConfig().WithHiddenErrorDetails(true), llm)

	out, err := f.orch.Voice(context.Background(), &VoiceRequest{Session: f.sess, Audio: make([]byte, 12<<10)})
	require.NoError(t, err)
	require.NotNil(t, out.Stream)
	close(release)

	records := drain(t, out.Stream)
	last := decode(t, records[len(records)-1])
	assert.NotContains(t, last, "details")
}

func TestVoiceEmptyTranscript(t *testing.T) {
	f := newFixture(t, DefaultConfig(), inference.NewMock())
	f.stt.TranscribeFunc = func(ctx context.Context, req *stt.Request) (*stt.Result, error) {
		return &stt.Result{Text: "  "}, nil
	}

	// Nothing heard in parallel, and nothing heard again by the fallback.
	_, err := f.orch.Voice(context.Background(), &VoiceRequest{Session: f.sess, Audio: []byte("shh")})
	assert.ErrorIs(t, err, ErrEmptyTranscript)
	assert.Zero(t, f.llm.CallCount("Stream"))
	assert.Zero(t, f.llm.CallCount("Chat"))
	assert.Zero(t, f.sess.Len())
}

func TestVoiceTraditionalMode(t *testing.T) {
	llm := inference.NewMock()
	f := newFixture(t, DefaultConfig(), llm)

	out, err := f.orch.Voice(context.Background(), &VoiceRequest{
		Mode:    ModeTraditional,
		Session: f.sess,
		Audio:   make([]byte, 100<<10),
		Voice:   tts.VoiceOnyx,
	})
	require.NoError(t, err)
	assert.Nil(t, out.Stream)
	assert.False(t, out.Fallback)
	require.NotNil(t, out.Result)

	assert.Equal(t, "heard 102400 bytes", out.Result.Transcript)
	assert.Equal(t, "Mock response", out.Result.Response)
	assert.Equal(t, tts.VoiceOnyx, out.Result.ProcessingInfo.VoiceModel)
	assert.Empty(t, out.Result.AudioResponse)
	assert.Empty(t, out.Result.AudioFormat)

	assert.Equal(t, 1, f.stt.CallCount("Transcribe"))
	assert.Equal(t, 1, llm.CallCount("Chat"))
	assert.Zero(t, llm.CallCount("Stream"))
	assert.Zero(t, f.tts.CallCount("Synthesize"))
}

func feed(chunks ...[]byte) <-chan []byte {
	src := make(chan []byte, len(chunks))
	go func() {
		defer close(src)
		for _, c := range chunks {
			src <- c
		}
	}()
	return src
}

func TestVoiceSourceParallel(t *testing.T) {
	llm := scriptedLLM([]string{"Ok."}, []string{"Done."})
	f := newFixture(t, DefaultConfig(), llm)

	out, err := f.orch.Voice(context.Background(), &VoiceRequest{
		Session: f.sess,
		Source:  feed(make([]byte, 4096), make([]byte, 4096), make([]byte, 4096)),
	})
	require.NoError(t, err)
	require.NotNil(t, out.Stream)

	records := drain(t, out.Stream)
	assert.Equal(t, KindDone, records[len(records)-1].Kind)
	assert.Equal(t, []int{12288}, callBytes(f.stt))
}

func TestVoiceSourceFallbackUsesWholeAudio(t *testing.T) {
	f := newFixture(t, DefaultConfig(), failingReply(nil))

	out, err := f.orch.Voice(context.Background(), &VoiceRequest{
		Session: f.sess,
		Source:  feed(make([]byte, 3000), make([]byte, 3000)),
	})
	require.NoError(t, err)
	require.True(t, out.Fallback)
	assert.Equal(t, "heard 6000 bytes", out.Result.Transcript)

	calls := callBytes(f.stt)
	assert.Equal(t, 6000, calls[len(calls)-1])
}

func TestVoiceSourceTooLarge(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAudioBytes = 10
	f := newFixture(t, cfg, inference.NewMock())

	_, err := f.orch.Voice(context.Background(), &VoiceRequest{
		Mode:    ModeTraditional,
		Session: f.sess,
		Source:  feed([]byte("12345678"), []byte("12345678")),
	})
	assert.ErrorIs(t, err, ErrAudioTooLarge)
}

func TestVoiceCancelledBeforeFirstRecord(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := newFixture(t, DefaultConfig(), inference.NewMock())
	_, err := f.orch.Voice(ctx, &VoiceRequest{Session: f.sess, Audio: make([]byte, 1024)})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, f.llm.CallCount("Chat"))
}
