package pipeline

import (
	"context"
	"encoding/base64"
	"strings"
	"time"

	"github.com/teslashibe/go-persona/pkg/session"
	"github.com/teslashibe/go-persona/pkg/stt"
	"github.com/teslashibe/go-persona/pkg/tts"
)

// AudioFormatMP3 is the only synthesis format the service returns.
const AudioFormatMP3 = "mp3"

// TraditionalRequest is one sequential voice turn.
type TraditionalRequest struct {
	Session     *session.Session
	Audio       []byte
	Filename    string
	Voice       string
	ReturnAudio bool
}

// ProcessingInfo describes how a traditional answer was produced.
type ProcessingInfo struct {
	Mode          string `json:"mode"`
	VoiceModel    string `json:"voiceModel"`
	TextOptimized bool   `json:"textOptimized"`
	AudioFormat   string `json:"audioFormat"`
}

// TraditionalResult is the single JSON answer of the sequential path.
type TraditionalResult struct {
	Transcript     string         `json:"transcript"`
	Response       string         `json:"response"`
	Timestamp      string         `json:"timestamp"`
	ProcessingInfo ProcessingInfo `json:"processingInfo"`
	AudioResponse  string         `json:"audioResponse,omitempty"`
	AudioFormat    string         `json:"audioFormat,omitempty"`
}

// Traditional transcribes the whole buffer, answers it as one turn and, when
// asked, synthesizes the whole answer.
func (o *Orchestrator) Traditional(ctx context.Context, req *TraditionalRequest) (*TraditionalResult, error) {
	if req == nil || req.Session == nil {
		return nil, ErrNoSession
	}
	if len(req.Audio) == 0 {
		return nil, ErrNoAudio
	}
	voice := req.Voice
	if voice == "" {
		voice = o.cfg.Voice
	}
	start := time.Now()

	transcript, err := o.transcribeAll(ctx, req.Audio, req.Filename)
	if err != nil {
		return nil, err
	}

	response, err := o.chat.Reply(ctx, req.Session, transcript)
	if err != nil {
		return nil, err
	}

	res := &TraditionalResult{
		Transcript: transcript,
		Response:   response,
		Timestamp:  Timestamp(time.Now()),
		ProcessingInfo: ProcessingInfo{
			Mode:          string(ModeTraditional),
			VoiceModel:    voice,
			TextOptimized: true,
			AudioFormat:   AudioFormatMP3,
		},
	}

	if req.ReturnAudio {
		audio, err := o.synthesizeAll(ctx, response, voice)
		if err != nil {
			return nil, err
		}
		res.AudioResponse = base64.StdEncoding.EncodeToString(audio)
		res.AudioFormat = AudioFormatMP3
	}

	o.logger.Info("traditional turn complete",
		"session_id", req.Session.ID,
		"transcript_chars", len(transcript),
		"response_chars", len(response),
		"audio", req.ReturnAudio,
		"latency", time.Since(start).Round(time.Millisecond),
	)
	return res, nil
}

func (o *Orchestrator) transcribeAll(ctx context.Context, audio []byte, filename string) (string, error) {
	ctx, cancel := o.callContext(ctx)
	defer cancel()
	res, err := o.stt.Transcribe(ctx, &stt.Request{
		Audio:    audio,
		Filename: filename,
		Language: o.cfg.Language,
		Prompt:   o.cfg.Prompt,
	})
	if err != nil {
		return "", stt.WrapError("traditional", err)
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		return "", stageError("transcription", ErrEmptyTranscript)
	}
	return text, nil
}

func (o *Orchestrator) synthesizeAll(ctx context.Context, text, voice string) ([]byte, error) {
	ctx, cancel := o.callContext(ctx)
	defer cancel()
	res, err := o.tts.Synthesize(ctx, &tts.Request{Text: text, Voice: voice, Speed: o.cfg.Speed})
	if err != nil {
		return nil, err
	}
	return res.Audio, nil
}

func (o *Orchestrator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.cfg.CallTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, o.cfg.CallTimeout)
}
