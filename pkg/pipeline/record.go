package pipeline

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// Kind tags a streamed record.
type Kind string

const (
	KindTranscript Kind = "TRANSCRIPT"
	KindPartial    Kind = "CHAT_PARTIAL"
	KindComplete   Kind = "CHAT_COMPLETE"
	KindAudio      Kind = "AUDIO"
	KindDone       Kind = "DONE"
	KindError      Kind = "ERROR"
)

// TimestampLayout renders instants as UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Timestamp formats t with TimestampLayout.
func Timestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Record is one unit of the parallel response stream.
// AUDIO records carry Audio; every other kind carries a JSON Payload.
type Record struct {
	Kind    Kind
	Payload any
	Audio   []byte
}

// TranscriptPayload reports the input the answer is built from.
type TranscriptPayload struct {
	Transcript string `json:"transcript"`
	Timestamp  string `json:"timestamp"`
}

// ChatPayload carries one delta of a partial or complete answer.
type ChatPayload struct {
	Content   string `json:"content"`
	InputUsed string `json:"inputUsed,omitempty"`
	Timestamp string `json:"timestamp"`
}

// DonePayload ends a successful stream.
type DonePayload struct {
	Timestamp      string  `json:"timestamp"`
	ProcessingMode string  `json:"processingMode"`
	Metrics        *Report `json:"metrics,omitempty"`
}

// ErrorPayload ends a failed stream.
type ErrorPayload struct {
	Error     string `json:"error"`
	Details   string `json:"details,omitempty"`
	Timestamp string `json:"timestamp"`
}

func transcriptRecord(text string) Record {
	return Record{Kind: KindTranscript, Payload: TranscriptPayload{
		Transcript: text,
		Timestamp:  Timestamp(time.Now()),
	}}
}

func chatRecord(kind Kind, content, input string) Record {
	p := ChatPayload{Content: content, Timestamp: Timestamp(time.Now())}
	if kind == KindPartial {
		p.InputUsed = input
	}
	return Record{Kind: kind, Payload: p}
}

func audioRecord(audio []byte) Record {
	return Record{Kind: KindAudio, Audio: audio}
}

func doneRecord(report *Report) Record {
	return Record{Kind: KindDone, Payload: DonePayload{
		Timestamp:      Timestamp(time.Now()),
		ProcessingMode: string(ModeParallel),
		Metrics:        report,
	}}
}

func errorRecord(msg, details string) Record {
	return Record{Kind: KindError, Payload: ErrorPayload{
		Error:     msg,
		Details:   details,
		Timestamp: Timestamp(time.Now()),
	}}
}

// Encode renders the record as KIND:<json>, or KIND:<base64> for audio.
func (r Record) Encode() ([]byte, error) {
	var body []byte
	if r.Kind == KindAudio {
		body = make([]byte, base64.StdEncoding.EncodedLen(len(r.Audio)))
		base64.StdEncoding.Encode(body, r.Audio)
	} else {
		var err error
		body, err = sonic.Marshal(r.Payload)
		if err != nil {
			return nil, fmt.Errorf("pipeline: encode %s: %w", r.Kind, err)
		}
	}
	out := make([]byte, 0, len(r.Kind)+1+len(body)+1)
	out = append(out, r.Kind...)
	out = append(out, ':')
	out = append(out, body...)
	return out, nil
}

// Line is Encode followed by a newline, the framing of the HTTP stream.
func (r Record) Line() ([]byte, error) {
	b, err := r.Encode()
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// ParseLine splits an encoded record into its kind and body.
func ParseLine(line string) (Kind, string, error) {
	line = strings.TrimRight(line, "\r\n")
	kind, body, ok := strings.Cut(line, ":")
	if !ok || kind == "" {
		return "", "", errors.New("pipeline: malformed record")
	}
	return Kind(kind), body, nil
}
