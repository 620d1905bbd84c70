package web

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-persona/pkg/pipeline"
	"github.com/teslashibe/go-persona/pkg/stt"
	"github.com/teslashibe/go-persona/pkg/tts"
)

// voiceUpload is a validated /voice form.
type voiceUpload struct {
	audio       []byte
	filename    string
	mode        pipeline.Mode
	voice       string
	returnAudio bool
}

func parseVoiceUpload(c *fiber.Ctx) (*voiceUpload, error) {
	fh, err := c.FormFile("audio")
	if err != nil {
		return nil, invalid("audio", "No audio file provided")
	}
	mime := fh.Header.Get(fiber.HeaderContentType)
	filename, err := stt.FilenameFor(mime)
	if err != nil {
		return nil, invalid("audio", "Unsupported audio format "+mime+"; use one of "+strings.Join(stt.SupportedFormats(), ", "))
	}
	if fh.Size > stt.MaxUploadBytes {
		return nil, invalid("audio", "Audio file exceeds the 25 MB limit")
	}

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	audio, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if len(audio) == 0 {
		return nil, invalid("audio", "No audio file provided")
	}

	mode, err := pipeline.ParseMode(c.FormValue("mode"))
	if err != nil {
		return nil, invalid("mode", "Mode must be parallel or traditional")
	}
	voice := c.FormValue("voice")
	if voice != "" && !tts.IsVoice(voice) {
		return nil, invalid("voice", "Unknown voice "+voice)
	}

	return &voiceUpload{
		audio:       audio,
		filename:    filename,
		mode:        mode,
		voice:       voice,
		returnAudio: c.FormValue("returnAudio") == "true",
	}, nil
}

func (s *Server) handleVoice(c *fiber.Ctx) error {
	return s.voice(c, "")
}

func (s *Server) handleTraditional(c *fiber.Ctx) error {
	return s.voice(c, pipeline.ModeTraditional)
}

// voice answers an upload. A non-empty force overrides the form's mode.
func (s *Server) voice(c *fiber.Ctx, force pipeline.Mode) error {
	up, err := parseVoiceUpload(c)
	if err != nil {
		return failure(msgVoice, err)
	}
	if force != "" {
		up.mode = force
	}
	sess := sessionOf(c)
	reqID := requestIDOf(c)

	// The stream outlives the handler, so the deadline cannot hang off the request.
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RequestTimeout)
	out, err := s.orch.Voice(ctx, &pipeline.VoiceRequest{
		Mode:        up.mode,
		Session:     sess,
		Audio:       up.audio,
		Filename:    up.filename,
		Voice:       up.voice,
		ReturnAudio: up.returnAudio,
		RequestID:   reqID,
	})
	if err != nil {
		cancel()
		return failure(msgVoice, err)
	}

	c.Set(HeaderMode, string(out.Mode))
	if out.Stream == nil {
		cancel()
		if out.Fallback {
			c.Set(HeaderFallback, "true")
		}
		return c.JSON(out.Result)
	}

	c.Set(fiber.HeaderContentType, fiber.MIMEOctetStream)
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	logger := s.logger.With("request_id", reqID, "session_id", sess.ID)
	records := out.Stream
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()
		writeRecords(w, records, cancel, logger)
	})
	return nil
}

// writeRecords copies records to w, flushing each one. A failed write cancels
// the attempt; the rest of the stream is drained so the pipeline can finish.
func writeRecords(w *bufio.Writer, records <-chan pipeline.Record, cancel context.CancelFunc, logger *slog.Logger) {
	broken := false
	for rec := range records {
		if broken {
			continue
		}
		line, err := rec.Line()
		if err != nil {
			logger.Warn("record dropped", "kind", rec.Kind, "error", err)
			continue
		}
		if _, err := w.Write(line); err == nil {
			err = w.Flush()
		}
		if err != nil {
			logger.Warn("client went away", "error", err)
			broken = true
			cancel()
		}
	}
}
