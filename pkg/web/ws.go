package web

import (
	"context"
	"log/slog"

	"github.com/bytedance/sonic"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-persona/pkg/pipeline"
	"github.com/teslashibe/go-persona/pkg/session"
	"github.com/teslashibe/go-persona/pkg/stt"
	"github.com/teslashibe/go-persona/pkg/tts"
)

// WebSocket control message types.
const (
	wsStart  = "start"
	wsStop   = "stop"
	wsResult = "RESULT"
	wsError  = "ERROR"

	defaultStreamFormat = "audio/webm"
	wsSourceCapacity    = 16
)

// wsControl is a JSON text frame sent by the client.
type wsControl struct {
	Type        string `json:"type"`
	Voice       string `json:"voice,omitempty"`
	Mode        string `json:"mode,omitempty"`
	Format      string `json:"format,omitempty"`
	ReturnAudio bool   `json:"returnAudio,omitempty"`
}

// wsResultFrame wraps a traditional answer.
type wsResultFrame struct {
	Type     string `json:"type"`
	Fallback bool   `json:"fallback"`
	*pipeline.TraditionalResult
}

// handleVoiceWS streams one spoken turn: an optional start message, binary
// audio frames, then stop (or close). Records go back as text frames.
func (s *Server) handleVoiceWS(conn *websocket.Conn) {
	sess, _ := conn.Locals(localSession).(*session.Session)
	if sess == nil {
		sess = s.sessions.Get("")
	}
	reqID, _ := conn.Locals(localRequestID).(string)
	logger := s.logger.With("request_id", reqID, "session_id", sess.ID, "transport", "websocket")

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RequestTimeout)
	defer cancel()

	start, first, err := readStart(conn)
	if err != nil {
		s.writeWSError(conn, err, logger)
		return
	}
	filename, err := stt.FilenameFor(start.Format)
	if err != nil {
		s.writeWSError(conn, invalid("format", "Unsupported audio format "+start.Format), logger)
		return
	}
	mode, err := pipeline.ParseMode(start.Mode)
	if err != nil {
		s.writeWSError(conn, invalid("mode", "Mode must be parallel or traditional"), logger)
		return
	}
	if start.Voice != "" && !tts.IsVoice(start.Voice) {
		s.writeWSError(conn, invalid("voice", "Unknown voice "+start.Voice), logger)
		return
	}

	src := make(chan []byte, wsSourceCapacity)
	if first != nil {
		src <- first
	}
	go readAudio(ctx, conn, src)

	out, err := s.orch.Voice(ctx, &pipeline.VoiceRequest{
		Mode:        mode,
		Session:     sess,
		Source:      src,
		Filename:    filename,
		Voice:       start.Voice,
		ReturnAudio: start.ReturnAudio,
		RequestID:   reqID,
	})
	if err != nil {
		s.writeWSError(conn, failure(msgVoice, err), logger)
		return
	}

	if out.Stream == nil {
		frame := wsResultFrame{Type: wsResult, Fallback: out.Fallback, TraditionalResult: out.Result}
		if err := conn.WriteJSON(frame); err != nil {
			logger.Warn("write result failed", "error", err)
		}
		return
	}

	broken := false
	for rec := range out.Stream {
		if broken {
			continue
		}
		data, err := rec.Encode()
		if err != nil {
			logger.Warn("record dropped", "kind", rec.Kind, "error", err)
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logger.Warn("client went away", "error", err)
			broken = true
			cancel()
		}
	}
}

// readStart reads the first frame. A binary frame is audio under default options.
func readStart(conn *websocket.Conn) (wsControl, []byte, error) {
	start := wsControl{Type: wsStart, Format: defaultStreamFormat}

	mt, data, err := conn.ReadMessage()
	if err != nil {
		return start, nil, pipeline.ErrNoAudio
	}
	if mt == websocket.BinaryMessage {
		return start, data, nil
	}

	var msg wsControl
	if err := sonic.Unmarshal(data, &msg); err != nil {
		return start, nil, invalid("type", "First message must be a start message or audio")
	}
	switch msg.Type {
	case wsStart:
	case wsStop:
		return start, nil, pipeline.ErrNoAudio
	default:
		return start, nil, invalid("type", "Unknown message type "+msg.Type)
	}
	if msg.Format == "" {
		msg.Format = defaultStreamFormat
	}
	return msg, nil, nil
}

// readAudio feeds binary frames into src until stop, close or ctx ends.
func readAudio(ctx context.Context, conn *websocket.Conn, src chan<- []byte) {
	defer close(src)
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		switch mt {
		case websocket.BinaryMessage:
			select {
			case src <- data:
			case <-ctx.Done():
				return
			}
		case websocket.TextMessage:
			var msg wsControl
			if sonic.Unmarshal(data, &msg) == nil && msg.Type == wsStop {
				return
			}
		}
	}
}

func (s *Server) writeWSError(conn *websocket.Conn, err error, logger *slog.Logger) {
	code, body := s.errorBody(err)
	if code >= fiber.StatusInternalServerError {
		logger.Error("voice stream failed", "error", err)
	}
	body["type"] = wsError
	body["status"] = code
	if werr := conn.WriteJSON(body); werr != nil {
		logger.Warn("write error failed", "error", werr)
	}
}
