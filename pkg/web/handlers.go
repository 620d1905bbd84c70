package web

import (
	"bufio"
	"context"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-persona/pkg/pipeline"
	"github.com/teslashibe/go-persona/pkg/tts"
)

const (
	actionFirstMessage = "getFirstMessage"
	actionClear        = "clearConversation"

	healthCheckTimeout = 5 * time.Second
)

var capabilities = []string{"text-chat", "conversation-memory", "personalized-responses", "voice-chat", "streaming-voice"}

func now() string {
	return pipeline.Timestamp(time.Now())
}

func (s *Server) endpoints() fiber.Map {
	return fiber.Map{
		"chat":         "/chat",
		"chatStream":   "/chat/stream",
		"voice":        "/voice",
		"voiceStream":  "/voice/ws",
		"tts":          "/tts",
		"status":       "/status",
		"health":       "/health",
		"voiceOptions": "/voice/options",
	}
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"message":       s.chat.Persona().Name + " Voice Bot Backend API",
		"version":       s.cfg.Version,
		"status":        "online",
		"endpoints":     s.endpoints(),
		"documentation": "POST /voice with a multipart \"audio\" field; GET /voice/options lists voices and modes.",
	})
}

func (s *Server) handleNotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error":   "Not Found",
		"message": "Route " + c.OriginalURL() + " not found",
		"availableEndpoints": []string{
			"GET /", "POST /chat", "POST /chat/stream", "GET /status", "GET /health",
			"GET /health/providers", "POST /voice", "POST /voice/traditional",
			"GET /voice/options", "POST /tts", "GET /voice/ws",
		},
	})
}

type chatRequest struct {
	Input          string `json:"input"`
	IsFirstMessage bool   `json:"isFirstMessage"`
	Action         string `json:"action"`
}

func parseChat(c *fiber.Ctx) (*chatRequest, error) {
	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return nil, invalid("input", "Input is required and must be a string.")
	}
	return &req, nil
}

func (s *Server) handleChat(c *fiber.Ctx) error {
	req, err := parseChat(c)
	if err != nil {
		return err
	}
	sess := sessionOf(c)

	switch req.Action {
	case actionFirstMessage:
		return c.JSON(fiber.Map{"response": s.chat.FirstMessage(), "isFirstMessage": true})
	case actionClear:
		s.chat.Clear(sess)
		return c.JSON(fiber.Map{"message": "Conversation cleared"})
	}

	if req.Input == "" {
		return invalid("input", "Input is required and must be a string.")
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), s.cfg.RequestTimeout)
	defer cancel()

	reply, err := s.chat.Reply(ctx, sess, req.Input)
	if err != nil {
		return failure(msgChat, err)
	}
	return c.JSON(fiber.Map{
		"response":           reply,
		"timestamp":          now(),
		"conversationActive": true,
	})
}

type sseFrame struct {
	Chunk     string `json:"chunk,omitempty"`
	Done      bool   `json:"done,omitempty"`
	Error     string `json:"error,omitempty"`
	Timestamp string `json:"timestamp"`
}

func writeFrame(w *bufio.Writer, f sseFrame) error {
	data, err := sonic.Marshal(f)
	if err != nil {
		return err
	}
	if _, err := w.WriteString("data: "); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if _, err := w.WriteString("\n\n"); err != nil {
		return err
	}
	return w.Flush()
}

func (s *Server) handleChatStream(c *fiber.Ctx) error {
	req, err := parseChat(c)
	if err != nil {
		return err
	}
	if req.Input == "" {
		return invalid("input", "Input is required and must be a string.")
	}
	sess := sessionOf(c)
	logger := s.logger.With("request_id", requestIDOf(c), "session_id", sess.ID)

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	input := req.Input
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RequestTimeout)
		defer cancel()

		_, err := s.chat.StreamReply(ctx, sess, input, func(delta string) error {
			return writeFrame(w, sseFrame{Chunk: delta, Timestamp: now()})
		})
		if err != nil {
			logger.Error("chat stream failed", "error", err)
			_ = writeFrame(w, sseFrame{Error: "Streaming failed", Timestamp: now()})
			return
		}
		_ = writeFrame(w, sseFrame{Done: true, Timestamp: now()})
	})
	return nil
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	avg := s.orch.Metrics().Average()
	return c.JSON(fiber.Map{
		"status":       "online",
		"persona":      s.chat.Persona().Name,
		"capabilities": capabilities,
		"timestamp":    now(),
		"uptime":       time.Since(s.started).Round(time.Second).String(),
		"sessions":     s.sessions.Len(),
		"sessionMode":  s.sessions.Mode(),
		"turns":        s.orch.Metrics().Count(),
		"latency":      avg.Report(),
	})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":    "healthy",
		"timestamp": now(),
		"service":   s.chat.Persona().Name + " Voice Bot Backend",
	})
}

// handleProviderHealth probes every upstream provider concurrently.
func (s *Server) handleProviderHealth(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), healthCheckTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		results = make(map[string]string, len(s.checks))
		healthy = true
		g       errgroup.Group
	)
	for name, check := range s.checks {
		name, check := name, check
		g.Go(func() error {
			status := "ok"
			if err := check(ctx); err != nil {
				status = err.Error()
			}
			mu.Lock()
			results[name] = status
			if status != "ok" {
				healthy = false
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	code, status := fiber.StatusOK, "healthy"
	if !healthy {
		code, status = fiber.StatusServiceUnavailable, "degraded"
	}
	return c.Status(code).JSON(fiber.Map{
		"status":    status,
		"providers": results,
		"timestamp": now(),
	})
}

type ttsRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

func (s *Server) handleTTS(c *fiber.Ctx) error {
	var req ttsRequest
	if err := c.BodyParser(&req); err != nil || req.Text == "" {
		return invalid("text", "Text is required and must be a string")
	}
	if req.Voice == "" {
		req.Voice = s.orch.Config().Voice
	}
	if !tts.IsVoice(req.Voice) {
		return invalid("voice", "Unknown voice "+req.Voice)
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), s.cfg.RequestTimeout)
	defer cancel()

	res, err := s.speech.Synthesize(ctx, &tts.Request{Text: req.Text, Voice: req.Voice})
	if err != nil {
		return failure(msgSpeech, err)
	}

	c.Set(fiber.HeaderContentType, "audio/mpeg")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="speech.mp3"`)
	return c.Send(res.Audio)
}

type processingMode struct {
	Mode         pipeline.Mode `json:"mode"`
	Name         string        `json:"name"`
	ResponseTime string        `json:"responseTime"`
	Description  string        `json:"description"`
	Recommended  bool          `json:"recommended,omitempty"`
}

var processingModes = []processingMode{
	{
		Mode:         pipeline.ModeParallel,
		Name:         "Parallel Processing",
		ResponseTime: "3-6 seconds",
		Description:  "Real-time streaming with chunked processing",
		Recommended:  true,
	},
	{
		Mode:         pipeline.ModeTraditional,
		Name:         "Traditional Processing",
		ResponseTime: "8-15 seconds",
		Description:  "Sequential processing for maximum reliability",
	},
}

func (s *Server) handleVoiceOptions(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"voices":          tts.Voices(),
		"processingModes": processingModes,
		"defaultVoice":    s.orch.Config().Voice,
		"defaultMode":     pipeline.ModeParallel,
		"optimizations": fiber.Map{
			"textOptimization": true,
			"technicalTerms":   true,
			"naturalPauses":    true,
			"acronymHandling":  true,
		},
		"timestamp": now(),
	})
}
