// Package web serves the persona over HTTP and WebSocket.
//
// Voice uploads are answered either as a stream of newline-delimited records
// (parallel mode) or as one JSON object (traditional mode, or a parallel
// attempt that fell back). Text chat, speech synthesis and service metadata
// have their own routes.
package web

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/teslashibe/go-persona/pkg/chat"
	"github.com/teslashibe/go-persona/pkg/pipeline"
	"github.com/teslashibe/go-persona/pkg/session"
	"github.com/teslashibe/go-persona/pkg/stt"
	"github.com/teslashibe/go-persona/pkg/tts"
)

// Headers the service reads or sets.
const (
	HeaderSessionID = "X-Session-ID"
	HeaderRequestID = "X-Request-ID"
	HeaderFallback  = "X-Processing-Fallback"
	HeaderMode      = "X-Processing-Mode"
)

// Config holds HTTP-level settings.
type Config struct {
	AppName         string
	Version         string
	CORSOrigins     []string
	RateLimitWindow time.Duration
	RateLimitMax    int
	RequestTimeout  time.Duration
	Production      bool // hide error details from clients
	Debug           bool // access log
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		AppName:         "go-persona",
		Version:         "1.0.0",
		CORSOrigins:     []string{"http://localhost:3000"},
		RateLimitWindow: 15 * time.Minute,
		RateLimitMax:    100,
		RequestTimeout:  2 * time.Minute,
	}
}

// HealthCheck probes one upstream provider.
type HealthCheck func(ctx context.Context) error

// Deps are the collaborators a Server routes to.
type Deps struct {
	Orchestrator *pipeline.Orchestrator
	Sessions     *session.Store
	Speech       tts.Provider
	Checks       map[string]HealthCheck
	Logger       *slog.Logger
}

// Server is the HTTP front of the persona.
type Server struct {
	app      *fiber.App
	cfg      Config
	orch     *pipeline.Orchestrator
	chat     *chat.Service
	sessions *session.Store
	speech   tts.Provider
	checks   map[string]HealthCheck
	logger   *slog.Logger
	started  time.Time
}

// NewServer builds the app and registers every route.
func NewServer(cfg Config, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		orch:     deps.Orchestrator,
		chat:     deps.Orchestrator.Chat(),
		sessions: deps.Sessions,
		speech:   tts.Prepared(deps.Speech),
		checks:   deps.Checks,
		logger:   logger.With("component", "web.server"),
		started:  time.Now(),
	}

	s.app = fiber.New(fiber.Config{
		AppName:               cfg.AppName,
		DisableStartupMessage: true,
		BodyLimit:             stt.MaxUploadBytes + 1<<20,
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
		ErrorHandler:          s.errorHandler,
	})
	s.middleware()
	s.routes()
	return s
}

func (s *Server) middleware() {
	s.app.Use(recover.New())
	s.app.Use(requestID())
	s.app.Use(helmet.New())

	origins := strings.Join(s.cfg.CORSOrigins, ",")
	s.app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Content-Type,Authorization," + HeaderSessionID,
		ExposeHeaders:    strings.Join([]string{HeaderSessionID, HeaderRequestID, HeaderFallback, HeaderMode}, ","),
		AllowCredentials: !strings.Contains(origins, "*"),
	}))

	if s.cfg.Debug {
		s.app.Use(logger.New())
	}

	s.app.Use(limiter.New(limiter.Config{
		Max:        s.cfg.RateLimitMax,
		Expiration: s.cfg.RateLimitWindow,
		Next: func(c *fiber.Ctx) bool {
			return c.Path() == "/health"
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":      "Too many requests from this IP, please try again later.",
				"retryAfter": "Please wait " + s.cfg.RateLimitWindow.String() + " before making more requests.",
			})
		},
	}))
}

func (s *Server) routes() {
	s.app.Get("/", s.handleIndex)

	s.app.Post("/chat", s.withSession, s.handleChat)
	s.app.Post("/chat/stream", s.withSession, s.handleChatStream)
	s.app.Get("/status", s.handleStatus)
	s.app.Get("/health", s.handleHealth)
	s.app.Get("/health/providers", s.handleProviderHealth)

	s.app.Post("/voice", s.withSession, s.handleVoice)
	s.app.Post("/voice/traditional", s.withSession, s.handleTraditional)
	s.app.Get("/voice/options", s.handleVoiceOptions)
	s.app.Post("/tts", s.handleTTS)

	s.app.Use("/voice/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.app.Get("/voice/ws", s.withSession, websocket.New(s.handleVoiceWS))

	s.app.Use(s.handleNotFound)
}

// App returns the underlying Fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info("listening", "addr", addr, "session_mode", s.sessions.Mode())
	return s.app.Listen(addr)
}

// Serve serves on an existing listener until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info("listening", "addr", ln.Addr().String(), "session_mode", s.sessions.Mode())
	return s.app.Listener(ln)
}

// Shutdown stops accepting requests and waits for active ones until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}
