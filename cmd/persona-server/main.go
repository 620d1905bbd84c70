// persona-server: voice bot backend speaking as a configurable persona.
// Accepts text chat, audio uploads and streamed audio over WebSocket.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-persona/internal/config"
	"github.com/teslashibe/go-persona/internal/log"
	"github.com/teslashibe/go-persona/pkg/chat"
	"github.com/teslashibe/go-persona/pkg/inference"
	"github.com/teslashibe/go-persona/pkg/persona"
	"github.com/teslashibe/go-persona/pkg/pipeline"
	"github.com/teslashibe/go-persona/pkg/session"
	"github.com/teslashibe/go-persona/pkg/stt"
	"github.com/teslashibe/go-persona/pkg/tts"
	"github.com/teslashibe/go-persona/pkg/web"
)

const (
	version         = "1.0.0"
	pruneInterval   = time.Minute
	shutdownGrace   = 5 * time.Second
	retryDelay      = 500 * time.Millisecond
	providerRetries = 2
)

var (
	port  = flag.Int("port", 0, "HTTP server port (overrides PORT)")
	debug = flag.Bool("debug", false, "Enable debug logging and access log")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *port != 0 && os.Getenv("PORT") == "" {
		cfg.Port = *port
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log.Init(cfg.LogLevel, cfg.IsProduction())
	logger := log.Component("main")

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	p := persona.Default()
	if cfg.PersonaFile != "" {
		var err error
		if p, err = persona.Load(cfg.PersonaFile); err != nil {
			return err
		}
	}

	transcriber, err := newTranscriber(cfg, p)
	if err != nil {
		return err
	}
	defer transcriber.Close()

	completer, err := newCompleter(cfg)
	if err != nil {
		return err
	}
	defer completer.Close()

	speech, err := newSpeech(cfg)
	if err != nil {
		return err
	}
	defer speech.Close()

	mode, err := session.ParseMode(cfg.SessionMode)
	if err != nil {
		return err
	}
	sessions := session.NewStore(mode, log.L())

	svc := chat.New(completer, p,
		chat.WithTimeout(cfg.ProviderTimeout),
		chat.WithLogger(log.L()),
	)

	pcfg := pipeline.DefaultConfig().
		WithVoice(cfg.TTSVoice, cfg.TTSSpeed).
		WithTranscription(cfg.STTLanguage, p.TranscriptionPrompt).
		WithCallTimeout(cfg.ProviderTimeout).
		WithHiddenErrorDetails(cfg.IsProduction()).
		WithLogger(log.L())
	if err := pcfg.Validate(); err != nil {
		return err
	}
	orch := pipeline.NewOrchestrator(pcfg, transcriber, svc, speech)

	wcfg := web.DefaultConfig()
	wcfg.AppName = "persona-server"
	wcfg.Version = version
	wcfg.CORSOrigins = cfg.CORSOrigins
	wcfg.RateLimitWindow = cfg.RateLimitWindow
	wcfg.RateLimitMax = cfg.RateLimitMax
	wcfg.RequestTimeout = cfg.RequestTimeout
	wcfg.Production = cfg.IsProduction()
	wcfg.Debug = *debug

	server := web.NewServer(wcfg, web.Deps{
		Orchestrator: orch,
		Sessions:     sessions,
		Speech:       speech,
		Checks: map[string]web.HealthCheck{
			"stt":  transcriber.Health,
			"chat": completer.Health,
			"tts":  speech.Health,
		},
		Logger: log.L(),
	})

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go sessions.Run(ctx, pruneInterval, cfg.SessionIdleTTL)

	errc := make(chan error, 1)
	go func() {
		logger.Info("starting",
			"version", version,
			"persona", p.Name,
			"addr", cfg.Addr(),
			"chat_model", cfg.ChatModel,
			"voice", cfg.TTSVoice,
			"elevenlabs", cfg.HasElevenLabs(),
		)
		errc <- server.Listen(cfg.Addr())
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errc:
		return err
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown incomplete", "error", err)
	}
	logger.Info("goodbye")
	return nil
}

func newTranscriber(cfg *config.Config, p *persona.Persona) (stt.Provider, error) {
	opts := []stt.Option{
		stt.WithAPIKey(cfg.OpenAIKey),
		stt.WithModel(cfg.STTModel),
		stt.WithLanguage(cfg.STTLanguage),
		stt.WithPrompt(p.TranscriptionPrompt),
		stt.WithTimeout(cfg.ProviderTimeout),
		stt.WithLogger(log.L()),
	}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, stt.WithBaseURL(cfg.OpenAIBaseURL))
	}
	return stt.NewOpenAI(opts...)
}

// newCompleter chains a fallback model behind the primary when one is configured.
func newCompleter(cfg *config.Config) (inference.Provider, error) {
	client := func(model string) (*inference.OpenAI, error) {
		opts := []inference.Option{
			inference.WithAPIKey(cfg.OpenAIKey),
			inference.WithModel(model),
			inference.WithTimeout(cfg.ProviderTimeout),
			inference.WithStreamTimeout(cfg.ProviderTimeout),
			inference.WithRetry(providerRetries, retryDelay),
			inference.WithLogger(log.L()),
		}
		if cfg.OpenAIBaseURL != "" {
			opts = append(opts, inference.WithBaseURL(cfg.OpenAIBaseURL))
		}
		return inference.NewOpenAI(opts...)
	}

	primary, err := client(cfg.ChatModel)
	if err != nil {
		return nil, err
	}
	if cfg.FallbackChatModel == "" {
		return primary, nil
	}
	secondary, err := client(cfg.FallbackChatModel)
	if err != nil {
		return nil, err
	}
	return inference.NewChainWithLogger(log.L(), primary, secondary)
}

// newSpeech chains ElevenLabs behind OpenAI when its credentials are set.
func newSpeech(cfg *config.Config) (tts.Provider, error) {
	opts := []tts.Option{
		tts.WithAPIKey(cfg.OpenAIKey),
		tts.WithModel(cfg.TTSModel),
		tts.WithVoice(cfg.TTSVoice),
		tts.WithSpeed(cfg.TTSSpeed),
		tts.WithTimeout(cfg.ProviderTimeout),
		tts.WithRetry(providerRetries, retryDelay),
		tts.WithLogger(log.L()),
	}
	if cfg.OpenAIBaseURL != "" {
		opts = append(opts, tts.WithBaseURL(cfg.OpenAIBaseURL))
	}
	primary, err := tts.NewOpenAI(opts...)
	if err != nil {
		return nil, err
	}
	if !cfg.HasElevenLabs() {
		return primary, nil
	}

	secondary, err := tts.NewElevenLabs(
		tts.WithAPIKey(cfg.ElevenLabsKey),
		tts.WithVoice(cfg.ElevenLabsVoice),
		tts.WithTimeout(cfg.ProviderTimeout),
		tts.WithLogger(log.L()),
	)
	if err != nil {
		return nil, err
	}
	return tts.NewChainWithLogger(log.L(), primary, secondary)
}
