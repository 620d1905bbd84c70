package web

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-persona/pkg/pipeline"
)

// Generic client-facing messages per route family.
const (
	msgInternal = "Internal server error"
	msgChat     = "An error occurred while processing your request."
	msgStream   = "An error occurred while processing your streaming request."
	msgVoice    = "An error occurred while processing your voice input."
	msgSpeech   = "An error occurred while synthesizing speech."
)

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "web: invalid " + e.Field + ": " + e.Message
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// requestError attaches the route's generic message to a failure.
type requestError struct {
	message string
	err     error
}

func (e *requestError) Error() string {
	return e.err.Error()
}

func (e *requestError) Unwrap() error {
	return e.err
}

func failure(message string, err error) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return err
	}
	return &requestError{message: message, err: err}
}

// errorHandler renders every error returned by a handler.
func (s *Server) errorHandler(c *fiber.Ctx, err error) error {
	code, body := s.errorBody(err)
	if code >= fiber.StatusInternalServerError {
		s.logger.Error("request failed",
			"method", c.Method(),
			"path", c.Path(),
			"request_id", requestIDOf(c),
			"status", code,
			"error", err,
		)
	}
	return c.Status(code).JSON(body)
}

// errorBody maps err to a status and JSON body. Details are left out in production.
func (s *Server) errorBody(err error) (int, fiber.Map) {
	var (
		ve *ValidationError
		fe *fiber.Error
		re *requestError
	)
	switch {
	case errors.As(err, &ve):
		return fiber.StatusBadRequest, fiber.Map{"error": ve.Message, "field": ve.Field}
	case errors.Is(err, pipeline.ErrNoAudio):
		return fiber.StatusBadRequest, fiber.Map{"error": "No audio file provided"}
	case errors.Is(err, pipeline.ErrAudioTooLarge):
		return fiber.StatusRequestEntityTooLarge, fiber.Map{"error": "Audio exceeds the 25 MB upload limit."}
	case errors.Is(err, pipeline.ErrEmptyTranscript):
		return fiber.StatusUnprocessableEntity, fiber.Map{"error": "No speech was detected in the audio."}
	case errors.As(err, &fe):
		return fe.Code, fiber.Map{"error": fe.Message}
	}

	code := fiber.StatusInternalServerError
	msg := msgInternal
	if errors.As(err, &re) {
		msg = re.message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		code = fiber.StatusGatewayTimeout
	}
	body := fiber.Map{"error": msg}
	if !s.cfg.Production {
		body["details"] = err.Error()
	}
	return code, body
}
