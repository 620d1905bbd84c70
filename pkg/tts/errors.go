package tts

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/teslashibe/go-persona/internal/failover"
)

var (
	ErrNoAPIKey            = errors.New("tts: API key required")
	ErrNoVoiceID           = errors.New("tts: voice required")
	ErrEmptyText           = errors.New("tts: nothing to speak")
	ErrEmptyAudio          = errors.New("tts: provider returned no audio")
	ErrProviderUnavailable = errors.New("tts: no provider available")
)

// APIError is a failure reported by a speech backend.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
	Provider   string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("tts: %s answered %d", e.Provider, e.StatusCode)
	if e.Code != "" {
		msg += " " + e.Code
	}
	return msg + ": " + e.Message
}

func (e *APIError) IsRateLimited() bool  { return e.StatusCode == http.StatusTooManyRequests }
func (e *APIError) IsUnauthorized() bool { return e.StatusCode == http.StatusUnauthorized }
func (e *APIError) IsServerError() bool  { return e.StatusCode >= http.StatusInternalServerError }

// IsRetryable reports whether sending the same request again may succeed.
func (e *APIError) IsRetryable() bool {
	return e.IsRateLimited() || e.IsServerError()
}

// SynthesisError marks a failed synthesis and names who failed.
type SynthesisError struct {
	Provider string
	Err      error
}

func (e *SynthesisError) Error() string {
	return fmt.Sprintf("tts: %s synthesis: %v", e.Provider, e.Err)
}

func (e *SynthesisError) Unwrap() error { return e.Err }

// Timeout reports whether the call hit its deadline.
func (e *SynthesisError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// WrapError tags err with provider. Errors already tagged are returned as is.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var se *SynthesisError
	if errors.As(err, &se) {
		return err
	}
	return &SynthesisError{Provider: provider, Err: err}
}

// ChainError collects the failures of every provider in a Chain.
type ChainError = failover.Exhausted
