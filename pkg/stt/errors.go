package stt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNoAPIKey            = errors.New("stt: API key required")
	ErrEmptyAudio          = errors.New("stt: no audio to transcribe")
	ErrUnsupportedFormat   = errors.New("stt: unsupported audio format")
	ErrProviderUnavailable = errors.New("stt: no provider available")
)

// APIError is a failure reported by the transcription backend.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
	Provider   string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("stt: %s answered %d", e.Provider, e.StatusCode)
	if e.Code != "" {
		msg += " " + e.Code
	}
	return msg + ": " + e.Message
}

func (e *APIError) IsRateLimited() bool  { return e.StatusCode == http.StatusTooManyRequests }
func (e *APIError) IsUnauthorized() bool { return e.StatusCode == http.StatusUnauthorized }
func (e *APIError) IsServerError() bool  { return e.StatusCode >= http.StatusInternalServerError }

// IsRetryable reports whether sending the same audio again may succeed.
// Transcription is never retried in-process; the pipeline moves on to the
// next window instead.
func (e *APIError) IsRetryable() bool {
	return e.IsRateLimited() || e.IsServerError()
}

// TranscriptionError marks a failed transcription and names who failed.
type TranscriptionError struct {
	Provider string
	Err      error
}

func (e *TranscriptionError) Error() string {
	return fmt.Sprintf("stt: %s transcription: %v", e.Provider, e.Err)
}

func (e *TranscriptionError) Unwrap() error { return e.Err }

// Timeout reports whether the call hit its deadline.
func (e *TranscriptionError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// WrapError tags err with provider. Errors already tagged are returned as is.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var te *TranscriptionError
	if errors.As(err, &te) {
		return err
	}
	return &TranscriptionError{Provider: provider, Err: err}
}
