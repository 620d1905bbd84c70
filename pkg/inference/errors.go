package inference

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/teslashibe/go-persona/internal/failover"
)

var (
	ErrNoModel             = errors.New("inference: model required")
	ErrNoContent           = errors.New("inference: empty reply")
	ErrProviderUnavailable = errors.New("inference: no provider available")
	ErrStreamClosed        = errors.New("inference: read on closed stream")
)

// APIError is a failure reported by the completion backend.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
	Provider   string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("inference: %s answered %d", e.Provider, e.StatusCode)
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

// CompletionError marks a failed completion call and names who failed.
type CompletionError struct {
	Provider string
	Err      error
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("inference: %s completion: %v", e.Provider, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// Timeout reports whether the call hit its deadline.
func (e *CompletionError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// WrapError tags err with provider. Errors already tagged are returned as is.
func WrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var ce *CompletionError
	if errors.As(err, &ce) {
		return err
	}
	return &CompletionError{Provider: provider, Err: err}
}

// ChainError collects the failures of every provider in a Chain.
type ChainError = failover.Exhausted
