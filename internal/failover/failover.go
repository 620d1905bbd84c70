// Package failover runs provider calls with bounded retries and ordered
// fallback across providers.
package failover

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"time"
)

// Retryable is implemented by errors that may succeed when sent again,
// such as HTTP 429 and 5xx answers.
type Retryable interface {
	IsRetryable() bool
}

// Backoff bounds the retries of one call. Retry n waits Delay*n first.
type Backoff struct {
	Retries int
	Delay   time.Duration
}

// Retry calls fn until it succeeds, fails with an error that is not worth
// repeating, runs out of retries or ctx ends.
// Transport errors and Retryable errors reporting true are repeated.
func Retry[T any](ctx context.Context, b Backoff, logger *slog.Logger, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 1; ; attempt++ {
		v, err := fn(ctx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if attempt > b.Retries || !ShouldRetry(err) {
			return zero, err
		}

		logger.Warn("retrying request", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(b.Delay * time.Duration(attempt)):
		}
	}
}

// ShouldRetry reports whether err is a transport failure or a Retryable
// error that asks to be repeated.
func ShouldRetry(err error) bool {
	var r Retryable
	if errors.As(err, &r) {
		return r.IsRetryable()
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// Exhausted reports that every provider of a chain failed.
type Exhausted struct {
	Errors []error
}

// Error implements the error interface.
func (e *Exhausted) Error() string {
	switch len(e.Errors) {
	case 0:
		return "no providers tried"
	case 1:
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("all %d providers failed, last: %v", len(e.Errors), e.Errors[len(e.Errors)-1])
}

// Unwrap exposes every provider error to errors.Is and errors.As.
func (e *Exhausted) Unwrap() []error {
	return e.Errors
}

// First calls fn on each provider in order and returns the first success.
// Once ctx is done no further provider is tried and ctx.Err() is returned.
func First[P, T any](ctx context.Context, logger *slog.Logger, providers []P, fn func(P) (T, error)) (T, error) {
	var zero T
	errs := make([]error, 0, len(providers))
	for i, p := range providers {
		v, err := fn(p)
		if err == nil {
			if i > 0 {
				logger.Info("fallback provider succeeded", "provider_index", i)
			}
			return v, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		logger.Warn("provider failed", "provider_index", i, "error", err)
	}
	return zero, &Exhausted{Errors: errs}
}

// AnyHealthy returns nil as soon as one provider passes check.
func AnyHealthy[P any](ctx context.Context, providers []P, check func(context.Context, P) error) error {
	errs := make([]error, 0, len(providers))
	for _, p := range providers {
		err := check(ctx, p)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	return &Exhausted{Errors: errs}
}

// CloseAll closes every provider and joins the failures.
func CloseAll[P io.Closer](providers []P) error {
	var errs []error
	for _, p := range providers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
