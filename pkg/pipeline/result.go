package pipeline

import (
	"context"
	"log/slog"
)

// Result is one item of a stage's output: a value or the error that replaced it.
type Result[T any] struct {
	Value T
	Err   error
}

// Ok wraps a value.
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Fail wraps an error.
func Fail[T any](err error) Result[T] {
	return Result[T]{Err: err}
}

// filter forwards values from in to out and logs and drops errors.
// It returns when in is closed or ctx is done.
func filter[T any](ctx context.Context, in <-chan Result[T], out chan<- T, logger *slog.Logger, what string) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case r, ok := <-in:
			if !ok {
				return nil
			}
			if r.Err != nil {
				logger.Warn(what+" failed, continuing", "error", r.Err)
				continue
			}
			if err := send(ctx, out, r.Value); err != nil {
				return err
			}
		}
	}
}

// send delivers v unless ctx ends first.
func send[T any](ctx context.Context, ch chan<- T, v T) error {
	select {
	case ch <- v:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
