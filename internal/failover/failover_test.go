package failover

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

type statusError struct{ code int }

func (e *statusError) Error() string     { return "status" }
func (e *statusError) IsRetryable() bool { return e.code == 429 || e.code >= 500 }

func TestRetry(t *testing.T) {
	tests := []struct {
		name      string
		errs      []error
		retries   int
		wantCalls int
		wantErr   bool
	}{
		{"first try", nil, 2, 1, false},
		{"server error then success", []error{&statusError{503}}, 2, 2, false},
		{"rate limited twice", []error{&statusError{429}, &statusError{429}}, 2, 3, false},
		{"out of retries", []error{&statusError{500}, &statusError{500}, &statusError{500}}, 2, 3, true},
		{"client error is final", []error{&statusError{400}}, 2, 1, true},
		{"plain error is final", []error{errors.New("bad input")}, 2, 1, true},
		{"transport error", []error{&net.OpError{Op: "dial", Err: errors.New("refused")}}, 1, 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			v, err := Retry(context.Background(), Backoff{Retries: tt.retries, Delay: time.Millisecond}, quiet,
				func(ctx context.Context) (string, error) {
					calls++
					if calls <= len(tt.errs) {
						return "", tt.errs[calls-1]
					}
					return "ok", nil
				})

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "ok", v)
		})
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Retry(ctx, Backoff{Retries: 5, Delay: time.Hour}, quiet, func(ctx context.Context) (int, error) {
		calls++
		cancel()
		return 0, &statusError{503}
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestFirst(t *testing.T) {
	down := errors.New("down")
	providers := []string{"a", "b", "c"}

	var tried []string
	v, err := First(context.Background(), quiet, providers, func(p string) (string, error) {
		tried = append(tried, p)
		if p == "a" {
			return "", down
		}
		return "from " + p, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "from b", v)
	assert.Equal(t, []string{"a", "b"}, tried)

	_, err = First(context.Background(), quiet, providers, func(p string) (string, error) {
		return "", &statusError{500}
	})
	var ex *Exhausted
	require.ErrorAs(t, err, &ex)
	assert.Len(t, ex.Errors, 3)
	var se *statusError
	assert.ErrorAs(t, err, &se)
}

func TestFirstCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := First(ctx, quiet, []int{1, 2}, func(int) (int, error) {
		calls++
		return 0, errors.New("down")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestAnyHealthy(t *testing.T) {
	check := func(ctx context.Context, healthy bool) error {
		if healthy {
			return nil
		}
		return errors.New("unhealthy")
	}

	assert.NoError(t, AnyHealthy(context.Background(), []bool{false, true}, check))
	assert.Error(t, AnyHealthy(context.Background(), []bool{false, false}, check))
}

type closer struct{ err error }

func (c closer) Close() error { return c.err }

func TestCloseAll(t *testing.T) {
	assert.NoError(t, CloseAll([]closer{{}, {}}))

	boom := errors.New("boom")
	assert.ErrorIs(t, CloseAll([]closer{{}, {boom}}), boom)
}

func TestExhaustedMessage(t *testing.T) {
	one := &Exhausted{Errors: []error{errors.New("x")}}
	assert.Equal(t, "x", one.Error())

	two := &Exhausted{Errors: []error{errors.New("x"), errors.New("y")}}
	assert.Equal(t, "all 2 providers failed, last: y", two.Error())
}
