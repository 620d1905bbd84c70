package pipeline

import (
	"context"
)

// DefaultChunkSize is the slice size used when splitting an upload.
const DefaultChunkSize = 8 << 10

// Chunk yields data in slices of size bytes, the last one possibly shorter.
// The channel closes after the last slice or when ctx ends.
// Slices share data's backing array.
func Chunk(ctx context.Context, data []byte, size int) <-chan []byte {
	if size <= 0 {
		size = DefaultChunkSize
	}
	out := make(chan []byte)
	go func() {
		defer close(out)
		for off := 0; off < len(data); off += size {
			end := min(off+size, len(data))
			if send(ctx, out, data[off:end]) != nil {
				return
			}
		}
	}()
	return out
}

// tee forwards a live audio source to the parallel attempt while keeping a full
// copy for the sequential path.
type tee struct {
	chunks chan []byte
	done   chan struct{}
	limit  int

	buf []byte
	err error
}

// newTee starts copying src. Forwarding stops when attempt ends, buffering
// continues until src closes or ctx ends. Exceeding limit calls abort with
// ErrAudioTooLarge.
func newTee(ctx, attempt context.Context, src <-chan []byte, limit int, abort context.CancelCauseFunc) *tee {
	t := &tee{
		chunks: make(chan []byte),
		done:   make(chan struct{}),
		limit:  limit,
	}
	go t.run(ctx, attempt, src, abort)
	return t
}

func (t *tee) run(ctx, attempt context.Context, src <-chan []byte, abort context.CancelCauseFunc) {
	defer close(t.done)
	defer close(t.chunks)

	forwarding := true
	for {
		select {
		case <-ctx.Done():
			t.err = ctx.Err()
			return
		case c, ok := <-src:
			if !ok {
				return
			}
			if t.limit > 0 && len(t.buf)+len(c) > t.limit {
				t.err = ErrAudioTooLarge
				abort(ErrAudioTooLarge)
				return
			}
			t.buf = append(t.buf, c...)
			if !forwarding {
				continue
			}
			select {
			case t.chunks <- c:
			case <-attempt.Done():
				forwarding = false
			case <-ctx.Done():
				t.err = ctx.Err()
				return
			}
		}
	}
}

// Audio waits for the source to end and returns everything it carried.
func (t *tee) Audio(ctx context.Context) ([]byte, error) {
	select {
	case <-t.done:
		return t.buf, t.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
