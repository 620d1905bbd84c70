package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunk(t *testing.T) {
	data := []byte("0123456789abcdefghij")
	var sizes []int
	var joined []byte
	for c := range Chunk(context.Background(), data, 8) {
		sizes = append(sizes, len(c))
		joined = append(joined, c...)
	}
	assert.Equal(t, []int{8, 8, 4}, sizes)
	assert.Equal(t, data, joined)
}

func TestChunkDefaultSize(t *testing.T) {
	n := 0
	for c := range Chunk(context.Background(), make([]byte, DefaultChunkSize+1), 0) {
		n++
		assert.LessOrEqual(t, len(c), DefaultChunkSize)
	}
	assert.Equal(t, 2, n)
}

func TestChunkCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := Chunk(ctx, make([]byte, 100), 10)
	<-ch
	cancel()
	for range ch {
	}
}

func TestTeeKeepsFullAudio(t *testing.T) {
	ctx := context.Background()
	attempt, stop := context.WithCancelCause(ctx)

	src := make(chan []byte)
	tr := newTee(ctx, attempt, src, 0, stop)

	go func() {
		src <- []byte("ab")
		src <- []byte("cd")
		src <- []byte("ef")
		close(src)
	}()

	// Read one chunk, then abandon the attempt; buffering must continue.
	first := <-tr.chunks
	assert.Equal(t, []byte("ab"), first)
	stop(nil)

	audio, err := tr.Audio(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcdef"), audio)
}

func TestTeeLimit(t *testing.T) {
	ctx := context.Background()
	attempt, stop := context.WithCancelCause(ctx)

	src := make(chan []byte, 2)
	src <- []byte("abcd")
	src <- []byte("efgh")
	close(src)

	tr := newTee(ctx, attempt, src, 6, stop)
	for range tr.chunks {
	}

	_, err := tr.Audio(ctx)
	assert.ErrorIs(t, err, ErrAudioTooLarge)
	assert.ErrorIs(t, context.Cause(attempt), ErrAudioTooLarge)
}

func TestCollect(t *testing.T) {
	src := make(chan []byte, 2)
	src <- []byte("ab")
	src <- []byte("cd")
	close(src)

	got, err := collect(context.Background(), src, 0)
	require.NoError(t, err)
	assert.Equal(t, []byte("abcd"), got)

	empty := make(chan []byte)
	close(empty)
	_, err = collect(context.Background(), empty, 0)
	assert.ErrorIs(t, err, ErrNoAudio)
}
