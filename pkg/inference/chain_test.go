package inference

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChainFallsBack(t *testing.T) {
	backup := NewMock()
	backup.ChatFunc = func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
		return &ChatResponse{Message: NewAssistantMessage("from backup")}, nil
	}
	chain, err := NewChain(WithError(errors.New("primary down")), backup)
	require.NoError(t, err)

	resp, err := chain.Chat(context.Background(), &ChatRequest{Messages: []Message{NewUserMessage("Hi")}})
	require.NoError(t, err)
	assert.Equal(t, "from backup", resp.Message.Content)
}

func TestChainAllFail(t *testing.T) {
	chain, _ := NewChain(WithError(errors.New("a down")), WithError(errors.New("b down")))

	_, err := chain.Chat(context.Background(), &ChatRequest{})
	var chainErr *ChainError
	require.ErrorAs(t, err, &chainErr)
	assert.Len(t, chainErr.Errors, 2)
	var ce *CompletionError
	assert.ErrorAs(t, err, &ce)
}

func TestChainStreamFallsBack(t *testing.T) {
	backup := NewMock()
	backup.StreamFunc = func(ctx context.Context, req *ChatRequest) (Stream, error) {
		return NewMockStream("second ", "choice"), nil
	}
	chain, _ := NewChain(WithError(errors.New("down")), backup)

	stream, err := chain.Stream(context.Background(), &ChatRequest{})
	require.NoError(t, err)
	text, err := Collect(stream, nil)
	require.NoError(t, err)
	assert.Equal(t, "second choice", text)
}

func TestChainStopsWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	second := NewMock()
	chain, _ := NewChain(WithError(errors.New("down")), second)

	_, err := chain.Chat(ctx, &ChatRequest{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, second.CallCount("Chat"))
}

func TestChainHealth(t *testing.T) {
	chain, _ := NewChain(WithError(errors.New("down")), NewMock())
	assert.NoError(t, chain.Health(context.Background()))

	chain, _ = NewChain(WithError(errors.New("down")))
	assert.Error(t, chain.Health(context.Background()))
}

func TestNewChainEmpty(t *testing.T) {
	_, err := NewChain()
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}
