package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-persona/pkg/inference"
)

func TestSessionCapKeepsMostRecent(t *testing.T) {
	s := New("a")
	for i := 0; i < 25; i++ {
		s.Append(inference.NewUserMessage(fmt.Sprintf("m%d", i)))
	}

	msgs := s.Messages()
	require.Len(t, msgs, MaxMessages)
	assert.Equal(t, "m5", msgs[0].Content)
	assert.Equal(t, "m24", msgs[len(msgs)-1].Content)
}

func TestSessionAppendPairTrims(t *testing.T) {
	s := New("a")
	for i := 0; i < 10; i++ {
		s.Append(inference.NewUserMessage("q"), inference.NewAssistantMessage("a"))
	}
	s.Append(inference.NewUserMessage("last q"), inference.NewAssistantMessage("last a"))

	msgs := s.Messages()
	require.Len(t, msgs, MaxMessages)
	assert.Equal(t, inference.RoleAssistant, msgs[len(msgs)-1].Role)
	assert.Equal(t, "last q", msgs[len(msgs)-2].Content)
}

func TestSessionMessagesIsCopy(t *testing.T) {
	s := New("a")
	s.Append(inference.NewUserMessage("hello"))
	msgs := s.Messages()
	msgs[0].Content = "changed"
	assert.Equal(t, "hello", s.Messages()[0].Content)
}

func TestSessionRemoveKeepsOtherTurns(t *testing.T) {
	s := New("a")
	s.Append(inference.NewUserMessage("one"))
	mine := s.Append(inference.NewUserMessage("two"))

	// Another caller completes a whole exchange in between.
	s.Append(inference.NewUserMessage("other q"), inference.NewAssistantMessage("other a"))
	mine = mine.Join(s.Append(inference.NewAssistantMessage("reply")))
	require.Equal(t, 5, s.Len())

	assert.Equal(t, 2, s.Remove(mine))
	var got []string
	for _, m := range s.Messages() {
		got = append(got, m.Content)
	}
	assert.Equal(t, []string{"one", "other q", "other a"}, got)

	assert.Zero(t, s.Remove(mine), "already withdrawn")
	assert.Zero(t, s.Remove(Turn{}))

	s.Clear()
	assert.Zero(t, s.Len())
}

func TestSessionRemoveAfterTrim(t *testing.T) {
	s := New("a")
	old := s.Append(inference.NewUserMessage("old"))
	for i := 0; i < MaxMessages; i++ {
		s.Append(inference.NewUserMessage(fmt.Sprintf("m%d", i)))
	}
	assert.Zero(t, s.Remove(old))
	assert.Equal(t, MaxMessages, s.Len())
}

func TestSessionConcurrentAppend(t *testing.T) {
	s := New("a")
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Append(inference.NewUserMessage("x"))
			_ = s.Messages()
		}()
	}
	wg.Wait()
	assert.Equal(t, MaxMessages, s.Len())
}

func TestStoreModes(t *testing.T) {
	t.Run("single shares one session", func(t *testing.T) {
		store := NewStore(ModeSingle, nil)
		a := store.Get("client-a")
		b := store.Get("client-b")
		assert.Same(t, a, b)
		assert.Equal(t, 1, store.Len())
	})

	t.Run("per-session isolates callers", func(t *testing.T) {
		store := NewStore(ModePerSession, nil)
		a := store.Get("client-a")
		b := store.Get("client-b")
		assert.NotSame(t, a, b)
		assert.Same(t, a, store.Get("client-a"))

		a.Append(inference.NewUserMessage("secret"))
		assert.Zero(t, b.Len())
	})

	t.Run("empty id gets a fresh id", func(t *testing.T) {
		store := NewStore(ModePerSession, nil)
		a := store.Get("")
		b := store.Get("")
		assert.NotEmpty(t, a.ID)
		assert.NotEqual(t, a.ID, b.ID)
	})
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("single")
	require.NoError(t, err)
	assert.Equal(t, ModeSingle, m)

	m, err = ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModePerSession, m)

	_, err = ParseMode("global")
	assert.Error(t, err)
}

func TestStorePrune(t *testing.T) {
	store := NewStore(ModePerSession, nil)
	store.Get("old")
	time.Sleep(20 * time.Millisecond)
	store.Get("fresh")

	removed := store.Prune(10 * time.Millisecond)
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, store.Len())

	single := NewStore(ModeSingle, nil)
	single.Get("")
	time.Sleep(5 * time.Millisecond)
	assert.Zero(t, single.Prune(time.Millisecond))
}

func TestStoreRunStopsOnCancel(t *testing.T) {
	store := NewStore(ModePerSession, nil)
	store.Get("idle")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		store.Run(ctx, 5*time.Millisecond, time.Nanosecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return store.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
