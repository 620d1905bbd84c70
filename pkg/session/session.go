// Package session keeps per-conversation chat history.
//
// A Session holds at most MaxMessages turns, dropping the oldest first.
// A Store hands sessions out either as one shared conversation or keyed by
// a client-supplied id.
package session

import (
	"slices"
	"sync"
	"time"

	"github.com/teslashibe/go-persona/pkg/inference"
)

// MaxMessages is how many turns a session keeps.
const MaxMessages = 20

// Session is one conversation's history. It is safe for concurrent use.
type Session struct {
	ID string

	mu       sync.Mutex
	entries  []entry
	seq      uint64
	lastUsed time.Time
}

type entry struct {
	id  uint64
	msg inference.Message
}

// Turn identifies messages added by one Append so they can be withdrawn
// without touching anything appended around them.
type Turn struct {
	ids []uint64
}

// Join returns a Turn covering the messages of both t and other.
func (t Turn) Join(other Turn) Turn {
	ids := make([]uint64, 0, len(t.ids)+len(other.ids))
	ids = append(ids, t.ids...)
	return Turn{ids: append(ids, other.ids...)}
}

// IsZero reports whether t covers no messages.
func (t Turn) IsZero() bool {
	return len(t.ids) == 0
}

// New creates an empty session.
func New(id string) *Session {
	return &Session{ID: id, lastUsed: time.Now()}
}

// Append adds turns in order and trims the oldest past MaxMessages.
func (s *Session) Append(msgs ...inference.Message) Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := Turn{ids: make([]uint64, 0, len(msgs))}
	for _, m := range msgs {
		s.seq++
		s.entries = append(s.entries, entry{id: s.seq, msg: m})
		t.ids = append(t.ids, s.seq)
	}
	if over := len(s.entries) - MaxMessages; over > 0 {
		s.entries = append([]entry(nil), s.entries[over:]...)
	}
	s.lastUsed = time.Now()
	return t
}

// Remove withdraws the messages of t that are still stored and returns how
// many it dropped. Messages appended by other callers stay in place.
func (s *Session) Remove(t Turn) int {
	if t.IsZero() {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	removed := 0
	for _, e := range s.entries {
		if slices.Contains(t.ids, e.id) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	clear(s.entries[len(kept):])
	s.entries = kept
	s.lastUsed = time.Now()
	return removed
}

// Messages returns a copy of the history, oldest first.
func (s *Session) Messages() []inference.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]inference.Message, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.msg
	}
	return out
}

// Len returns the number of stored turns.
func (s *Session) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Clear forgets the conversation.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.lastUsed = time.Now()
}

// Touch marks the session as used now.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

// LastUsed reports when the session was last read or written through
// Append, Remove, Clear or Touch.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}
