package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Mode selects how sessions are shared.
type Mode string

const (
	// ModeSingle shares one history between every caller.
	ModeSingle Mode = "single"

	// ModePerSession keys history by the caller's session id.
	ModePerSession Mode = "per-session"
)

// sharedID is the id of the only session in ModeSingle.
const sharedID = "default"

// ParseMode validates a configured mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeSingle, ModePerSession:
		return Mode(s), nil
	case "":
		return ModePerSession, nil
	default:
		return "", fmt.Errorf("session: unknown mode %q", s)
	}
}

// Store hands out sessions.
type Store struct {
	mode   Mode
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore creates a store for the given mode.
func NewStore(mode Mode, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		mode:     mode,
		logger:   logger.With("component", "session.store"),
		sessions: make(map[string]*Session),
	}
}

// Mode returns the store's sharing mode.
func (s *Store) Mode() Mode {
	return s.mode
}

// Get returns the session for id, creating it when needed.
// In ModePerSession an empty id gets a fresh uuid; the caller should echo
// the returned session's ID back to the client. In ModeSingle id is ignored.
func (s *Store) Get(id string) *Session {
	if s.mode == ModeSingle {
		id = sharedID
	} else if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		sess = New(id)
		s.sessions[id] = sess
		s.logger.Debug("session created", "session_id", id)
	} else {
		sess.Touch()
	}
	return sess
}

// Len returns how many sessions are held.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Delete drops a session.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// Prune drops sessions unused for longer than maxIdle and returns how many went.
// The shared session of ModeSingle is never pruned.
func (s *Store) Prune(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, sess := range s.sessions {
		if id == sharedID && s.mode == ModeSingle {
			continue
		}
		if sess.LastUsed().Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		s.logger.Debug("pruned idle sessions", "removed", removed, "remaining", len(s.sessions))
	}
	return removed
}

// Run prunes idle sessions every interval until ctx is cancelled.
func (s *Store) Run(ctx context.Context, interval, maxIdle time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Prune(maxIdle)
		}
	}
}
