// Package calllog records calls made on test doubles.
package calllog

import (
	"sync"
	"time"
)

// Entry is one recorded call. Args holds whatever the double wants to keep.
type Entry[A any] struct {
	Method string
	Args   A
	Time   time.Time
}

// Log is a goroutine-safe call history. The zero value is ready to use.
type Log[A any] struct {
	mu      sync.Mutex
	entries []Entry[A]
}

// Add records a call to method.
func (l *Log[A]) Add(method string, args A) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry[A]{Method: method, Args: args, Time: time.Now()})
}

// All returns a copy of every entry in call order.
func (l *Log[A]) All() []Entry[A] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry[A](nil), l.entries...)
}

// Of returns the args of every call to method in call order.
func (l *Log[A]) Of(method string) []A {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []A
	for _, e := range l.entries {
		if e.Method == method {
			out = append(out, e.Args)
		}
	}
	return out
}

// Count returns how many times method was called.
func (l *Log[A]) Count(method string) int {
	return len(l.Of(method))
}

// Last returns the most recent entry.
func (l *Log[A]) Last() (Entry[A], bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		return Entry[A]{}, false
	}
	return l.entries[len(l.entries)-1], true
}

// Reset forgets every entry.
func (l *Log[A]) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
