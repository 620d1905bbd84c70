// Package queue provides a small generic FIFO.
// It is not safe for concurrent use; callers guard it with their own lock.
package queue

// Queue is a generic FIFO queue.
type Queue[T any] struct {
	items []T
}

// New returns an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Push adds an element to the back of the queue.
func (q *Queue[T]) Push(item T) {
	q.items = append(q.items, item)
}

// Pop removes and returns the front element.
// ok is false when the queue is empty.
func (q *Queue[T]) Pop() (item T, ok bool) {
	if len(q.items) == 0 {
		return item, false
	}
	item = q.items[0]
	var zero T
	q.items[0] = zero
	q.items = q.items[1:]
	if len(q.items) == 0 {
		q.items = nil
	}
	return item, true
}

// Peek returns the front element without removing it.
func (q *Queue[T]) Peek() (item T, ok bool) {
	if len(q.items) == 0 {
		return item, false
	}
	return q.items[0], true
}

// Len returns the number of queued elements.
func (q *Queue[T]) Len() int {
	return len(q.items)
}

// IsEmpty reports whether the queue holds nothing.
func (q *Queue[T]) IsEmpty() bool {
	return len(q.items) == 0
}

// Clear drops every element.
func (q *Queue[T]) Clear() {
	q.items = nil
}
