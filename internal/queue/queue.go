package queue

import (
	"sync"
)

// Queue is a generic thread-safe FIFO used to batch writes. A limit of zero
// means unbounded; otherwise pushes beyond the limit are dropped.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	limit int
}

// New creates a new empty queue holding at most limit items.
func New[T any](limit int) *Queue[T] {
	return &Queue[T]{
		items: make([]T, 0),
		limit: limit,
	}
}

// Push appends items to the queue and returns how many were dropped
// because the queue was full.
func (q *Queue[T]) Push(items ...T) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.limit <= 0 {
		q.items = append(q.items, items...)
		return 0
	}
	room := q.limit - len(q.items)
	if room <= 0 {
		return len(items)
	}
	if room >= len(items) {
		q.items = append(q.items, items...)
		return 0
	}
	q.items = append(q.items, items[:room]...)
	return len(items) - room
}

// Len returns the number of items in the queue.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Empty returns true if the queue has no items.
func (q *Queue[T]) Empty() bool {
	return q.Len() == 0
}

// Drain returns all items in push order and empties the queue.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := q.items
	q.items = make([]T, 0, cap(q.items))
	return result
}

// Requeue puts items back at the front, for example after a failed write.
// Items that no longer fit are dropped from the back; the count is returned.
func (q *Queue[T]) Requeue(items []T) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	merged := append(append(make([]T, 0, len(items)+len(q.items)), items...), q.items...)
	dropped := 0
	if q.limit > 0 && len(merged) > q.limit {
		dropped = len(merged) - q.limit
		merged = merged[:q.limit]
	}
	q.items = merged
	return dropped
}
