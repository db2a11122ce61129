package engine

import (
	"errors"
	"sync"
)

// Queue errors
var (
	ErrQueueFull   = errors.New("queue full")
	ErrQueueClosed = errors.New("queue closed")
)

// Queue is a FIFO ring buffer that doubles in place when full. Post never
// blocks, so producers (dialers, readers, timers) never wait on the loop.
// TryPost bounds the queue per call for outbound writes.
type Queue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	ring   []T
	head   int
	tail   int
	count  int
	closed bool

	posted    int64
	taken     int64
	highWater int
	grows     int
}

// QueueStats is a point-in-time view of a Queue.
type QueueStats struct {
	Pending   int
	Capacity  int
	Posted    int64
	Taken     int64
	HighWater int
	Grows     int
}

// NewQueue creates a queue with room for size items before its first grow.
func NewQueue[T any](size int) *Queue[T] {
	if size < 1 {
		size = 1
	}
	q := &Queue[T]{ring: make([]T, size)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Post appends item. It returns false once the queue is closed.
func (q *Queue[T]) Post(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.push(item)
	return true
}

// TryPost appends item unless the queue is closed or already holds limit
// items. It never grows the queue past limit.
func (q *Queue[T]) TryPost(item T, limit int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrQueueClosed
	}
	if q.count >= limit {
		return ErrQueueFull
	}
	q.push(item)
	return nil
}

// push appends item. Must be called with lock held.
func (q *Queue[T]) push(item T) {
	if q.count == len(q.ring) {
		q.grow()
	}

	q.ring[q.tail] = item
	q.tail = (q.tail + 1) % len(q.ring)
	q.count++
	q.posted++
	if q.count > q.highWater {
		q.highWater = q.count
	}

	q.cond.Signal()
}

// Next blocks until an item is available and returns it. After Close it
// keeps returning pending items, then reports false.
func (q *Queue[T]) Next() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.count == 0 {
		var zero T
		return zero, false
	}
	return q.pop(), true
}

// Close rejects further posts and wakes blocked consumers.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

// Stats returns queue statistics.
func (q *Queue[T]) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{
		Pending:   q.count,
		Capacity:  len(q.ring),
		Posted:    q.posted,
		Taken:     q.taken,
		HighWater: q.highWater,
		Grows:     q.grows,
	}
}

// pop removes the head item. Must be called with lock held and count > 0.
func (q *Queue[T]) pop() T {
	item := q.ring[q.head]
	var zero T
	q.ring[q.head] = zero
	q.head = (q.head + 1) % len(q.ring)
	q.count--
	q.taken++
	return item
}

// grow doubles the ring, unwrapping it so head is at index 0.
// Must be called with lock held.
func (q *Queue[T]) grow() {
	next := make([]T, len(q.ring)*2)
	n := copy(next, q.ring[q.head:])
	copy(next[n:], q.ring[:q.head])

	q.ring = next
	q.head = 0
	q.tail = q.count
	q.grows++
}
