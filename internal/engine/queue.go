package engine

import (
	"sync"
)

// pending is one record snapshot waiting to reach durable storage.
type pending struct {
	ID      string
	Payload []byte
}

// pendingQueue is a thread-safe bounded FIFO between capture scopes and the
// Dispatcher's drain loop.
//
// Capture must never block on storage, so Enqueue rejects instead of waiting
// when the queue is full.
//
// The queue uses a channel for signaling to enable context-aware waiting
// in the drain loop.
type pendingQueue struct {
	mu       sync.Mutex
	items    []pending
	capacity int
	closed   bool
	signal   chan struct{} // Signals item availability (buffered, size 1)
}

// newPendingQueue creates an empty queue holding at most capacity items.
// A capacity below 1 is treated as 1.
func newPendingQueue(capacity int) *pendingQueue {
	capacity = max(capacity, 1)
	return &pendingQueue{
		items:    make([]pending, 0, min(capacity, 64)),
		capacity: capacity,
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue adds an item to the back of the queue.
// Returns false if the queue is full or closed.
func (q *pendingQueue) Enqueue(p pending) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed || len(q.items) >= q.capacity {
		return false
	}

	q.items = append(q.items, p)

	// Signal availability (non-blocking - buffer of 1 coalesces multiple signals)
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue attempts to dequeue without blocking.
func (q *pendingQueue) TryDequeue() (pending, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return pending{}, false
	}

	p := q.items[0]

	// Release the payload so the backing array does not retain it.
	q.items[0] = pending{}

	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}

	return p, true
}

// Wait returns a channel that signals when items may be available. The
// channel is closed by Close.
func (q *pendingQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *pendingQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close signals that no more items will be enqueued.
// Wakes any blocked waiters by closing the signal channel.
func (q *pendingQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
