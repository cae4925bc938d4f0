package testutil

import (
	"context"
	"sync"
)

type queued struct {
	id       string
	payload  []byte
	consumed bool
}

// MemoryQueue is an in-memory engine.DurableQueue.
//
// Thread-safety: all methods are safe for concurrent use via internal mutex.
type MemoryQueue struct {
	mu       sync.Mutex
	items    []queued
	compacts int
}

// NewMemoryQueue creates an empty queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{}
}

// Enqueue appends a payload.
func (q *MemoryQueue) Enqueue(_ context.Context, id string, payload []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, queued{id: id, payload: payload})
	return nil
}

// Dequeue consumes the oldest pending item.
func (q *MemoryQueue) Dequeue(_ context.Context) (string, []byte, bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i := range q.items {
		if !q.items[i].consumed {
			q.items[i].consumed = true
			return q.items[i].id, q.items[i].payload, true, nil
		}
	}
	return "", nil, false, nil
}

// IsEmpty reports whether every item has been consumed.
func (q *MemoryQueue) IsEmpty(_ context.Context) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, it := range q.items {
		if !it.consumed {
			return false, nil
		}
	}
	return true, nil
}

// Compact drops consumed items.
func (q *MemoryQueue) Compact(_ context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	kept := q.items[:0]
	for _, it := range q.items {
		if !it.consumed {
			kept = append(kept, it)
		}
	}
	q.items = kept
	q.compacts++
	return nil
}

// Compactions returns how many times Compact ran.
func (q *MemoryQueue) Compactions() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.compacts
}

// Len returns the number of items held, consumed or not.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
