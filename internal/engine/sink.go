package engine

import "context"

// Sink stores record snapshots and TEST outcomes. Implemented by
// store.Store; tests use testutil.MemorySink.
type Sink interface {
	Write(ctx context.Context, id string, data []byte) error
	Read(ctx context.Context, id string) ([]byte, error)
	WriteOutcome(ctx context.Context, id, label string, detail []byte) error
}

// DurableQueue is an append-only queue that survives restarts. Dequeue
// reports ok=false when the queue is empty. Implemented by store.Queue.
type DurableQueue interface {
	Enqueue(ctx context.Context, id string, payload []byte) error
	Dequeue(ctx context.Context) (id string, payload []byte, ok bool, err error)
	IsEmpty(ctx context.Context) (bool, error)
	Compact(ctx context.Context) error
}

// Enqueuer accepts record snapshots for asynchronous persistence. Enqueue
// must not block; it reports false when the snapshot was dropped.
type Enqueuer interface {
	Enqueue(id string, payload []byte) bool
}
