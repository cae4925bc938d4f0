package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rewind/internal/testutil"
)

func newTestDispatcher(sink Sink, durable DurableQueue, opts ...DispatcherOption) *Dispatcher {
	return NewDispatcher(sink, durable, append([]DispatcherOption{WithDispatcherLogger(quietLogger())}, opts...)...)
}

func TestDispatcher_DeliversQueuedSnapshots(t *testing.T) {
	sink := testutil.NewMemorySink()
	durable := testutil.NewMemoryQueue()
	d := newTestDispatcher(sink, durable)

	require.True(t, d.Enqueue("req-1", []byte(`{"a":1}`)))
	require.True(t, d.Enqueue("req-2", []byte(`{"a":2}`)))
	d.Stop()

	require.NoError(t, d.Run(context.Background()))

	got, ok := sink.Recording("req-1")
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(got))
	_, ok = sink.Recording("req-2")
	assert.True(t, ok)

	empty, err := durable.IsEmpty(context.Background())
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	d := newTestDispatcher(testutil.NewMemorySink(), testutil.NewMemoryQueue(), WithQueueCapacity(1))

	assert.True(t, d.Enqueue("req-1", nil))
	assert.False(t, d.Enqueue("req-2", nil))
	assert.False(t, d.Enqueue("req-3", nil))
	assert.Equal(t, int64(2), d.Dropped())
}

func TestDispatcher_EnqueueAfterStopDrops(t *testing.T) {
	d := newTestDispatcher(testutil.NewMemorySink(), testutil.NewMemoryQueue())
	d.Stop()

	assert.False(t, d.Enqueue("req-1", nil))
	assert.Equal(t, int64(1), d.Dropped())
}

func TestDispatcher_CancelledContext(t *testing.T) {
	sink := testutil.NewMemorySink()
	d := newTestDispatcher(sink, testutil.NewMemoryQueue())
	require.True(t, d.Enqueue("req-1", []byte(`{}`)))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := d.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, sink.Writes())
}

func TestDispatcher_SinkFailureKeepsSnapshotDurable(t *testing.T) {
	sink := testutil.NewMemorySink()
	sink.SetFailWrites(errors.New("disk full"))
	durable := testutil.NewMemoryQueue()

	d := newTestDispatcher(sink, durable)
	require.True(t, d.Enqueue("req-1", []byte(`{"a":1}`)))
	d.Stop()
	require.NoError(t, d.Run(context.Background()))

	empty, err := durable.IsEmpty(context.Background())
	require.NoError(t, err)
	assert.False(t, empty, "rejected snapshot waits in the durable queue")

	// A later dispatcher delivers the leftover on startup.
	sink.SetFailWrites(nil)
	next := newTestDispatcher(sink, durable)
	next.Stop()
	require.NoError(t, next.Run(context.Background()))

	got, ok := sink.Recording("req-1")
	require.True(t, ok)
	assert.Equal(t, `{"a":1}`, string(got))
}

type failingQueue struct {
	testutil.MemoryQueue
}

func (*failingQueue) Enqueue(context.Context, string, []byte) error {
	return errors.New("queue unavailable")
}

func TestDispatcher_DurableFailureWritesDirectly(t *testing.T) {
	sink := testutil.NewMemorySink()
	d := newTestDispatcher(sink, &failingQueue{})

	require.True(t, d.Enqueue("req-1", []byte(`{}`)))
	d.Stop()
	require.NoError(t, d.Run(context.Background()))

	_, ok := sink.Recording("req-1")
	assert.True(t, ok)
}

func TestDispatcher_Compacts(t *testing.T) {
	durable := testutil.NewMemoryQueue()
	d := newTestDispatcher(testutil.NewMemorySink(), durable, WithCompactInterval(time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	assert.Eventually(t, func() bool { return durable.Compactions() > 0 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestDispatcher_ConcurrentProducers(t *testing.T) {
	sink := testutil.NewMemorySink()
	d := newTestDispatcher(sink, testutil.NewMemoryQueue())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	const producers = 20
	for i := 0; i < producers; i++ {
		go d.Enqueue(string(rune('a'+i)), []byte(`{}`))
	}

	assert.Eventually(t, func() bool { return sink.Writes() == producers }, time.Second, 5*time.Millisecond)
	d.Stop()
	require.NoError(t, <-done)
}
