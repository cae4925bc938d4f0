package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// DefaultQueueCapacity is the default bound of the Dispatcher's in-memory queue.
const DefaultQueueCapacity = 1024

// Dispatcher persists record snapshots off the capture path.
//
// Enqueue hands a snapshot to a bounded in-memory queue and returns at once;
// a full queue drops the snapshot and logs it. Run drains the queue into the
// durable queue, then moves durable items into the sink. A ticker compacts
// the durable queue.
//
// Thread-safety model:
//   - Enqueue(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
type Dispatcher struct {
	queue        *pendingQueue
	durable      DurableQueue
	sink         Sink
	compactEvery time.Duration
	logger       *slog.Logger
	dropped      atomic.Int64
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithCompactInterval sets how often the durable queue is compacted.
// Zero disables compaction.
func WithCompactInterval(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		disp.compactEvery = d
	}
}

// WithQueueCapacity bounds the in-memory queue. Default: DefaultQueueCapacity.
func WithQueueCapacity(n int) DispatcherOption {
	return func(disp *Dispatcher) {
		disp.queue = newPendingQueue(n)
	}
}

// WithDispatcherLogger sets the logger. Default: slog.Default().
func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(disp *Dispatcher) {
		disp.logger = l
	}
}

// NewDispatcher creates a Dispatcher writing through durable into sink.
func NewDispatcher(sink Sink, durable DurableQueue, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		queue:   newPendingQueue(DefaultQueueCapacity),
		durable: durable,
		sink:    sink,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Enqueue implements Enqueuer.
func (d *Dispatcher) Enqueue(id string, payload []byte) bool {
	if d.queue.Enqueue(pending{ID: id, Payload: payload}) {
		return true
	}
	n := d.dropped.Add(1)
	d.logger.Warn("snapshot dropped",
		"correlation_id", id,
		"queue_len", d.queue.Len(),
		"dropped_total", n,
	)
	return false
}

// Dropped returns how many snapshots were dropped since construction.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Run drains the queue until ctx is cancelled or Stop is called. Items still
// in memory at shutdown are moved to the durable queue before Run returns.
//
// ERROR HANDLING: storage errors are logged and the loop continues. A
// snapshot the sink rejects stays in the durable queue for the next pass.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("dispatcher starting")

	var tick <-chan time.Time
	if d.compactEvery > 0 {
		t := time.NewTicker(d.compactEvery)
		defer t.Stop()
		tick = t.C
	}

	// Deliver anything left over from a previous process.
	d.drain(ctx)

	for {
		if p, ok := d.queue.TryDequeue(); ok {
			d.persist(ctx, p)
			continue
		}

		select {
		case <-ctx.Done():
			d.logger.Info("dispatcher stopping: context cancelled")
			d.queue.Close()
			d.spill(context.WithoutCancel(ctx))
			return ctx.Err()

		case <-tick:
			d.compact(ctx)

		case _, open := <-d.queue.Wait():
			if !open && d.queue.Len() == 0 {
				d.logger.Info("dispatcher stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue. Run returns once it has drained.
func (d *Dispatcher) Stop() {
	d.queue.Close()
}

// persist writes p to the durable queue, then moves durable items to the sink.
func (d *Dispatcher) persist(ctx context.Context, p pending) {
	if err := d.durable.Enqueue(ctx, p.ID, p.Payload); err != nil {
		d.logger.Warn("durable enqueue failed, writing directly",
			"correlation_id", p.ID,
			"error", err,
		)
		if err := d.sink.Write(ctx, p.ID, p.Payload); err != nil {
			d.logger.Error("snapshot lost",
				"correlation_id", p.ID,
				"error", err,
			)
		}
		return
	}
	d.drain(ctx)
}

// drain moves every durable item into the sink.
func (d *Dispatcher) drain(ctx context.Context) {
	for {
		id, payload, ok, err := d.durable.Dequeue(ctx)
		if err != nil {
			d.logger.Warn("durable dequeue failed", "error", err)
			return
		}
		if !ok {
			return
		}
		if err := d.sink.Write(ctx, id, payload); err != nil {
			d.logger.Warn("sink write failed, requeueing",
				"correlation_id", id,
				"error", err,
			)
			if err := d.durable.Enqueue(ctx, id, payload); err != nil {
				d.logger.Error("snapshot lost",
					"correlation_id", id,
					"error", err,
				)
			}
			return
		}
		d.logger.Debug("snapshot written", "correlation_id", id)
	}
}

// spill moves in-memory items to the durable queue without draining it.
func (d *Dispatcher) spill(ctx context.Context) {
	for {
		p, ok := d.queue.TryDequeue()
		if !ok {
			return
		}
		if err := d.durable.Enqueue(ctx, p.ID, p.Payload); err != nil {
			d.logger.Error("snapshot lost",
				"correlation_id", p.ID,
				"error", err,
			)
		}
	}
}

func (d *Dispatcher) compact(ctx context.Context) {
	if err := d.durable.Compact(ctx); err != nil {
		d.logger.Warn("compaction failed", "error", err)
		return
	}
	d.logger.Debug("durable queue compacted")
}
