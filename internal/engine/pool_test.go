package engine

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_PropagatesBinding(t *testing.T) {
	ec := NewExecutionContext(quietLogger())
	ctx, err := ec.Begin(context.Background(), "req-1", nil)
	require.NoError(t, err)

	pool := NewWorkerPool(context.Background(), ec, 2)
	var seen atomic.Int32
	for i := 0; i < 5; i++ {
		pool.Go(ctx, func(task context.Context) error {
			if id, ok := CorrelationID(task); ok && id == "req-1" {
				seen.Add(1)
			}
			return nil
		})
	}
	require.NoError(t, pool.Wait())
	assert.Equal(t, int32(5), seen.Load())
}

func TestWorkerPool_UnboundSubmitter(t *testing.T) {
	ec := NewExecutionContext(quietLogger())
	pool := NewWorkerPool(context.Background(), ec, 0)

	pool.Go(context.Background(), func(task context.Context) error {
		_, ok := CorrelationID(task)
		assert.False(t, ok)
		return nil
	})
	require.NoError(t, pool.Wait())
}

func TestWorkerPool_FirstErrorWins(t *testing.T) {
	ec := NewExecutionContext(quietLogger())
	pool := NewWorkerPool(context.Background(), ec, 1)
	boom := errors.New("boom")

	pool.Go(context.Background(), func(context.Context) error { return boom })
	pool.Go(context.Background(), func(task context.Context) error {
		<-task.Done()
		return task.Err()
	})

	assert.ErrorIs(t, pool.Wait(), boom)
}
