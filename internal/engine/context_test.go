package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutionContext_BeginBindsAndInitiates(t *testing.T) {
	ec := NewExecutionContext(quietLogger())

	ctx, err := ec.Begin(context.Background(), "req-1", nil)
	require.NoError(t, err)

	id, ok := CorrelationID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "req-1", id)
	assert.Equal(t, StateInitiated, ec.State(ctx))
	assert.True(t, ec.Active("req-1"))
}

func TestExecutionContext_DuplicateBegin(t *testing.T) {
	ec := NewExecutionContext(quietLogger())

	_, err := ec.Begin(context.Background(), "req-1", nil)
	require.NoError(t, err)

	_, err = ec.Begin(context.Background(), "req-1", nil)
	require.Error(t, err)
	assert.True(t, IsDuplicateCorrelationError(err))
}

func TestExecutionContext_BeginAfterEnd(t *testing.T) {
	ec := NewExecutionContext(quietLogger())

	ctx, err := ec.Begin(context.Background(), "req-1", nil)
	require.NoError(t, err)
	ec.End(ctx)

	_, err = ec.Begin(context.Background(), "req-1", nil)
	assert.NoError(t, err, "id is reusable once its scope ended")
}

func TestExecutionContext_ConcurrentBeginOneWinner(t *testing.T) {
	ec := NewExecutionContext(quietLogger())
	const callers = 32

	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := ec.Begin(context.Background(), "req-1", nil)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
		} else {
			assert.True(t, IsDuplicateCorrelationError(err))
		}
	}
	assert.Equal(t, 1, wins)
}

func TestExecutionContext_EndClearsBinding(t *testing.T) {
	ec := NewExecutionContext(quietLogger())

	ctx, err := ec.Begin(context.Background(), "req-1", nil)
	require.NoError(t, err)

	after := ec.End(ctx)
	_, ok := CorrelationID(after)
	assert.False(t, ok)
	assert.False(t, ec.Active("req-1"))
	assert.Nil(t, ec.Record(ctx), "original ctx no longer resolves a record")
}

func TestExecutionContext_UnboundIsNoop(t *testing.T) {
	ec := NewExecutionContext(quietLogger())
	ctx := context.Background()

	assert.NotPanics(t, func() {
		ec.End(ctx)
		ec.SetState(ctx, StateFailed)
		ec.SetRequest(ctx, []byte("x"))
		ec.SetResponse(ctx, []byte("x"))
		ec.SetTag(ctx, "t")
		ec.SetMode(ctx, ModeTest)
		ec.SetRecord(ctx, NewRecord())
		ec.AddInvocation(ctx, "op", entryWith(`"a"`, `"b"`))
	})
	assert.Nil(t, ec.Record(ctx))
	assert.Equal(t, StateNone, ec.State(ctx))
	assert.Equal(t, ModeNone, ec.Mode(ctx))
}

func TestExecutionContext_Accessors(t *testing.T) {
	ec := NewExecutionContext(quietLogger())
	ctx, err := ec.Begin(context.Background(), "req-1", nil)
	require.NoError(t, err)

	ec.SetRequest(ctx, []byte(`{"q":1}`))
	ec.SetResponse(ctx, []byte(`{"r":2}`))
	ec.SetTag(ctx, "checkout")
	ec.SetMode(ctx, ModeProfile)

	rec := ec.Record(ctx)
	require.NotNil(t, rec)
	assert.Equal(t, []byte(`{"q":1}`), rec.Request())
	assert.Equal(t, []byte(`{"r":2}`), rec.Response())
	assert.Equal(t, "checkout", rec.Tag())
	assert.Equal(t, ModeProfile, ec.Mode(ctx))

	replacement := NewRecord()
	replacement.setTag("replaced")
	ec.SetRecord(ctx, replacement)
	assert.Equal(t, "replaced", ec.Record(ctx).Tag())
}

// Replacing the record while the scope ends must not bring the scope back.
func TestExecutionContext_SetRecordDoesNotReviveEndedScope(t *testing.T) {
	ec := NewExecutionContext(quietLogger())

	for i := range 200 {
		id := fmt.Sprintf("req-%d", i)
		ctx, err := ec.Begin(context.Background(), id, nil)
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			ec.End(ctx)
		}()
		go func() {
			defer wg.Done()
			ec.SetRecord(ctx, NewRecord())
		}()
		wg.Wait()

		require.False(t, ec.Active(id), "scope %s revived", id)
	}
}

func TestExecutionContext_StateNeverUnfails(t *testing.T) {
	ec := NewExecutionContext(quietLogger())
	ctx, err := ec.Begin(context.Background(), "req-1", nil)
	require.NoError(t, err)

	ec.SetState(ctx, StateFailed)
	ec.SetState(ctx, StateInitiated)
	ec.SetState(ctx, StateNone)

	assert.Equal(t, StateFailed, ec.State(ctx))
}

func TestExecutionContext_AddInvocationSequences(t *testing.T) {
	ec := NewExecutionContext(quietLogger())
	ctx, err := ec.Begin(context.Background(), "req-1", nil)
	require.NoError(t, err)

	ec.AddInvocation(ctx, "pricing.Quote", entryWith(`"a"`, `1`))
	ec.AddInvocation(ctx, "pricing.Quote", entryWith(`"b"`, `2`))
	ec.AddInvocation(ctx, "stock.Check", entryWith(`"a"`, `true`))

	rec := ec.Record(ctx)
	entries := rec.Timeline("pricing.Quote").Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1), entries[0].Seq)
	assert.Equal(t, int64(2), entries[1].Seq)
	assert.Equal(t, []string{"pricing.Quote", "stock.Check"}, rec.Operations())
}

func TestExecutionContext_AddInvocationConcurrent(t *testing.T) {
	ec := NewExecutionContext(quietLogger())
	ctx, err := ec.Begin(context.Background(), "req-1", nil)
	require.NoError(t, err)

	const workers = 50
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ec.AddInvocation(ctx, "op", entryWith(`"x"`, `null`))
		}()
	}
	wg.Wait()

	assert.Equal(t, workers, ec.Record(ctx).Timeline("op").Len())
	assert.Equal(t, StateInitiated, ec.State(ctx))
}

func TestExecutionContext_AddInvocationRetryExhaustion(t *testing.T) {
	ec := NewExecutionContext(quietLogger())
	ctx, err := ec.Begin(context.Background(), "req-1", nil)
	require.NoError(t, err)

	// Occupy every key the timeline's clock will hand out next.
	tl := ec.Record(ctx).timelineFor("op")
	for seq := int64(1); seq <= maxInsertAttempts; seq++ {
		tl.entries.Store(seq, &Entry{Seq: seq, Fragments: entryWith(`"old"`, `0`)})
	}

	ec.AddInvocation(ctx, "op", entryWith(`"new"`, `1`))

	assert.Equal(t, StateFailed, ec.State(ctx))
	assert.Equal(t, maxInsertAttempts, tl.Len(), "the new entry is dropped")
}

func TestExecutionContext_AddInvocationRetrySucceeds(t *testing.T) {
	ec := NewExecutionContext(quietLogger())
	ctx, err := ec.Begin(context.Background(), "req-1", nil)
	require.NoError(t, err)

	tl := ec.Record(ctx).timelineFor("op")
	tl.entries.Store(int64(1), &Entry{Seq: 1, Fragments: entryWith(`"old"`, `0`)})

	ec.AddInvocation(ctx, "op", entryWith(`"new"`, `1`))

	assert.Equal(t, StateInitiated, ec.State(ctx))
	entries := tl.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, int64(2), entries[1].Seq)
}

func TestExecutionContext_PropagateAndClear(t *testing.T) {
	ec := NewExecutionContext(quietLogger())
	ctx, err := ec.Begin(context.Background(), "req-1", nil)
	require.NoError(t, err)

	worker := ec.PropagateTo(ctx, context.Background())
	assert.Same(t, ec.Record(ctx), ec.Record(worker))

	cleared := ec.Clear(worker)
	_, ok := CorrelationID(cleared)
	assert.False(t, ok)

	// Propagating from an unbound context clears a stale binding.
	stale := ec.PropagateTo(context.Background(), worker)
	_, ok = CorrelationID(stale)
	assert.False(t, ok)
}
