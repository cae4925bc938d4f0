package testutil

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySink_WriteRead(t *testing.T) {
	s := NewMemorySink()
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, "req-1", []byte("a")))
	got, err := s.Read(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), got)
	assert.Equal(t, 1, s.Writes())

	_, err = s.Read(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemorySink_Failures(t *testing.T) {
	s := NewMemorySink()
	boom := errors.New("boom")
	s.FailWrites = boom
	s.FailReads = boom

	assert.ErrorIs(t, s.Write(context.Background(), "req-1", nil), boom)
	_, err := s.Read(context.Background(), "req-1")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, s.Writes())
}

func TestMemorySink_Outcomes(t *testing.T) {
	s := NewMemorySink()
	require.NoError(t, s.WriteOutcome(context.Background(), "req-1", "SUCCESS", []byte("{}")))

	assert.Equal(t, []OutcomeRecord{{ID: "req-1", Label: "SUCCESS", Detail: []byte("{}")}}, s.Outcomes())
}

func TestMemoryQueue(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "req-1", []byte("1")))
	require.NoError(t, q.Enqueue(ctx, "req-2", []byte("2")))

	id, payload, ok, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "req-1", id)
	assert.Equal(t, []byte("1"), payload)

	empty, _ := q.IsEmpty(ctx)
	assert.False(t, empty)

	require.NoError(t, q.Compact(ctx))
	assert.Equal(t, 1, q.Len())
	assert.Equal(t, 1, q.Compactions())

	_, _, ok, _ = q.Dequeue(ctx)
	assert.True(t, ok)
	_, _, ok, _ = q.Dequeue(ctx)
	assert.False(t, ok)
}
