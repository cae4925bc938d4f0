package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestState_String(t *testing.T) {
	assert.Equal(t, "NONE", StateNone.String())
	assert.Equal(t, "INITIATED", StateInitiated.String())
	assert.Equal(t, "FAILED", StateFailed.String())
	assert.Equal(t, "State(7)", State(7).String())
}

func TestEntry_Validate(t *testing.T) {
	valid := &Entry{Seq: 1, Fragments: entryWith(`"a"`, `1`)}
	assert.NoError(t, valid.Validate())

	noArgs := &Entry{Seq: 2, Fragments: Fragments{
		FragmentReturn: {{Kind: FragmentReturn, Bytes: []byte("1")}},
	}}
	assert.ErrorIs(t, noArgs.Validate(), errNoArguments)

	noOutcome := &Entry{Seq: 3, Fragments: Fragments{
		FragmentArgumentBefore: {{Kind: FragmentArgumentBefore, Bytes: []byte(`"a"`)}},
	}}
	assert.ErrorIs(t, noOutcome.Validate(), errNoOutcome)

	withException := &Entry{Seq: 4, Fragments: Fragments{
		FragmentArgumentBefore: {{Kind: FragmentArgumentBefore, Bytes: []byte(`"a"`)}},
		FragmentException:      {{Kind: FragmentException, Bytes: []byte(`{"type":"x","message":"y"}`)}},
	}}
	assert.NoError(t, withException.Validate())
}

func TestTimeline_EntriesSorted(t *testing.T) {
	tl := newTimeline()
	for i := 0; i < 20; i++ {
		_, ok := tl.insert(entryWith(`"x"`, `1`))
		require.True(t, ok)
	}

	entries := tl.Entries()
	require.Len(t, entries, 20)
	for i, e := range entries {
		assert.Equal(t, int64(i+1), e.Seq)
	}
}

func TestTimeline_ConsumeOnce(t *testing.T) {
	tl := newTimeline()
	tl.insert(entryWith(`"x"`, `1`))
	e := tl.Entries()[0]

	assert.True(t, tl.Consume(e))
	assert.False(t, tl.Consume(e), "an entry is consumed at most once")
	assert.Equal(t, 0, tl.Len())
}

func TestRecord_SnapshotRestore(t *testing.T) {
	rec := NewRecord()
	rec.setRequest([]byte(`{"sku":"A"}`))
	rec.setResponse([]byte(`{"total":3}`))
	rec.setMode(ModeProfile)
	rec.setTag("checkout")
	rec.state.Store(int32(StateInitiated))
	rec.timelineFor("pricing.Quote").insert(entryWith(`"A"`, `3`))
	rec.timelineFor("pricing.Quote").insert(entryWith(`"B"`, `4`))
	rec.timelineFor("empty.Op")

	snap := rec.Snapshot()
	assert.Equal(t, "INITIATED", snap.State)
	assert.Len(t, snap.Timelines["pricing.Quote"], 2)
	assert.NotContains(t, snap.Timelines, "empty.Op", "empty timelines are not persisted")

	data, err := json.Marshal(snap)
	require.NoError(t, err)
	var decoded RecordSnapshot
	require.NoError(t, json.Unmarshal(data, &decoded))

	restored := RestoreRecord(decoded)
	assert.Equal(t, rec.Request(), restored.Request())
	assert.Equal(t, rec.Response(), restored.Response())
	assert.Equal(t, ModeProfile, restored.Mode())
	assert.Equal(t, "checkout", restored.Tag())
	assert.Equal(t, StateNone, restored.State(), "Begin decides the restored state")

	tl := restored.Timeline("pricing.Quote")
	require.NotNil(t, tl)
	assert.Equal(t, 2, tl.Len())

	// The restored clock resumes after the highest recorded seq.
	seq, ok := tl.insert(entryWith(`"C"`, `5`))
	assert.True(t, ok)
	assert.Equal(t, int64(3), seq)
}

func TestFragments_At(t *testing.T) {
	f := Fragments{
		FragmentArgumentBefore: {
			{Kind: FragmentArgumentBefore, Bytes: []byte("1"), Position: 1},
			{Kind: FragmentArgumentBefore, Bytes: []byte("0"), Position: 0},
		},
	}

	got, ok := f.At(FragmentArgumentBefore, 0)
	require.True(t, ok)
	assert.Equal(t, []byte("0"), got.Bytes)

	_, ok = f.At(FragmentArgumentBefore, 2)
	assert.False(t, ok)
}
