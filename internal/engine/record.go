package engine

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
)

// State is the lifecycle state of a scope. It only moves forward:
// once FAILED, a scope stays FAILED until it ends.
type State int32

const (
	StateNone State = iota
	StateInitiated
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateNone:
		return "NONE"
	case StateInitiated:
		return "INITIATED"
	case StateFailed:
		return "FAILED"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// FragmentKind is the role of a serialized datum within an invocation.
type FragmentKind string

const (
	FragmentArgumentBefore FragmentKind = "ARGUMENT_BEFORE"
	FragmentArgumentAfter  FragmentKind = "ARGUMENT_AFTER"
	FragmentReturn         FragmentKind = "RETURN"
	FragmentException      FragmentKind = "EXCEPTION"
)

// Fragment is one serialized argument, return value or error.
type Fragment struct {
	Kind     FragmentKind `json:"kind"`
	TypeName string       `json:"type"`
	Bytes    []byte       `json:"bytes"`
	Position int          `json:"position"`
}

// Fragments groups an invocation's fragments by kind.
type Fragments map[FragmentKind][]Fragment

// At returns the fragment of kind at position.
func (f Fragments) At(kind FragmentKind, position int) (Fragment, bool) {
	for _, frag := range f[kind] {
		if frag.Position == position {
			return frag, true
		}
	}
	return Fragment{}, false
}

// Entry is one recorded invocation of an operation.
type Entry struct {
	Seq       int64     `json:"seq"`
	Fragments Fragments `json:"fragments"`
}

var (
	errNoArguments = errors.New("entry has no ARGUMENT_BEFORE fragments")
	errNoOutcome   = errors.New("entry has neither RETURN nor EXCEPTION")
)

// Validate checks the structural invariants every recorded entry must hold.
func (e *Entry) Validate() error {
	if len(e.Fragments[FragmentArgumentBefore]) == 0 {
		return errNoArguments
	}
	if len(e.Fragments[FragmentReturn]) == 0 && len(e.Fragments[FragmentException]) == 0 {
		return errNoOutcome
	}
	return nil
}

// Timeline holds the recorded invocations of one operation within a scope,
// keyed by sequence number. Appends and consumes are lock-free.
type Timeline struct {
	entries sync.Map // int64 -> *Entry
	clock   *Clock
}

func newTimeline() *Timeline {
	return &Timeline{clock: NewClock()}
}

// insert stores e under a fresh sequence number. It reports false when the
// key was already taken.
func (t *Timeline) insert(fragments Fragments) (int64, bool) {
	seq := t.clock.Next()
	_, loaded := t.entries.LoadOrStore(seq, &Entry{Seq: seq, Fragments: fragments})
	return seq, !loaded
}

// Entries returns the remaining entries in ascending sequence order.
func (t *Timeline) Entries() []*Entry {
	var out []*Entry
	t.entries.Range(func(_, v any) bool {
		out = append(out, v.(*Entry))
		return true
	})
	slices.SortFunc(out, func(a, b *Entry) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
	return out
}

// Consume removes e if it is still present. Exactly one of any number of
// concurrent callers wins.
func (t *Timeline) Consume(e *Entry) bool {
	return t.entries.CompareAndDelete(e.Seq, e)
}

// Len returns the number of entries not yet consumed.
func (t *Timeline) Len() int {
	n := 0
	t.entries.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Record is the state of one scope: the request and response snapshots,
// the scope's mode and tag, and one Timeline per operation.
//
// Thread-safety: all methods are safe for concurrent use. Scalar fields are
// guarded by mu, the state is atomic and timelines live in a sync.Map.
type Record struct {
	mu       sync.Mutex
	request  []byte
	response []byte
	mode     Mode
	tag      string

	state     atomic.Int32
	timelines sync.Map // string -> *Timeline
}

// NewRecord creates an empty record in state NONE.
func NewRecord() *Record {
	return &Record{mode: ModeNone}
}

func (r *Record) Request() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.request
}

func (r *Record) Response() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.response
}

func (r *Record) Mode() Mode {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.mode
}

func (r *Record) Tag() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.tag
}

func (r *Record) setRequest(b []byte) {
	r.mu.Lock()
	r.request = b
	r.mu.Unlock()
}

func (r *Record) setResponse(b []byte) {
	r.mu.Lock()
	r.response = b
	r.mu.Unlock()
}

func (r *Record) setMode(m Mode) {
	r.mu.Lock()
	r.mode = m
	r.mu.Unlock()
}

func (r *Record) setTag(tag string) {
	r.mu.Lock()
	r.tag = tag
	r.mu.Unlock()
}

// State returns the current state.
func (r *Record) State() State {
	return State(r.state.Load())
}

// setState moves the record to s unless it has already failed.
func (r *Record) setState(s State) {
	for {
		cur := r.state.Load()
		if State(cur) == StateFailed {
			return
		}
		if r.state.CompareAndSwap(cur, int32(s)) {
			return
		}
	}
}

// Timeline returns the timeline of op, or nil if op was never recorded.
func (r *Record) Timeline(op string) *Timeline {
	v, ok := r.timelines.Load(op)
	if !ok {
		return nil
	}
	return v.(*Timeline)
}

func (r *Record) timelineFor(op string) *Timeline {
	if tl := r.Timeline(op); tl != nil {
		return tl
	}
	v, _ := r.timelines.LoadOrStore(op, newTimeline())
	return v.(*Timeline)
}

// Operations returns the recorded operation names in sorted order.
func (r *Record) Operations() []string {
	var ops []string
	r.timelines.Range(func(k, _ any) bool {
		ops = append(ops, k.(string))
		return true
	})
	slices.Sort(ops)
	return ops
}

// RecordSnapshot is the serializable form of a Record, written to the sink
// when a capture scope ends.
type RecordSnapshot struct {
	Request   []byte             `json:"request,omitempty"`
	Response  []byte             `json:"response,omitempty"`
	Mode      Mode               `json:"mode"`
	Tag       string             `json:"tag,omitempty"`
	State     string             `json:"state"`
	Timelines map[string][]Entry `json:"timelines,omitempty"`
}

// Snapshot copies the record's current contents.
func (r *Record) Snapshot() RecordSnapshot {
	r.mu.Lock()
	snap := RecordSnapshot{
		Request:  r.request,
		Response: r.response,
		Mode:     r.mode,
		Tag:      r.tag,
	}
	r.mu.Unlock()
	snap.State = r.State().String()

	for _, op := range r.Operations() {
		entries := r.Timeline(op).Entries()
		if len(entries) == 0 {
			continue
		}
		if snap.Timelines == nil {
			snap.Timelines = make(map[string][]Entry)
		}
		for _, e := range entries {
			snap.Timelines[op] = append(snap.Timelines[op], *e)
		}
	}
	return snap
}

// RestoreRecord rebuilds a Record from a snapshot. Each restored timeline's
// clock resumes after its highest sequence number.
func RestoreRecord(snap RecordSnapshot) *Record {
	r := NewRecord()
	r.request = snap.Request
	r.response = snap.Response
	r.tag = snap.Tag
	if snap.Mode != "" {
		r.mode = snap.Mode
	}

	for op, entries := range snap.Timelines {
		var last int64
		tl := &Timeline{}
		for i := range entries {
			e := entries[i]
			tl.entries.Store(e.Seq, &e)
			last = max(last, e.Seq)
		}
		tl.clock = NewClockAt(last)
		r.timelines.Store(op, tl)
	}
	return r
}
