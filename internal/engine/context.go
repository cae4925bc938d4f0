package engine

import (
	"context"
	"log/slog"
	"sync"
)

// maxInsertAttempts bounds AddInvocation's retries when a sequence key is
// already taken. Fresh timelines never collide; a collision means a restored
// timeline and its clock disagree.
const maxInsertAttempts = 3

type correlationKey struct{}

// CorrelationID returns the id bound to ctx.
func CorrelationID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(correlationKey{}).(string)
	return id, ok && id != ""
}

func withCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// ExecutionContext is the process-wide registry of active scopes.
//
// Each scope is keyed by its correlation id and owns one Record. The id is
// bound to a context.Context by Begin; every goroutine working for the scope
// must carry that context (or one derived from it, or one prepared with
// PropagateTo).
//
// Thread-safety: all methods are safe for concurrent use. Registration and
// removal are atomic.
type ExecutionContext struct {
	records sync.Map // string -> *Record
	logger  *slog.Logger
}

// NewExecutionContext creates an empty registry. A nil logger means
// slog.Default().
func NewExecutionContext(logger *slog.Logger) *ExecutionContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExecutionContext{logger: logger}
}

// Begin registers a scope for id, seeded with seed (or an empty record when
// seed is nil), and returns ctx bound to id. The record starts INITIATED.
//
// Returns DuplicateCorrelationError if id already has an active scope.
func (ec *ExecutionContext) Begin(ctx context.Context, id string, seed *Record) (context.Context, error) {
	if seed == nil {
		seed = NewRecord()
	}
	seed.state.Store(int32(StateInitiated))

	if _, loaded := ec.records.LoadOrStore(id, seed); loaded {
		return ctx, NewDuplicateCorrelationError(id)
	}

	ec.logger.Debug("scope begun",
		"correlation_id", id,
		"mode", seed.Mode(),
	)
	return withCorrelationID(ctx, id), nil
}

// End removes the scope bound to ctx and returns a context without a
// binding. It is a no-op when nothing is bound.
func (ec *ExecutionContext) End(ctx context.Context) context.Context {
	id, ok := CorrelationID(ctx)
	if !ok {
		return ctx
	}
	if _, loaded := ec.records.LoadAndDelete(id); loaded {
		ec.logger.Debug("scope ended", "correlation_id", id)
	}
	return withCorrelationID(ctx, "")
}

// Active reports whether id has a registered scope.
func (ec *ExecutionContext) Active(id string) bool {
	_, ok := ec.records.Load(id)
	return ok
}

// Record returns the record of the scope bound to ctx, or nil.
func (ec *ExecutionContext) Record(ctx context.Context) *Record {
	id, ok := CorrelationID(ctx)
	if !ok {
		return nil
	}
	v, ok := ec.records.Load(id)
	if !ok {
		return nil
	}
	return v.(*Record)
}

// lookup is Record with a warning when the scope is missing.
func (ec *ExecutionContext) lookup(ctx context.Context, action string) *Record {
	rec := ec.Record(ctx)
	if rec == nil {
		id, _ := CorrelationID(ctx)
		ec.logger.Warn("no active scope",
			"action", action,
			"correlation_id", id,
		)
	}
	return rec
}

// SetRecord replaces the record of the bound scope. A scope ended
// concurrently stays ended.
func (ec *ExecutionContext) SetRecord(ctx context.Context, rec *Record) {
	id, ok := CorrelationID(ctx)
	if !ok || rec == nil {
		return
	}
	old := ec.lookup(ctx, "set_record")
	if old == nil {
		return
	}
	if !ec.records.CompareAndSwap(id, old, rec) {
		ec.logger.Warn("record not replaced: scope changed concurrently",
			"correlation_id", id,
		)
	}
}

// State returns the state of the bound scope, or StateNone.
func (ec *ExecutionContext) State(ctx context.Context) State {
	rec := ec.Record(ctx)
	if rec == nil {
		return StateNone
	}
	return rec.State()
}

// SetState moves the bound scope to s. FAILED is terminal.
func (ec *ExecutionContext) SetState(ctx context.Context, s State) {
	if rec := ec.lookup(ctx, "set_state"); rec != nil {
		rec.setState(s)
	}
}

// Mode returns the mode of the bound scope, or ModeNone.
func (ec *ExecutionContext) Mode(ctx context.Context) Mode {
	rec := ec.Record(ctx)
	if rec == nil {
		return ModeNone
	}
	return rec.Mode()
}

// SetRequest stores the request snapshot of the bound scope.
func (ec *ExecutionContext) SetRequest(ctx context.Context, b []byte) {
	if rec := ec.lookup(ctx, "set_request"); rec != nil {
		rec.setRequest(b)
	}
}

// SetResponse stores the response snapshot of the bound scope.
func (ec *ExecutionContext) SetResponse(ctx context.Context, b []byte) {
	if rec := ec.lookup(ctx, "set_response"); rec != nil {
		rec.setResponse(b)
	}
}

// SetTag labels the bound scope.
func (ec *ExecutionContext) SetTag(ctx context.Context, tag string) {
	if rec := ec.lookup(ctx, "set_tag"); rec != nil {
		rec.setTag(tag)
	}
}

// SetMode changes the mode of the bound scope.
func (ec *ExecutionContext) SetMode(ctx context.Context, m Mode) {
	if rec := ec.lookup(ctx, "set_mode"); rec != nil {
		rec.setMode(m)
	}
}

// AddInvocation appends one recorded invocation of op to the bound scope.
//
// It never fails the caller. If no key can be claimed within
// maxInsertAttempts the scope is marked FAILED and the entry is dropped.
func (ec *ExecutionContext) AddInvocation(ctx context.Context, op string, fragments Fragments) {
	rec := ec.lookup(ctx, "add_invocation")
	if rec == nil {
		return
	}
	tl := rec.timelineFor(op)

	for attempt := 1; attempt <= maxInsertAttempts; attempt++ {
		seq, ok := tl.insert(fragments)
		if ok {
			return
		}
		ec.logger.Debug("sequence collision",
			"op", op,
			"seq", seq,
			"attempt", attempt,
		)
	}

	id, _ := CorrelationID(ctx)
	rec.setState(StateFailed)
	ec.logger.Warn("invocation dropped",
		"correlation_id", id,
		"op", op,
		"attempts", maxInsertAttempts,
	)
}

// PropagateTo returns task bound to the same scope as from. Worker pools
// call it before running a unit of work submitted from another goroutine.
func (ec *ExecutionContext) PropagateTo(from, task context.Context) context.Context {
	id, ok := CorrelationID(from)
	if !ok {
		return ec.Clear(task)
	}
	return withCorrelationID(task, id)
}

// Clear returns task with no scope bound.
func (ec *ExecutionContext) Clear(task context.Context) context.Context {
	if _, ok := CorrelationID(task); !ok {
		return task
	}
	return withCorrelationID(task, "")
}
