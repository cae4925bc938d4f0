// Package engine implements capture and replay of instrumented operations.
//
// ARCHITECTURE:
//
// Scopes:
// A scope is one request-response lifecycle identified by a correlation id.
// ExecutionContext.Begin registers the scope's Record and binds the id to a
// context.Context; every goroutine serving the request carries that context.
// Pooled goroutines receive the binding explicitly through PropagateTo (see
// WorkerPool). ExecutionContext.End removes the scope.
//
// Capture:
// In PROFILE and TRANSFORM scopes, Intercept routes calls to the Recorder,
// which snapshots arguments before and after the call plus the return value
// or error, and appends them as one Entry to the operation's Timeline.
// Capture is best-effort: failures mark the scope FAILED and never reach the
// caller. When the scope ends, Session encodes a RecordSnapshot and hands it
// to the Dispatcher, which persists it off the request path.
//
// Replay:
// In TEST and SERIALIZE scopes, Intercept routes calls to the Replayer. Each
// live call consumes the lowest-sequence recorded Entry whose argument
// snapshots match the live arguments structurally; consumption is an atomic
// compare-and-delete, so concurrent calls of the same operation pair with
// distinct entries regardless of call order. At the end of a TEST scope the
// recorded and live responses are compared and exactly one outcome label is
// written to the sink.
//
// CRITICAL PATTERNS:
//
// Monotonic state:
// A scope's State only moves forward; FAILED is terminal.
//
// Sequence keys:
// Timeline keys come from a per-operation Clock, never from wall-clock time.
package engine
