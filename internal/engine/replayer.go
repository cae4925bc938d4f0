package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/rewind/internal/diff"
	"github.com/roach88/rewind/internal/serde"
)

// Replayer serves intercepted calls from the recorded timelines of the bound
// scope. The real implementation is never invoked.
//
// Matching does not depend on call order: each live call takes the
// lowest-sequence entry whose ARGUMENT_BEFORE snapshots equal the live
// arguments and that no other call has consumed yet.
type Replayer struct {
	ec         *ExecutionContext
	codec      serde.Codec
	policy     serde.HashPolicy
	comparator *diff.Comparator
	logger     *slog.Logger
}

// Replay answers one live call of op.
//
// On a match, recorded ARGUMENT_AFTER snapshots are decoded in place into
// the corresponding pointer, map and slice arguments, then either the recorded error is
// returned as a *RecordedError or the recorded return value is decoded into
// result (which may be nil to discard it).
//
// Errors:
//   - MissingRecordingError: op has no timeline in the bound scope
//   - MalformedEntryError: a candidate entry violates its invariants
//   - NoMatchingRecordingError: every remaining entry was rejected
func (r *Replayer) Replay(ctx context.Context, op string, args []any, result any) error {
	id, _ := CorrelationID(ctx)
	rec := r.ec.Record(ctx)
	if rec == nil {
		return NewMissingRecordingError(id, op)
	}
	tl := rec.Timeline(op)
	if tl == nil {
		return NewMissingRecordingError(id, op)
	}

	live, err := r.liveArgs(args)
	if err != nil {
		return fmt.Errorf("replay %s: %w", op, err)
	}

	candidates := tl.Entries()
	for _, e := range candidates {
		if err := e.Validate(); err != nil {
			return NewMalformedEntryError(id, op, e.Seq, err)
		}
		if !r.matches(live, e) {
			continue
		}
		if !tl.Consume(e) {
			// Taken by a concurrent replay of the same operation.
			continue
		}

		r.logger.Debug("invocation replayed",
			"correlation_id", id,
			"op", op,
			"seq", e.Seq,
		)
		return r.apply(e, args, result)
	}

	return NewNoMatchingRecordingError(id, op, len(candidates))
}

func (r *Replayer) liveArgs(args []any) ([][]byte, error) {
	args = normalizeArgs(args)
	out := make([][]byte, len(args))
	for p, arg := range args {
		b, err := r.codec.Serialize(arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", p, err)
		}
		out[p] = r.policy.Apply(b)
	}
	return out, nil
}

// matches compares the live arguments positionally against e.
func (r *Replayer) matches(live [][]byte, e *Entry) bool {
	if len(e.Fragments[FragmentArgumentBefore]) != len(live) {
		return false
	}
	for p, b := range live {
		frag, ok := e.Fragments.At(FragmentArgumentBefore, p)
		if !ok {
			return false
		}
		if serde.IsNullPayload(frag.Bytes) != serde.IsNullPayload(b) {
			return false
		}
		if err := r.comparator.Compare(frag.Bytes, b); err != nil {
			return false
		}
	}
	return true
}

func (r *Replayer) apply(e *Entry, args []any, result any) error {
	for _, frag := range e.Fragments[FragmentArgumentAfter] {
		if frag.Position >= len(args) || !serde.CanRestoreInPlace(args[frag.Position]) {
			continue
		}
		if err := r.codec.DeserializeInPlace(frag.Bytes, args[frag.Position]); err != nil {
			return fmt.Errorf("restore argument %d: %w", frag.Position, err)
		}
	}

	if frags := e.Fragments[FragmentException]; len(frags) > 0 {
		var recErr RecordedError
		if err := r.codec.Deserialize(frags[0].Bytes, &recErr); err != nil {
			return fmt.Errorf("decode recorded error: %w", err)
		}
		if recErr.TypeName == "" {
			recErr.TypeName = frags[0].TypeName
		}
		return &recErr
	}

	ret := e.Fragments[FragmentReturn][0]
	if result == nil || serde.IsNullPayload(ret.Bytes) {
		return nil
	}
	if err := r.codec.Deserialize(ret.Bytes, result); err != nil {
		return fmt.Errorf("decode recorded return: %w", err)
	}
	return nil
}

// Unconsumed returns the operations of rec whose timelines still hold
// entries, in sorted order.
func Unconsumed(rec *Record) []string {
	if rec == nil {
		return nil
	}
	var ops []string
	for _, op := range rec.Operations() {
		if rec.Timeline(op).Len() > 0 {
			ops = append(ops, op)
		}
	}
	return ops
}
