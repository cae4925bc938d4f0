package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/rewind/internal/serde"
)

// Recorder captures live invocations into the bound scope.
//
// Capture is best-effort: a serialization error or panic while taking a
// snapshot marks the scope FAILED and is logged, but the live call and its
// result are never affected.
type Recorder struct {
	ec     *ExecutionContext
	codec  serde.Codec
	policy serde.HashPolicy
	logger *slog.Logger
}

// Record runs invoke and records it as one invocation of op.
//
// Arguments are snapshotted before the call and again after it so in-place
// mutations are captured. Only the ARGUMENT_BEFORE snapshot goes through the
// hash policy; it is what replay matches on, while ARGUMENT_AFTER is written
// back into the live arguments and must stay decodable. The return value or
// error is snapshotted last. Without a bound scope invoke runs
// unrecorded.
func (r *Recorder) Record(ctx context.Context, op string, args []any, invoke func(context.Context) (any, error)) (any, error) {
	if r.ec.Record(ctx) == nil {
		return invoke(ctx)
	}

	fragments := Fragments{}
	captured := r.capture(ctx, op, func() error {
		before, err := r.snapshotArgs(FragmentArgumentBefore, args)
		fragments[FragmentArgumentBefore] = before
		return err
	})

	result, callErr := invoke(ctx)

	if captured {
		captured = r.capture(ctx, op, func() error {
			after, err := r.snapshotArgs(FragmentArgumentAfter, args)
			if err != nil {
				return err
			}
			fragments[FragmentArgumentAfter] = after
			return r.snapshotOutcome(fragments, result, callErr)
		})
	}

	if captured {
		r.ec.AddInvocation(ctx, op, fragments)
	}
	return result, callErr
}

// capture runs fn, converting errors and panics into a FAILED scope.
func (r *Recorder) capture(ctx context.Context, op string, fn func() error) (ok bool) {
	defer func() {
		if p := recover(); p != nil {
			r.fail(ctx, op, fmt.Errorf("panic during capture: %v", p))
			ok = false
		}
	}()
	if err := fn(); err != nil {
		r.fail(ctx, op, err)
		return false
	}
	return true
}

func (r *Recorder) fail(ctx context.Context, op string, err error) {
	id, _ := CorrelationID(ctx)
	r.ec.SetState(ctx, StateFailed)
	r.logger.Warn("capture failed",
		"correlation_id", id,
		"op", op,
		"error", err,
	)
}

func (r *Recorder) snapshotArgs(kind FragmentKind, args []any) ([]Fragment, error) {
	args = normalizeArgs(args)
	out := make([]Fragment, 0, len(args))
	for p, arg := range args {
		b, err := r.codec.Serialize(arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", p, err)
		}
		if kind == FragmentArgumentBefore {
			b = r.policy.Apply(b)
		}
		out = append(out, Fragment{
			Kind:     kind,
			TypeName: serde.TypeName(arg),
			Bytes:    b,
			Position: p,
		})
	}
	return out, nil
}

func (r *Recorder) snapshotOutcome(fragments Fragments, result any, callErr error) error {
	if callErr != nil {
		rec := recordedErrorOf(callErr)
		b, err := r.codec.Serialize(rec)
		if err != nil {
			return fmt.Errorf("exception: %w", err)
		}
		fragments[FragmentException] = []Fragment{{
			Kind:     FragmentException,
			TypeName: rec.TypeName,
			Bytes:    b,
		}}
		return nil
	}

	b, err := r.codec.Serialize(result)
	if err != nil {
		return fmt.Errorf("return: %w", err)
	}
	fragments[FragmentReturn] = []Fragment{{
		Kind:     FragmentReturn,
		TypeName: serde.TypeName(result),
		Bytes:    b,
	}}
	return nil
}

// normalizeArgs gives argument-less operations a single null placeholder so
// every entry carries at least one ARGUMENT_BEFORE fragment.
func normalizeArgs(args []any) []any {
	if len(args) == 0 {
		return []any{nil}
	}
	return args
}
