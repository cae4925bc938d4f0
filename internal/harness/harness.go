package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"

	"github.com/roach88/rewind/internal/diff"
	"github.com/roach88/rewind/internal/engine"
	"github.com/roach88/rewind/internal/ir"
	"github.com/roach88/rewind/internal/serde"
	"github.com/roach88/rewind/internal/testutil"
)

// Harness executes one scenario against a fresh engine and sink.
type Harness struct {
	engine  *engine.Engine
	session *engine.Session
	sink    *testutil.MemorySink
	ids     *testutil.FixedIDGenerator
	logger  *slog.Logger
}

// Option configures Run.
type Option func(*Harness)

// WithLogger sets the logger for the engine and the harness.
// Default: a logger that discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = l
	}
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Serve the request under PROFILE, recording every call
//  2. Serve it again under the replay mode
//  3. Collect the outcome, differences and stored entry counts
//  4. Evaluate assertions
//
// An error is returned when the harness itself cannot run the scenario
// (the recording was not persisted, a payload does not serialize). Failing
// assertions are reported through Result.Pass and Result.Errors.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		sink:   testutil.NewMemorySink(),
		ids:    testutil.NewFixedIDGenerator(scenario.CorrelationID),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}

	rules, err := diff.CompileIgnoreRules(scenario.Ignore)
	if err != nil {
		return nil, fmt.Errorf("ignore rules: %w", err)
	}
	h.engine = engine.New(
		engine.WithLogger(h.logger),
		engine.WithHashPolicy(serde.PolicyFor(scenario.HashArguments)),
		engine.WithComparator(diff.New(diff.WithIgnoreRules(rules))),
	)
	h.session = engine.NewSession(h.engine, h.sink, engine.WithIDGenerator(h.ids))

	ctx := context.Background()
	request, err := marshalPayload(scenario.Request)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	id := h.ids.Generate()

	result := NewResult()
	result.CorrelationID = id

	if err := h.record(ctx, scenario, request, result); err != nil {
		return nil, err
	}
	if err := h.replay(ctx, scenario, id, request, result); err != nil {
		return nil, err
	}
	if err := h.countRecorded(id, result); err != nil {
		return nil, err
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// record serves the request under PROFILE. The id comes from the generator,
// as it would for a request arriving without one.
func (h *Harness) record(ctx context.Context, s *Scenario, request []byte, result *Result) error {
	response, err := marshalPayload(s.Record.Response)
	if err != nil {
		return fmt.Errorf("record.response: %w", err)
	}

	var events []CallEvent
	_, err = h.session.Run(ctx, "", request, engine.ModeProfile, func(ctx context.Context) ([]byte, error) {
		events = h.serve(ctx, PhaseRecord, s.Record)
		return response, nil
	})
	if err != nil {
		return fmt.Errorf("record phase: %w", err)
	}
	result.Trace = append(result.Trace, events...)

	id := h.ids.Generate()
	if _, ok := h.sink.Recording(id); !ok {
		return fmt.Errorf("record phase: recording %s was not persisted", id)
	}
	h.logger.Info("record phase completed",
		"correlation_id", id,
		"calls", len(events),
	)
	return nil
}

// replay serves the request again under the scenario's replay mode.
func (h *Harness) replay(ctx context.Context, s *Scenario, id string, request []byte, result *Result) error {
	live := s.Replay.Response
	if live == nil {
		live = s.Record.Response
	}
	response, err := marshalPayload(live)
	if err != nil {
		return fmt.Errorf("replay.response: %w", err)
	}

	mode := s.replayMode()
	var events []CallEvent
	out, err := h.session.Run(ctx, id, request, mode, func(ctx context.Context) ([]byte, error) {
		events = h.serve(ctx, PhaseReplay, s.Replay)
		return response, nil
	})
	if err != nil {
		return fmt.Errorf("replay phase: %w", err)
	}

	result.Trace = append(result.Trace, events...)
	result.Outcome = string(out.Label)
	result.Diffs = out.Diffs
	result.Unconsumed = out.Unconsumed

	h.logger.Info("replay phase completed",
		"correlation_id", id,
		"mode", mode,
		"label", out.Label,
	)
	return nil
}

// serve plays the handler: every call in the phase goes through
// engine.Intercept. Events are returned in declaration order even when the
// calls run concurrently.
func (h *Harness) serve(ctx context.Context, phase string, p Phase) []CallEvent {
	events := make([]CallEvent, len(p.Calls))

	if !p.Concurrent {
		for i, c := range p.Calls {
			events[i] = h.call(ctx, phase, i, c)
		}
		return events
	}

	pool := engine.NewWorkerPool(context.Background(), h.engine.Context(), 0)
	for i, c := range p.Calls {
		pool.Go(ctx, func(ctx context.Context) error {
			events[i] = h.call(ctx, phase, i, c)
			return nil
		})
	}
	_ = pool.Wait()
	return events
}

func (h *Harness) call(ctx context.Context, phase string, index int, c Call) CallEvent {
	ret, err := engine.Intercept(ctx, h.engine, c.Operation, c.Args, func(context.Context) (any, error) {
		if c.Error != "" {
			return nil, errors.New(c.Error)
		}
		return c.Return, nil
	})

	ev := CallEvent{
		Phase:     phase,
		Index:     index,
		Operation: c.Operation,
		Args:      c.Args,
	}
	var re *engine.RuntimeError
	switch {
	case errors.As(err, &re):
		ev.Code = string(re.Code)
	case err != nil:
		ev.Error = err.Error()
	default:
		ev.Return = ret
	}
	return ev
}

// countRecorded decodes the stored recording of id and counts its entries
// per operation.
func (h *Harness) countRecorded(id string, result *Result) error {
	data, ok := h.sink.Recording(id)
	if !ok {
		return nil
	}
	var snap engine.RecordSnapshot
	if err := h.engine.Codec().Deserialize(data, &snap); err != nil {
		return fmt.Errorf("decode recording %s: %w", id, err)
	}
	for _, op := range slices.Sorted(maps.Keys(snap.Timelines)) {
		result.Recorded[op] = len(snap.Timelines[op])
	}
	return nil
}

// marshalPayload encodes a YAML-decoded payload as JSON. Nil encodes as
// an empty payload.
func marshalPayload(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// sameValue reports whether two decoded values are equal once both are
// canonicalized. YAML integers and replayed JSON numbers compare equal.
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ca, err := ir.MarshalCanonical(a)
	if err != nil {
		return false
	}
	cb, err := ir.MarshalCanonical(b)
	if err != nil {
		return false
	}
	return string(ca) == string(cb)
}
