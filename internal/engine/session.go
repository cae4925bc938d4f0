package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/roach88/rewind/internal/diff"
)

// OutcomeLabel classifies a finished TEST scope.
type OutcomeLabel string

const (
	OutcomeSuccess         OutcomeLabel = "SUCCESS"
	OutcomeReadFailure     OutcomeLabel = "READ_FAILURE"
	OutcomeCompareFailed   OutcomeLabel = "COMPARE_FAILED"
	OutcomeNonEmptyDataMap OutcomeLabel = "NON_EMPTY_METHOD_DATA_MAP"
	OutcomeUnknownFailed   OutcomeLabel = "UNKNOWN_FAILED"
)

// OutcomeLabels lists every label.
var OutcomeLabels = []OutcomeLabel{
	OutcomeSuccess,
	OutcomeReadFailure,
	OutcomeCompareFailed,
	OutcomeNonEmptyDataMap,
	OutcomeUnknownFailed,
}

// Outcome is the result of ending a scope. Label is empty for modes that do
// not classify their runs; a SERIALIZE run still reports Unconsumed.
type Outcome struct {
	CorrelationID string
	Mode          Mode
	Label         OutcomeLabel
	Diffs         []diff.Entry
	Unconsumed    []string
}

// outcomeDetail is the JSON written next to an outcome label.
type outcomeDetail struct {
	Diffs      []diff.Entry `json:"diffs,omitempty"`
	Unconsumed []string     `json:"unconsumed,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// Session drives the start and end of one request-response scope according
// to its mode.
//
//   - PROFILE: sample, begin an empty scope, capture, enqueue the snapshot.
//   - TEST: load the recording, replay, compare responses, write an outcome.
//   - SERIALIZE: load the recording and replay; nothing is compared, but
//     recorded invocations left unreplayed are reported and logged.
//   - TRANSFORM: load the recording's request and re-capture its invocations.
//   - NONE: do nothing.
//
// DYNAMIC must be resolved with ResolveMode before Start.
type Session struct {
	engine     *Engine
	sink       Sink
	dispatcher Enqueuer
	sampler    Sampler
	ids        CorrelationIDGenerator
	logger     *slog.Logger
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithDispatcher routes capture snapshots through an asynchronous Enqueuer.
// Without one, snapshots are written to the sink synchronously.
func WithDispatcher(d Enqueuer) SessionOption {
	return func(s *Session) {
		s.dispatcher = d
	}
}

// WithSampler sets the PROFILE sampler. Default: sample everything.
func WithSampler(sm Sampler) SessionOption {
	return func(s *Session) {
		s.sampler = sm
	}
}

// WithIDGenerator sets the generator for PROFILE scopes without an id.
// Default: UUIDv7Generator.
func WithIDGenerator(g CorrelationIDGenerator) SessionOption {
	return func(s *Session) {
		s.ids = g
	}
}

// NewSession creates a Session over e, reading recordings from and writing
// outcomes to sink.
func NewSession(e *Engine, sink Sink, opts ...SessionOption) *Session {
	s := &Session{
		engine:  e,
		sink:    sink,
		sampler: NewPercentSampler(100),
		ids:     UUIDv7Generator{},
		logger:  e.logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start opens the scope for one request and returns ctx bound to it. For
// NONE and unsampled PROFILE requests ctx is returned unchanged.
//
// Errors:
//   - MissingCorrelationIDError: a replay mode started without an id
//   - SinkError: the recording could not be read
//   - DuplicateCorrelationError: id already has an active scope; in TEST
//     this also writes UNKNOWN_FAILED
func (s *Session) Start(ctx context.Context, id string, request []byte, mode Mode) (context.Context, error) {
	switch mode {
	case ModeProfile:
		if !s.sampler.Sample() {
			return ctx, nil
		}
		if id == "" {
			id = s.ids.Generate()
		}
		seed := NewRecord()
		seed.request = request
		seed.mode = ModeProfile
		return s.engine.ec.Begin(ctx, id, seed)

	case ModeTest, ModeSerialize, ModeTransform:
		if id == "" {
			return ctx, NewMissingCorrelationIDError(mode)
		}
		seed, err := s.load(ctx, id, mode)
		if err != nil {
			if mode == ModeTest {
				s.writeOutcome(ctx, id, OutcomeReadFailure, outcomeDetail{Error: err.Error()})
			}
			return ctx, err
		}
		bound, err := s.engine.ec.Begin(ctx, id, seed)
		if err != nil && mode == ModeTest {
			s.writeOutcome(ctx, id, OutcomeUnknownFailed, outcomeDetail{Error: err.Error()})
		}
		return bound, err
	}

	return ctx, nil
}

// load reads and decodes the recording of id.
func (s *Session) load(ctx context.Context, id string, mode Mode) (*Record, error) {
	data, err := s.sink.Read(ctx, id)
	if err != nil {
		return nil, NewSinkError(id, "read", err)
	}
	var snap RecordSnapshot
	if err := s.engine.codec.Deserialize(data, &snap); err != nil {
		return nil, fmt.Errorf("decode recording %s: %w", id, err)
	}
	if mode == ModeTransform {
		snap.Timelines = nil
	}
	rec := RestoreRecord(snap)
	rec.mode = mode
	return rec, nil
}

// End closes the scope bound to ctx and reports its outcome. It is a no-op
// returning a zero Outcome when nothing is bound.
func (s *Session) End(ctx context.Context, response []byte) Outcome {
	id, _ := CorrelationID(ctx)
	rec := s.engine.ec.Record(ctx)
	if rec == nil {
		return Outcome{}
	}

	out := Outcome{CorrelationID: id, Mode: rec.Mode()}
	switch out.Mode {
	case ModeProfile, ModeTransform:
		defer s.engine.ec.End(ctx)
		rec.setResponse(response)
		if rec.State() == StateInitiated {
			s.persist(ctx, id, rec)
		} else {
			s.logger.Warn("capture discarded",
				"correlation_id", id,
				"state", rec.State(),
			)
		}

	case ModeTest:
		defer s.engine.ec.End(ctx)
		out = s.classify(out, rec, response)
		s.writeOutcome(ctx, id, out.Label, outcomeDetail{Diffs: out.Diffs, Unconsumed: out.Unconsumed})

	case ModeSerialize:
		defer s.engine.ec.End(ctx)
		if ops := Unconsumed(rec); len(ops) > 0 {
			out.Unconsumed = ops
			s.logger.Warn("recorded invocations not replayed",
				"correlation_id", id,
				"mode", out.Mode,
				"unconsumed", ops,
			)
		}

	default:
		s.engine.ec.End(ctx)
	}
	return out
}

// classify compares the recorded and live responses, then checks for
// recorded invocations nobody replayed.
func (s *Session) classify(out Outcome, rec *Record, response []byte) (result Outcome) {
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("outcome classification panicked",
				"correlation_id", out.CorrelationID,
				"panic", p,
			)
			result = out
			result.Label = OutcomeUnknownFailed
		}
	}()

	if rec.State() == StateFailed {
		out.Label = OutcomeUnknownFailed
		return out
	}

	if err := s.engine.comparator.Compare(rec.Response(), response); err != nil {
		out.Label = OutcomeCompareFailed
		if !diff.IsComparisonFailed(err) {
			out.Label = OutcomeUnknownFailed
		}
		out.Diffs = diff.DiffsOf(err)
		return out
	}

	if ops := Unconsumed(rec); len(ops) > 0 {
		out.Label = OutcomeNonEmptyDataMap
		out.Unconsumed = ops
		return out
	}

	out.Label = OutcomeSuccess
	return out
}

func (s *Session) persist(ctx context.Context, id string, rec *Record) {
	data, err := s.engine.codec.Serialize(rec.Snapshot())
	if err != nil {
		s.logger.Warn("snapshot encode failed",
			"correlation_id", id,
			"error", err,
		)
		return
	}
	if s.dispatcher != nil {
		s.dispatcher.Enqueue(id, data)
		return
	}
	if err := s.sink.Write(ctx, id, data); err != nil {
		s.logger.Warn("snapshot write failed",
			"correlation_id", id,
			"error", err,
		)
	}
}

func (s *Session) writeOutcome(ctx context.Context, id string, label OutcomeLabel, detail outcomeDetail) {
	b, err := json.Marshal(detail)
	if err != nil {
		b = nil
	}
	if err := s.sink.WriteOutcome(ctx, id, string(label), b); err != nil {
		s.logger.Error("outcome write failed",
			"correlation_id", id,
			"label", label,
			"error", err,
		)
		return
	}
	s.logger.Info("outcome written",
		"correlation_id", id,
		"label", label,
	)
}

// Run wraps one request: Start, fn, End. End runs on every exit path,
// including a panic in fn, which is re-raised after the scope is closed.
func (s *Session) Run(ctx context.Context, id string, request []byte, mode Mode, fn func(context.Context) ([]byte, error)) (out Outcome, err error) {
	ctx, err = s.Start(ctx, id, request, mode)
	if err != nil {
		return Outcome{}, err
	}

	var response []byte
	defer func() {
		out = s.End(ctx, response)
	}()

	response, err = fn(ctx)
	return out, err
}
