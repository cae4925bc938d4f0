package engine

import (
	"log/slog"

	"github.com/roach88/rewind/internal/diff"
	"github.com/roach88/rewind/internal/serde"
)

// Engine bundles the process-wide scope registry with the Recorder and
// Replayer that operate on it. Construct one per process and pass it to the
// instrumented code; Intercept uses it to pick capture, replay or a direct
// call from the mode of the bound scope.
//
// Thread-safety: an Engine is immutable after New and safe for concurrent use.
type Engine struct {
	ec       *ExecutionContext
	recorder *Recorder
	replayer *Replayer

	codec      serde.Codec
	policy     serde.HashPolicy
	comparator *diff.Comparator
	logger     *slog.Logger
}

// EngineOption allows configuration of engine collaborators.
type EngineOption func(*Engine)

// WithCodec sets the codec used for fragments and snapshots.
// Default: serde.JSONCodec.
func WithCodec(c serde.Codec) EngineOption {
	return func(e *Engine) {
		e.codec = c
	}
}

// WithHashPolicy sets the policy applied to argument snapshots.
// Default: serde.Identity.
func WithHashPolicy(p serde.HashPolicy) EngineOption {
	return func(e *Engine) {
		e.policy = p
	}
}

// WithComparator sets the comparator used to match arguments and responses.
// Default: a comparator without ignore rules.
func WithComparator(c *diff.Comparator) EngineOption {
	return func(e *Engine) {
		e.comparator = c
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine.
func New(opts ...EngineOption) *Engine {
	e := &Engine{
		codec:      serde.JSONCodec{},
		policy:     serde.Identity{},
		comparator: diff.New(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.ec = NewExecutionContext(e.logger)
	e.recorder = &Recorder{ec: e.ec, codec: e.codec, policy: e.policy, logger: e.logger}
	e.replayer = &Replayer{ec: e.ec, codec: e.codec, policy: e.policy, comparator: e.comparator, logger: e.logger}
	return e
}

// Context returns the scope registry.
func (e *Engine) Context() *ExecutionContext { return e.ec }

// Recorder returns the capture-path recorder.
func (e *Engine) Recorder() *Recorder { return e.recorder }

// Replayer returns the replay-path replayer.
func (e *Engine) Replayer() *Replayer { return e.replayer }

// Codec returns the configured codec.
func (e *Engine) Codec() serde.Codec { return e.codec }

// Comparator returns the configured comparator.
func (e *Engine) Comparator() *diff.Comparator { return e.comparator }
