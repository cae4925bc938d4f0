package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

// quietLogger discards log output.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestEngine creates an Engine with logging discarded.
func newTestEngine(opts ...EngineOption) *Engine {
	return New(append([]EngineOption{WithLogger(quietLogger())}, opts...)...)
}

// beginScope starts a scope of the given mode and registers its cleanup.
func beginScope(t *testing.T, e *Engine, id string, mode Mode, seed *Record) context.Context {
	t.Helper()
	if seed == nil {
		seed = NewRecord()
	}
	seed.mode = mode
	ctx, err := e.Context().Begin(context.Background(), id, seed)
	require.NoError(t, err)
	t.Cleanup(func() { e.Context().End(ctx) })
	return ctx
}

// entryWith builds a valid entry whose single argument is arg and whose
// return value is ret (both JSON).
func entryWith(arg, ret string) Fragments {
	return Fragments{
		FragmentArgumentBefore: {{Kind: FragmentArgumentBefore, TypeName: "string", Bytes: []byte(arg), Position: 0}},
		FragmentReturn:         {{Kind: FragmentReturn, TypeName: "string", Bytes: []byte(ret)}},
	}
}
