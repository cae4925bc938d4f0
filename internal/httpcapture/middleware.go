package httpcapture

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"

	"github.com/roach88/rewind/internal/engine"
)

// Header names carried by captured and replayed requests.
const (
	HeaderCorrelationID = "X-Rewind-Correlation-Id"
	HeaderMode          = "X-Rewind-Mode"
)

// DefaultMaxBody caps the request body kept in a snapshot.
const DefaultMaxBody = 1 << 20

// Middleware opens an engine scope around each request.
type Middleware struct {
	session *engine.Session
	mode    engine.Mode
	maxBody int64
	logger  *slog.Logger
}

// Option configures a Middleware.
type Option func(*Middleware)

// WithMaxBody sets the largest request body read into a snapshot. In
// capture modes larger bodies are passed through unrecorded; replay modes
// take the request from the recording and still open the scope.
func WithMaxBody(n int64) Option {
	return func(m *Middleware) {
		m.maxBody = n
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Middleware) {
		m.logger = l
	}
}

// New creates a Middleware running every request in mode. With
// engine.ModeDynamic each request picks its mode from HeaderMode.
func New(session *engine.Session, mode engine.Mode, opts ...Option) *Middleware {
	m := &Middleware{
		session: session,
		mode:    mode,
		maxBody: DefaultMaxBody,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handler wraps next.
//
// Capture problems never change what the client sees. In replay modes a
// request that cannot be replayed is rejected before next runs:
// 400 without a correlation id, 409 for an id already in flight, 424 when
// the recording cannot be loaded.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mode := engine.ResolveMode(m.mode, r.Header.Get(HeaderMode))
		if mode == engine.ModeNone {
			next.ServeHTTP(w, r)
			return
		}

		body, ok := m.readBody(r)
		if !ok {
			m.logger.Warn("request body too large to capture",
				"path", r.URL.Path,
				"mode", mode,
				"limit", m.maxBody,
			)
			if mode.Captures() {
				next.ServeHTTP(w, r)
				return
			}
		}

		ctx, err := m.session.Start(r.Context(), r.Header.Get(HeaderCorrelationID), body, mode)
		if err != nil {
			m.logger.Warn("scope not started",
				"path", r.URL.Path,
				"mode", mode,
				"error", err,
			)
			if mode.Captures() {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, err.Error(), statusFor(err))
			return
		}

		if id, bound := engine.CorrelationID(ctx); bound {
			w.Header().Set(HeaderCorrelationID, id)
		}

		cw := &captureWriter{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			out := m.session.End(ctx, cw.body.Bytes())
			if out.Label != "" {
				m.logger.Info("request replayed",
					"correlation_id", out.CorrelationID,
					"path", r.URL.Path,
					"status", cw.status,
					"label", out.Label,
					"diffs", len(out.Diffs),
				)
			}
		}()

		next.ServeHTTP(cw, r.WithContext(ctx))
	})
}

// readBody buffers the request body and puts an identical reader back.
// It reports false when the body exceeds maxBody.
func (m *Middleware) readBody(r *http.Request) ([]byte, bool) {
	if r.Body == nil || r.Body == http.NoBody {
		return nil, true
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, m.maxBody+1))
	rest := r.Body
	r.Body = readCloser{io.MultiReader(bytes.NewReader(data), rest), rest}
	if err != nil || int64(len(data)) > m.maxBody {
		return nil, false
	}
	return data, true
}

type readCloser struct {
	io.Reader
	io.Closer
}

func statusFor(err error) int {
	switch {
	case engine.IsMissingCorrelationIDError(err):
		return http.StatusBadRequest
	case engine.IsDuplicateCorrelationError(err):
		return http.StatusConflict
	default:
		return http.StatusFailedDependency
	}
}

// captureWriter tees the response body into a buffer.
type captureWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (w *captureWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *captureWriter) Write(p []byte) (int, error) {
	w.body.Write(p)
	return w.ResponseWriter.Write(p)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *captureWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
