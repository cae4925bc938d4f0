package httpcapture

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/roach88/rewind/internal/engine"
)

// HealthPath answers liveness probes without opening a scope.
const HealthPath = "/healthz"

// NewProxy returns a reverse proxy to upstream whose outbound calls go
// through a Transport on e. Under PROFILE the upstream exchange is recorded;
// under TEST and SERIALIZE it is answered from the recording and upstream is
// never contacted.
//
// The rewind headers are stripped before the request leaves.
func NewProxy(upstream *url.URL, e *engine.Engine, base http.RoundTripper, logger *slog.Logger) (http.Handler, error) {
	if upstream.Scheme == "" || upstream.Host == "" {
		return nil, fmt.Errorf("invalid upstream url: %q", upstream.String())
	}
	if logger == nil {
		logger = slog.Default()
	}

	proxy := httputil.NewSingleHostReverseProxy(upstream)
	director := proxy.Director
	proxy.Director = func(r *http.Request) {
		director(r)
		r.Header.Del(HeaderCorrelationID)
		r.Header.Del(HeaderMode)
	}
	proxy.Transport = &Transport{Engine: e, Base: base}
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		id, _ := engine.CorrelationID(r.Context())
		logger.Error("proxy error",
			"correlation_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		status := http.StatusBadGateway
		if engine.IsMissingRecordingError(err) || engine.IsNoMatchingRecordingError(err) || engine.IsMalformedEntryError(err) {
			status = http.StatusFailedDependency
		}
		http.Error(w, http.StatusText(status), status)
	}
	return proxy, nil
}

// NewRouter mounts h under the capture middleware, leaving HealthPath
// outside it.
func NewRouter(mw *Middleware, h http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Get(HealthPath, healthz)
	r.Group(func(r chi.Router) {
		r.Use(mw.Handler)
		r.Handle("/*", h)
	})
	return r
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
