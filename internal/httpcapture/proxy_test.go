package httpcapture

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rewind/internal/engine"
)

func (f *fixture) proxyServer(t *testing.T) *httptest.Server {
	t.Helper()
	upstream, err := url.Parse(f.upstream.URL)
	require.NoError(t, err)

	proxy, err := NewProxy(upstream, f.engine, nil, quietLogger())
	require.NoError(t, err)

	session := engine.NewSession(f.engine, f.sink)
	srv := httptest.NewServer(NewRouter(New(session, engine.ModeDynamic, WithLogger(quietLogger())), proxy))
	t.Cleanup(srv.Close)
	return srv
}

func proxyGet(t *testing.T, srv *httptest.Server, path, id string, mode engine.Mode) (int, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
	require.NoError(t, err)
	if id != "" {
		req.Header.Set(HeaderCorrelationID, id)
	}
	req.Header.Set(HeaderMode, string(mode))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestProxy_RecordThenReplay(t *testing.T) {
	f := newFixture(t)
	srv := f.proxyServer(t)

	status, body := proxyGet(t, srv, "/price?sku=A", "req-1", engine.ModeProfile)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"sku":"A","price":3}`, body)
	assert.Equal(t, int32(1), f.hits.Load())

	_, ok := f.sink.Recording("req-1")
	require.True(t, ok)

	f.price.Store(7)
	status, body = proxyGet(t, srv, "/price?sku=A", "req-1", engine.ModeTest)
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"sku":"A","price":3}`, body)
	assert.Equal(t, int32(1), f.hits.Load(), "replay must not reach upstream")

	outcomes := f.sink.Outcomes()
	require.Len(t, outcomes, 1)
	assert.Equal(t, string(engine.OutcomeSuccess), outcomes[0].Label)
}

func TestProxy_ReplayWithChangedRequest(t *testing.T) {
	f := newFixture(t)
	srv := f.proxyServer(t)

	status, _ := proxyGet(t, srv, "/price?sku=A", "req-1", engine.ModeProfile)
	require.Equal(t, http.StatusOK, status)

	status, _ = proxyGet(t, srv, "/price?sku=B", "req-1", engine.ModeTest)
	assert.Equal(t, http.StatusFailedDependency, status)
	assert.Equal(t, int32(1), f.hits.Load())

	outcomes := f.sink.Outcomes()
	require.Len(t, outcomes, 1)
	assert.Equal(t, string(engine.OutcomeCompareFailed), outcomes[0].Label)
}

func TestProxy_StripsRewindHeaders(t *testing.T) {
	f := newFixture(t)
	var seen http.Header
	f.upstream.Config.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Clone()
		w.WriteHeader(http.StatusNoContent)
	})
	srv := f.proxyServer(t)

	status, _ := proxyGet(t, srv, "/anything", "req-1", engine.ModeProfile)
	require.Equal(t, http.StatusNoContent, status)
	require.NotNil(t, seen)
	assert.Empty(t, seen.Get(HeaderCorrelationID))
	assert.Empty(t, seen.Get(HeaderMode))
}

func TestProxy_Healthz(t *testing.T) {
	f := newFixture(t)
	srv := f.proxyServer(t)

	status, body := proxyGet(t, srv, HealthPath, "", engine.ModeTest)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, body)
	assert.Empty(t, f.sink.Outcomes())
}

func TestNewProxy_InvalidUpstream(t *testing.T) {
	_, err := NewProxy(&url.URL{Path: "/relative"}, engine.New(), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid upstream url")
}
