package httpcapture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/roach88/rewind/internal/engine"
)

// recordedResponse is the stored form of an outbound response.
type recordedResponse struct {
	Status int         `json:"status"`
	Header http.Header `json:"header,omitempty"`
	Body   []byte      `json:"body,omitempty"`
}

// Transport is an http.RoundTripper that runs each outbound request through
// engine.Intercept as operation "http METHOD host". The method, URL and body
// are the recorded arguments. Requests whose context carries no scope go
// straight to Base.
type Transport struct {
	Engine *engine.Engine
	// Base performs live requests. Default: http.DefaultTransport.
	Base http.RoundTripper
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil && req.Body != http.NoBody {
		var err error
		body, err = io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
	}

	op := fmt.Sprintf("http %s %s", req.Method, req.URL.Host)
	args := []any{req.Method, req.URL.String(), body}

	rec, err := engine.Intercept(req.Context(), t.Engine, op, args, func(ctx context.Context) (recordedResponse, error) {
		return t.live(req.WithContext(ctx), body)
	})
	if err != nil {
		return nil, err
	}

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", rec.Status, http.StatusText(rec.Status)),
		StatusCode:    rec.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        rec.Header,
		Body:          io.NopCloser(bytes.NewReader(rec.Body)),
		ContentLength: int64(len(rec.Body)),
		Request:       req,
	}, nil
}

func (t *Transport) live(req *http.Request, body []byte) (recordedResponse, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if body != nil {
		req.Body = io.NopCloser(bytes.NewReader(body))
		req.ContentLength = int64(len(body))
	}

	resp, err := base.RoundTrip(req)
	if err != nil {
		return recordedResponse{}, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return recordedResponse{}, fmt.Errorf("read response body: %w", err)
	}
	return recordedResponse{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}
