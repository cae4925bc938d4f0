// Package httpcapture connects net/http servers and clients to the engine.
//
// Middleware opens one scope per inbound request, keyed by the
// X-Rewind-Correlation-Id header, and snapshots the request and response
// bodies. Transport records (or replays) outbound calls made with a bound
// request context, so a handler's upstream traffic is part of its recording.
//
// Both work with any router accepting func(http.Handler) http.Handler,
// including chi.
package httpcapture
