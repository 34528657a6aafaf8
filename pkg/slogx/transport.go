package slogx

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/oauthsdk/pkg/idx"
)

// RequestIDHeader carries the generated request ID to the remote server.
const RequestIDHeader = "X-Request-ID"

// Transport logs outbound requests made through next. The logger is taken
// from the request context when present, otherwise base is used.
type Transport struct {
	Base http.RoundTripper
	Log  *slog.Logger
}

// NewTransport wraps next (http.DefaultTransport when nil) with request
// logging.
func NewTransport(next http.RoundTripper, base *slog.Logger) *Transport {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Transport{Base: next, Log: base}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(r *http.Request) (*http.Response, error) {
	start := time.Now()

	reqID := r.Header.Get(RequestIDHeader)
	if reqID == "" {
		reqID = idx.New().String()
		// RoundTrippers must not modify the caller's request
		r = r.Clone(r.Context())
		r.Header.Set(RequestIDHeader, reqID)
	}

	logger := FromContextOr(r.Context(), t.Log).With(
		"req_id", reqID,
		"method", r.Method,
		"host", r.URL.Host,
		"path", r.URL.Path,
	)

	resp, err := t.Base.RoundTrip(r)
	duration := time.Since(start).Milliseconds()
	if err != nil {
		logger.Warn("http_client_request", "error", err, "duration_ms", duration)
		return nil, err
	}

	logger.Debug("http_client_request",
		"status", resp.StatusCode,
		"duration_ms", duration,
	)
	return resp, nil
}
