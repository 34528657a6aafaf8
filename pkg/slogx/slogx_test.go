package slogx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		require.Equal(t, want, ParseLevel(in), in)
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Service: "svc", Version: "v1", Env: "test", Level: "info", Format: "json", Output: &buf})

	logger.Debug("hidden")
	logger.Info("hello", "k", "v")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	require.Equal(t, "hello", rec["msg"])
	require.Equal(t, "svc", rec["service"])
	require.Equal(t, "v1", rec["version"])
	require.Equal(t, "test", rec["env"])
	require.Equal(t, "v", rec["k"])
	require.NotContains(t, rec, "source")
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Service: "svc", Env: "dev", Level: "debug", Format: "text", Output: &buf})

	logger.Debug("hello")
	require.Contains(t, buf.String(), "msg=hello")
	require.Contains(t, buf.String(), "service=svc")
	require.Contains(t, buf.String(), "source=")
}

func TestDiscard(t *testing.T) {
	logger := Discard()
	require.False(t, logger.Enabled(context.Background(), slog.LevelError))
}

func TestContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: "json", Output: &buf})

	require.Same(t, slog.Default(), FromContext(context.Background()))
	require.Same(t, logger, FromContextOr(context.Background(), logger))
	require.Same(t, slog.Default(), FromContextOr(context.Background(), nil))

	ctx := WithContext(context.Background(), logger)
	require.Same(t, logger, FromContext(ctx))

	ctx = WithRequestID(ctx, "req-1")
	FromContext(ctx).Info("tagged")
	require.Contains(t, buf.String(), `"req_id":"req-1"`)
}

func TestTransport(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(RequestIDHeader)
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	var buf bytes.Buffer
	logger := New(Config{Level: "debug", Format: "json", Output: &buf})
	client := &http.Client{Transport: NewTransport(nil, logger)}

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/oauth/token", nil)
	require.NoError(t, err)

	resp, err := client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()

	require.Equal(t, http.StatusTeapot, resp.StatusCode)
	require.Len(t, seen, 26)
	require.Empty(t, req.Header.Get(RequestIDHeader))

	out := buf.String()
	require.Contains(t, out, `"msg":"http_client_request"`)
	require.Contains(t, out, `"status":418`)
	require.Contains(t, out, `"path":"/oauth/token"`)
	require.Contains(t, out, `"req_id":"`+seen+`"`)
}

func TestTransportKeepsRequestID(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get(RequestIDHeader)
	}))
	defer srv.Close()

	client := &http.Client{Transport: NewTransport(nil, Discard())}
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set(RequestIDHeader, "mine")

	resp, err := client.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, "mine", seen)
}

type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("boom")
}

func TestTransportLogsErrors(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "warn", Format: "json", Output: &buf})

	req := httptest.NewRequest(http.MethodPost, "http://auth.example.com/oauth/token", nil)
	_, err := NewTransport(failingTransport{}, logger).RoundTrip(req)
	require.EqualError(t, err, "boom")
	require.Contains(t, buf.String(), `"error":"boom"`)
	require.Contains(t, buf.String(), `"level":"WARN"`)
}

func TestHTTPMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: "json", Output: &buf})

	var fromCtx *slog.Logger
	handler := HTTPMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fromCtx = FromContext(r.Context())
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodPost, "/oauth/token", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
	require.NotSame(t, slog.Default(), fromCtx)

	out := buf.String()
	require.Contains(t, out, `"msg":"http_request"`)
	require.Contains(t, out, `"status":202`)
	require.Contains(t, out, `"req_id":"req-42"`)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Len(t, rec.Header().Get(RequestIDHeader), 26)
}

func TestHTTPMiddlewareLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Format: "json", Level: "warn", Output: &buf})

	handler := HTTPMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/bad" {
			http.Error(w, "nope", http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/good", nil))
	require.Empty(t, buf.String())

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/bad", nil))
	out := buf.String()
	require.Contains(t, out, `"level":"WARN"`)
	require.Contains(t, out, `"status":400`)
	require.Contains(t, out, `"bytes":5`)
}
