package authsdk

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/oauthsdk/pkg/slogx"
)

// recordedRequest is what the test server saw of a request.
type recordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Query  url.Values
	Form   url.Values
	Body   []byte
}

// testServer records every request and answers with handler.
type testServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []recordedRequest
}

func newTestServer(t *testing.T, handler func(w http.ResponseWriter, r recordedRequest)) *testServer {
	t.Helper()

	ts := &testServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		rec := recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Header: r.Header.Clone(),
			Query:  r.URL.Query(),
			Form:   url.Values{},
			Body:   body,
		}
		if strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded") {
			rec.Form, err = url.ParseQuery(string(body))
			require.NoError(t, err)
		}

		ts.mu.Lock()
		ts.requests = append(ts.requests, rec)
		ts.mu.Unlock()

		handler(w, rec)
	}))
	t.Cleanup(ts.Close)

	return ts
}

// last returns the most recent request.
func (ts *testServer) last(t *testing.T) recordedRequest {
	t.Helper()
	ts.mu.Lock()
	defer ts.mu.Unlock()
	require.NotEmpty(t, ts.requests, "server saw no requests")
	return ts.requests[len(ts.requests)-1]
}

// count returns how many requests the server saw.
func (ts *testServer) count() int {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return len(ts.requests)
}

func newTestClient(t *testing.T, site string, opts Options) *Client {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = slogx.Discard()
	}
	client, err := NewClient("abc", "def", site, opts)
	require.NoError(t, err)
	return client
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeForm(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/x-www-form-urlencoded")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// tokenHandler answers every request with a fixed JSON token response.
func tokenHandler(fields map[string]any) func(http.ResponseWriter, recordedRequest) {
	return func(w http.ResponseWriter, _ recordedRequest) {
		writeJSON(w, http.StatusOK, fields)
	}
}

// fakeClock is a settable clock for expiry tests.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
