package authsdk

import (
	"context"
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // hmac-sha-1 test vectors
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var (
	genericMACHeader = regexp.MustCompile(`^MAC id="([^"]+)", ts="(\d+)", nonce="([^"]+)", mac="([^"]+)"$`)
	keyIDMACHeader   = regexp.MustCompile(`^MAC kid="([^"]+)" ts="(\d+)" nonce="([^"]+)" access_token="([^"]+)" mac="([^"]+)"$`)
)

func newMACToken(t *testing.T, client *Client, opts MACOptions, params map[string]any) *MACToken {
	t.Helper()
	token, err := NewMACToken(client, "salmon", "s3cr3t", params, opts)
	require.NoError(t, err)
	return token
}

func parseTS(t *testing.T, s string) int64 {
	t.Helper()
	ts, err := strconv.ParseInt(s, 10, 64)
	require.NoError(t, err)
	return ts
}

func TestMACTokenSignatureIsDeterministic(t *testing.T) {
	t.Parallel()

	token := newMACToken(t, nil, MACOptions{}, nil)

	a := token.Signature("GET /fish HTTP/1.1", "example.com", 1_800_000_000, "nonce-1")
	b := token.Signature("GET /fish HTTP/1.1", "example.com", 1_800_000_000, "nonce-1")
	require.Equal(t, a, b)

	require.NotEqual(t, a, token.Signature("GET /fish HTTP/1.1", "example.com", 1_800_000_000, "nonce-2"))
	require.NotEqual(t, a, token.Signature("GET /fish HTTP/1.1", "example.com", 1_800_000_001, "nonce-1"))
	require.NotEqual(t, a, token.Signature("POST /fish HTTP/1.1", "example.com", 1_800_000_000, "nonce-1"))
}

func TestMACTokenSignatureAlgorithms(t *testing.T) {
	t.Parallel()

	canonical := "GET /fish HTTP/1.1\nexample.com\n1800000000\nnonce-1\n"

	tests := []struct {
		algorithm string
		want      func() string
	}{
		{
			algorithm: "hmac-sha-256",
			want: func() string {
				m := hmac.New(sha256.New, []byte("s3cr3t"))
				m.Write([]byte(canonical))
				return base64.StdEncoding.EncodeToString(m.Sum(nil))
			},
		},
		{
			algorithm: "hmac-sha-1",
			want: func() string {
				m := hmac.New(sha1.New, []byte("s3cr3t"))
				m.Write([]byte(canonical))
				return base64.StdEncoding.EncodeToString(m.Sum(nil))
			},
		},
	}

	var sigs []string
	for _, tt := range tests {
		token := newMACToken(t, nil, MACOptions{Algorithm: tt.algorithm}, nil)
		sig := token.Signature("GET /fish HTTP/1.1", "example.com", 1_800_000_000, "nonce-1")
		require.Equal(t, tt.want(), sig, tt.algorithm)
		sigs = append(sigs, sig)
	}
	require.NotEqual(t, sigs[0], sigs[1])
}

func TestParseMACAlgorithm(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]MACAlgorithm{
		"":             MACHmacSHA256,
		"hmac-sha-256": MACHmacSHA256,
		"SHA256":       MACHmacSHA256,
		"hmac-sha-1":   MACHmacSHA1,
		"hmac-sha1":    MACHmacSHA1,
	} {
		got, err := ParseMACAlgorithm(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := ParseMACAlgorithm("hmac-md5")
	require.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestMACTokenFromAccessTokenRejectsUnknownAlgorithm(t *testing.T) {
	t.Parallel()

	at, err := NewAccessToken(nil, "salmon", "", nil, nil)
	require.NoError(t, err)

	_, err = MACTokenFromAccessToken(at, "s3cr3t", MACOptions{Algorithm: "rot13"})
	require.ErrorIs(t, err, ErrUnsupportedAlgorithm)
}

func TestMACTokenFromAccessTokenCopiesFields(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, "https://auth.example.com", Options{})
	at, err := NewAccessToken(client, "salmon", "trout", 600, map[string]any{"extra_param": "steve"})
	require.NoError(t, err)

	mac, err := MACTokenFromAccessToken(at, "s3cr3t", MACOptions{Algorithm: "hmac-sha-1"})
	require.NoError(t, err)

	require.Same(t, client, mac.Client())
	require.Equal(t, "salmon", mac.Token)
	require.Equal(t, "trout", mac.RefreshToken)
	require.Equal(t, at.ExpiresAt, mac.ExpiresAt)
	require.Equal(t, "steve", mac.Param("extra_param"))
	require.Equal(t, "s3cr3t", mac.Secret)
	require.Equal(t, MACHmacSHA1, mac.Algorithm)

	mac.Params["extra_param"] = "changed"
	require.Equal(t, "steve", at.Param("extra_param"), "source token is untouched")
}

func TestMACTokenHeaderIsFreshEachCall(t *testing.T) {
	t.Parallel()

	token := newMACToken(t, nil, MACOptions{}, nil)

	h1, err := token.Header("GET /fish HTTP/1.1", "example.com")
	require.NoError(t, err)
	h2, err := token.Header("GET /fish HTTP/1.1", "example.com")
	require.NoError(t, err)

	require.NotEqual(t, h1, h2)

	for _, h := range []string{h1, h2} {
		m := genericMACHeader.FindStringSubmatch(h)
		require.NotNil(t, m, "malformed header %q", h)
		require.Equal(t, "salmon", m[1])

		require.Equal(t, token.Signature("GET /fish HTTP/1.1", "example.com", parseTS(t, m[2]), m[3]), m[4])
	}
}

func TestMACTokenNoncesUniqueUnderConcurrency(t *testing.T) {
	t.Parallel()

	token := newMACToken(t, nil, MACOptions{}, nil)

	const n = 200
	headers := make([]string, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, err := token.Header("GET / HTTP/1.1", "example.com")
			if err == nil {
				headers[i] = h
			}
		}()
	}
	wg.Wait()

	seen := make(map[string]bool, n)
	for _, h := range headers {
		m := genericMACHeader.FindStringSubmatch(h)
		require.NotNil(t, m)
		require.False(t, seen[m[3]], "duplicate nonce %s", m[3])
		seen[m[3]] = true
	}
}

func TestMACTokenKeyIDHeader(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1_800_000_000, 0)}
	client := newTestClient(t, "https://auth.example.com", Options{Clock: clock.Now})

	token := newMACToken(t, client, MACOptions{Format: MACHeaderKeyID}, map[string]any{"kid": "key-7"})

	h, err := token.Header("GET /fish HTTP/1.1", "example.com")
	require.NoError(t, err)

	m := keyIDMACHeader.FindStringSubmatch(h)
	require.NotNil(t, m, "malformed header %q", h)
	require.Equal(t, "key-7", m[1])
	require.Equal(t, "1800000000", m[2])
	require.Equal(t, "salmon", m[4])
	require.Equal(t, token.Signature("GET /fish HTTP/1.1", "example.com", 1_800_000_000, m[3]), m[5])
}

func TestMACTokenKeyIDRequiresKID(t *testing.T) {
	t.Parallel()

	_, err := NewMACToken(nil, "salmon", "s3cr3t", nil, MACOptions{Format: MACHeaderKeyID})
	require.ErrorIs(t, err, ErrMissingKeyID)
}

func TestRequestLine(t *testing.T) {
	t.Parallel()

	tests := []struct {
		method  string
		url     string
		line    string
		host    string
		wantErr bool
	}{
		{method: "get", url: "https://example.com/fish?size=big", line: "GET /fish?size=big HTTP/1.1", host: "example.com"},
		{method: "POST", url: "http://example.com:8080", line: "POST / HTTP/1.1", host: "example.com:8080"},
		{method: "GET", url: "/relative", wantErr: true},
		{method: "GET", url: "ftp://example.com/file", wantErr: true},
		{method: "GET", url: "http://[::1", wantErr: true},
	}

	for _, tt := range tests {
		line, host, err := RequestLine(tt.method, tt.url)
		if tt.wantErr {
			require.ErrorIs(t, err, ErrInvalidURL, tt.url)
			continue
		}
		require.NoError(t, err, tt.url)
		require.Equal(t, tt.line, line)
		require.Equal(t, tt.host, host)
	}
}

func TestMACTokenSignRequestRejectsBadURL(t *testing.T) {
	t.Parallel()

	token := newMACToken(t, nil, MACOptions{}, nil)
	_, err := token.SignRequest("GET", "not a url")
	require.ErrorIs(t, err, ErrInvalidURL)
}

func TestMACTokenRequest(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, func(w http.ResponseWriter, _ recordedRequest) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	client := newTestClient(t, srv.URL, Options{})
	token := newMACToken(t, client, MACOptions{}, nil)
	host := strings.TrimPrefix(srv.URL, "http://")

	_, err := token.Get(context.Background(), "/fish", RequestOptions{Params: Params{"size": "big"}})
	require.NoError(t, err)

	req := srv.last(t)
	require.Equal(t, "big", req.Query.Get("size"))

	m := genericMACHeader.FindStringSubmatch(req.Header.Get("Authorization"))
	require.NotNil(t, m, "malformed header %q", req.Header.Get("Authorization"))

	require.Equal(t, token.Signature("GET /fish?size=big HTTP/1.1", host, parseTS(t, m[2]), m[3]), m[4])

	_, err = token.Post(context.Background(), "/fish", RequestOptions{Headers: Headers{"Authorization": "Bearer mine"}})
	require.NoError(t, err)
	require.Equal(t, "Bearer mine", srv.last(t).Header.Get("Authorization"))
}
