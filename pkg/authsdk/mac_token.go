package authsdk

import (
	"context"
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // hmac-sha-1 is part of the MAC token protocol
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"hash"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/aussiebroadwan/oauthsdk/pkg/flexmap"
	"github.com/aussiebroadwan/oauthsdk/pkg/idx"
)

// MACAlgorithm names the HMAC used to sign MAC tokens.
type MACAlgorithm string

const (
	MACHmacSHA1   MACAlgorithm = "hmac-sha-1"
	MACHmacSHA256 MACAlgorithm = "hmac-sha-256"
)

// MACHeaderFormat selects the Authorization header layout.
type MACHeaderFormat int

const (
	// MACHeaderGeneric: MAC id="..", ts="..", nonce="..", mac=".."
	MACHeaderGeneric MACHeaderFormat = iota
	// MACHeaderKeyID: MAC kid=".." ts=".." nonce=".." access_token=".." mac=".."
	MACHeaderKeyID
)

// ParseMACAlgorithm accepts the protocol names as well as the short forms
// "sha1", "sha256", "hmac-sha1" and "hmac-sha256". Empty means sha-256.
func ParseMACAlgorithm(name string) (MACAlgorithm, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "hmac-sha-256", "hmac-sha256", "sha256", "sha-256":
		return MACHmacSHA256, nil
	case "hmac-sha-1", "hmac-sha1", "sha1", "sha-1":
		return MACHmacSHA1, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, name)
	}
}

func (a MACAlgorithm) hash() func() hash.Hash {
	if a == MACHmacSHA1 {
		return sha1.New
	}
	return sha256.New
}

// MACOptions configures a MACToken.
type MACOptions struct {
	// Algorithm is the HMAC name, see ParseMACAlgorithm. Default: hmac-sha-256
	Algorithm string

	// Format selects the header layout. MACHeaderKeyID reads "kid" from the
	// token params.
	Format MACHeaderFormat
}

// MACToken is an access token that signs every request with an HMAC over a
// canonical request string instead of sending a bare bearer token.
type MACToken struct {
	*AccessToken

	Secret    string
	Algorithm MACAlgorithm
	Format    MACHeaderFormat

	// KID is the key id sent by the key-id header format.
	KID string
}

// NewMACToken builds a MAC token from scratch.
func NewMACToken(client *Client, token, secret string, params map[string]any, opts MACOptions) (*MACToken, error) {
	at, err := NewAccessToken(client, token, "", nil, params)
	if err != nil {
		return nil, err
	}
	return MACTokenFromAccessToken(at, secret, opts)
}

// MACTokenFromAccessToken wraps a copy of an existing token with a MAC
// secret. Client, token, expiry, refresh token and params carry over.
func MACTokenFromAccessToken(at *AccessToken, secret string, opts MACOptions) (*MACToken, error) {
	alg, err := ParseMACAlgorithm(opts.Algorithm)
	if err != nil {
		return nil, err
	}

	cp := *at
	cp.Params = cloneParams(at.Params)

	m := &MACToken{
		AccessToken: &cp,
		Secret:      secret,
		Algorithm:   alg,
		Format:      opts.Format,
	}

	if opts.Format == MACHeaderKeyID {
		kid, _ := flexmap.Get(cp.Params, "kid")
		m.KID = stringValue(kid)
		if m.KID == "" {
			return nil, ErrMissingKeyID
		}
	}
	return m, nil
}

func cloneParams(p map[string]any) map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Signature computes the base64 HMAC over
// "{requestLine}\n{host}\n{timestamp}\n{nonce}\n". It is a pure function
// of its inputs, the secret and the algorithm.
func (m *MACToken) Signature(requestLine, host string, timestamp int64, nonce string) string {
	mac := hmac.New(m.Algorithm.hash(), []byte(m.Secret))
	mac.Write([]byte(requestLine + "\n" + host + "\n" + strconv.FormatInt(timestamp, 10) + "\n" + nonce + "\n"))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Header returns an Authorization header value for the request, with a
// fresh timestamp and nonce on every call.
func (m *MACToken) Header(requestLine, host string) (string, error) {
	ts := m.now().UTC()

	nonce, err := idx.NewNonce(ts)
	if err != nil {
		return "", err
	}

	return m.formatHeader(requestLine, host, ts.Unix(), nonce), nil
}

// formatHeader lays out the header for fixed timestamp and nonce.
func (m *MACToken) formatHeader(requestLine, host string, ts int64, nonce string) string {
	sig := m.Signature(requestLine, host, ts, nonce)

	if m.Format == MACHeaderKeyID {
		return fmt.Sprintf(`MAC kid="%s" ts="%d" nonce="%s" access_token="%s" mac="%s"`,
			m.KID, ts, nonce, m.Token, sig)
	}
	return fmt.Sprintf(`MAC id="%s", ts="%d", nonce="%s", mac="%s"`, m.Token, ts, nonce, sig)
}

// SignRequest derives the request line ("GET /path?query HTTP/1.1") and host
// ("host[:port]") from method and rawURL and returns the header for them.
// URLs that aren't absolute http(s) URLs fail before anything is signed.
func (m *MACToken) SignRequest(method, rawURL string) (string, error) {
	requestLine, host, err := RequestLine(method, rawURL)
	if err != nil {
		return "", err
	}
	return m.Header(requestLine, host)
}

// RequestLine splits an absolute URL into the request line and host that
// MAC signatures cover.
func RequestLine(method, rawURL string) (requestLine, host string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", fmt.Errorf("%w: could not parse %q: %v", ErrInvalidURL, rawURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", "", fmt.Errorf("%w: %q is not an absolute http(s) URL", ErrInvalidURL, rawURL)
	}

	return strings.ToUpper(method) + " " + u.RequestURI() + " HTTP/1.1", u.Host, nil
}

// Request signs and performs a request through the client. A caller supplied
// Authorization header wins over the signature.
func (m *MACToken) Request(ctx context.Context, method, path string, opts RequestOptions) (*Response, error) {
	if m.client == nil {
		return nil, fmt.Errorf("%w: token has no client", ErrInvalidConfig)
	}

	target, err := m.client.resolve(path)
	if err != nil {
		return nil, err
	}
	method = strings.ToUpper(method)

	// The signature covers the URL as sent, so query params go in first.
	if opts.Body != nil || sendsQuery(method) {
		target = withQuery(target, opts.Params)
		opts.Params = nil
	}

	header, err := m.SignRequest(method, target)
	if err != nil {
		return nil, err
	}

	opts.Headers = MergeHeaders(Headers{"Authorization": header}, opts.Headers)
	return m.client.Request(ctx, method, target, opts)
}

// Get, Post, Put and Delete are shorthands for Request.
func (m *MACToken) Get(ctx context.Context, path string, opts RequestOptions) (*Response, error) {
	return m.Request(ctx, http.MethodGet, path, opts)
}

func (m *MACToken) Post(ctx context.Context, path string, opts RequestOptions) (*Response, error) {
	return m.Request(ctx, http.MethodPost, path, opts)
}

func (m *MACToken) Put(ctx context.Context, path string, opts RequestOptions) (*Response, error) {
	return m.Request(ctx, http.MethodPut, path, opts)
}

func (m *MACToken) Delete(ctx context.Context, path string, opts RequestOptions) (*Response, error) {
	return m.Request(ctx, http.MethodDelete, path, opts)
}
