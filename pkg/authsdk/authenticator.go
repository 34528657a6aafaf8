package authsdk

import (
	"encoding/base64"
	"fmt"
)

// AuthMode is how the client proves its identity to the token endpoint.
type AuthMode string

const (
	// AuthModeBasic sends client_id:client_secret as HTTP Basic credentials.
	AuthModeBasic AuthMode = "basic_auth"
	// AuthModeRequestBody sends client_id and client_secret as parameters.
	AuthModeRequestBody AuthMode = "request_body"
	// AuthModeTLSClientAuth sends only client_id; the TLS client certificate
	// proves the rest (RFC 8705).
	AuthModeTLSClientAuth AuthMode = "tls_client_auth"
	// AuthModePrivateKeyJWT leaves the request alone; the caller has already
	// put a client_assertion in it (RFC 7523 section 2.2).
	AuthModePrivateKeyJWT AuthMode = "private_key_jwt"
)

// Valid reports whether m is a known mode.
func (m AuthMode) Valid() bool {
	switch m {
	case AuthModeBasic, AuthModeRequestBody, AuthModeTLSClientAuth, AuthModePrivateKeyJWT:
		return true
	}
	return false
}

// TokenRequest is the parameter set and extra headers sent to the token
// endpoint.
type TokenRequest struct {
	Params  Params
	Headers Headers
}

// clone returns a deep copy so Apply never touches the caller's maps.
func (r TokenRequest) clone() TokenRequest {
	return TokenRequest{
		Params:  r.Params.Clone(),
		Headers: MergeHeaders(r.Headers, nil),
	}
}

// Authenticator attaches client credentials to token requests. It holds no
// mutable state and is safe for concurrent use.
type Authenticator struct {
	ID     string
	Secret string
	Mode   AuthMode
}

// NewAuthenticator creates an Authenticator. The mode is checked on Apply so
// that a bad mode surfaces where it is used.
func NewAuthenticator(id, secret string, mode AuthMode) *Authenticator {
	return &Authenticator{ID: id, Secret: secret, Mode: mode}
}

// Apply returns a copy of req with credentials added for the configured
// mode. Anything the caller already set, a client_id, a client_secret or an
// Authorization header, is left as it is.
func (a *Authenticator) Apply(req TokenRequest) (TokenRequest, error) {
	out := req.clone()

	switch a.Mode {
	case AuthModeBasic:
		if !out.Headers.Has("Authorization") {
			out.Headers.Set("Authorization", EncodeBasicAuth(a.ID, a.Secret))
		}
	case AuthModeRequestBody:
		out.Params = Merge(Params{"client_id": a.ID, "client_secret": a.Secret}, out.Params)
	case AuthModeTLSClientAuth:
		out.Params = Merge(Params{"client_id": a.ID}, out.Params)
	case AuthModePrivateKeyJWT:
		// client_assertion is the caller's job
	default:
		return TokenRequest{}, fmt.Errorf("%w: %q", ErrUnsupportedAuthMode, a.Mode)
	}

	return out, nil
}

// EncodeBasicAuth returns an HTTP Basic Authorization header value. The
// encoding is single-line, with no trailing newline.
func EncodeBasicAuth(user, password string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+password))
}
