package oauthtest

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/oauthsdk/pkg/authsdk"
	"github.com/aussiebroadwan/oauthsdk/pkg/httpx"
	"github.com/aussiebroadwan/oauthsdk/pkg/slogx"
)

// oauthError is an RFC 6749 section 5.2 error with its HTTP status.
type oauthError struct {
	status      int
	code        string
	description string
}

func (e *oauthError) Error() string {
	if e.description == "" {
		return e.code
	}
	return e.code + ": " + e.description
}

var (
	errInvalidClient      = &oauthError{http.StatusUnauthorized, authsdk.ErrorCodeInvalidClient, "client authentication failed"}
	errInvalidScope       = &oauthError{http.StatusBadRequest, authsdk.ErrorCodeInvalidScope, "requested scope is not allowed"}
	errUnsupportedGrant   = &oauthError{http.StatusBadRequest, authsdk.ErrorCodeUnsupportedGrantType, ""}
	errTooManyMFAAttempts = &oauthError{http.StatusUnauthorized, authsdk.ErrorCodeInvalidGrant, "too many failed attempts, the MFA session has been invalidated"}
	errUnauthorizedClient = &oauthError{http.StatusBadRequest, authsdk.ErrorCodeUnauthorizedClient, "public clients cannot use this grant"}
	errInvalidContentType = &oauthError{http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, "unsupported content type"}
)

// mfaChallenge is the password grant asking for a second factor. It is
// written as a 409 mfa_required response.
type mfaChallenge struct {
	token   string
	methods []string
}

func (e *mfaChallenge) Error() string { return authsdk.ErrorCodeMFARequired }

func errInvalidRequest(desc string) error {
	return &oauthError{http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, desc}
}

func errInvalidGrant(desc string) error {
	return &oauthError{http.StatusBadRequest, authsdk.ErrorCodeInvalidGrant, desc}
}

// writeError answers with err as an OAuth2 error body. Anything that is not
// an *oauthError is logged and reported as server_error.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var challenge *mfaChallenge
	if errors.As(err, &challenge) {
		writeMFARequired(w, challenge.token, challenge.methods)
		return
	}

	var oe *oauthError
	if !errors.As(err, &oe) {
		slogx.FromContext(r.Context()).Error("request failed", "error", err)
		oe = &oauthError{http.StatusInternalServerError, authsdk.ErrorCodeServerError, ""}
	}
	if oe.status == http.StatusUnauthorized && oe.code == authsdk.ErrorCodeInvalidClient {
		w.Header().Set("WWW-Authenticate", `Basic realm="oauthtest"`)
	}
	httpx.WriteOAuthError(w, oe.status, oe.code, oe.description)
}

// writeBearerError answers a protected resource request per RFC 6750
// section 3.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	httpx.WriteOAuthError(w, http.StatusUnauthorized, authsdk.ErrorCodeInvalidToken, desc)
}

func writeMFARequired(w http.ResponseWriter, mfaToken string, methods []string) {
	httpx.WriteJSON(w, http.StatusConflict, map[string]any{
		"error":             authsdk.ErrorCodeMFARequired,
		"error_description": "multi-factor authentication is required to complete this request",
		"mfa_token":         mfaToken,
		"mfa_methods":       methods,
	})
}
