package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"
)

// ============================================================================
// OAuth2 Error Codes (RFC 6749)
// ============================================================================

const (
	ErrorCodeInvalidRequest          = "invalid_request"
	ErrorCodeInvalidClient           = "invalid_client"
	ErrorCodeInvalidGrant            = "invalid_grant"
	ErrorCodeUnauthorizedClient      = "unauthorized_client"
	ErrorCodeUnsupportedGrantType    = "unsupported_grant_type"
	ErrorCodeInvalidScope            = "invalid_scope"
	ErrorCodeServerError             = "server_error"
	ErrorCodeInvalidToken            = "invalid_token"
	ErrorCodeMFARequired             = "mfa_required"
	ErrorCodeInsufficientScope       = "insufficient_scope"
	ErrorCodeAccessDenied            = "access_denied"
	ErrorCodeUnsupportedResponseType = "unsupported_response_type"
)

// ============================================================================
// Sentinel errors
// ============================================================================

var (
	// ErrUnauthorized matches an *Error produced by an HTTP 401 response.
	ErrUnauthorized = errors.New("authsdk: unauthorized")

	// ErrHTTP matches an *Error produced by any other non-2xx response.
	ErrHTTP = errors.New("authsdk: http error")

	// ErrUnsupported matches an *UnsupportedError.
	ErrUnsupported = errors.New("authsdk: operation not supported")

	// ErrMissingAccessToken is returned when a token response parses but
	// carries neither an access token nor an OAuth2 error.
	ErrMissingAccessToken = errors.New("authsdk: response has no access_token")

	// ErrMissingMACKey is returned by GetMACToken when the response has no
	// mac_key.
	ErrMissingMACKey = errors.New("authsdk: response has no mac_key")

	// Configuration errors, raised before any network or crypto work.
	ErrUnsupportedAuthMode  = errors.New("authsdk: unsupported authenticator mode")
	ErrUnsupportedAlgorithm = errors.New("authsdk: unsupported MAC algorithm")
	ErrInvalidURL           = errors.New("authsdk: invalid URL")
	ErrInvalidExpiresIn     = errors.New("authsdk: invalid expires_in")
	ErrMissingKeyID         = errors.New("authsdk: missing kid for key-id MAC token")
	ErrInvalidConfig        = errors.New("authsdk: invalid client configuration")
)

// ============================================================================
// Error - OAuth2 / HTTP protocol error
// ============================================================================

// Error is a protocol level failure: the server answered with a non-2xx
// status or with an OAuth2 error body. The raw response is kept for callers
// that need to look at headers or the body.
type Error struct {
	// StatusCode is the HTTP status code of the response
	StatusCode int `json:"-"`

	// Code is the OAuth2 error code (e.g., "invalid_request", "invalid_grant")
	Code string `json:"error"`

	// Description is a human-readable description of the error
	Description string `json:"error_description"`

	// URI points at a human readable page about the error, if the server sent one
	URI string `json:"error_uri,omitempty"`

	// Response is the response that produced the error
	Response *Response `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	switch {
	case e.Code != "" && e.Description != "":
		fmt.Fprintf(&b, "%s: %s", e.Code, e.Description)
	case e.Code != "":
		b.WriteString(e.Code)
	default:
		fmt.Fprintf(&b, "HTTP %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
	}

	if e.Response != nil && len(e.Response.Body) > 0 {
		b.WriteByte('\n')
		b.WriteString(bodyForMessage(e.Response.Body))
	}
	return b.String()
}

// Is lets errors.Is match ErrUnauthorized and ErrHTTP.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrHTTP:
		if e.StatusCode == 0 || e.StatusCode == http.StatusUnauthorized {
			return false
		}
		return e.StatusCode < 200 || e.StatusCode >= 300
	}
	return false
}

// Unauthorized reports whether the server answered 401.
func (e *Error) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}

// NewError creates a new Error with the given status code, error code, and description.
func NewError(statusCode int, code, description string) *Error {
	return &Error{
		StatusCode:  statusCode,
		Code:        code,
		Description: description,
	}
}

// bodyForMessage renders a response body for an error message. Bodies that
// are not valid UTF-8 are used as they are; composing the message must not
// fail just because the server lied about its charset.
func bodyForMessage(body []byte) string {
	const maxLen = 512
	if len(body) > maxLen {
		body = body[:maxLen]
	}
	if !utf8.Valid(body) {
		return string(body)
	}
	return strings.TrimSpace(string(body))
}

// ============================================================================
// MFA Error Response
// ============================================================================

// MFARequiredError is returned when the token endpoint answers 409 with
// mfa_required. Continue the flow with Client.MFAOTP().
type MFARequiredError struct {
	// MFAToken is the token to use when submitting the MFA response
	MFAToken string `json:"mfa_token"`

	// Methods lists the available MFA methods (e.g., ["totp", "backup_codes"])
	Methods []string `json:"mfa_methods"`
}

// Error implements the error interface.
func (e *MFARequiredError) Error() string {
	return fmt.Sprintf("MFA required: available methods=%v", e.Methods)
}

// ============================================================================
// UnsupportedError
// ============================================================================

// UnsupportedError is returned when a grant structurally cannot perform an
// operation, e.g. AuthorizeURL on the password grant. It is returned before
// any network call.
type UnsupportedError struct {
	Grant     GrantType
	Operation string
	Reason    string
}

func (e *UnsupportedError) Error() string {
	msg := fmt.Sprintf("authsdk: %s not supported by the %s grant", e.Operation, e.Grant)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Is lets errors.Is match ErrUnsupported.
func (e *UnsupportedError) Is(target error) bool {
	return target == ErrUnsupported
}

func unsupported(grant GrantType, op, reason string) error {
	return &UnsupportedError{Grant: grant, Operation: op, Reason: reason}
}

// ============================================================================
// Error Parsing Helpers
// ============================================================================

// parseErrorResponse turns a non-2xx response into a typed error. It checks
// for MFA challenges (409) and OAuth2 error bodies (JSON or form encoded),
// falling back to a bare status error.
func parseErrorResponse(resp *Response) error {
	if resp.Status >= 200 && resp.Status < 300 {
		return nil
	}

	if resp.Status == http.StatusConflict {
		var mfaResp struct {
			Error      string   `json:"error"`
			MFAToken   string   `json:"mfa_token"`
			MFAMethods []string `json:"mfa_methods"`
		}
		if err := json.Unmarshal(resp.Body, &mfaResp); err == nil {
			if mfaResp.Error == ErrorCodeMFARequired && mfaResp.MFAToken != "" {
				return &MFARequiredError{
					MFAToken: mfaResp.MFAToken,
					Methods:  mfaResp.MFAMethods,
				}
			}
		}
	}

	oauthErr := &Error{StatusCode: resp.Status, Response: resp}
	if parsed, ok := resp.Parsed(); ok {
		oauthErr.Code = stringValue(parsed["error"])
		oauthErr.Description = stringValue(parsed["error_description"])
		oauthErr.URI = stringValue(parsed["error_uri"])
	}
	return oauthErr
}

// errorFromParsed builds an *Error from a 2xx body that still carries an
// OAuth2 "error" field. Returns nil when there is none.
func errorFromParsed(resp *Response, parsed map[string]any) error {
	code := stringValue(parsed["error"])
	if code == "" {
		return nil
	}
	return &Error{
		StatusCode:  resp.Status,
		Code:        code,
		Description: stringValue(parsed["error_description"]),
		URI:         stringValue(parsed["error_uri"]),
		Response:    resp,
	}
}

// callbackError reads error/error_description from redirect parameters.
func callbackError(values url.Values) error {
	code := values.Get("error")
	if code == "" {
		return nil
	}
	return &Error{
		Code:        code,
		Description: values.Get("error_description"),
		URI:         values.Get("error_uri"),
	}
}
