package httpx

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// WriteJSON writes v as JSON with the given status code. Responses are
// marked uncacheable since they usually carry credentials.
func WriteJSON(w http.ResponseWriter, code int, v any) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteForm writes values as an application/x-www-form-urlencoded body, the
// way some older authorization servers answer token requests.
func WriteForm(w http.ResponseWriter, code int, values url.Values) {
	NoCache(w)
	w.Header().Set("Content-Type", "application/x-www-form-urlencoded")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(values.Encode()))
}

// WriteOAuthError writes an RFC 6749 section 5.2 error body.
func WriteOAuthError(w http.ResponseWriter, code int, errCode, description string) {
	body := map[string]string{"error": errCode}
	if description != "" {
		body["error_description"] = description
	}
	WriteJSON(w, code, body)
}

// NoCache sets the Cache-Control and Pragma headers to prevent caching.
func NoCache(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

// ParseSpaceDelimitedFields splits a space-delimited list such as a scope
// parameter. Blank input gives nil.
func ParseSpaceDelimitedFields(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return strings.Fields(s)
}
