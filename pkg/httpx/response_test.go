package httpx

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusCreated, map[string]string{"k": "v"})

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	require.Equal(t, "no-cache", rec.Header().Get("Pragma"))
	require.JSONEq(t, `{"k":"v"}`, rec.Body.String())
}

func TestWriteForm(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteForm(rec, http.StatusOK, url.Values{"access_token": {"salmon"}, "expires": {"600"}})

	require.Equal(t, "application/x-www-form-urlencoded", rec.Header().Get("Content-Type"))
	require.Equal(t, "access_token=salmon&expires=600", rec.Body.String())
}

func TestWriteOAuthError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteOAuthError(rec, http.StatusBadRequest, "invalid_grant", "")

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, map[string]string{"error": "invalid_grant"}, body)

	rec = httptest.NewRecorder()
	WriteOAuthError(rec, http.StatusUnauthorized, "invalid_client", "unknown client")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Body.String(), `"error_description":"unknown client"`)
}

func TestParseSpaceDelimitedFields(t *testing.T) {
	require.Nil(t, ParseSpaceDelimitedFields("   "))
	require.Equal(t, []string{"read", "write"}, ParseSpaceDelimitedFields(" read  write "))
}
