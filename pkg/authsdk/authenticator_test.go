package authsdk

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAuthenticatorApply(t *testing.T) {
	t.Parallel()

	basic := "Basic " + base64.StdEncoding.EncodeToString([]byte("abc:def"))

	tests := []struct {
		name       string
		mode       AuthMode
		in         TokenRequest
		wantParams Params
		wantAuth   string
	}{
		{
			name:       "basic auth on empty request",
			mode:       AuthModeBasic,
			wantParams: Params{},
			wantAuth:   basic,
		},
		{
			name:       "basic auth keeps caller header",
			mode:       AuthModeBasic,
			in:         TokenRequest{Headers: Headers{"authorization": "Bearer mine"}},
			wantParams: Params{},
			wantAuth:   "Bearer mine",
		},
		{
			name:       "basic auth leaves params alone",
			mode:       AuthModeBasic,
			in:         TokenRequest{Params: Params{"grant_type": "password"}},
			wantParams: Params{"grant_type": "password"},
			wantAuth:   basic,
		},
		{
			name:       "request body",
			mode:       AuthModeRequestBody,
			wantParams: Params{"client_id": "abc", "client_secret": "def"},
		},
		{
			name:       "request body keeps caller secret",
			mode:       AuthModeRequestBody,
			in:         TokenRequest{Params: Params{"client_secret": "s3cr3t"}},
			wantParams: Params{"client_id": "abc", "client_secret": "s3cr3t"},
		},
		{
			name:       "request body keeps caller id",
			mode:       AuthModeRequestBody,
			in:         TokenRequest{Params: Params{"client_id": "other"}},
			wantParams: Params{"client_id": "other", "client_secret": "def"},
		},
		{
			name:       "tls client auth sends id only",
			mode:       AuthModeTLSClientAuth,
			wantParams: Params{"client_id": "abc"},
		},
		{
			name:       "tls client auth keeps caller id",
			mode:       AuthModeTLSClientAuth,
			in:         TokenRequest{Params: Params{"client_id": "other"}},
			wantParams: Params{"client_id": "other"},
		},
		{
			name:       "private key jwt passes through",
			mode:       AuthModePrivateKeyJWT,
			in:         TokenRequest{Params: Params{"client_assertion": "jwt"}},
			wantParams: Params{"client_assertion": "jwt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := NewAuthenticator("abc", "def", tt.mode).Apply(tt.in)
			require.NoError(t, err)
			require.Equal(t, tt.wantParams, got.Params)

			auth, _ := got.Headers.Get("Authorization")
			require.Equal(t, tt.wantAuth, auth)
		})
	}
}

func TestAuthenticatorApplyDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	in := TokenRequest{
		Params:  Params{"grant_type": "client_credentials"},
		Headers: Headers{"Accept": "application/json"},
	}

	_, err := NewAuthenticator("abc", "def", AuthModeRequestBody).Apply(in)
	require.NoError(t, err)
	_, err = NewAuthenticator("abc", "def", AuthModeBasic).Apply(in)
	require.NoError(t, err)

	require.Equal(t, Params{"grant_type": "client_credentials"}, in.Params)
	require.Equal(t, Headers{"Accept": "application/json"}, in.Headers)
}

func TestAuthenticatorUnknownMode(t *testing.T) {
	t.Parallel()

	_, err := NewAuthenticator("abc", "def", AuthMode("carrier_pigeon")).Apply(TokenRequest{})
	require.ErrorIs(t, err, ErrUnsupportedAuthMode)
	require.Contains(t, err.Error(), "carrier_pigeon")
}

func TestEncodeBasicAuthSingleLine(t *testing.T) {
	t.Parallel()

	id := strings.Repeat("client", 20)
	secret := strings.Repeat("secret", 20)

	header := EncodeBasicAuth(id, secret)
	require.NotContains(t, header, "\n")
	require.True(t, strings.HasPrefix(header, "Basic "))

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(header, "Basic "))
	require.NoError(t, err)
	require.Equal(t, id+":"+secret, string(raw))
}
