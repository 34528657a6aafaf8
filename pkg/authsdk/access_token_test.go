package authsdk

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewAccessTokenExpiry(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	client := newTestClient(t, "https://auth.example.com", Options{Clock: clock.Now})

	t.Run("no expiry", func(t *testing.T) {
		for _, v := range []any{nil, ""} {
			token, err := NewAccessToken(client, "salmon", "", v, nil)
			require.NoError(t, err)
			require.False(t, token.Expires())
			require.False(t, token.Expired())
			require.True(t, token.ExpiresAt.IsZero())
			require.Zero(t, token.ExpiresIn)
		}
	})

	t.Run("numeric values", func(t *testing.T) {
		for _, v := range []any{600, int64(600), 600.0, "600", " 600 ", json.Number("600")} {
			token, err := NewAccessToken(client, "salmon", "", v, nil)
			require.NoError(t, err, "expires_in %#v", v)
			require.True(t, token.Expires())
			require.Equal(t, 600, token.ExpiresIn)
			require.Equal(t, clock.Now().Add(600*time.Second), token.ExpiresAt)
		}
	})

	t.Run("invalid value", func(t *testing.T) {
		_, err := NewAccessToken(client, "salmon", "", "soon", nil)
		require.ErrorIs(t, err, ErrInvalidExpiresIn)

		_, err = NewAccessToken(client, "salmon", "", []int{1}, nil)
		require.ErrorIs(t, err, ErrInvalidExpiresIn)
	})

	t.Run("lifetimes beyond time.Duration", func(t *testing.T) {
		for _, v := range []any{1e11, 1e30, -1e30, "1e30", "99999999999", int64(math.MaxInt64), json.Number("1e11")} {
			_, err := NewAccessToken(client, "salmon", "", v, nil)
			require.ErrorIs(t, err, ErrInvalidExpiresIn, "expires_in %#v", v)
		}

		longest := int64(9_000_000_000)
		token, err := NewAccessToken(client, "salmon", "", longest, nil)
		require.NoError(t, err)
		require.False(t, token.Expired())
		require.Equal(t, clock.Now().Add(time.Duration(longest)*time.Second), token.ExpiresAt)
	})
}

func TestAccessTokenExpiredAfterClockPasses(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	client := newTestClient(t, "https://auth.example.com", Options{Clock: clock.Now})

	token, err := NewAccessToken(client, "salmon", "", 60, nil)
	require.NoError(t, err)
	require.False(t, token.Expired())

	clock.Advance(60 * time.Second)
	require.False(t, token.Expired(), "expiry instant itself is not in the past")

	clock.Advance(time.Second)
	require.True(t, token.Expired())
}

func TestAccessTokenParams(t *testing.T) {
	t.Parallel()

	params := map[string]any{"extra_param": "steve", "tokenType": "bearer"}
	token, err := NewAccessToken(nil, "salmon", "trout", nil, params)
	require.NoError(t, err)

	require.Equal(t, "steve", token.Param("extra_param"))
	require.Equal(t, "bearer", token.Param("token_type"))
	require.Nil(t, token.Param("missing"))

	params["extra_param"] = "changed"
	require.Equal(t, "steve", token.Param("extra_param"), "params are copied")
}

func TestAccessTokenRequestModes(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, func(w http.ResponseWriter, _ recordedRequest) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	client := newTestClient(t, srv.URL, Options{})
	ctx := context.Background()

	t.Run("header mode", func(t *testing.T) {
		token, err := NewAccessToken(client, "salmon", "", nil, nil)
		require.NoError(t, err)

		_, err = token.Get(ctx, "/api/fish", RequestOptions{Params: Params{"q": "1"}})
		require.NoError(t, err)

		req := srv.last(t)
		require.Equal(t, http.MethodGet, req.Method)
		require.Equal(t, "/api/fish", req.Path)
		require.Equal(t, "OAuth salmon", req.Header.Get("Authorization"))
		require.Equal(t, "1", req.Query.Get("q"))
	})

	t.Run("caller header wins", func(t *testing.T) {
		token, err := NewAccessToken(client, "salmon", "", nil, nil)
		require.NoError(t, err)

		_, err = token.Post(ctx, "/api/fish", RequestOptions{Headers: Headers{"authorization": "Bearer other"}})
		require.NoError(t, err)
		require.Equal(t, "Bearer other", srv.last(t).Header.Get("Authorization"))
	})

	t.Run("query mode", func(t *testing.T) {
		token, err := NewAccessToken(client, "salmon", "", nil, nil)
		require.NoError(t, err)
		token.Mode = TokenModeQuery
		token.ParamName = "bearer_token"

		_, err = token.Delete(ctx, "/api/fish/1", RequestOptions{})
		require.NoError(t, err)

		req := srv.last(t)
		require.Equal(t, http.MethodDelete, req.Method)
		require.Equal(t, "salmon", req.Query.Get("bearer_token"))
		require.Empty(t, req.Header.Get("Authorization"))
	})

	t.Run("query mode on post keeps body", func(t *testing.T) {
		token, err := NewAccessToken(client, "salmon", "", nil, nil)
		require.NoError(t, err)
		token.Mode = TokenModeQuery

		_, err = token.Post(ctx, "/api/fish", RequestOptions{Params: Params{"name": "trout"}})
		require.NoError(t, err)

		req := srv.last(t)
		require.Equal(t, "salmon", req.Query.Get("access_token"))
		require.Equal(t, "trout", req.Form.Get("name"))
		require.Empty(t, req.Form.Get("access_token"))
	})

	t.Run("body mode", func(t *testing.T) {
		token, err := NewAccessToken(client, "salmon", "", nil, nil)
		require.NoError(t, err)
		token.Mode = TokenModeBody

		_, err = token.Put(ctx, "/api/fish/1", RequestOptions{Params: Params{"name": "trout"}})
		require.NoError(t, err)

		req := srv.last(t)
		require.Equal(t, http.MethodPut, req.Method)
		require.Equal(t, "salmon", req.Form.Get("access_token"))
		require.Equal(t, "trout", req.Form.Get("name"))
	})
}

func TestAccessTokenRequestWithoutClient(t *testing.T) {
	t.Parallel()

	token, err := NewAccessToken(nil, "salmon", "", nil, nil)
	require.NoError(t, err)

	_, err = token.Get(context.Background(), "/api", RequestOptions{})
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestAccessTokenRefresh(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, tokenHandler(map[string]any{
		"access_token": "new-salmon",
		"expires_in":   300,
	}))
	client := newTestClient(t, srv.URL, Options{})

	token, err := NewAccessToken(client, "salmon", "trout", 600, map[string]any{"scope": "read"})
	require.NoError(t, err)
	token.Mode = TokenModeQuery

	fresh, err := token.Refresh(context.Background(), Params{"scope": "read"})
	require.NoError(t, err)

	req := srv.last(t)
	require.Equal(t, "/oauth/token", req.Path)
	require.Equal(t, "refresh_token", req.Form.Get("grant_type"))
	require.Equal(t, "trout", req.Form.Get("refresh_token"))
	require.Equal(t, "read", req.Form.Get("scope"))
	require.Equal(t, EncodeBasicAuth("abc", "def"), req.Header.Get("Authorization"))

	require.Equal(t, "new-salmon", fresh.Token)
	require.Equal(t, "trout", fresh.RefreshToken, "server did not rotate the refresh token")
	require.Equal(t, 300, fresh.ExpiresIn)
	require.Equal(t, TokenModeQuery, fresh.Mode)

	require.Equal(t, "salmon", token.Token, "original token is untouched")
}

func TestAccessTokenRefreshWithoutRefreshToken(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, "https://auth.example.com", Options{})
	token, err := NewAccessToken(client, "salmon", "", nil, nil)
	require.NoError(t, err)

	_, err = token.Refresh(context.Background(), nil)
	require.ErrorIs(t, err, ErrInvalidConfig)
}

func TestAccessTokenMapRoundTrip(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1_800_000_000, 0)}
	client := newTestClient(t, "https://auth.example.com", Options{Clock: clock.Now})

	token, err := NewAccessToken(client, "salmon", "trout", 600, map[string]any{"extra_param": "steve"})
	require.NoError(t, err)

	m := token.ToMap()
	require.Equal(t, "salmon", m["access_token"])
	require.Equal(t, "trout", m["refresh_token"])
	require.Equal(t, int64(1_800_000_600), m["expires_at"])

	clock.Advance(100 * time.Second)
	restored, err := AccessTokenFromMap(client, m)
	require.NoError(t, err)
	require.Equal(t, token.ExpiresAt.Unix(), restored.ExpiresAt.Unix(), "expires_at survives the round trip")
	require.Equal(t, "steve", restored.Param("extra_param"))
	require.Nil(t, restored.Param("expires_at"))
}

func TestAccessTokenFromKVForm(t *testing.T) {
	t.Parallel()

	token, err := AccessTokenFromKVForm(nil, "expires_in=600&access_token=salmon&refresh_token=trout&extra_param=steve")
	require.NoError(t, err)
	require.Equal(t, "salmon", token.Token)
	require.Equal(t, "trout", token.RefreshToken)
	require.Equal(t, 600, token.ExpiresIn)
	require.Equal(t, "steve", token.Param("extra_param"))

	_, err = AccessTokenFromKVForm(nil, "token_type=bearer")
	require.ErrorIs(t, err, ErrMissingAccessToken)
}

func TestAccessTokenOAuth2Token(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Unix(1_800_000_000, 0)}
	client := newTestClient(t, "https://auth.example.com", Options{Clock: clock.Now})

	token, err := NewAccessToken(client, "salmon", "trout", 600, map[string]any{
		"token_type":  "Bearer",
		"extra_param": "steve",
	})
	require.NoError(t, err)

	tok := token.OAuth2Token()
	require.Equal(t, "salmon", tok.AccessToken)
	require.Equal(t, "trout", tok.RefreshToken)
	require.Equal(t, "Bearer", tok.TokenType)
	require.Equal(t, time.Unix(1_800_000_600, 0), tok.Expiry)
	require.Equal(t, "steve", tok.Extra("extra_param"))
}
