package authsdk

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"

	"github.com/aussiebroadwan/oauthsdk/pkg/cryptox"
)

// AuthCode implements the authorization code grant (RFC 6749 section 4.1).
type AuthCode struct {
	base
}

// Grant implements Strategy.
func (*AuthCode) Grant() GrantType { return GrantAuthCode }

// AuthorizeURL returns the URL to redirect the resource owner to, with
// response_type=code and client_id set. params win, so redirect_uri, state,
// scope and PKCE parameters are passed through it.
//
// Example:
//
//	pkce, _ := authsdk.GeneratePKCEChallenge()
//	u, _ := client.AuthCode().AuthorizeURL(pkce.Apply(authsdk.Params{
//	    "redirect_uri": "https://localhost/callback",
//	    "state":        state,
//	}))
func (g *AuthCode) AuthorizeURL(params Params) (string, error) {
	return g.authorizeURL("code", params)
}

// GetToken exchanges an authorization code. params must carry "code" and
// usually "redirect_uri"; grant_type defaults to authorization_code.
func (g *AuthCode) GetToken(ctx context.Context, params Params, opts TokenOptions) (*AccessToken, error) {
	return g.client.GetToken(ctx, Merge(Params{"grant_type": string(GrantAuthCode)}, params), opts)
}

// Exchange trades code for a token. params are merged over
// {grant_type: authorization_code, code}.
func (g *AuthCode) Exchange(ctx context.Context, code string, params Params, opts TokenOptions) (*AccessToken, error) {
	return g.GetToken(ctx, Merge(Params{"code": code}, params), opts)
}

// RefreshAccessToken runs the refresh_token grant. If the server doesn't
// hand out a new refresh token, the returned token keeps refreshToken.
func (g *AuthCode) RefreshAccessToken(ctx context.Context, refreshToken string, params Params, opts TokenOptions) (*AccessToken, error) {
	if opts.RefreshToken == "" {
		opts.RefreshToken = refreshToken
	}
	return g.client.GetToken(ctx, Merge(Params{
		"grant_type":    grantTypeRefresh,
		"refresh_token": refreshToken,
	}, params), opts)
}

// WebServer is the legacy name of the authorization code grant. It behaves
// exactly like AuthCode.
type WebServer struct {
	AuthCode
}

// Grant implements Strategy.
func (*WebServer) Grant() GrantType { return GrantWebServer }

// ============================================================================
// PKCE (RFC 7636)
// ============================================================================

// PKCEChallenge holds the PKCE verifier and challenge pair.
// The verifier is kept secret by the client, and the challenge is sent to the authorization endpoint.
type PKCEChallenge struct {
	// Verifier is the high-entropy cryptographic random string (kept secret)
	Verifier string

	// Challenge is the base64url-encoded SHA256 hash of the verifier (sent to server)
	Challenge string

	// Method is always "S256" for SHA256
	Method string
}

// GeneratePKCEChallenge creates a new PKCE code verifier and challenge pair.
// Uses cryptox.TokenSize256 (256 bits of entropy) and SHA256 hashing per RFC 7636.
func GeneratePKCEChallenge() (*PKCEChallenge, error) {
	verifier, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, fmt.Errorf("failed to generate PKCE verifier: %w", err)
	}

	hash := sha256.Sum256([]byte(verifier))

	return &PKCEChallenge{
		Verifier:  verifier,
		Challenge: base64.RawURLEncoding.EncodeToString(hash[:]),
		Method:    "S256",
	}, nil
}

// Apply adds code_challenge and code_challenge_method to authorize params.
func (p *PKCEChallenge) Apply(params Params) Params {
	return Merge(params, Params{
		"code_challenge":        p.Challenge,
		"code_challenge_method": p.Method,
	})
}

// VerifierParams returns the code_verifier parameter for the code exchange.
func (p *PKCEChallenge) VerifierParams() Params {
	return Params{"code_verifier": p.Verifier}
}

// ParseAuthorizationCallback parses the callback URL from an authorization redirect.
// This extracts the authorization code and state from the redirect URL query parameters.
//
// An error redirect (?error=access_denied) comes back as an *Error.
//
// Example:
//
//	code, state, err := authsdk.ParseAuthorizationCallback("https://localhost/callback?code=xyz&state=abc")
//	if err != nil {
//	    // Handle error (e.g., user denied authorization)
//	}
//	// Verify state matches what you sent, then call AuthCode().Exchange
func ParseAuthorizationCallback(callbackURL string) (code, state string, err error) {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return "", "", fmt.Errorf("%w: failed to parse callback URL: %v", ErrInvalidURL, err)
	}

	query := u.Query()
	if err := callbackError(query); err != nil {
		return "", "", err
	}

	code = query.Get("code")
	if code == "" {
		return "", "", fmt.Errorf("callback missing authorization code")
	}

	return code, query.Get("state"), nil
}
