package authsdk

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aussiebroadwan/oauthsdk/pkg/jwtx"
)

// Assertion implements the JWT bearer grant (RFC 7523) over a free-form
// claim map. The claims are signed as given, apart from iat and exp which
// are filled in when missing.
type Assertion struct {
	base
}

// Grant implements Strategy.
func (*Assertion) Grant() GrantType { return GrantAssertion }

// AuthorizeURL is not supported, the grant involves no browser.
func (*Assertion) AuthorizeURL(Params) (string, error) {
	return "", unsupported(GrantAssertion, "AuthorizeURL", "no browser redirect is involved")
}

// GetToken posts an already signed assertion: params must carry
// "assertion". The response never yields a refresh token.
func (g *Assertion) GetToken(ctx context.Context, params Params, opts TokenOptions) (*AccessToken, error) {
	return postAssertion(ctx, g.client, params, opts)
}

// Exchange signs claims with signer and posts the result. A "scope" in
// params goes in the form body as well.
func (g *Assertion) Exchange(ctx context.Context, claims jwt.MapClaims, signer jwtx.Signer, params Params, opts TokenOptions) (*AccessToken, error) {
	assertion, err := g.Sign(claims, signer)
	if err != nil {
		return nil, err
	}
	return g.GetToken(ctx, Merge(params, Params{"assertion": assertion}), opts)
}

// Sign returns the signed assertion for claims without sending it. The
// caller's map is not modified.
func (g *Assertion) Sign(claims jwt.MapClaims, signer jwtx.Signer) (string, error) {
	if signer == nil {
		return "", fmt.Errorf("%w: no assertion signer", ErrInvalidConfig)
	}
	if err := signer.Validate(); err != nil {
		return "", err
	}

	c := maps.Clone(claims)
	if c == nil {
		c = jwt.MapClaims{}
	}
	now := g.client.Now()
	if _, ok := c["iat"]; !ok {
		c["iat"] = now.Unix()
	}
	if _, ok := c["exp"]; !ok {
		c["exp"] = now.Add(jwtx.DefaultAssertionTTL).Unix()
	}

	signed, err := signer.Sign(c)
	if err != nil {
		return "", fmt.Errorf("failed to sign assertion: %w", err)
	}
	return signed, nil
}

// JWTBearer implements the JWT bearer grant (RFC 7523) over the typed
// jwtx.BearerClaims set, including the non-standard "scope" claim some
// servers expect.
type JWTBearer struct {
	base
}

// Grant implements Strategy.
func (*JWTBearer) Grant() GrantType { return GrantJWTBearer }

// AuthorizeURL is not supported, the grant involves no browser.
func (*JWTBearer) AuthorizeURL(Params) (string, error) {
	return "", unsupported(GrantJWTBearer, "AuthorizeURL", "no browser redirect is involved")
}

// GetToken posts an already signed assertion: params must carry
// "assertion". The response never yields a refresh token.
func (g *JWTBearer) GetToken(ctx context.Context, params Params, opts TokenOptions) (*AccessToken, error) {
	return postAssertion(ctx, g.client, params, opts)
}

// Claims returns bearer claims issued now by the client clock, with the
// token endpoint as audience.
func (g *JWTBearer) Claims(issuer, subject string, scopes []string) jwtx.BearerClaims {
	return jwtx.NewBearerClaims(issuer, subject, []string{g.client.TokenURL()}, scopes, 0, g.client.Now())
}

// Exchange signs claims with signer and posts the result. When the claims
// carry no scope, params["scope"] is copied into them; either way the scope
// parameter is sent in the body too.
func (g *JWTBearer) Exchange(ctx context.Context, claims jwtx.BearerClaims, signer jwtx.Signer, params Params, opts TokenOptions) (*AccessToken, error) {
	if claims.Scope == "" {
		claims.Scope = params["scope"]
	}
	if claims.ID == "" {
		claims.ID = jwtx.NewJTI()
	}
	if err := claims.Validate(); err != nil {
		return nil, err
	}

	if signer == nil {
		return nil, fmt.Errorf("%w: no assertion signer", ErrInvalidConfig)
	}
	if err := signer.Validate(); err != nil {
		return nil, err
	}

	assertion, err := signer.Sign(claims)
	if err != nil {
		return nil, fmt.Errorf("failed to sign assertion: %w", err)
	}

	body := Params{"assertion": assertion}
	if claims.Scope != "" && !params.Has("scope") {
		body["scope"] = claims.Scope
	}
	return g.GetToken(ctx, Merge(params, body), opts)
}

// postAssertion sends the jwt-bearer grant shared by Assertion and JWTBearer.
func postAssertion(ctx context.Context, c *Client, params Params, opts TokenOptions) (*AccessToken, error) {
	if strings.TrimSpace(params["assertion"]) == "" {
		return nil, fmt.Errorf("%w: missing assertion parameter", ErrInvalidConfig)
	}

	opts.NoRefreshToken = true
	return c.GetToken(ctx, Merge(Params{"grant_type": grantTypeJWTBearer}, params), opts)
}
