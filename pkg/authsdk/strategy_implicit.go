package authsdk

import (
	"context"
	"fmt"
	"net/url"
)

// Implicit implements the implicit grant (RFC 6749 section 4.2). The token
// arrives in the fragment of the redirect, so there is no token request.
type Implicit struct {
	base
}

// Grant implements Strategy.
func (*Implicit) Grant() GrantType { return GrantImplicit }

// AuthorizeURL returns the authorization URL with response_type=token.
func (g *Implicit) AuthorizeURL(params Params) (string, error) {
	return g.authorizeURL("token", params)
}

// GetToken always fails: implicit tokens come from the redirect fragment.
// Use ParseFragment instead.
func (*Implicit) GetToken(context.Context, Params, TokenOptions) (*AccessToken, error) {
	return nil, unsupported(GrantImplicit, "GetToken", "the token is delivered in the redirect fragment")
}

// ParseFragment builds a token from the fragment of the redirect the
// authorization server sent the browser to, e.g.
// "https://app/cb#access_token=abc&token_type=bearer&expires_in=3600".
func (g *Implicit) ParseFragment(callbackURL string) (*AccessToken, error) {
	u, err := url.Parse(callbackURL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse callback URL: %v", ErrInvalidURL, err)
	}

	values, err := url.ParseQuery(u.Fragment)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed fragment: %v", ErrInvalidURL, err)
	}
	if err := callbackError(values); err != nil {
		return nil, err
	}

	return AccessTokenFromKVForm(g.client, values.Encode())
}
