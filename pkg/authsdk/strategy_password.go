package authsdk

import "context"

// Password implements the resource owner password credentials grant
// (RFC 6749 section 4.3).
type Password struct {
	base
}

// Grant implements Strategy.
func (*Password) Grant() GrantType { return GrantPassword }

// AuthorizeURL is not supported, the grant involves no browser.
func (*Password) AuthorizeURL(Params) (string, error) {
	return "", unsupported(GrantPassword, "AuthorizeURL", "no browser redirect is involved")
}

// GetToken posts params with grant_type=password. params should carry
// username and password; Exchange is the typed shorthand.
func (g *Password) GetToken(ctx context.Context, params Params, opts TokenOptions) (*AccessToken, error) {
	return g.client.GetToken(ctx, Merge(Params{"grant_type": string(GrantPassword)}, params), opts)
}

// Exchange requests a token for username and password. A server that wants
// a second factor answers with *MFARequiredError; continue with
// Client.MFAOTP().
func (g *Password) Exchange(ctx context.Context, username, password string, params Params, opts TokenOptions) (*AccessToken, error) {
	return g.GetToken(ctx, Merge(Params{
		"username": username,
		"password": password,
	}, params), opts)
}
