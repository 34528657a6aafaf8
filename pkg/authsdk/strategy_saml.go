package authsdk

import "context"

// SAMLAssertion implements the SAML 2.0 bearer grant (RFC 7522). The caller
// supplies the base64url encoded SAML assertion as params["assertion"].
type SAMLAssertion struct {
	base
}

// Grant implements Strategy.
func (*SAMLAssertion) Grant() GrantType { return GrantSAMLAssertion }

// AuthorizeURL is not supported, the grant involves no browser.
func (*SAMLAssertion) AuthorizeURL(Params) (string, error) {
	return "", unsupported(GrantSAMLAssertion, "AuthorizeURL", "no browser redirect is involved")
}

// GetToken merges params over the client params and forwards them to the
// token endpoint. grant_type defaults to the saml2-bearer URN. The client
// credentials travel in the body only, so no Authorization header is added.
// The response never yields a refresh token, whatever opts say.
func (g *SAMLAssertion) GetToken(ctx context.Context, params Params, opts TokenOptions) (*AccessToken, error) {
	params = g.ClientParams(params)
	if !params.Has("grant_type") {
		params["grant_type"] = grantTypeSAML2Bearer
	}

	opts.NoRefreshToken = true
	opts.RefreshToken = ""
	opts.bypassAuth = true
	return g.client.GetToken(ctx, params, opts)
}
