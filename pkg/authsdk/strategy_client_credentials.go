package authsdk

import (
	"context"

	"golang.org/x/oauth2"
)

// ClientCredentials implements the client credentials grant (RFC 6749
// section 4.4). It attaches the credentials itself instead of going through
// the client's Authenticator: TokenOptions.AuthScheme == AuthModeRequestBody
// sends them as body parameters, anything else as a Basic header.
type ClientCredentials struct {
	base
}

// Grant implements Strategy.
func (*ClientCredentials) Grant() GrantType { return GrantClientCredentials }

// AuthorizeURL is not supported, the grant involves no browser.
func (*ClientCredentials) AuthorizeURL(Params) (string, error) {
	return "", unsupported(GrantClientCredentials, "AuthorizeURL", "no browser redirect is involved")
}

// GetToken posts {grant_type: client_credentials} merged with params.
func (g *ClientCredentials) GetToken(ctx context.Context, params Params, opts TokenOptions) (*AccessToken, error) {
	params = Merge(Params{"grant_type": string(GrantClientCredentials)}, params)

	if opts.AuthScheme == AuthModeRequestBody {
		params = g.ClientParams(params)
	} else {
		opts.Headers = MergeHeaders(Headers{
			"Authorization": EncodeBasicAuth(g.client.ID, g.client.Secret),
		}, opts.Headers)
	}

	opts.bypassAuth = true
	return g.client.GetToken(ctx, params, opts)
}

// TokenSource returns an oauth2.TokenSource that fetches a new token through
// this grant whenever the cached one is about to expire. ctx is used for
// every token request the source makes.
func (g *ClientCredentials) TokenSource(ctx context.Context, params Params, opts TokenOptions) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, &clientCredentialsSource{
		ctx:    ctx,
		grant:  g,
		params: params.Clone(),
		opts:   opts,
	})
}

type clientCredentialsSource struct {
	ctx    context.Context
	grant  *ClientCredentials
	params Params
	opts   TokenOptions
}

func (s *clientCredentialsSource) Token() (*oauth2.Token, error) {
	token, err := s.grant.GetToken(s.ctx, s.params, s.opts)
	if err != nil {
		return nil, err
	}
	return token.OAuth2Token(), nil
}
