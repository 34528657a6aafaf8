package authsdk

import (
	"context"
	"fmt"
	"maps"

	"github.com/aussiebroadwan/oauthsdk/pkg/cryptox"
	"github.com/aussiebroadwan/oauthsdk/pkg/flexmap"
)

// TokenOptions controls a token request and how its response becomes an
// AccessToken.
type TokenOptions struct {
	// Headers are added to the token request.
	Headers Headers

	// Parse selects the response parser. Default: automatic
	Parse ParseMode

	// RefreshToken is used when the response doesn't carry one, e.g. when
	// a refresh grant doesn't rotate the refresh token.
	RefreshToken string

	// NoRefreshToken drops any refresh token from the response. Assertion
	// grants set it, they never hand out refresh tokens.
	NoRefreshToken bool

	// AuthScheme is read by ClientCredentials only: AuthModeRequestBody puts
	// the credentials in the body, anything else sends a Basic header.
	AuthScheme AuthMode

	// Mode, ParamName and HeaderFormat are copied onto the AccessToken.
	Mode         TokenMode
	ParamName    string
	HeaderFormat string

	// bypassAuth skips the Authenticator, the grant has attached
	// credentials itself.
	bypassAuth bool
}

// GetToken sends params to the token endpoint and builds an AccessToken from
// the response.
func (c *Client) GetToken(ctx context.Context, params Params, opts TokenOptions) (*AccessToken, error) {
	req := TokenRequest{Params: params, Headers: opts.Headers}

	resp, err := c.tokenRequest(ctx, req, opts.Parse, opts.bypassAuth)
	if err != nil {
		return nil, err
	}

	token, err := c.parseTokenResponse(resp, opts)
	if err != nil {
		return nil, err
	}

	c.logger(ctx).DebugContext(ctx, "token_issued",
		"grant_type", params["grant_type"],
		"token_fp", cryptox.FingerprintToken(token.Token),
		"expires_in", token.ExpiresIn,
		"has_refresh_token", token.RefreshToken != "",
	)
	return token, nil
}

// parseTokenResponse consumes access_token, refresh_token and expires_in (or
// the legacy expires) from the parsed body; every other field ends up in the
// token's Params.
func (c *Client) parseTokenResponse(resp *Response, opts TokenOptions) (*AccessToken, error) {
	parsed, ok := resp.Parsed()
	if !ok {
		return nil, fmt.Errorf("%w: unparseable %q body", ErrMissingAccessToken, resp.ContentType())
	}

	fields := maps.Clone(parsed)

	accessToken := stringValue(take(fields, "access_token"))
	if accessToken == "" {
		if err := errorFromParsed(resp, parsed); err != nil {
			return nil, err
		}
		return nil, ErrMissingAccessToken
	}

	refreshToken := stringValue(take(fields, "refresh_token"))
	if refreshToken == "" {
		refreshToken = opts.RefreshToken
	}
	if opts.NoRefreshToken {
		refreshToken = ""
	}

	expiresIn, found := flexmap.Take(fields, "expires_in")
	if !found {
		expiresIn, _ = flexmap.Take(fields, "expires")
	}

	token, err := NewAccessToken(c, accessToken, refreshToken, expiresIn, fields)
	if err != nil {
		return nil, err
	}
	token.applyOptions(opts)
	return token, nil
}

func take(m map[string]any, key string) any {
	v, _ := flexmap.Take(m, key)
	return v
}

// RequestToken sends a raw token request through the Authenticator and
// returns the response as is. Most callers want GetToken.
func (c *Client) RequestToken(ctx context.Context, req TokenRequest, parse ParseMode) (*Response, error) {
	return c.tokenRequest(ctx, req, parse, false)
}

// GetMACToken is GetToken for servers issuing MAC tokens: the secret comes
// from the mac_key response field and, unless mac sets one, the algorithm
// from mac_algorithm.
func (c *Client) GetMACToken(ctx context.Context, params Params, opts TokenOptions, mac MACOptions) (*MACToken, error) {
	token, err := c.GetToken(ctx, params, opts)
	if err != nil {
		return nil, err
	}

	secret := stringValue(token.Param("mac_key"))
	if secret == "" {
		return nil, ErrMissingMACKey
	}
	if mac.Algorithm == "" {
		mac.Algorithm = stringValue(token.Param("mac_algorithm"))
	}
	return MACTokenFromAccessToken(token, secret, mac)
}
