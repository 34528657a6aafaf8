package authsdk

import "context"

// GrantType identifies one of the grant strategies a Client offers.
type GrantType string

const (
	GrantAuthCode          GrantType = "authorization_code"
	GrantWebServer         GrantType = "web_server"
	GrantImplicit          GrantType = "implicit"
	GrantPassword          GrantType = "password"
	GrantClientCredentials GrantType = "client_credentials"
	GrantAssertion         GrantType = "assertion"
	GrantJWTBearer         GrantType = "jwt_bearer"
	GrantSAMLAssertion     GrantType = "saml_assertion"
	GrantMFAOTP            GrantType = "mfa_otp"
)

// Wire values of grant_type that differ from the strategy name.
const (
	//nolint:gosec // G101: OAuth2 URN identifiers, not credentials
	grantTypeJWTBearer = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	//nolint:gosec // G101: OAuth2 URN identifiers, not credentials
	grantTypeSAML2Bearer = "urn:ietf:params:oauth:grant-type:saml2-bearer"
	grantTypeRefresh     = "refresh_token"
)

// Strategy is implemented by every grant. Operations a grant cannot perform
// return an *UnsupportedError without touching the network.
type Strategy interface {
	// Grant names the strategy.
	Grant() GrantType

	// AuthorizeURL builds the URL to send the resource owner's browser to.
	AuthorizeURL(params Params) (string, error)

	// GetToken requests a token. params are merged over the grant's own
	// parameters, so callers can override anything.
	GetToken(ctx context.Context, params Params, opts TokenOptions) (*AccessToken, error)
}

// base carries what every strategy shares: a reference to its Client.
type base struct {
	client *Client
}

// Client returns the client the strategy belongs to.
func (b base) Client() *Client { return b.client }

// ClientParams returns {client_id, client_secret} merged with params;
// params win.
func (b base) ClientParams(params Params) Params {
	return Merge(Params{
		"client_id":     b.client.ID,
		"client_secret": b.client.Secret,
	}, params)
}

// authorizeURL builds an authorization endpoint URL for responseType.
// params win over client_id and response_type.
func (b base) authorizeURL(responseType string, params Params) (string, error) {
	return b.client.AuthorizeURL(Merge(Params{
		"client_id":     b.client.ID,
		"response_type": responseType,
	}, params))
}

var (
	_ Strategy = (*AuthCode)(nil)
	_ Strategy = (*WebServer)(nil)
	_ Strategy = (*Implicit)(nil)
	_ Strategy = (*Password)(nil)
	_ Strategy = (*ClientCredentials)(nil)
	_ Strategy = (*Assertion)(nil)
	_ Strategy = (*JWTBearer)(nil)
	_ Strategy = (*SAMLAssertion)(nil)
	_ Strategy = (*MFAOTP)(nil)
)
