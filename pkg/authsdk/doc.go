/*
Package authsdk is an OAuth2 client. It obtains access tokens from an
authorization server through one of the standard grant flows and attaches
them to outgoing HTTP requests, either as bearer tokens or as per-request
MAC signatures.

# Client

A Client is bound to one authorization server and one OAuth2 client
registration:

	client, err := authsdk.NewClient("client-id", "client-secret", "https://auth.example.com", authsdk.Options{})

Zero Options fields take defaults: the authorization endpoint is
/oauth/authorize, the token endpoint /oauth/token, token requests are
form-encoded POSTs and the client authenticates with HTTP Basic. Either
endpoint may be overridden with a path below the site or an absolute URL.

Client.Request performs plain HTTP calls against the site. Non-2xx answers
come back as *Error, which matches ErrUnauthorized for 401 and ErrHTTP for
everything else:

	resp, err := client.Get(ctx, "/api/status", authsdk.RequestOptions{})
	if errors.Is(err, authsdk.ErrUnauthorized) {
		// ...
	}

# Grants

Every grant flow is a Strategy reachable from the Client:

  - AuthCode / WebServer: authorization code, with refresh and PKCE helpers
  - Implicit: authorize URL only; the token is read from the redirect fragment
  - Password: resource owner credentials
  - ClientCredentials: machine to machine, also as an oauth2.TokenSource
  - Assertion / JWTBearer: RFC 7523 JWT bearer assertions signed with jwtx
  - SAMLAssertion: RFC 7522 SAML 2.0 bearer assertions
  - MFAOTP: continues a token request that came back with *MFARequiredError

Operations a grant cannot perform, AuthorizeURL on the password grant for
example, return an *UnsupportedError without any network traffic.

Authorization code flow:

	pkce, _ := authsdk.GeneratePKCEChallenge()
	u, _ := client.AuthCode().AuthorizeURL(pkce.Apply(authsdk.Params{
		"redirect_uri": "https://app.example.com/callback",
		"state":        state,
	}))
	// redirect the browser to u, then on the callback:
	code, _, err := authsdk.ParseAuthorizationCallback(callbackURL)
	token, err := client.AuthCode().Exchange(ctx, code, authsdk.Merge(pkce.VerifierParams(), authsdk.Params{
		"redirect_uri": "https://app.example.com/callback",
	}), authsdk.TokenOptions{})

Client credentials:

	token, err := client.ClientCredentials().GetToken(ctx, authsdk.Params{"scope": "read"}, authsdk.TokenOptions{})

# Parameters

Params and Headers are flat string maps. Every merge names the side that
wins: Merge(base, overrides) lets overrides win, and caller supplied values
always override what the SDK would add itself. The Authenticator never
replaces a client_id, client_secret or Authorization header the caller set.

# Tokens

An AccessToken is immutable apart from its display fields (Mode, ParamName,
HeaderFormat). Refresh returns a new token. Bearer tokens are sent as
"Authorization: OAuth <token>" unless Options.HeaderFormat says otherwise.

A MACToken signs each request with an HMAC over
"{request line}\n{host}\n{timestamp}\n{nonce}\n" and a fresh nonce, so two
headers for the same request never repeat:

	mac, err := authsdk.MACTokenFromAccessToken(token, secret, authsdk.MACOptions{Algorithm: "hmac-sha-256"})
	resp, err := mac.Get(ctx, "/api/resource", authsdk.RequestOptions{})

# Concurrency

Client, strategies, Authenticator and tokens hold no mutable shared state
and can be used from many goroutines, provided the configured http.Client
can.
*/
package authsdk
