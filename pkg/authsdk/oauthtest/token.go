package oauthtest

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/aussiebroadwan/oauthsdk/pkg/httpx"
	"github.com/aussiebroadwan/oauthsdk/pkg/slogx"
)

const (
	grantTypeJWTBearer   = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	grantTypeSAML2Bearer = "urn:ietf:params:oauth:grant-type:saml2-bearer"
	clientAssertionJWT   = "urn:ietf:params:oauth:client-assertion-type:jwt-bearer"
	maxRequestBody       = 1 << 20
	assertionClockLeeway = 30 * time.Second
)

// handleToken serves the token endpoint. Parameters come from the query for
// GET and from a form or JSON body for POST.
func (p *Provider) handleToken(w http.ResponseWriter, r *http.Request) {
	params, err := requestParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	client, err := p.authenticateClient(r, params)
	if err != nil {
		writeError(w, r, err)
		return
	}

	grantType := params.Get("grant_type")
	slogx.FromContext(r.Context()).Debug("token request", "grant_type", grantType, "client_id", client.ID)

	var resp tokenResponse
	switch grantType {
	case "authorization_code":
		resp, err = p.authorizationCodeGrant(client, params)
	case "refresh_token":
		resp, err = p.refreshGrant(client, params)
	case "password":
		resp, err = p.passwordGrant(client, params)
	case "mfa_otp":
		resp, err = p.mfaGrant(client, params)
	case "client_credentials":
		resp, err = p.clientCredentialsGrant(client, params)
	case grantTypeJWTBearer:
		resp, err = p.jwtBearerGrant(r, client, params)
	case grantTypeSAML2Bearer:
		resp, err = p.samlGrant(client, params)
	default:
		err = errUnsupportedGrant
	}
	if err != nil {
		writeError(w, r, err)
		return
	}

	if p.cfg.FormResponses {
		httpx.WriteForm(w, http.StatusOK, resp.values())
		return
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (p *Provider) authorizationCodeGrant(client Client, params url.Values) (tokenResponse, error) {
	code, err := p.redeemCode(strings.TrimSpace(params.Get("code")))
	if err != nil {
		return tokenResponse{}, err
	}
	if code.ClientID != client.ID {
		return tokenResponse{}, errInvalidGrant("authorization code was issued to another client")
	}
	if code.RedirectURI != "" && code.RedirectURI != params.Get("redirect_uri") {
		return tokenResponse{}, errInvalidGrant("redirect_uri does not match the authorization request")
	}
	if !verifyCodeVerifier(code.CodeChallenge, code.CodeChallengeMethod, params.Get("code_verifier")) {
		return tokenResponse{}, errInvalidGrant("PKCE verification failed")
	}
	return p.issue(code.grant, true)
}

func (p *Provider) refreshGrant(client Client, params url.Values) (tokenResponse, error) {
	if params.Get("refresh_token") == "" {
		return tokenResponse{}, errInvalidRequest("refresh_token is required")
	}

	g, err := p.takeRefresh(params.Get("refresh_token"), client.ID, httpx.ParseSpaceDelimitedFields(params.Get("scope")))
	if err != nil {
		return tokenResponse{}, err
	}
	return p.issue(g, true)
}

// passwordGrant answers users with a second factor with an *mfaChallenge.
func (p *Provider) passwordGrant(client Client, params url.Values) (tokenResponse, error) {
	username, password := params.Get("username"), params.Get("password")
	if username == "" || password == "" {
		return tokenResponse{}, errInvalidRequest("username and password are required")
	}

	user, ok := p.users[username]
	if !ok || subtle.ConstantTimeCompare([]byte(password), []byte(user.Password)) != 1 {
		return tokenResponse{}, errInvalidGrant("invalid resource owner credentials")
	}

	scopes, err := allowedScopes(httpx.ParseSpaceDelimitedFields(params.Get("scope")), client.Scopes, user.Scopes)
	if err != nil {
		return tokenResponse{}, err
	}

	g := grant{ClientID: client.ID, Subject: user.Username, Scopes: scopes, AMR: []string{AMRPassword}}
	if methods := mfaMethods(user); len(methods) > 0 {
		return tokenResponse{}, &mfaChallenge{token: p.startMFA(user.Username, g), methods: methods}
	}
	return p.issue(g, true)
}

func (p *Provider) mfaGrant(client Client, params url.Values) (tokenResponse, error) {
	mfaToken := strings.TrimSpace(params.Get("mfa_token"))
	method := strings.TrimSpace(params.Get("method"))
	code := strings.TrimSpace(params.Get("otp_code"))
	if mfaToken == "" || method == "" || code == "" {
		return tokenResponse{}, errInvalidRequest("mfa_token, method and otp_code are required")
	}

	g, err := p.completeMFA(mfaToken, client.ID, method, code)
	if err != nil {
		return tokenResponse{}, err
	}
	return p.issue(g, true)
}

// clientCredentialsGrant issues no refresh token; the client can always
// authenticate again.
func (p *Provider) clientCredentialsGrant(client Client, params url.Values) (tokenResponse, error) {
	if client.Secret == "" {
		return tokenResponse{}, errUnauthorizedClient
	}

	scopes, err := allowedScopes(httpx.ParseSpaceDelimitedFields(params.Get("scope")), client.Scopes)
	if err != nil {
		return tokenResponse{}, err
	}
	return p.issue(grant{ClientID: client.ID, Subject: client.ID, Scopes: scopes, AMR: []string{AMRClient}}, false)
}

func (p *Provider) jwtBearerGrant(r *http.Request, client Client, params url.Values) (tokenResponse, error) {
	claims, err := p.verifyAssertion(r, params.Get("assertion"))
	if err != nil {
		return tokenResponse{}, err
	}

	subject, _ := claims.GetSubject()
	if subject == "" {
		return tokenResponse{}, errInvalidGrant("assertion has no subject")
	}

	scope := params.Get("scope")
	if scope == "" {
		scope, _ = claims["scope"].(string)
	}
	scopes, err := allowedScopes(httpx.ParseSpaceDelimitedFields(scope), client.Scopes, p.users[subject].Scopes)
	if err != nil {
		return tokenResponse{}, err
	}
	return p.issue(grant{ClientID: client.ID, Subject: subject, Scopes: scopes, AMR: []string{AMRAssertion}}, false)
}

func (p *Provider) samlGrant(client Client, params url.Values) (tokenResponse, error) {
	assertion := params.Get("assertion")
	if assertion == "" {
		return tokenResponse{}, errInvalidRequest("assertion is required")
	}
	subject, ok := p.cfg.SAMLAssertions[assertion]
	if !ok {
		return tokenResponse{}, errInvalidGrant("SAML assertion not accepted")
	}

	scopes, err := allowedScopes(httpx.ParseSpaceDelimitedFields(params.Get("scope")), client.Scopes, p.users[subject].Scopes)
	if err != nil {
		return tokenResponse{}, err
	}
	return p.issue(grant{ClientID: client.ID, Subject: subject, Scopes: scopes, AMR: []string{AMRAssertion}}, false)
}

// authenticateClient identifies the client by HTTP Basic credentials, body
// credentials or a private_key_jwt client assertion. Public clients only
// need a known client_id.
func (p *Provider) authenticateClient(r *http.Request, params url.Values) (Client, error) {
	if params.Get("client_assertion_type") == clientAssertionJWT {
		claims, err := p.verifyAssertion(r, params.Get("client_assertion"))
		if err != nil {
			return Client{}, errInvalidClient
		}
		iss, _ := claims.GetIssuer()
		sub, _ := claims.GetSubject()
		client, ok := p.clients[sub]
		if !ok || iss != sub {
			return Client{}, errInvalidClient
		}
		return client, nil
	}

	id, secret, basic := r.BasicAuth()
	if !basic {
		id, secret = params.Get("client_id"), params.Get("client_secret")
	}

	client, ok := p.clients[id]
	if !ok {
		return Client{}, errInvalidClient
	}
	if client.Secret != "" && subtle.ConstantTimeCompare([]byte(secret), []byte(client.Secret)) != 1 {
		return Client{}, errInvalidClient
	}
	return client, nil
}

// verifyAssertion checks a JWT against the key registered for its issuer.
// The audience must be this token endpoint and a jti may only be used once.
func (p *Provider) verifyAssertion(r *http.Request, raw string) (jwt.MapClaims, error) {
	if raw == "" {
		return nil, errInvalidRequest("assertion is required")
	}

	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		iss, err := t.Claims.GetIssuer()
		if err != nil {
			return nil, err
		}
		key, ok := p.cfg.AssertionKeys[iss]
		if !ok {
			return nil, fmt.Errorf("no key registered for issuer %q", iss)
		}
		return key, nil
	},
		jwt.WithValidMethods([]string{"RS256", "ES256", "EdDSA", "HS256"}),
		jwt.WithAudience(endpointURL(r, TokenPath)),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithLeeway(assertionClockLeeway),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil {
		return nil, errInvalidGrant("assertion rejected: " + err.Error())
	}
	if jti, _ := claims["jti"].(string); jti != "" && p.seenNonce("jti", jti) {
		return nil, errInvalidGrant("assertion replayed")
	}
	return claims, nil
}

// requestParams reads request parameters the way authsdk sends them: query
// for GET, form or JSON body for everything else.
func requestParams(r *http.Request) (url.Values, error) {
	if r.Method == http.MethodGet {
		return r.URL.Query(), nil
	}

	ct := r.Header.Get("Content-Type")
	switch {
	case strings.HasPrefix(ct, "application/json"):
		body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
		if err != nil {
			return nil, errInvalidRequest("unreadable body")
		}
		var fields map[string]any
		if err := json.Unmarshal(body, &fields); err != nil {
			return nil, errInvalidRequest("malformed JSON body")
		}
		params := r.URL.Query()
		for k, v := range fields {
			params.Set(k, fmt.Sprint(v))
		}
		return params, nil

	case ct == "" || strings.HasPrefix(ct, "application/x-www-form-urlencoded"):
		if err := r.ParseForm(); err != nil {
			return nil, errInvalidRequest("malformed form body")
		}
		return r.Form, nil

	default:
		return nil, errInvalidContentType
	}
}

// endpointURL is the absolute URL of path on the server handling r.
func endpointURL(r *http.Request, path string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + path
}
