package oauthtest

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/aussiebroadwan/oauthsdk/pkg/authsdk"
	"github.com/aussiebroadwan/oauthsdk/pkg/cryptox"
	"github.com/aussiebroadwan/oauthsdk/pkg/httpx"
)

// handleAuthorize approves every valid request on behalf of
// Config.ResourceOwner without any login page. response_type=code redirects
// with a code in the query; response_type=token redirects with the token in
// the fragment.
func (p *Provider) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	client, ok := p.clients[q.Get("client_id")]
	if !ok {
		httpx.WriteOAuthError(w, http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, "unknown client_id")
		return
	}

	redirectURI := q.Get("redirect_uri")
	switch {
	case len(client.RedirectURIs) == 0:
		// any redirect_uri will do
	case redirectURI == "":
		redirectURI = client.RedirectURIs[0]
	case !slices.Contains(client.RedirectURIs, redirectURI):
		httpx.WriteOAuthError(w, http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, "redirect_uri is not registered")
		return
	}
	if _, err := url.Parse(redirectURI); err != nil || redirectURI == "" {
		httpx.WriteOAuthError(w, http.StatusBadRequest, authsdk.ErrorCodeInvalidRequest, "a valid redirect_uri is required")
		return
	}

	responseType := q.Get("response_type")
	state := q.Get("state")
	implicit := responseType == "token"

	fail := func(code, desc string) {
		redirectWith(w, r, redirectURI, implicit, url.Values{
			"error":             {code},
			"error_description": {desc},
			"state":             {state},
		})
	}

	if responseType != "code" && !implicit {
		fail(authsdk.ErrorCodeUnsupportedResponseType, "response_type must be code or token")
		return
	}

	user, ok := p.users[p.cfg.ResourceOwner]
	if !ok {
		fail(authsdk.ErrorCodeAccessDenied, "the resource owner denied the request")
		return
	}

	scopes, err := allowedScopes(httpx.ParseSpaceDelimitedFields(q.Get("scope")), client.Scopes, user.Scopes)
	if err != nil {
		fail(authsdk.ErrorCodeInvalidScope, "requested scope is not allowed")
		return
	}
	g := grant{ClientID: client.ID, Subject: user.Username, Scopes: scopes, AMR: []string{AMRPassword}}

	if implicit {
		resp, err := p.issue(g, false)
		if err != nil {
			fail(authsdk.ErrorCodeServerError, "")
			return
		}
		redirectWith(w, r, redirectURI, true, url.Values{
			"access_token": {resp.AccessToken},
			"token_type":   {resp.TokenType},
			"expires_in":   {strconv.Itoa(resp.ExpiresIn)},
			"scope":        {resp.Scope},
			"state":        {state},
		})
		return
	}

	challenge, method := q.Get("code_challenge"), q.Get("code_challenge_method")
	if challenge != "" && method != "" && !strings.EqualFold(method, "S256") && !strings.EqualFold(method, "plain") {
		fail(authsdk.ErrorCodeInvalidRequest, "unsupported code_challenge_method")
		return
	}

	code, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		fail(authsdk.ErrorCodeServerError, "")
		return
	}
	g.ExpiresAt = p.now().Add(p.cfg.CodeTTL)
	p.storeCode(code, &authCode{
		grant:               g,
		RedirectURI:         q.Get("redirect_uri"),
		CodeChallenge:       challenge,
		CodeChallengeMethod: method,
	})

	redirectWith(w, r, redirectURI, false, url.Values{"code": {code}, "state": {state}})
}

// redirectWith sends the browser to target with values added to its query,
// or as its fragment for implicit responses. Empty values are left out.
func redirectWith(w http.ResponseWriter, r *http.Request, target string, fragment bool, values url.Values) {
	for k, v := range values {
		if len(v) == 0 || v[0] == "" {
			delete(values, k)
		}
	}

	if fragment {
		target = strings.SplitN(target, "#", 2)[0] + "#" + values.Encode()
	} else {
		u, _ := url.Parse(target) // validated by the caller
		q := u.Query()
		for k, v := range values {
			q[k] = v
		}
		u.RawQuery = q.Encode()
		target = u.String()
	}

	http.Redirect(w, r, target, http.StatusFound)
}

// verifyCodeVerifier checks a PKCE verifier (RFC 7636 section 4.6). Without
// a stored challenge any verifier passes.
func verifyCodeVerifier(challenge, method, verifier string) bool {
	challenge = strings.TrimSpace(challenge)
	if challenge == "" {
		return true
	}

	verifier = strings.TrimSpace(verifier)
	if verifier == "" {
		return false
	}

	switch method = strings.TrimSpace(method); {
	case method == "" || strings.EqualFold(method, "plain"):
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(verifier)) == 1
	case strings.EqualFold(method, "S256"):
		sum := sha256.Sum256([]byte(verifier))
		expected := base64.RawURLEncoding.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(expected)) == 1
	default:
		return false
	}
}
