package oauthtest

import (
	"crypto/hmac"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/oauthsdk/pkg/authsdk"
	"github.com/aussiebroadwan/oauthsdk/pkg/httpx"
	"github.com/aussiebroadwan/oauthsdk/pkg/slogx"
)

// macClockSkew bounds how far a MAC timestamp may be from the server clock.
const macClockSkew = 5 * time.Minute

var macFieldPattern = regexp.MustCompile(`(\w+)="([^"]*)"`)

// IntrospectionResponse is the RFC 7662 introspection body. Inactive tokens
// only carry Active.
type IntrospectionResponse struct {
	Active bool `json:"active"`

	Scope     string   `json:"scope,omitempty"`
	ClientID  string   `json:"client_id,omitempty"`
	TokenType string   `json:"token_type,omitempty"`
	Exp       int64    `json:"exp,omitempty"`
	Sub       string   `json:"sub,omitempty"`
	SessionID string   `json:"sid,omitempty"`
	AMR       []string `json:"amr,omitempty"`
}

// ResourceResponse is what the protected resource at ResourcePath answers
// with: who the token belongs to and how it was presented.
type ResourceResponse struct {
	Subject  string `json:"sub"`
	ClientID string `json:"client_id"`
	Scope    string `json:"scope"`
	Method   string `json:"method"`
	Via      string `json:"via"` // header, query, body or mac
}

// handleResource is a protected resource accepting bearer tokens in the
// Authorization header (Bearer or OAuth scheme), in an access_token query or
// body parameter, and MAC signed requests.
func (p *Provider) handleResource(w http.ResponseWriter, r *http.Request) {
	g, via, err := p.authenticateResource(r)
	if err != nil {
		slogx.FromContext(r.Context()).Debug("resource request rejected", "error", err)
		writeBearerError(w, err.Error())
		return
	}

	httpx.WriteJSON(w, http.StatusOK, ResourceResponse{
		Subject:  g.Subject,
		ClientID: g.ClientID,
		Scope:    strings.Join(g.Scopes, " "),
		Method:   r.Method,
		Via:      via,
	})
}

func (p *Provider) authenticateResource(r *http.Request) (*grant, string, error) {
	authz := r.Header.Get("Authorization")
	scheme, rest, _ := strings.Cut(authz, " ")

	var token, via string
	switch {
	case strings.EqualFold(scheme, "MAC"):
		g, err := p.verifyMAC(r, rest)
		return g, "mac", err
	case strings.EqualFold(scheme, "Bearer"), strings.EqualFold(scheme, "OAuth"):
		token, via = strings.TrimSpace(rest), "header"
	case authz == "":
		if token = r.URL.Query().Get(authsdk.DefaultParamName); token != "" {
			via = "query"
		} else if err := r.ParseForm(); err == nil {
			token, via = r.PostForm.Get(authsdk.DefaultParamName), "body"
		}
	default:
		return nil, "", errors.New("unsupported authorization scheme")
	}

	if token == "" {
		return nil, "", errors.New("missing access token")
	}
	g, ok := p.lookupAccess(token)
	if !ok {
		return nil, "", errors.New("token is invalid or expired")
	}
	if g.MACKey != "" {
		return nil, "", errors.New("token must be presented MAC signed")
	}
	return g, via, nil
}

// verifyMAC checks a MAC Authorization header in either the id or the kid
// format. Nonces are single use per token.
func (p *Provider) verifyMAC(r *http.Request, header string) (*grant, error) {
	fields := map[string]string{}
	for _, m := range macFieldPattern.FindAllStringSubmatch(header, -1) {
		fields[m[1]] = m[2]
	}

	token := fields["id"]
	if token == "" {
		token = fields["access_token"]
	}
	g, ok := p.lookupAccess(token)
	if !ok || g.MACKey == "" {
		return nil, errors.New("token is invalid, expired or not a MAC token")
	}

	ts, err := strconv.ParseInt(fields["ts"], 10, 64)
	if err != nil {
		return nil, errors.New("malformed MAC timestamp")
	}
	if skew := p.now().Sub(time.Unix(ts, 0)); skew > macClockSkew || skew < -macClockSkew {
		return nil, errors.New("stale MAC timestamp")
	}

	nonce := fields["nonce"]
	if nonce == "" || p.seenNonce(token, nonce) {
		return nil, errors.New("missing or replayed MAC nonce")
	}

	requestLine, host, err := authsdk.RequestLine(r.Method, endpointURL(r, r.URL.RequestURI()))
	if err != nil {
		return nil, err
	}
	mac, err := authsdk.NewMACToken(nil, token, g.MACKey, nil, authsdk.MACOptions{Algorithm: string(authsdk.MACHmacSHA256)})
	if err != nil {
		return nil, err
	}

	want := mac.Signature(requestLine, host, ts, nonce)
	if !hmac.Equal([]byte(want), []byte(fields["mac"])) {
		return nil, errors.New("MAC signature mismatch")
	}
	return g, nil
}

// handleIntrospect serves RFC 7662 token introspection to authenticated
// clients.
func (p *Provider) handleIntrospect(w http.ResponseWriter, r *http.Request) {
	params, err := requestParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := p.authenticateClient(r, params); err != nil {
		writeError(w, r, err)
		return
	}

	token := params.Get("token")
	if token == "" {
		writeError(w, r, errInvalidRequest("token is required"))
		return
	}

	g, ok := p.lookupAccess(token)
	if !ok {
		httpx.WriteJSON(w, http.StatusOK, IntrospectionResponse{Active: false})
		return
	}

	tokenType := "Bearer"
	if g.MACKey != "" {
		tokenType = "mac"
	}
	httpx.WriteJSON(w, http.StatusOK, IntrospectionResponse{
		Active:    true,
		Scope:     strings.Join(g.Scopes, " "),
		ClientID:  g.ClientID,
		TokenType: tokenType,
		Exp:       g.ExpiresAt.Unix(),
		Sub:       g.Subject,
		SessionID: g.SessionID,
		AMR:       g.AMR,
	})
}

// handleRevoke serves RFC 7009 revocation. Unknown tokens still get 200.
func (p *Provider) handleRevoke(w http.ResponseWriter, r *http.Request) {
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

	if token := params.Get("token"); token != "" {
		p.revoke(token, client.ID)
	}
	httpx.NoCache(w)
	w.WriteHeader(http.StatusOK)
}
