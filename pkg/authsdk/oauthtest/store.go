package oauthtest

import (
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	"github.com/aussiebroadwan/oauthsdk/pkg/authsdk"
	"github.com/aussiebroadwan/oauthsdk/pkg/cryptox"
	"github.com/aussiebroadwan/oauthsdk/pkg/idx"
)

// AMR values recorded on grants and reported by introspection.
const (
	AMRPassword  = "pwd"
	AMRMFA       = "mfa"
	AMRRefresh   = "refresh"
	AMRClient    = "client"
	AMRAssertion = "assertion"
)

// grant is what an access or refresh token stands for.
type grant struct {
	ClientID  string
	Subject   string
	SessionID string
	Scopes    []string
	AMR       []string
	ExpiresAt time.Time

	// MACKey is set on access tokens issued to MAC clients.
	MACKey string
}

type authCode struct {
	grant

	RedirectURI         string
	CodeChallenge       string
	CodeChallengeMethod string
	Used                bool
}

type mfaSession struct {
	grant

	Username string
	Attempts int
}

// tokenResponse is the RFC 6749 section 5.1 success body.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
	MACKey       string `json:"mac_key,omitempty"`
	MACAlgorithm string `json:"mac_algorithm,omitempty"`
}

// values renders the response form encoded, with the legacy "expires" name
// older servers use.
func (t tokenResponse) values() url.Values {
	v := url.Values{
		"access_token": {t.AccessToken},
		"token_type":   {t.TokenType},
		"expires":      {strconv.Itoa(t.ExpiresIn)},
	}
	for key, val := range map[string]string{
		"refresh_token": t.RefreshToken,
		"scope":         t.Scope,
		"mac_key":       t.MACKey,
		"mac_algorithm": t.MACAlgorithm,
	} {
		if val != "" {
			v.Set(key, val)
		}
	}
	return v
}

// issue mints an access token for g and, if withRefresh, a refresh token
// carrying the same grant.
func (p *Provider) issue(g grant, withRefresh bool) (tokenResponse, error) {
	now := p.now()
	if g.SessionID == "" {
		g.SessionID = idx.New().String()
	}
	g.AMR = dedupe(g.AMR)

	accessToken, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return tokenResponse{}, err
	}

	resp := tokenResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(p.cfg.AccessTTL.Seconds()),
		Scope:       strings.Join(g.Scopes, " "),
	}

	access := g
	access.ExpiresAt = now.Add(p.cfg.AccessTTL)
	if p.clients[g.ClientID].MAC {
		if access.MACKey, err = cryptox.GenerateToken(cryptox.TokenSize256); err != nil {
			return tokenResponse{}, err
		}
		resp.TokenType = "mac"
		resp.MACKey = access.MACKey
		resp.MACAlgorithm = string(authsdk.MACHmacSHA256)
	}

	var refresh *grant
	if withRefresh {
		if resp.RefreshToken, err = cryptox.GenerateToken(cryptox.TokenSize256); err != nil {
			return tokenResponse{}, err
		}
		refresh = &grant{
			ClientID:  g.ClientID,
			Subject:   g.Subject,
			SessionID: g.SessionID,
			Scopes:    g.Scopes,
			AMR:       g.AMR,
			ExpiresAt: now.Add(p.cfg.RefreshTTL),
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.access[cryptox.FingerprintToken(accessToken)] = &access
	if refresh != nil {
		p.refresh[cryptox.FingerprintToken(resp.RefreshToken)] = refresh
	}
	return resp, nil
}

// lookupAccess returns the live grant behind an access token.
func (p *Provider) lookupAccess(token string) (*grant, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	g, ok := p.access[cryptox.FingerprintToken(token)]
	if !ok || token == "" || p.now().After(g.ExpiresAt) {
		return nil, false
	}
	return g, true
}

// takeRefresh removes a refresh token and returns the grant for its
// successor, narrowed to requested when that is non-empty. Refresh tokens
// are single use; a rejected exchange leaves the token in place.
func (p *Provider) takeRefresh(token, clientID string, requested []string) (grant, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fp := cryptox.FingerprintToken(token)
	g, ok := p.refresh[fp]
	if !ok || token == "" || p.now().After(g.ExpiresAt) {
		return grant{}, errInvalidGrant("refresh token is invalid or expired")
	}
	if g.ClientID != clientID {
		return grant{}, errInvalidGrant("refresh token was issued to another client")
	}

	next := *g
	if len(requested) > 0 {
		scopes, err := allowedScopes(requested, g.Scopes)
		if err != nil {
			return grant{}, err
		}
		next.Scopes = scopes
	}
	next.AMR = append(slices.Clone(g.AMR), AMRRefresh)

	delete(p.refresh, fp)
	return next, nil
}

// revoke drops an access or refresh token. Unknown tokens are ignored as
// RFC 7009 section 2.2 requires.
func (p *Provider) revoke(token, clientID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fp := cryptox.FingerprintToken(token)
	for _, m := range []map[string]*grant{p.access, p.refresh} {
		if g, ok := m[fp]; ok && g.ClientID == clientID {
			delete(m, fp)
		}
	}
}

func (p *Provider) storeCode(code string, c *authCode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.codes[cryptox.FingerprintToken(code)] = c
}

// redeemCode marks a code used and returns it. A second redemption fails.
func (p *Provider) redeemCode(code string) (*authCode, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.codes[cryptox.FingerprintToken(code)]
	if !ok || code == "" || c.Used || p.now().After(c.ExpiresAt) {
		return nil, errInvalidGrant("authorization code is invalid, used or expired")
	}
	c.Used = true
	return c, nil
}

func (p *Provider) startMFA(username string, g grant) string {
	token := idx.New().String()

	p.mu.Lock()
	defer p.mu.Unlock()
	g.ExpiresAt = p.now().Add(5 * time.Minute)
	p.mfa[token] = &mfaSession{grant: g, Username: username}
	return token
}

// mfaMethods lists the second factors u can answer a challenge with.
func mfaMethods(u User) []string {
	var methods []string
	if u.TOTPSecret != "" {
		methods = append(methods, authsdk.MFAMethodTOTP)
	}
	if len(u.BackupCodes) > 0 {
		methods = append(methods, authsdk.MFAMethodBackupCodes)
	}
	return methods
}

// completeMFA checks code against the session's user and, on success, ends
// the session and returns its grant. Every wrong code counts towards
// MaxMFAAttempts; past that the session is gone.
func (p *Provider) completeMFA(mfaToken, clientID, method, code string) (grant, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	s, ok := p.mfa[mfaToken]
	if !ok || p.now().After(s.ExpiresAt) || s.ClientID != clientID {
		return grant{}, errInvalidGrant("MFA session is invalid or expired")
	}
	if s.Attempts >= MaxMFAAttempts {
		delete(p.mfa, mfaToken)
		return grant{}, errTooManyMFAAttempts
	}

	u := p.users[s.Username]
	valid := false
	switch method {
	case authsdk.MFAMethodTOTP:
		valid = u.TOTPSecret != "" && validTOTP(code, u.TOTPSecret, p.now())
	case authsdk.MFAMethodBackupCodes:
		codes := p.backup[s.Username]
		if i := slices.Index(codes, code); i >= 0 && code != "" {
			p.backup[s.Username] = slices.Delete(codes, i, i+1)
			valid = true
		}
	default:
		return grant{}, errInvalidRequest("unknown MFA method")
	}

	if !valid {
		s.Attempts++
		return grant{}, errInvalidGrant("invalid MFA code")
	}

	delete(p.mfa, mfaToken)
	g := s.grant
	g.AMR = append(slices.Clone(g.AMR), AMRMFA)
	return g, nil
}

func validTOTP(code, secret string, now time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, now, totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && ok
}

// seenNonce records a single use value (a MAC nonce or an assertion jti)
// under token and reports whether it was used before.
func (p *Provider) seenNonce(token, nonce string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	key := cryptox.FingerprintToken(token) + ":" + nonce
	if _, ok := p.nonces[key]; ok {
		return true
	}
	p.nonces[key] = p.now()
	return false
}

func dedupe(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s != "" && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

// allowedScopes works out the granted scopes. With nothing requested the
// first non-empty allow list is granted in full; the rest narrow it.
// Narrowing everything away is an invalid_scope error.
func allowedScopes(requested []string, allowLists ...[]string) ([]string, error) {
	out := slices.Clone(requested)
	chosen := len(out) > 0

	for _, allowed := range allowLists {
		if len(allowed) == 0 {
			continue
		}
		if !chosen {
			out, chosen = slices.Clone(allowed), true
			continue
		}
		out = slices.DeleteFunc(out, func(s string) bool { return !slices.Contains(allowed, s) })
	}

	if chosen && len(out) == 0 {
		return nil, errInvalidScope
	}
	return out, nil
}
