package authsdk

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/aussiebroadwan/oauthsdk/pkg/flexmap"
)

// TokenMode is where a bearer token is placed on resource requests.
type TokenMode string

const (
	TokenModeHeader TokenMode = "header"
	TokenModeQuery  TokenMode = "query"
	TokenModeBody   TokenMode = "body"
)

// DefaultParamName is the parameter carrying the token in query/body mode.
const DefaultParamName = "access_token"

// AccessToken is a bearer credential returned by a token exchange. Apart from
// the display fields (Mode, ParamName, HeaderFormat) it is never modified
// after construction; refreshing returns a new AccessToken.
type AccessToken struct {
	client *Client

	Token        string
	RefreshToken string

	// ExpiresIn is the lifetime in seconds the server announced; zero when
	// the token does not expire.
	ExpiresIn int

	// ExpiresAt is the construction time plus ExpiresIn; zero when the token
	// does not expire.
	ExpiresAt time.Time

	// Params holds every other field of the token response.
	Params map[string]any

	Mode         TokenMode
	ParamName    string
	HeaderFormat string
}

// NewAccessToken builds a token. expiresIn may be nil or "" (no expiry), an
// integer or float number of seconds, a json.Number, or a numeric string.
func NewAccessToken(client *Client, token, refreshToken string, expiresIn any, params map[string]any) (*AccessToken, error) {
	seconds, hasExpiry, err := parseExpiresIn(expiresIn)
	if err != nil {
		return nil, err
	}

	t := &AccessToken{
		client:       client,
		Token:        token,
		RefreshToken: refreshToken,
		Params:       maps.Clone(params),
		Mode:         TokenModeHeader,
		ParamName:    DefaultParamName,
		HeaderFormat: "OAuth %s",
	}
	if t.Params == nil {
		t.Params = map[string]any{}
	}
	if client != nil {
		t.HeaderFormat = client.opts.HeaderFormat
	}

	if hasExpiry {
		t.ExpiresIn = seconds
		t.ExpiresAt = t.now().Add(time.Duration(seconds) * time.Second)
	}
	return t, nil
}

// AccessTokenFromMap builds a token from a token response shaped map, the
// inverse of ToMap.
func AccessTokenFromMap(client *Client, m map[string]any) (*AccessToken, error) {
	fields := maps.Clone(m)

	token := stringValue(take(fields, "access_token"))
	if token == "" {
		return nil, ErrMissingAccessToken
	}
	refresh := stringValue(take(fields, "refresh_token"))

	expiresIn, found := flexmap.Take(fields, "expires_in")
	if !found {
		expiresIn, _ = flexmap.Take(fields, "expires")
	}

	// expires_at wins over expires_in when both are present, it survives
	// a round trip through storage without drifting.
	expiresAt, hasAt := flexmap.Take(fields, "expires_at")

	t, err := NewAccessToken(client, token, refresh, expiresIn, fields)
	if err != nil {
		return nil, err
	}
	if hasAt {
		secs, ok, err := parseExpiresIn(expiresAt)
		if err != nil {
			return nil, fmt.Errorf("expires_at: %w", err)
		}
		if ok {
			t.ExpiresAt = time.Unix(int64(secs), 0)
			if t.ExpiresIn == 0 {
				t.ExpiresIn = int(t.ExpiresAt.Sub(t.now()).Seconds())
			}
		}
	}
	return t, nil
}

// AccessTokenFromKVForm builds a token from a form encoded token response
// ("access_token=...&expires_in=...").
func AccessTokenFromKVForm(client *Client, form string) (*AccessToken, error) {
	resp := newResponse(http.StatusOK, nil, []byte(form), ParseQuery)
	parsed, ok := resp.Parsed()
	if !ok {
		return nil, ErrMissingAccessToken
	}
	return AccessTokenFromMap(client, parsed)
}

// maxExpiresIn is the largest lifetime in seconds a time.Duration can hold.
const maxExpiresIn = math.MaxInt64 / int64(time.Second)

// parseExpiresIn normalises the loosely typed expires_in value. Lifetimes
// that overflow time.Duration are rejected.
func parseExpiresIn(v any) (int, bool, error) {
	switch t := v.(type) {
	case nil:
		return 0, false, nil
	case int:
		return checkExpiresIn(int64(t))
	case int32:
		return int(t), true, nil
	case int64:
		return checkExpiresIn(t)
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) || math.Abs(t) > float64(maxExpiresIn) {
			return 0, false, fmt.Errorf("%w: %v", ErrInvalidExpiresIn, t)
		}
		return int(t), true, nil
	case json.Number:
		return parseExpiresIn(t.String())
	case time.Duration:
		return int(t / time.Second), true, nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0, false, nil
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return checkExpiresIn(n)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false, fmt.Errorf("%w: %q", ErrInvalidExpiresIn, s)
		}
		return parseExpiresIn(f)
	default:
		return 0, false, fmt.Errorf("%w: unsupported type %T", ErrInvalidExpiresIn, v)
	}
}

func checkExpiresIn(n int64) (int, bool, error) {
	if n > maxExpiresIn || n < -maxExpiresIn {
		return 0, false, fmt.Errorf("%w: %d overflows", ErrInvalidExpiresIn, n)
	}
	return int(n), true, nil
}

func (t *AccessToken) now() time.Time {
	if t.client != nil {
		return t.client.clock()
	}
	return time.Now()
}

func (t *AccessToken) applyOptions(opts TokenOptions) {
	if opts.Mode != "" {
		t.Mode = opts.Mode
	}
	if opts.ParamName != "" {
		t.ParamName = opts.ParamName
	}
	if opts.HeaderFormat != "" {
		t.HeaderFormat = opts.HeaderFormat
	}
}

// Client returns the client the token was issued through.
func (t *AccessToken) Client() *Client { return t.client }

// Expires reports whether the token has an expiry.
func (t *AccessToken) Expires() bool {
	return !t.ExpiresAt.IsZero()
}

// Expired reports whether the token has an expiry that lies in the past.
func (t *AccessToken) Expired() bool {
	return t.Expires() && t.ExpiresAt.Before(t.now())
}

// Param returns a field of the token response that isn't one of the
// standard token fields.
func (t *AccessToken) Param(key string) any {
	v, _ := flexmap.Get(t.Params, key)
	return v
}

// AuthorizationHeader returns the bearer Authorization header value.
func (t *AccessToken) AuthorizationHeader() string {
	return fmt.Sprintf(t.HeaderFormat, t.Token)
}

// Request performs an authorized request through the client. In header
// mode the Authorization header is only added when the caller didn't set one.
func (t *AccessToken) Request(ctx context.Context, method, path string, opts RequestOptions) (*Response, error) {
	if t.client == nil {
		return nil, fmt.Errorf("%w: token has no client", ErrInvalidConfig)
	}

	switch t.Mode {
	case TokenModeQuery:
		// Query params ride along with the body params for GETs; for other
		// verbs the token goes in the URL explicitly.
		if sendsQuery(strings.ToUpper(method)) || opts.Body != nil {
			opts.Params = Merge(Params{t.ParamName: t.Token}, opts.Params)
		} else {
			path = withQuery(path, Params{t.ParamName: t.Token})
		}
	case TokenModeBody:
		opts.Params = Merge(Params{t.ParamName: t.Token}, opts.Params)
	default:
		opts.Headers = MergeHeaders(Headers{"Authorization": t.AuthorizationHeader()}, opts.Headers)
	}

	return t.client.Request(ctx, method, path, opts)
}

// Get, Post, Put and Delete are shorthands for Request.
func (t *AccessToken) Get(ctx context.Context, path string, opts RequestOptions) (*Response, error) {
	return t.Request(ctx, http.MethodGet, path, opts)
}

func (t *AccessToken) Post(ctx context.Context, path string, opts RequestOptions) (*Response, error) {
	return t.Request(ctx, http.MethodPost, path, opts)
}

func (t *AccessToken) Put(ctx context.Context, path string, opts RequestOptions) (*Response, error) {
	return t.Request(ctx, http.MethodPut, path, opts)
}

func (t *AccessToken) Delete(ctx context.Context, path string, opts RequestOptions) (*Response, error) {
	return t.Request(ctx, http.MethodDelete, path, opts)
}

// Refresh exchanges the refresh token for a new AccessToken. The receiver is
// left untouched; if the server doesn't rotate the refresh token, the new
// token keeps the old one.
func (t *AccessToken) Refresh(ctx context.Context, params Params) (*AccessToken, error) {
	if t.client == nil {
		return nil, fmt.Errorf("%w: token has no client", ErrInvalidConfig)
	}
	if t.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token available", ErrInvalidConfig)
	}

	fresh, err := t.client.AuthCode().RefreshAccessToken(ctx, t.RefreshToken, params, TokenOptions{
		Mode:         t.Mode,
		ParamName:    t.ParamName,
		HeaderFormat: t.HeaderFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	return fresh, nil
}

// ToMap renders the token in token response shape, with expires_at as unix
// seconds. Params are copied in first so the standard fields win.
func (t *AccessToken) ToMap() map[string]any {
	m := maps.Clone(t.Params)
	if m == nil {
		m = map[string]any{}
	}
	m["access_token"] = t.Token
	if t.RefreshToken != "" {
		m["refresh_token"] = t.RefreshToken
	}
	if t.Expires() {
		m["expires_in"] = t.ExpiresIn
		m["expires_at"] = t.ExpiresAt.Unix()
	}
	return m
}

// OAuth2Token converts the token for use with golang.org/x/oauth2 clients.
func (t *AccessToken) OAuth2Token() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.Token,
		RefreshToken: t.RefreshToken,
		TokenType:    stringValue(t.Param("token_type")),
		Expiry:       t.ExpiresAt,
		ExpiresIn:    int64(t.ExpiresIn),
	}
	return tok.WithExtra(maps.Clone(t.Params))
}
