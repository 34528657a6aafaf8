package authsdk

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dario.cat/mergo"

	"github.com/aussiebroadwan/oauthsdk/pkg/httpx"
	"github.com/aussiebroadwan/oauthsdk/pkg/slogx"
)

// TokenEncoding is the body encoding of POST token requests.
type TokenEncoding string

const (
	TokenEncodingForm TokenEncoding = "form"
	TokenEncodingJSON TokenEncoding = "json"
)

// Options configures a Client. Zero values take the documented defaults.
type Options struct {
	// AuthorizeURL is a path relative to the site or an absolute URL.
	// Default: /oauth/authorize
	AuthorizeURL string

	// TokenURL is a path relative to the site or an absolute URL.
	// Default: /oauth/token
	TokenURL string

	// TokenMethod is GET or POST. Default: POST
	TokenMethod string

	// TokenEncoding selects form or JSON bodies for POST token requests.
	// Default: form
	TokenEncoding TokenEncoding

	// AuthScheme is how client credentials reach the token endpoint.
	// Default: basic_auth
	AuthScheme AuthMode

	// HeaderFormat is the fmt format of the bearer Authorization header.
	// Default: "OAuth %s"
	HeaderFormat string

	// Timeout applies to the HTTP client built when HTTPClient is nil.
	// Default: 30s
	Timeout time.Duration

	// HTTPClient performs all requests. It is copied, never modified.
	HTTPClient *http.Client

	// Logger receives debug logs about token requests. Default: slog.Default()
	Logger *slog.Logger

	// RateLimit throttles outbound requests per host. Zero disables it.
	RateLimit httpx.RateLimitConfig

	// Clock is used for token expiry and MAC timestamps. Default: time.Now
	Clock func() time.Time
}

var defaultOptions = Options{
	AuthorizeURL:  "/oauth/authorize",
	TokenURL:      "/oauth/token",
	TokenMethod:   http.MethodPost,
	TokenEncoding: TokenEncodingForm,
	AuthScheme:    AuthModeBasic,
	HeaderFormat:  "OAuth %s",
	Timeout:       30 * time.Second,
}

// Client talks to one authorization server on behalf of one OAuth2 client.
// Its configuration is fixed at construction and it is safe for concurrent
// use as long as the underlying http.Client is.
type Client struct {
	ID     string
	Secret string

	site   string
	opts   Options
	http   *http.Client
	log    *slog.Logger
	auth   *Authenticator
	clock  func() time.Time
	grants grants
}

type grants struct {
	authCode          *AuthCode
	webServer         *WebServer
	implicit          *Implicit
	password          *Password
	clientCredentials *ClientCredentials
	assertion         *Assertion
	jwtBearer         *JWTBearer
	samlAssertion     *SAMLAssertion
	mfaOTP            *MFAOTP
}

// NewClient creates a client for the server at site (e.g.
// "https://auth.example.com"). site may be empty when both endpoint URLs are
// absolute.
func NewClient(clientID, clientSecret, site string, opts Options) (*Client, error) {
	if err := mergo.Merge(&opts, defaultOptions); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	site = strings.TrimSuffix(strings.TrimSpace(site), "/")
	if site != "" {
		if err := checkAbsoluteURL(site); err != nil {
			return nil, fmt.Errorf("%w: site: %w", ErrInvalidConfig, err)
		}
	}

	opts.TokenMethod = strings.ToUpper(opts.TokenMethod)
	if opts.TokenMethod != http.MethodPost && opts.TokenMethod != http.MethodGet {
		return nil, fmt.Errorf("%w: token method %q (want GET or POST)", ErrInvalidConfig, opts.TokenMethod)
	}
	if !opts.AuthScheme.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAuthMode, opts.AuthScheme)
	}
	if opts.TokenEncoding != TokenEncodingForm && opts.TokenEncoding != TokenEncodingJSON {
		return nil, fmt.Errorf("%w: token encoding %q", ErrInvalidConfig, opts.TokenEncoding)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	c := &Client{
		ID:     clientID,
		Secret: clientSecret,
		site:   site,
		opts:   opts,
		http:   buildHTTPClient(opts, logger),
		log:    logger,
		auth:   NewAuthenticator(clientID, clientSecret, opts.AuthScheme),
		clock:  clock,
	}

	for _, raw := range []string{opts.AuthorizeURL, opts.TokenURL} {
		if _, err := c.resolve(raw); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	c.grants = grants{
		authCode:          &AuthCode{base{c}},
		webServer:         &WebServer{AuthCode{base{c}}},
		implicit:          &Implicit{base{c}},
		password:          &Password{base{c}},
		clientCredentials: &ClientCredentials{base{c}},
		assertion:         &Assertion{base{c}},
		jwtBearer:         &JWTBearer{base{c}},
		samlAssertion:     &SAMLAssertion{base{c}},
		mfaOTP:            &MFAOTP{base{c}},
	}

	return c, nil
}

// buildHTTPClient copies the configured client (or builds one) and wraps
// its transport with request logging and, if configured, rate limiting.
func buildHTTPClient(opts Options, logger *slog.Logger) *http.Client {
	var hc http.Client
	if opts.HTTPClient != nil {
		hc = *opts.HTTPClient
	} else {
		hc.Timeout = opts.Timeout
	}

	transport := hc.Transport
	if opts.RateLimit.Enabled() {
		transport = httpx.NewRateLimitedTransport(transport, opts.RateLimit, nil)
	}
	hc.Transport = slogx.NewTransport(transport, logger)

	return &hc
}

// Site returns the base URL of the authorization server.
func (c *Client) Site() string { return c.site }

// Options returns a copy of the effective configuration.
func (c *Client) Options() Options { return c.opts }

// Now returns the client's current time.
func (c *Client) Now() time.Time { return c.clock() }

// HTTPClient returns the client used for all requests.
func (c *Client) HTTPClient() *http.Client { return c.http }

// logger prefers a logger attached to ctx over the configured one.
func (c *Client) logger(ctx context.Context) *slog.Logger {
	return slogx.FromContextOr(ctx, c.log)
}

// Authenticator returns the authenticator used for token requests.
func (c *Client) Authenticator() *Authenticator { return c.auth }

// AuthorizeURL returns the authorization endpoint with params as its query.
func (c *Client) AuthorizeURL(params Params) (string, error) {
	base, err := c.resolve(c.opts.AuthorizeURL)
	if err != nil {
		return "", err
	}
	return withQuery(base, params), nil
}

// TokenURL returns the token endpoint.
func (c *Client) TokenURL() string {
	u, _ := c.resolve(c.opts.TokenURL) // validated in NewClient
	return u
}

// resolve turns a path into an absolute URL below the site. Absolute URLs
// are returned unchanged.
func (c *Client) resolve(pathOrURL string) (string, error) {
	if isAbsoluteURL(pathOrURL) {
		if err := checkAbsoluteURL(pathOrURL); err != nil {
			return "", err
		}
		return pathOrURL, nil
	}
	if c.site == "" {
		return "", fmt.Errorf("%w: relative path %q and no site configured", ErrInvalidURL, pathOrURL)
	}
	if pathOrURL == "" {
		return c.site, nil
	}
	return c.site + "/" + strings.TrimPrefix(pathOrURL, "/"), nil
}

func isAbsoluteURL(s string) bool {
	return strings.Contains(s, "://")
}

func checkAbsoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidURL, raw, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q is not an absolute http(s) URL", ErrInvalidURL, raw)
	}
	return nil
}

// withQuery appends params to rawURL, keeping any query already present.
func withQuery(rawURL string, params Params) string {
	if len(params) == 0 {
		return rawURL
	}
	sep := "?"
	if strings.Contains(rawURL, "?") {
		sep = "&"
	}
	return rawURL + sep + params.Encode()
}

// ============================================================================
// Grant accessors
// ============================================================================

func (c *Client) AuthCode() *AuthCode                   { return c.grants.authCode }
func (c *Client) WebServer() *WebServer                 { return c.grants.webServer }
func (c *Client) Implicit() *Implicit                   { return c.grants.implicit }
func (c *Client) Password() *Password                   { return c.grants.password }
func (c *Client) ClientCredentials() *ClientCredentials { return c.grants.clientCredentials }
func (c *Client) Assertion() *Assertion                 { return c.grants.assertion }
func (c *Client) JWTBearer() *JWTBearer                 { return c.grants.jwtBearer }
func (c *Client) SAMLAssertion() *SAMLAssertion         { return c.grants.samlAssertion }
func (c *Client) MFAOTP() *MFAOTP                       { return c.grants.mfaOTP }

// Strategy returns the grant implementation for g.
func (c *Client) Strategy(g GrantType) (Strategy, error) {
	switch g {
	case GrantAuthCode:
		return c.grants.authCode, nil
	case GrantWebServer:
		return c.grants.webServer, nil
	case GrantImplicit:
		return c.grants.implicit, nil
	case GrantPassword:
		return c.grants.password, nil
	case GrantClientCredentials:
		return c.grants.clientCredentials, nil
	case GrantAssertion:
		return c.grants.assertion, nil
	case GrantJWTBearer:
		return c.grants.jwtBearer, nil
	case GrantSAMLAssertion:
		return c.grants.samlAssertion, nil
	case GrantMFAOTP:
		return c.grants.mfaOTP, nil
	default:
		return nil, fmt.Errorf("%w: unknown grant %q", ErrUnsupported, g)
	}
}
