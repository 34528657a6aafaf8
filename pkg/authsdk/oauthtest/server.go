// Package oauthtest runs an in-memory OAuth2 authorization server that speaks
// every grant authsdk implements. It is meant for tests and local development
// against a real HTTP endpoint:
//
//	srv := oauthtest.NewServer(oauthtest.Config{
//		Clients: []oauthtest.Client{{ID: "abc", Secret: "def"}},
//	})
//	defer srv.Close()
//
//	client, _ := authsdk.NewClient("abc", "def", srv.URL, authsdk.Options{})
//
// All state lives in memory and is lost when the Provider goes away.
package oauthtest

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"time"

	"dario.cat/mergo"

	"github.com/aussiebroadwan/oauthsdk/pkg/slogx"
)

const (
	AuthorizePath  = "/oauth/authorize"
	TokenPath      = "/oauth/token"
	IntrospectPath = "/oauth/introspect"
	RevokePath     = "/oauth/revoke"
	ResourcePath   = "/api/me"

	// MaxMFAAttempts is how many wrong codes an MFA session survives.
	MaxMFAAttempts = 5
)

// Client is a registered OAuth2 client.
type Client struct {
	ID     string
	Secret string // empty makes a public client, identified by client_id alone

	RedirectURIs []string // empty accepts any redirect_uri
	Scopes       []string // empty allows any scope

	// MAC issues MAC tokens (token_type "mac" with a mac_key) instead of
	// bearer tokens.
	MAC bool
}

// User is a resource owner for the password and authorization code grants.
type User struct {
	Username string
	Password string
	Scopes   []string // empty allows any scope

	// TOTPSecret or BackupCodes turn on the MFA challenge for password logins.
	TOTPSecret  string
	BackupCodes []string
}

type Config struct {
	Clients []Client
	Users   []User

	// ResourceOwner is the username the authorize endpoint approves every
	// request for. Empty answers every authorization request with
	// access_denied.
	ResourceOwner string

	// AssertionKeys verifies jwt-bearer grant assertions and private_key_jwt
	// client assertions, keyed by the JWT issuer. Values are public keys, or
	// []byte secrets for HS256.
	AssertionKeys map[string]any

	// SAMLAssertions maps accepted encoded SAML assertions to their subject.
	SAMLAssertions map[string]string

	// FormResponses answers token requests form encoded instead of JSON.
	FormResponses bool

	AccessTTL  time.Duration // default 1h
	RefreshTTL time.Duration // default 24h
	CodeTTL    time.Duration // default 1m

	Clock  func() time.Time // default time.Now
	Logger *slog.Logger     // default discards
}

var defaultConfig = Config{
	AccessTTL:  time.Hour,
	RefreshTTL: 24 * time.Hour,
	CodeTTL:    time.Minute,
}

// Provider is the authorization server as an http.Handler. It is safe for
// concurrent use.
type Provider struct {
	cfg     Config
	clients map[string]Client
	users   map[string]User
	handler http.Handler

	mu      sync.Mutex
	codes   map[string]*authCode // by fingerprint
	access  map[string]*grant    // by fingerprint
	refresh map[string]*grant    // by fingerprint
	mfa     map[string]*mfaSession
	backup  map[string][]string  // unused backup codes by username
	nonces  map[string]time.Time // MAC nonces already seen
}

// NewProvider builds a Provider. Duplicate client ids or usernames are a
// configuration error.
func NewProvider(cfg Config) (*Provider, error) {
	if err := mergo.Merge(&cfg, defaultConfig); err != nil {
		return nil, fmt.Errorf("oauthtest: %w", err)
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slogx.Discard()
	}

	p := &Provider{
		cfg:     cfg,
		clients: make(map[string]Client, len(cfg.Clients)),
		users:   make(map[string]User, len(cfg.Users)),
		codes:   map[string]*authCode{},
		access:  map[string]*grant{},
		refresh: map[string]*grant{},
		mfa:     map[string]*mfaSession{},
		backup:  map[string][]string{},
		nonces:  map[string]time.Time{},
	}

	for _, c := range cfg.Clients {
		if _, dup := p.clients[c.ID]; dup || c.ID == "" {
			return nil, fmt.Errorf("oauthtest: invalid or duplicate client id %q", c.ID)
		}
		p.clients[c.ID] = c
	}
	for _, u := range cfg.Users {
		if _, dup := p.users[u.Username]; dup || u.Username == "" {
			return nil, fmt.Errorf("oauthtest: invalid or duplicate username %q", u.Username)
		}
		p.users[u.Username] = u
		p.backup[u.Username] = slices.Clone(u.BackupCodes)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+AuthorizePath, p.handleAuthorize)
	mux.HandleFunc("GET "+TokenPath, p.handleToken)
	mux.HandleFunc("POST "+TokenPath, p.handleToken)
	mux.HandleFunc("POST "+IntrospectPath, p.handleIntrospect)
	mux.HandleFunc("POST "+RevokePath, p.handleRevoke)
	mux.HandleFunc(ResourcePath, p.handleResource)
	p.handler = slogx.HTTPMiddleware(cfg.Logger)(mux)

	return p, nil
}

func (p *Provider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.handler.ServeHTTP(w, r)
}

// Server is a Provider listening on a local httptest server.
type Server struct {
	*httptest.Server

	Provider *Provider
}

// NewServer starts a Provider on a loopback port. It panics on an invalid
// Config, like httptest.NewServer does on listen failures.
func NewServer(cfg Config) *Server {
	p, err := NewProvider(cfg)
	if err != nil {
		panic(err)
	}
	return &Server{Server: httptest.NewServer(p), Provider: p}
}

func (p *Provider) now() time.Time { return p.cfg.Clock() }
