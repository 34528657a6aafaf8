package app

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/aussiebroadwan/oauthsdk/pkg/authsdk"
	"github.com/aussiebroadwan/oauthsdk/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"
)

// Application bundles the logger and the OAuth2 client the CLI works with.
type Application struct {
	cfg    Config
	logger *slog.Logger
	client *authsdk.Client
}

// NewLogger builds the CLI logger. Logs go to logOut so command output on
// stdout stays machine readable.
func NewLogger(cfg Config, logOut io.Writer) *slog.Logger {
	return slogx.New(slogx.Config{
		Service: "oauthsdk",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Output:  logOut,
	})
}

// New builds the logger and client for cfg.
func New(cfg Config, logOut io.Writer) (*Application, error) {
	app := &Application{
		cfg:    cfg,
		logger: NewLogger(cfg, logOut),
	}

	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: client id is required (OAUTH_CLIENT_ID or --client-id)", authsdk.ErrInvalidConfig)
	}

	client, err := authsdk.NewClient(cfg.ClientID, cfg.ClientSecret, cfg.Site, cfg.ClientOptions(app.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	app.client = client

	app.logger.Debug("client configured",
		"site", cfg.Site,
		"token_url", client.TokenURL(),
		"auth_scheme", cfg.AuthScheme,
	)
	return app, nil
}

// ClientOptions maps the configuration onto authsdk.Options.
func (c Config) ClientOptions(logger *slog.Logger) authsdk.Options {
	return authsdk.Options{
		AuthorizeURL:  c.AuthorizeURL,
		TokenURL:      c.TokenURL,
		TokenMethod:   strings.ToUpper(c.TokenMethod),
		TokenEncoding: authsdk.TokenEncoding(strings.ToLower(c.TokenEncoding)),
		AuthScheme:    authsdk.AuthMode(c.AuthScheme),
		Timeout:       c.Timeout,
		Logger:        logger,
		RateLimit:     c.RateLimit,
	}
}

func (a *Application) Config() Config          { return a.cfg }
func (a *Application) Logger() *slog.Logger    { return a.logger }
func (a *Application) Client() *authsdk.Client { return a.client }
