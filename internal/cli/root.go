// Package cli implements the oauthsdk command line: every grant flow and the
// MAC signer, plus a local mock authorization server, driven by environment
// configuration and flags.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/oauthsdk/internal/app"
	"github.com/aussiebroadwan/oauthsdk/pkg/authsdk"
)

// NewRootCommand builds the command tree. cfg holds the environment defaults;
// persistent flags override them.
func NewRootCommand(cfg app.Config) *cobra.Command {
	root := &cobra.Command{
		Use:   "oauthsdk",
		Short: "OAuth2 client command line",
		Long: `oauthsdk requests tokens from an OAuth2 authorization server using any of
the standard grant flows and prints them as JSON. Connection settings come
from OAUTH_* environment variables and can be overridden with flags.`,
		SilenceUsage: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfg.Site, "site", cfg.Site, "Authorization server base URL. Can also be set via OAUTH_SITE.")
	flags.StringVar(&cfg.ClientID, "client-id", cfg.ClientID, "OAuth2 client id. Can also be set via OAUTH_CLIENT_ID.")
	flags.StringVar(&cfg.ClientSecret, "client-secret", cfg.ClientSecret, "OAuth2 client secret. Can also be set via OAUTH_CLIENT_SECRET.")
	flags.StringVar(&cfg.AuthorizeURL, "authorize-url", cfg.AuthorizeURL, "Authorization endpoint path or URL.")
	flags.StringVar(&cfg.TokenURL, "token-url", cfg.TokenURL, "Token endpoint path or URL.")
	flags.StringVar(&cfg.TokenMethod, "token-method", cfg.TokenMethod, "Token request method: GET or POST.")
	flags.StringVar(&cfg.TokenEncoding, "token-encoding", cfg.TokenEncoding, "Token request body encoding: form or json.")
	flags.StringVar(&cfg.AuthScheme, "auth-scheme", cfg.AuthScheme, "Client authentication: basic_auth, request_body, tls_client_auth or private_key_jwt.")
	flags.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "HTTP timeout.")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn or error.")

	// newApp runs after flag parsing, so it sees the overridden config.
	newApp := func(cmd *cobra.Command) (*app.Application, error) {
		return app.New(cfg, cmd.ErrOrStderr())
	}

	root.AddCommand(
		newVersionCommand(),
		newClientCredentialsCommand(newApp),
		newPasswordCommand(newApp),
		newAuthorizeURLCommand(newApp),
		newExchangeCodeCommand(newApp),
		newRefreshCommand(newApp),
		newJWTBearerCommand(newApp),
		newSAMLCommand(newApp),
		newMACHeaderCommand(),
		newKeygenCommand(),
		newMockServerCommand(&cfg),
	)

	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "oauthsdk %s\n", app.BuildVersion)
		},
	}
}

type appFactory func(cmd *cobra.Command) (*app.Application, error)

// scopeParams returns {scope: "a b"} for non-empty scopes.
func scopeParams(scopes []string) authsdk.Params {
	if len(scopes) == 0 {
		return authsdk.Params{}
	}
	return authsdk.Params{"scope": strings.Join(scopes, " ")}
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}

// printToken writes the token in token response shape.
func printToken(w io.Writer, token *authsdk.AccessToken) error {
	return printJSON(w, token.ToMap())
}
