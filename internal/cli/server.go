package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/oauthsdk/internal/app"
	"github.com/aussiebroadwan/oauthsdk/pkg/authsdk"
	"github.com/aussiebroadwan/oauthsdk/pkg/authsdk/oauthtest"
)

const shutdownGracePeriod = 10 * time.Second

// newMockServerCommand reads cfg when it runs, after flag parsing. The server
// only needs the client registration, so no upstream Client is built.
func newMockServerCommand(cfg *app.Config) *cobra.Command {
	var (
		addr          string
		users         []string
		redirectURIs  []string
		scopes        []string
		resourceOwner string
		mac           bool
		formResponses bool
	)

	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Run a local authorization server for the configured client",
		Long: `mock-server serves an in-memory authorization server with the configured
client registered. It answers every grant the SDK speaks, plus introspection,
revocation and a protected resource at /api/me.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgUsers, err := parseUsers(users)
			if err != nil {
				return err
			}
			if cfg.ClientID == "" {
				return fmt.Errorf("%w: client id is required (OAUTH_CLIENT_ID or --client-id)", authsdk.ErrInvalidConfig)
			}
			logger := app.NewLogger(*cfg, cmd.ErrOrStderr())

			provider, err := oauthtest.NewProvider(oauthtest.Config{
				Clients: []oauthtest.Client{{
					ID:           cfg.ClientID,
					Secret:       cfg.ClientSecret,
					RedirectURIs: redirectURIs,
					Scopes:       scopes,
					MAC:          mac,
				}},
				Users:         cfgUsers,
				ResourceOwner: resourceOwner,
				FormResponses: formResponses,
				Logger:        logger,
			})
			if err != nil {
				return err
			}

			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("failed to listen: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "listening on http://%s\n", ln.Addr())

			server := &http.Server{
				Handler:           provider,
				ReadHeaderTimeout: 3 * time.Second,
			}

			serverErrors := make(chan error, 1)
			go func() {
				serverErrors <- server.Serve(ln)
			}()

			ctx := cmd.Context()
			select {
			case err := <-serverErrors:
				return fmt.Errorf("server error: %w", err)
			case <-ctx.Done():
				logger.Info("shutting down mock server")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("graceful server shutdown failed", "error", err)
				return server.Close()
			}
			if err := <-serverErrors; !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "Listen address.")
	cmd.Flags().StringSliceVar(&users, "user", nil, "Resource owner as name:password. Repeatable.")
	cmd.Flags().StringSliceVar(&redirectURIs, "redirect-uri", nil, "Registered redirect URI. Repeatable.")
	cmd.Flags().StringSliceVar(&scopes, "scope", []string{"read", "write"}, "Scopes the client may request.")
	cmd.Flags().StringVar(&resourceOwner, "resource-owner", "", "User that approves every authorization request.")
	cmd.Flags().BoolVar(&mac, "mac", false, "Issue MAC tokens instead of bearer tokens.")
	cmd.Flags().BoolVar(&formResponses, "form-responses", false, "Answer token requests form encoded instead of JSON.")

	return cmd
}

// parseUsers turns name:password flags into resource owners.
func parseUsers(flags []string) ([]oauthtest.User, error) {
	users := make([]oauthtest.User, 0, len(flags))
	for _, u := range flags {
		name, password, ok := strings.Cut(u, ":")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --user %q: want name:password", u)
		}
		users = append(users, oauthtest.User{Username: name, Password: password})
	}
	return users, nil
}
