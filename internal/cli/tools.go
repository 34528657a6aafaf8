package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/oauthsdk/pkg/authsdk"
	"github.com/aussiebroadwan/oauthsdk/pkg/cryptox"
)

func newMACHeaderCommand() *cobra.Command {
	var (
		token     string
		secret    string
		algorithm string
		method    string
		kid       string
	)

	cmd := &cobra.Command{
		Use:   "mac-header URL",
		Short: "Print a MAC Authorization header for a request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := authsdk.MACOptions{Algorithm: algorithm}
			var params map[string]any
			if kid != "" {
				opts.Format = authsdk.MACHeaderKeyID
				params = map[string]any{"kid": kid}
			}

			mac, err := authsdk.NewMACToken(nil, token, secret, params, opts)
			if err != nil {
				return err
			}

			header, err := mac.SignRequest(method, args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), header)
			return err
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "MAC key identifier (the access token).")
	cmd.Flags().StringVar(&secret, "secret", "", "MAC key.")
	cmd.Flags().StringVar(&algorithm, "algorithm", "hmac-sha-256", "hmac-sha-1 or hmac-sha-256.")
	cmd.Flags().StringVar(&method, "method", "GET", "HTTP method of the request.")
	cmd.Flags().StringVar(&kid, "kid", "", "Key id; switches to the kid header format.")
	_ = cmd.MarkFlagRequired("token")
	_ = cmd.MarkFlagRequired("secret")
	return cmd
}

func newKeygenCommand() *cobra.Command {
	var (
		alg  string
		bits int
	)

	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a PEM private key for jwt-bearer assertions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.EqualFold(alg, "HS256") {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), cryptox.MustGenerateToken(cryptox.TokenSize512))
				return err
			}

			key, err := cryptox.GenerateKey(alg, bits)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(key)
			return err
		},
	}

	cmd.Flags().StringVar(&alg, "alg", "EdDSA", "Key algorithm: RS256, ES256, EdDSA or HS256.")
	cmd.Flags().IntVar(&bits, "bits", 0, "RSA modulus size (RS256 only).")
	return cmd
}
