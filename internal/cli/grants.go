package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/aussiebroadwan/oauthsdk/pkg/authsdk"
	"github.com/aussiebroadwan/oauthsdk/pkg/jwtx"
)

func newClientCredentialsCommand(newApp appFactory) *cobra.Command {
	var (
		scopes    []string
		bodyCreds bool
	)

	cmd := &cobra.Command{
		Use:   "client-credentials",
		Short: "Request a token with the client credentials grant",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			opts := authsdk.TokenOptions{}
			if bodyCreds {
				opts.AuthScheme = authsdk.AuthModeRequestBody
			}

			token, err := a.Client().ClientCredentials().GetToken(cmd.Context(), scopeParams(scopes), opts)
			if err != nil {
				return err
			}
			return printToken(cmd.OutOrStdout(), token)
		},
	}

	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "Scopes to request (repeatable or comma separated).")
	cmd.Flags().BoolVar(&bodyCreds, "body-credentials", false, "Send client credentials in the request body instead of a Basic header.")
	return cmd
}

func newPasswordCommand(newApp appFactory) *cobra.Command {
	var (
		username   string
		password   string
		scopes     []string
		otpSecret  string
		otpCode    string
		backupCode string
	)

	cmd := &cobra.Command{
		Use:   "password",
		Short: "Request a token with the resource owner password grant",
		Long: `Request a token with the resource owner password grant. When the server
asks for a second factor, the flow continues with --otp-code, a code generated
from --otp-secret, or --backup-code.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			client := a.Client()

			token, err := client.Password().Exchange(ctx, username, password, scopeParams(scopes), authsdk.TokenOptions{})

			var mfa *authsdk.MFARequiredError
			if errors.As(err, &mfa) {
				method, code, codeErr := mfaAnswer(otpCode, otpSecret, backupCode)
				if codeErr != nil {
					return fmt.Errorf("%w (methods: %v)", codeErr, mfa.Methods)
				}
				a.Logger().Info("mfa required, continuing", "method", method)
				token, err = client.MFAOTP().Continue(ctx, mfa, method, code, nil, authsdk.TokenOptions{})
			}
			if err != nil {
				return err
			}
			return printToken(cmd.OutOrStdout(), token)
		},
	}

	cmd.Flags().StringVar(&username, "username", "", "Resource owner username.")
	cmd.Flags().StringVar(&password, "password", "", "Resource owner password.")
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "Scopes to request.")
	cmd.Flags().StringVar(&otpCode, "otp-code", "", "TOTP code for an MFA challenge.")
	cmd.Flags().StringVar(&otpSecret, "otp-secret", "", "Base32 TOTP secret to generate the MFA code from.")
	cmd.Flags().StringVar(&backupCode, "backup-code", "", "Backup code for an MFA challenge.")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

// mfaAnswer picks the MFA method and code from the flags given.
func mfaAnswer(otpCode, otpSecret, backupCode string) (method, code string, err error) {
	switch {
	case otpCode != "":
		return authsdk.MFAMethodTOTP, otpCode, nil
	case otpSecret != "":
		code, err := authsdk.GenerateTOTP(otpSecret, time.Now())
		if err != nil {
			return "", "", err
		}
		return authsdk.MFAMethodTOTP, code, nil
	case backupCode != "":
		return authsdk.MFAMethodBackupCodes, backupCode, nil
	default:
		return "", "", errors.New("MFA required: pass --otp-code, --otp-secret or --backup-code")
	}
}

func newAuthorizeURLCommand(newApp appFactory) *cobra.Command {
	var (
		redirectURI string
		state       string
		scopes      []string
		implicit    bool
		pkce        bool
	)

	cmd := &cobra.Command{
		Use:   "authorize-url",
		Short: "Print the URL to send the resource owner's browser to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			params := scopeParams(scopes)
			if redirectURI != "" {
				params["redirect_uri"] = redirectURI
			}
			if state != "" {
				params["state"] = state
			}

			out := map[string]string{}

			var strategy authsdk.Strategy = a.Client().AuthCode()
			if implicit {
				strategy = a.Client().Implicit()
			} else if pkce {
				challenge, err := authsdk.GeneratePKCEChallenge()
				if err != nil {
					return err
				}
				params = challenge.Apply(params)
				out["code_verifier"] = challenge.Verifier
			}

			u, err := strategy.AuthorizeURL(params)
			if err != nil {
				return err
			}
			out["url"] = u
			return printJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().StringVar(&redirectURI, "redirect-uri", "", "Redirect URI registered for the client.")
	cmd.Flags().StringVar(&state, "state", "", "Opaque state echoed back on the redirect.")
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "Scopes to request.")
	cmd.Flags().BoolVar(&implicit, "implicit", false, "Use the implicit grant (response_type=token).")
	cmd.Flags().BoolVar(&pkce, "pkce", false, "Add a PKCE challenge and print its verifier.")
	return cmd
}

func newExchangeCodeCommand(newApp appFactory) *cobra.Command {
	var (
		code         string
		callbackURL  string
		redirectURI  string
		codeVerifier string
	)

	cmd := &cobra.Command{
		Use:   "exchange-code",
		Short: "Exchange an authorization code for a token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if callbackURL != "" {
				var err error
				if code, _, err = authsdk.ParseAuthorizationCallback(callbackURL); err != nil {
					return err
				}
			}
			if code == "" {
				return errors.New("either --code or --callback-url is required")
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			params := authsdk.Params{}
			if redirectURI != "" {
				params["redirect_uri"] = redirectURI
			}
			if codeVerifier != "" {
				params["code_verifier"] = codeVerifier
			}

			token, err := a.Client().AuthCode().Exchange(cmd.Context(), code, params, authsdk.TokenOptions{})
			if err != nil {
				return err
			}
			return printToken(cmd.OutOrStdout(), token)
		},
	}

	cmd.Flags().StringVar(&code, "code", "", "Authorization code.")
	cmd.Flags().StringVar(&callbackURL, "callback-url", "", "Full redirect URL to read the code from.")
	cmd.Flags().StringVar(&redirectURI, "redirect-uri", "", "Redirect URI used in the authorization request.")
	cmd.Flags().StringVar(&codeVerifier, "code-verifier", "", "PKCE code verifier.")
	return cmd
}

func newRefreshCommand(newApp appFactory) *cobra.Command {
	var (
		refreshToken string
		scopes       []string
	)

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Exchange a refresh token for a new access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			token, err := a.Client().AuthCode().RefreshAccessToken(cmd.Context(), refreshToken, scopeParams(scopes), authsdk.TokenOptions{})
			if err != nil {
				return err
			}
			return printToken(cmd.OutOrStdout(), token)
		},
	}

	cmd.Flags().StringVar(&refreshToken, "refresh-token", "", "Refresh token.")
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "Narrowed scopes to request.")
	_ = cmd.MarkFlagRequired("refresh-token")
	return cmd
}

func newJWTBearerCommand(newApp appFactory) *cobra.Command {
	var (
		keyFile string
		alg     string
		kid     string
		issuer  string
		subject string
		scopes  []string
	)

	cmd := &cobra.Command{
		Use:   "jwt-bearer",
		Short: "Request a token with a signed JWT bearer assertion (RFC 7523)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := os.ReadFile(keyFile)
			if err != nil {
				return fmt.Errorf("failed to read key: %w", err)
			}
			signer, err := jwtx.NewSigner(alg, kid, key)
			if err != nil {
				return err
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			grant := a.Client().JWTBearer()

			if issuer == "" {
				issuer = a.Client().ID
			}
			claims := grant.Claims(issuer, subject, scopes)

			token, err := grant.Exchange(cmd.Context(), claims, signer, scopeParams(scopes), authsdk.TokenOptions{})
			if err != nil {
				return err
			}
			return printToken(cmd.OutOrStdout(), token)
		},
	}

	cmd.Flags().StringVar(&keyFile, "key-file", "", "PEM private key (RS256, ES256, EdDSA) or raw HS256 secret.")
	cmd.Flags().StringVar(&alg, "alg", "RS256", "Signing algorithm: RS256, ES256, EdDSA or HS256.")
	cmd.Flags().StringVar(&kid, "kid", "", "Key id placed in the JWT header.")
	cmd.Flags().StringVar(&issuer, "issuer", "", "Assertion issuer (default: client id).")
	cmd.Flags().StringVar(&subject, "subject", "", "Assertion subject.")
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "Scopes to request.")
	_ = cmd.MarkFlagRequired("key-file")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

func newSAMLCommand(newApp appFactory) *cobra.Command {
	var (
		assertion     string
		assertionFile string
		scopes        []string
	)

	cmd := &cobra.Command{
		Use:   "saml",
		Short: "Request a token with a SAML 2.0 bearer assertion (RFC 7522)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if assertionFile != "" {
				raw, err := os.ReadFile(assertionFile)
				if err != nil {
					return fmt.Errorf("failed to read assertion: %w", err)
				}
				assertion = string(raw)
			}
			if assertion == "" {
				return errors.New("either --assertion or --assertion-file is required")
			}

			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			params := authsdk.Merge(scopeParams(scopes), authsdk.Params{"assertion": assertion})
			token, err := a.Client().SAMLAssertion().GetToken(cmd.Context(), params, authsdk.TokenOptions{})
			if err != nil {
				return err
			}
			return printToken(cmd.OutOrStdout(), token)
		},
	}

	cmd.Flags().StringVar(&assertion, "assertion", "", "Base64url encoded SAML assertion.")
	cmd.Flags().StringVar(&assertionFile, "assertion-file", "", "File holding the encoded SAML assertion.")
	cmd.Flags().StringSliceVar(&scopes, "scope", nil, "Scopes to request.")
	return cmd
}
