package authsdk

import (
	"context"
	"fmt"
	"time"

	"github.com/pquerna/otp/totp"
)

// MFA methods accepted by the mfa_otp grant.
const (
	MFAMethodTOTP        = "totp"
	MFAMethodBackupCodes = "backup_codes"
)

// MFAOTP completes a token request that was answered with
// *MFARequiredError by sending a one-time password under the mfa_otp grant.
type MFAOTP struct {
	base
}

// Grant implements Strategy.
func (*MFAOTP) Grant() GrantType { return GrantMFAOTP }

// AuthorizeURL is not supported, the grant continues a token request.
func (*MFAOTP) AuthorizeURL(Params) (string, error) {
	return "", unsupported(GrantMFAOTP, "AuthorizeURL", "the grant continues a token request")
}

// GetToken posts params with grant_type=mfa_otp. params should carry
// mfa_token, method and otp_code; Continue is the typed shorthand.
func (g *MFAOTP) GetToken(ctx context.Context, params Params, opts TokenOptions) (*AccessToken, error) {
	return g.client.GetToken(ctx, Merge(Params{"grant_type": string(GrantMFAOTP)}, params), opts)
}

// Continue answers challenge with code using method (MFAMethodTOTP or
// MFAMethodBackupCodes).
//
// Example:
//
//	token, err := client.Password().Exchange(ctx, "alice", "hunter2", nil, authsdk.TokenOptions{})
//	var mfa *authsdk.MFARequiredError
//	if errors.As(err, &mfa) {
//	    code, _ := authsdk.GenerateTOTP(secret, time.Now())
//	    token, err = client.MFAOTP().Continue(ctx, mfa, authsdk.MFAMethodTOTP, code, nil, authsdk.TokenOptions{})
//	}
func (g *MFAOTP) Continue(ctx context.Context, challenge *MFARequiredError, method, code string, params Params, opts TokenOptions) (*AccessToken, error) {
	if challenge == nil || challenge.MFAToken == "" {
		return nil, fmt.Errorf("%w: MFA challenge without mfa_token", ErrInvalidConfig)
	}
	return g.GetToken(ctx, Merge(Params{
		"mfa_token": challenge.MFAToken,
		"method":    method,
		"otp_code":  code,
	}, params), opts)
}

// GenerateTOTP returns the current TOTP code for a base32 secret.
func GenerateTOTP(secret string, t time.Time) (string, error) {
	code, err := totp.GenerateCode(secret, t)
	if err != nil {
		return "", fmt.Errorf("failed to generate TOTP code: %w", err)
	}
	return code, nil
}
