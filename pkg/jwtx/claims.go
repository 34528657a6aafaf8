package jwtx

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultAssertionTTL is how long a freshly built assertion stays valid.
// Authorization servers commonly reject assertions living longer than an hour.
const DefaultAssertionTTL = 5 * time.Minute

var ErrMissingClaim = errors.New("jwtx: missing required claim")

// BearerClaims is the claim set of an RFC 7523 JWT bearer grant.
type BearerClaims struct {
	jwt.RegisteredClaims

	// Scope is the space delimited scope requested through the assertion.
	// Some servers (Google service accounts among them) read it from here
	// instead of the form body.
	Scope string `json:"scope,omitempty"`
}

// NewBearerClaims builds minimally-correct assertion claims. A zero ttl
// means DefaultAssertionTTL.
func NewBearerClaims(
	issuer, subject string,
	audience []string,
	scopes []string,
	ttl time.Duration,
	now time.Time,
) BearerClaims {
	if ttl <= 0 {
		ttl = DefaultAssertionTTL
	}

	return BearerClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings(audience),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Scope: strings.Join(scopes, " "),
	}
}

// NewJTI returns a random identifier for the "jti" claim so the server can
// detect replayed assertions.
func NewJTI() string {
	return uuid.NewString()
}

// Validate checks the claims RFC 7523 requires before we bother signing.
func (c *BearerClaims) Validate() error {
	switch {
	case c.Issuer == "":
		return fmt.Errorf("%w: iss", ErrMissingClaim)
	case c.Subject == "":
		return fmt.Errorf("%w: sub", ErrMissingClaim)
	case len(c.Audience) == 0:
		return fmt.Errorf("%w: aud", ErrMissingClaim)
	case c.ExpiresAt == nil:
		return fmt.Errorf("%w: exp", ErrMissingClaim)
	}
	return nil
}
