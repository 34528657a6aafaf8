package jwtx

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrUnsupportedAlg = errors.New("jwtx: unsupported signing algorithm")
	ErrInvalidKey     = errors.New("jwtx: invalid signing key")
)

// Signer is our interface for anything that can sign JWT assertions.
type Signer interface {
	Alg() string
	KID() string
	Sign(jwt.Claims) (string, error)
	Validate() error
}

// NewSigner builds a Signer for alg. Asymmetric algorithms (RS256, ES256,
// EdDSA) take a PEM encoded private key; HS256 takes the raw shared secret.
// kid may be empty, in which case no "kid" header is emitted.
func NewSigner(alg, kid string, key []byte) (Signer, error) {
	switch strings.ToUpper(alg) {
	case "RS256":
		return NewSignerRS256(kid, key)
	case "ES256":
		return NewSignerES256(kid, key)
	case "EDDSA":
		return NewSignerEdDSA(kid, key)
	case "HS256":
		return NewSignerHS256(kid, key)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlg, alg)
	}
}

// NewSignerRS256 creates an RS256 signer from PEM bytes (PKCS1 or PKCS8).
func NewSignerRS256(kid string, pemKey []byte) (Signer, error) {
	key, err := parseRSAKey(pemKey)
	if err != nil {
		return nil, err
	}
	return &keySigner{kid: kid, method: jwt.SigningMethodRS256, key: key}, nil
}

// NewSignerES256 creates an ES256 signer from PKCS8 PEM bytes.
func NewSignerES256(kid string, pemKey []byte) (Signer, error) {
	key, err := parseECKey(pemKey)
	if err != nil {
		return nil, err
	}
	return &keySigner{kid: kid, method: jwt.SigningMethodES256, key: key}, nil
}

// NewSignerEdDSA creates an EdDSA signer from PKCS8 PEM bytes.
func NewSignerEdDSA(kid string, pemKey []byte) (Signer, error) {
	key, err := parseEd25519Key(pemKey)
	if err != nil {
		return nil, err
	}
	return &keySigner{kid: kid, method: jwt.SigningMethodEdDSA, key: key}, nil
}

// NewSignerHS256 creates an HMAC SHA-256 signer from a shared secret.
func NewSignerHS256(kid string, secret []byte) (Signer, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: empty HMAC secret", ErrInvalidKey)
	}
	// Copy so later changes to the caller's slice don't alter signatures
	key := append([]byte(nil), secret...)
	return &keySigner{kid: kid, method: jwt.SigningMethodHS256, key: key}, nil
}

// keySigner signs with a fixed golang-jwt method and key.
type keySigner struct {
	kid    string
	method jwt.SigningMethod
	key    any
}

func (s *keySigner) Alg() string { return s.method.Alg() }
func (s *keySigner) KID() string { return s.kid }

// Sign takes your claims and turns them into a signed JWT string.
func (s *keySigner) Sign(claims jwt.Claims) (string, error) {
	t := jwt.NewWithClaims(s.method, claims)
	if s.kid != "" {
		t.Header["kid"] = s.kid
	}

	signed, err := t.SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign %s: %w", s.method.Alg(), err)
	}
	return signed, nil
}

// Validate does a quick sanity check to make sure we actually have a key.
func (s *keySigner) Validate() error {
	if s.key == nil {
		return fmt.Errorf("%w: nil key", ErrInvalidKey)
	}
	if b, ok := s.key.([]byte); ok && len(b) == 0 {
		return fmt.Errorf("%w: empty HMAC secret", ErrInvalidKey)
	}
	return nil
}
