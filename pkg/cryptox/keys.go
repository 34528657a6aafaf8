package cryptox

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"strings"
)

// MinRSABits is the smallest RSA modulus GenerateKey accepts.
const MinRSABits = 2048

// GenerateKey creates a private key for a JWT signing algorithm and returns
// it PEM encoded. RS256 keys are PKCS1 ("RSA PRIVATE KEY"), ES256 and EdDSA
// keys are PKCS8 ("PRIVATE KEY"). bits only matters for RS256, zero means
// MinRSABits.
func GenerateKey(alg string, bits int) ([]byte, error) {
	switch strings.ToUpper(alg) {
	case "RS256":
		if bits == 0 {
			bits = MinRSABits
		}
		if bits < MinRSABits {
			return nil, fmt.Errorf("cryptox: RSA key size must be at least %d bits", MinRSABits)
		}

		key, err := rsa.GenerateKey(rand.Reader, bits)
		if err != nil {
			return nil, fmt.Errorf("cryptox: failed to generate RSA key: %w", err)
		}
		return pem.EncodeToMemory(&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(key),
		}), nil

	case "ES256":
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("cryptox: failed to generate ECDSA key: %w", err)
		}
		return marshalPKCS8(key)

	case "EDDSA":
		_, key, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("cryptox: failed to generate Ed25519 key: %w", err)
		}
		return marshalPKCS8(key)

	default:
		return nil, fmt.Errorf("cryptox: unsupported key algorithm %q", alg)
	}
}

func marshalPKCS8(key any) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return nil, fmt.Errorf("cryptox: failed to marshal PKCS8 key: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}), nil
}
