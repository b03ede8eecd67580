package jwtx

import (
	"crypto/ed25519"
	"fmt"

	"github.com/aussiebroadwan/accounts/pkg/cryptox"
	"github.com/golang-jwt/jwt/v5"
)

// EdDSASigner signs with an Ed25519 private key and can hand out a
// verifier for its own public half.
type EdDSASigner struct {
	kid string
	key ed25519.PrivateKey
}

func newEdDSASigner(kid string, pemKey []byte) (*EdDSASigner, error) {
	key, err := cryptox.ParseEd25519PEM(pemKey)
	if err != nil {
		return nil, fmt.Errorf("jwtx: eddsa key: %w", err)
	}
	return &EdDSASigner{kid: kid, key: key}, nil
}

func (s *EdDSASigner) Alg() string { return jwt.SigningMethodEdDSA.Alg() }
func (s *EdDSASigner) KID() string { return s.kid }

func (s *EdDSASigner) PublicKey() ed25519.PublicKey {
	return s.key.Public().(ed25519.PublicKey)
}

// Verifier checks tokens produced by this signer.
func (s *EdDSASigner) Verifier(opts VerifyOptions) *EdDSAVerifier {
	return NewVerifierEdDSA(s.PublicKey(), opts)
}

func (s *EdDSASigner) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims)
	if s.kid != "" {
		t.Header["kid"] = s.kid
	}
	return t.SignedString(s.key)
}

func (s *EdDSASigner) Validate() error {
	if len(s.key) != ed25519.PrivateKeySize {
		return fmt.Errorf("jwtx: ed25519 key is %d bytes, want %d", len(s.key), ed25519.PrivateKeySize)
	}
	return nil
}
