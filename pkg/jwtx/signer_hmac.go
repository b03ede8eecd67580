package jwtx

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// HMACSigner implements the Signer interface using HS256 and a shared secret.
type HMACSigner struct {
	kid    string
	secret []byte
}

func newHMACSigner(kid string, secret []byte) (*HMACSigner, error) {
	if len(secret) < MinHMACSecretLength {
		return nil, fmt.Errorf("jwtx: HS256 secret must be at least %d bytes", MinHMACSecretLength)
	}

	// Copy so callers can't mutate the key under us
	key := make([]byte, len(secret))
	copy(key, secret)

	return &HMACSigner{kid: kid, secret: key}, nil
}

func (s *HMACSigner) Alg() string { return jwt.SigningMethodHS256.Alg() }
func (s *HMACSigner) KID() string { return s.kid }

// Sign takes your claims and turns them into a signed JWT string.
func (s *HMACSigner) Sign(claims Claims) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	if s.kid != "" {
		t.Header["kid"] = s.kid
	}
	return t.SignedString(s.secret)
}

// Validate does a quick sanity check to make sure we actually have a key.
func (s *HMACSigner) Validate() error {
	if len(s.secret) < MinHMACSecretLength {
		return errors.New("jwtx: HS256 secret too short")
	}
	return nil
}

// HMACVerifier validates JWTs signed using HS256.
type HMACVerifier struct {
	secret []byte
	opts   VerifyOptions
}

// NewVerifierHS256 creates a verifier for tokens signed with secret.
func NewVerifierHS256(secret []byte, opts VerifyOptions) *HMACVerifier {
	key := make([]byte, len(secret))
	copy(key, secret)
	return &HMACVerifier{secret: key, opts: opts}
}

// Verify validates the JWT string and returns its parsed Claims.
func (v *HMACVerifier) Verify(tokenStr string) (Claims, error) {
	return parse(tokenStr, jwt.SigningMethodHS256, v.opts, v.secret)
}
