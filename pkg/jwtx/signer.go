package jwtx

import "crypto/ed25519"

// Signer issues tokens. The service holds exactly one at a time.
type Signer interface {
	Alg() string
	KID() string
	Sign(Claims) (string, error)
	Validate() error
}

// PublicKeySigner is a Signer whose verification key may be published.
type PublicKeySigner interface {
	Signer
	PublicKey() ed25519.PublicKey
}

// MinHMACSecretLength is the shortest shared secret accepted for HS256.
const MinHMACSecretLength = 32

// NewSignerHS256 signs with a shared secret of at least MinHMACSecretLength
// bytes. The secret is copied.
func NewSignerHS256(kid string, secret []byte) (*HMACSigner, error) {
	return newHMACSigner(kid, secret)
}

// NewSignerEdDSA signs with the PKCS8 Ed25519 key in pemKey.
func NewSignerEdDSA(kid string, pemKey []byte) (*EdDSASigner, error) {
	return newEdDSASigner(kid, pemKey)
}
