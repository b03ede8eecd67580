package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"math/big"
)

// Entropy sizes in bytes. Encoded lengths are for unpadded base64url.
const (
	TokenSize128 = 16 // 22 chars, identifiers
	TokenSize256 = 32 // 43 chars, OAuth state, CSRF and PKCE
	TokenSize512 = 64 // 86 chars
)

// MaxCodeLength bounds GenerateNumericCode so 10^n fits in an int64.
const MaxCodeLength = 18

// GenerateToken returns size bytes from crypto/rand, base64url encoded.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("cryptox: token size %d is not positive", size)
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("cryptox: read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// MustGenerateToken panics where GenerateToken would fail.
func MustGenerateToken(size int) string {
	token, err := GenerateToken(size)
	if err != nil {
		panic(err)
	}
	return token
}

// GenerateNumericCode returns a uniformly random decimal code of exactly
// length digits, zero padded.
func GenerateNumericCode(length int) (string, error) {
	if length <= 0 || length > MaxCodeLength {
		return "", fmt.Errorf("code length must be in 1..%d, got %d", MaxCodeLength, length)
	}

	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}

	return fmt.Sprintf("%0*d", length, n.Int64()), nil
}

// FingerprintToken returns a deterministic SHA-256 fingerprint of a token,
// base64url-encoded (43 chars).
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// GeneratePKCEVerifier returns an RFC 7636 code verifier. 32 random bytes
// encode to 43 characters from the unreserved set.
func GeneratePKCEVerifier() (string, error) {
	return GenerateToken(TokenSize256)
}

// PKCEChallengeS256 derives the S256 code challenge for a verifier.
func PKCEChallengeS256(verifier string) string {
	return FingerprintToken(verifier)
}
