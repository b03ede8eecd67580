package jwtx

import (
	"crypto/ed25519"
	"encoding/base64"
)

// JWK is a public key in RFC 7517 form. Only Ed25519 (RFC 8037 OKP) keys are
// ever published; HS256 secrets are never exposed.
type JWK struct {
	Kty string `json:"kty"`
	Crv string `json:"crv,omitempty"`
	X   string `json:"x,omitempty"`
	Kid string `json:"kid,omitempty"`
	Alg string `json:"alg"`
	Use string `json:"use"`
}

type JWKS struct {
	Keys []JWK `json:"keys"`
}

// PublicJWKS returns the verification keys for signer. Symmetric signers
// yield an empty set.
func PublicJWKS(signer Signer) JWKS {
	set := JWKS{Keys: []JWK{}}

	if pk, ok := signer.(PublicKeySigner); ok {
		set.Keys = append(set.Keys, ed25519JWK(pk.KID(), pk.PublicKey()))
	}
	return set
}

func ed25519JWK(kid string, pub ed25519.PublicKey) JWK {
	return JWK{
		Kty: "OKP",
		Crv: "Ed25519",
		X:   base64.RawURLEncoding.EncodeToString(pub),
		Kid: kid,
		Alg: "EdDSA",
		Use: "sig",
	}
}
