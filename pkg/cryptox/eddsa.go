package cryptox

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const ed25519PEMType = "PRIVATE KEY"

// ErrNotEd25519 is returned when PEM input decodes to some other kind of key.
var ErrNotEd25519 = errors.New("cryptox: not an Ed25519 private key")

// GenerateEd25519Key returns a fresh signing key as PKCS8 PEM.
func GenerateEd25519Key() ([]byte, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("cryptox: generate ed25519: %w", err)
	}
	return EncodeEd25519PEM(priv)
}

// EncodeEd25519PEM wraps priv in a PKCS8 "PRIVATE KEY" block.
func EncodeEd25519PEM(priv ed25519.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return nil, fmt.Errorf("cryptox: marshal pkcs8: %w", err)
	}
	return pem.EncodeToMemory(&pem.Block{Type: ed25519PEMType, Bytes: der}), nil
}

// ParseEd25519PEM is the inverse of EncodeEd25519PEM. Only PKCS8 is accepted.
func ParseEd25519PEM(data []byte) (ed25519.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("cryptox: no PEM block found")
	}
	if block.Type != ed25519PEMType {
		return nil, fmt.Errorf("cryptox: PEM type %q, want %q", block.Type, ed25519PEMType)
	}

	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("cryptox: parse pkcs8: %w", err)
	}
	key, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, ErrNotEd25519
	}
	return key, nil
}

// LoadOrCreateEd25519Key reads the PEM key at path. A missing file is
// replaced by a newly generated key written with 0600 permissions, and
// created reports that this happened.
func LoadOrCreateEd25519Key(path string) (pemKey []byte, created bool, err error) {
	pemKey, err = os.ReadFile(path)
	switch {
	case err == nil:
		if _, err := ParseEd25519PEM(pemKey); err != nil {
			return nil, false, fmt.Errorf("%s: %w", path, err)
		}
		return pemKey, false, nil
	case !errors.Is(err, os.ErrNotExist):
		return nil, false, fmt.Errorf("cryptox: read key: %w", err)
	}

	if pemKey, err = GenerateEd25519Key(); err != nil {
		return nil, false, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, false, fmt.Errorf("cryptox: create key directory: %w", err)
	}
	if err := os.WriteFile(path, pemKey, 0o600); err != nil {
		return nil, false, fmt.Errorf("cryptox: write key: %w", err)
	}
	return pemKey, true, nil
}
