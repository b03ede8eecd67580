package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/accounts/internal/auth/service"
	"github.com/aussiebroadwan/accounts/pkg/cryptox"
	"github.com/aussiebroadwan/accounts/pkg/jwtx"
)

// InitAuthKeys builds the token signer and its matching verifier.
//
// Algorithms:
//   - "HS256": the shared JWT_SECRET signs and verifies. Nothing is published
//     on the JWKS endpoint.
//   - "EdDSA": an Ed25519 key is read from JWT_PRIVATE_KEY_FILE, or generated
//     there on first start. Tokens survive restarts as long as the file does.
func InitAuthKeys(cfg Config, opts jwtx.VerifyOptions, logger *slog.Logger) (jwtx.Signer, jwtx.Verifier, error) {
	switch cfg.JWTAlgorithm {
	case AlgorithmHS256:
		secret := []byte(cfg.JWTSecret)
		signer, err := jwtx.NewSignerHS256(cfg.JWTKeyID, secret)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: hs256 signer: %w", service.ErrConfiguration, err)
		}
		logger.Info("using shared-secret token signing", "algorithm", signer.Alg(), "kid", signer.KID())
		return signer, jwtx.NewVerifierHS256(secret, opts), nil

	case AlgorithmEdDSA:
		pemKey, created, err := cryptox.LoadOrCreateEd25519Key(cfg.JWTPrivateKeyFile)
		if err != nil {
			return nil, nil, fmt.Errorf("signing key: %w", err)
		}
		if created {
			logger.Warn("generated a new signing key; tokens signed by any previous key are now invalid",
				"path", cfg.JWTPrivateKeyFile)
		}
		signer, err := jwtx.NewSignerEdDSA(cfg.JWTKeyID, pemKey)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: eddsa signer: %w", service.ErrConfiguration, err)
		}
		logger.Info("using ed25519 token signing", "algorithm", signer.Alg(), "kid", signer.KID())
		return signer, signer.Verifier(opts), nil

	default:
		return nil, nil, &ConfigurationError{Problems: []string{"unsupported JWT_ALGORITHM " + cfg.JWTAlgorithm}}
	}
}
