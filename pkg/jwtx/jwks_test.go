package jwtx_test

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/aussiebroadwan/accounts/pkg/cryptox"
	"github.com/aussiebroadwan/accounts/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestPublicJWKS(t *testing.T) {
	t.Run("eddsa publishes its public key", func(t *testing.T) {
		pemKey, err := cryptox.GenerateEd25519Key()
		require.NoError(t, err)
		signer, err := jwtx.NewSignerEdDSA("kid-1", pemKey)
		require.NoError(t, err)

		set := jwtx.PublicJWKS(signer)
		require.Len(t, set.Keys, 1)
		k := set.Keys[0]
		require.Equal(t, "OKP", k.Kty)
		require.Equal(t, "Ed25519", k.Crv)
		require.Equal(t, "kid-1", k.Kid)

		x, err := base64.RawURLEncoding.DecodeString(k.X)
		require.NoError(t, err)
		require.Equal(t, []byte(signer.PublicKey()), x)
	})

	t.Run("hmac publishes nothing", func(t *testing.T) {
		signer, err := jwtx.NewSignerHS256("kid", []byte(strings.Repeat("s", jwtx.MinHMACSecretLength)))
		require.NoError(t, err)
		require.Empty(t, jwtx.PublicJWKS(signer).Keys)
	})
}
