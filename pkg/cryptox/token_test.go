package cryptox

import (
	"encoding/base64"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateTokenLengths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		size    int
		wantLen int
	}{
		{TokenSize128, 22},
		{TokenSize256, 43},
		{TokenSize512, 86},
		{1, 2},
	}
	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.size), func(t *testing.T) {
			t.Parallel()
			token, err := GenerateToken(tt.size)
			require.NoError(t, err)
			require.Len(t, token, tt.wantLen)

			raw, err := base64.RawURLEncoding.DecodeString(token)
			require.NoError(t, err, "tokens are unpadded base64url")
			require.Len(t, raw, tt.size)
		})
	}
}

func TestGenerateTokenRejectsNonPositive(t *testing.T) {
	t.Parallel()
	for _, size := range []int{0, -8} {
		token, err := GenerateToken(size)
		require.Error(t, err)
		require.Empty(t, token)
	}
	require.Panics(t, func() { MustGenerateToken(0) })
	require.NotEmpty(t, MustGenerateToken(TokenSize128))
}

func TestGenerateTokenNoRepeats(t *testing.T) {
	t.Parallel()
	seen := make(map[string]struct{}, 256)
	for range 256 {
		token := MustGenerateToken(TokenSize128)
		require.NotContains(t, seen, token)
		seen[token] = struct{}{}
	}
}

func TestGenerateNumericCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		length  int
		wantErr bool
	}{
		{length: 1},
		{length: 6},
		{length: 8},
		{length: MaxCodeLength},
		{length: 0, wantErr: true},
		{length: -3, wantErr: true},
		{length: MaxCodeLength + 1, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.length), func(t *testing.T) {
			t.Parallel()
			code, err := GenerateNumericCode(tt.length)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Len(t, code, tt.length)
			require.Empty(t, strings.Trim(code, "0123456789"), "digits only, zero padded")
		})
	}
}

func TestFingerprintToken(t *testing.T) {
	t.Parallel()

	a := FingerprintToken("session-a")
	require.Equal(t, a, FingerprintToken("session-a"))
	require.NotEqual(t, a, FingerprintToken("session-b"))
	require.Len(t, a, 43)
	require.NotContains(t, a, "session-a")
}

func TestPKCE(t *testing.T) {
	t.Parallel()

	verifier, err := GeneratePKCEVerifier()
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(verifier), 43)
	require.LessOrEqual(t, len(verifier), 128)

	// RFC 7636 appendix B.
	require.Equal(t,
		"E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM",
		PKCEChallengeS256("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"),
	)
}
