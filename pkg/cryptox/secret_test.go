package cryptox

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "cryptox-pepper-*")
	if err != nil {
		panic(err)
	}
	SetPepperPath(filepath.Join(dir, "pepper"))

	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

func TestHashSecret(t *testing.T) {
	tests := []struct {
		name   string
		secret string
	}{
		{"six digit code", "123456"},
		{"leading zeros", "000042"},
		{"long code", strings.Repeat("9", 10)},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashSecret(tt.secret)
			require.NoError(t, err)

			parts := strings.Split(hash, "$")
			require.Len(t, parts, 6, "PHC hash should have 6 parts")
			require.Equal(t, "argon2id", parts[1])
			require.Equal(t, "v=19", parts[2])
			require.Equal(t, "m=19456,t=2,p=1", parts[3])
			require.NotEmpty(t, parts[4], "salt should not be empty")
			require.NotEmpty(t, parts[5], "hash should not be empty")

			require.NoError(t, VerifySecret(tt.secret, hash))
		})
	}
}

func TestHashSecret_UniqueSalts(t *testing.T) {
	h1, err := HashSecret("123456")
	require.NoError(t, err)
	h2, err := HashSecret("123456")
	require.NoError(t, err)

	require.NotEqual(t, h1, h2, "hashes should differ due to unique salts")
	require.NoError(t, VerifySecret("123456", h1))
	require.NoError(t, VerifySecret("123456", h2))
}

func TestVerifySecret_Mismatch(t *testing.T) {
	hash, err := HashSecret("123456")
	require.NoError(t, err)

	for _, wrong := range []string{"123457", "654321", "12345", "1234567", ""} {
		require.ErrorIs(t, VerifySecret(wrong, hash), ErrSecretMismatch, wrong)
	}
}

func TestVerifySecret_InvalidHashFormat(t *testing.T) {
	tests := []struct {
		name string
		hash string
	}{
		{"empty hash", ""},
		{"wrong algorithm", "$bcrypt$v=19$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
		{"missing parts", "$argon2id$v=19$m=19456"},
		{"malformed parameters", "$argon2id$v=19$invalid$c2FsdA$aGFzaA"},
		{"invalid base64 salt", "$argon2id$v=19$m=19456,t=2,p=1$!!!invalid!!!$aGFzaA"},
		{"invalid base64 hash", "$argon2id$v=19$m=19456,t=2,p=1$c2FsdA$!!!invalid!!!"},
		{"wrong version", "$argon2id$v=18$m=19456,t=2,p=1$c2FsdA$aGFzaA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := VerifySecret("123456", tt.hash)
			require.Error(t, err)
			require.NotErrorIs(t, err, ErrSecretMismatch)
		})
	}
}

func TestPepper_ChangesHash(t *testing.T) {
	hash, err := HashSecret("123456")
	require.NoError(t, err)

	original := pepperFile
	t.Cleanup(func() { SetPepperPath(original) })

	SetPepperPath(filepath.Join(t.TempDir(), "other-pepper"))
	require.ErrorIs(t, VerifySecret("123456", hash), ErrSecretMismatch)
}

func TestPepper_PersistsAcrossReload(t *testing.T) {
	original := pepperFile
	t.Cleanup(func() { SetPepperPath(original) })

	path := filepath.Join(t.TempDir(), "nested", "pepper")
	SetPepperPath(path)
	require.NoError(t, LoadPepper())
	first := GetPepper()
	require.NotEmpty(t, first)

	SetPepperPath(path)
	require.Equal(t, first, GetPepper())
}

func TestPepper_Disabled(t *testing.T) {
	original := pepperFile
	t.Cleanup(func() { SetPepperPath(original) })

	SetPepperPath("")
	require.Empty(t, GetPepper())

	hash, err := HashSecret("123456")
	require.NoError(t, err)
	require.NoError(t, VerifySecret("123456", hash))
}
