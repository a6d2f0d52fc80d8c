package credentials

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey(t *testing.T) {
	salt := []byte("0123456789abcdef")
	key := DeriveKey("passphrase", salt)
	assert.Len(t, key, 32)
	assert.Equal(t, key, DeriveKey("passphrase", salt))
	assert.NotEqual(t, key, DeriveKey("other", salt))
	assert.NotEqual(t, key, DeriveKey("passphrase", []byte("fedcba9876543210")))
}

func TestSealUnseal(t *testing.T) {
	secrets := Secrets{"admin": "s3cret", "supportUser": "support"}

	sealed, err := Seal("correct horse", secrets)
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "s3cret")

	got, err := Unseal("correct horse", sealed)
	require.NoError(t, err)
	assert.Equal(t, secrets, got)
	assert.Equal(t, []string{"admin", "supportUser"}, got.Roles())
}

func TestUnseal_Failures(t *testing.T) {
	sealed, err := Seal("right", Secrets{"admin": "x"})
	require.NoError(t, err)

	_, err = Unseal("wrong", sealed)
	assert.ErrorIs(t, err, ErrUnsealFailed)

	_, err = Unseal("right", []byte("not json"))
	assert.ErrorIs(t, err, ErrUnsealFailed)

	_, err = Unseal("right", []byte(`{"version":2}`))
	assert.ErrorIs(t, err, ErrUnsealFailed)

	_, err = Unseal("", sealed)
	assert.ErrorIs(t, err, ErrEmptyPassphrase)

	_, err = Seal("", Secrets{})
	assert.ErrorIs(t, err, ErrEmptyPassphrase)
}

func TestSealedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secrets.sealed")
	require.NoError(t, WriteSealed(path, "pass", Secrets{"admin": "a"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	got, err := ReadSealed(path, "pass")
	require.NoError(t, err)
	secret, ok := got.Secret("admin")
	assert.True(t, ok)
	assert.Equal(t, "a", secret)

	_, err = ReadSealed(filepath.Join(t.TempDir(), "missing"), "pass")
	assert.ErrorIs(t, err, os.ErrNotExist)
}
