package keystore

import (
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opay/db"
	"opay/errors"
	"opay/signer"
)

func testStore(t *testing.T) *KeyStore {
	t.Helper()
	provider, err := db.NewBoltProvider(filepath.Join(t.TempDir(), "keys.db"))
	require.NoError(t, err)
	t.Cleanup(func() { provider.Close() })

	ks, err := NewKeyStore(provider)
	require.NoError(t, err)
	return ks
}

func TestEnsureKeypairIdempotent(t *testing.T) {
	ks := testStore(t)

	pub, err := ks.EnsureKeypair("u1")
	require.NoError(t, err)
	require.NotEmpty(t, pub, "first call must return the new public key for registration")

	again, err := ks.EnsureKeypair("u1")
	require.NoError(t, err)
	assert.Nil(t, again, "second call must signal that no action is needed")

	// exactly one private key exists and it matches the returned public half
	priv, err := ks.LoadPrivateKey("u1")
	require.NoError(t, err)
	parsed, err := ParsePublicKey(pub)
	require.NoError(t, err)
	assert.True(t, priv.PublicKey.Equal(parsed))
}

func TestLoadPrivateKeyNotFound(t *testing.T) {
	ks := testStore(t)

	_, err := ks.LoadPrivateKey("never-seen")
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeKeyNotFound))
}

func TestPublicKeyReadBack(t *testing.T) {
	ks := testStore(t)

	created, err := ks.EnsureKeypair("u1")
	require.NoError(t, err)

	stored, err := ks.PublicKey("u1")
	require.NoError(t, err)
	assert.Equal(t, created, stored)

	_, err = ks.PublicKey("u2")
	assert.True(t, errors.IsCode(err, errors.ErrCodeKeyNotFound))
}

func TestKeypairsAreIsolatedPerUser(t *testing.T) {
	ks := testStore(t)

	_, err := ks.EnsureKeypair("u1")
	require.NoError(t, err)
	_, err = ks.EnsureKeypair("u2")
	require.NoError(t, err)

	k1, err := ks.LoadPrivateKey("u1")
	require.NoError(t, err)
	k2, err := ks.LoadPrivateKey("u2")
	require.NoError(t, err)
	assert.False(t, k1.PublicKey.Equal(&k2.PublicKey))
}

func TestLoadedKeySignsVerifiably(t *testing.T) {
	ks := testStore(t)

	pub, err := ks.EnsureKeypair("u1")
	require.NoError(t, err)
	priv, err := ks.LoadPrivateKey("u1")
	require.NoError(t, err)

	canonical := signer.Canonicalize("u1", "u2", decimal.RequireFromString("500.00"), "nonce-1")
	sig, err := signer.SignBase64(priv, canonical)
	require.NoError(t, err)

	parsed, err := ParsePublicKey(pub)
	require.NoError(t, err)
	assert.True(t, signer.VerifyBase64(parsed, canonical, sig))
}
