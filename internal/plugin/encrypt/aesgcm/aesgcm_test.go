package aesgcm

import (
	"testing"

	"github.com/chirino/chat-service/internal/dataencryption"
	registrystore "github.com/chirino/chat-service/internal/registry/store"
	"github.com/stretchr/testify/require"
)

func TestProviderRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	p := &gcmProvider{}
	ciphertext, err := p.Encrypt(key, []byte("the quick brown fox"))
	require.NoError(t, err)
	require.True(t, dataencryption.HasMagic(ciphertext))

	plain, err := p.Decrypt(key, ciphertext)
	require.NoError(t, err)
	require.Equal(t, []byte("the quick brown fox"), plain)
}

func TestProviderNoncesAreUnique(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	p := &gcmProvider{}
	a, err := p.Encrypt(key, []byte("same plaintext"))
	require.NoError(t, err)
	b, err := p.Encrypt(key, []byte("same plaintext"))
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestProviderDecryptWrongKey(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	otherKey, err := GenerateKey()
	require.NoError(t, err)

	p := &gcmProvider{}
	ciphertext, err := p.Encrypt(key, []byte("secret"))
	require.NoError(t, err)

	_, err = p.Decrypt(otherKey, ciphertext)
	var integrity *registrystore.IntegrityError
	require.ErrorAs(t, err, &integrity)
}

func TestProviderDecryptTamperedCiphertext(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	p := &gcmProvider{}
	ciphertext, err := p.Encrypt(key, []byte("secret"))
	require.NoError(t, err)

	ciphertext[len(ciphertext)-1] ^= 0xFF
	_, err = p.Decrypt(key, ciphertext)
	var integrity *registrystore.IntegrityError
	require.ErrorAs(t, err, &integrity)
}

func TestProviderDecryptRejectsBareBytes(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	p := &gcmProvider{}
	_, err = p.Decrypt(key, []byte("no envelope here"))
	require.Error(t, err)
}

func TestGenerateKeySize(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	require.Len(t, key, KeySize)
}
