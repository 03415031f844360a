package config

import (
	"encoding/base64"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeEncryptionKey(t *testing.T) {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = byte(i)
	}

	t.Run("hex", func(t *testing.T) {
		key, err := DecodeEncryptionKey(hex.EncodeToString(raw))
		require.NoError(t, err)
		require.Equal(t, raw, key)
	})

	t.Run("base64", func(t *testing.T) {
		key, err := DecodeEncryptionKey(base64.StdEncoding.EncodeToString(raw))
		require.NoError(t, err)
		require.Equal(t, raw, key)
	})

	t.Run("raw base64 without padding", func(t *testing.T) {
		key, err := DecodeEncryptionKey(base64.RawStdEncoding.EncodeToString(raw))
		require.NoError(t, err)
		require.Equal(t, raw, key)
	})

	t.Run("invalid length rejected", func(t *testing.T) {
		_, err := DecodeEncryptionKey(hex.EncodeToString(raw[:10]))
		require.Error(t, err)
	})

	t.Run("empty rejected", func(t *testing.T) {
		_, err := DecodeEncryptionKey("  ")
		require.Error(t, err)
	})
}

func TestDecodeEncryptionKeysCSV(t *testing.T) {
	a := strings.Repeat("aa", 32)
	b := strings.Repeat("bb", 16)
	keys, err := DecodeEncryptionKeysCSV(a + ", " + b + " ,")
	require.NoError(t, err)
	require.Len(t, keys, 2)
	require.Len(t, keys[0], 32)
	require.Len(t, keys[1], 16)
}

func TestKeyWrappingKeys(t *testing.T) {
	t.Run("requires an encryption key", func(t *testing.T) {
		cfg := DefaultConfig()
		_, err := cfg.KeyWrappingKeys()
		require.Error(t, err)
	})

	t.Run("derives 32-byte keys in order", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.EncryptionKey = strings.Repeat("aa", 32) + "," + strings.Repeat("bb", 32)
		kwks, err := cfg.KeyWrappingKeys()
		require.NoError(t, err)
		require.Len(t, kwks, 2)
		for _, k := range kwks {
			require.Len(t, k, 32)
		}
		require.NotEqual(t, kwks[0], kwks[1])
	})

	t.Run("derived key differs from the raw key", func(t *testing.T) {
		raw := strings.Repeat("cc", 32)
		cfg := DefaultConfig()
		cfg.EncryptionKey = raw
		kwks, err := cfg.KeyWrappingKeys()
		require.NoError(t, err)
		decoded, err := DecodeEncryptionKey(raw)
		require.NoError(t, err)
		require.NotEqual(t, decoded, kwks[0])
	})
}
