package config

import (
	"crypto/hkdf"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// DecodeEncryptionKey accepts hex or base64 encoded AES key material.
func DecodeEncryptionKey(raw string) ([]byte, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, fmt.Errorf("encryption key is empty")
	}
	if b, err := hex.DecodeString(value); err == nil && validAESKeyLen(len(b)) {
		return b, nil
	}
	if b, err := base64.StdEncoding.DecodeString(value); err == nil && validAESKeyLen(len(b)) {
		return b, nil
	}
	if b, err := base64.RawStdEncoding.DecodeString(value); err == nil && validAESKeyLen(len(b)) {
		return b, nil
	}
	return nil, fmt.Errorf("key must be hex or base64 encoded 16/24/32-byte value")
}

// DecodeEncryptionKeysCSV parses comma-separated encryption keys.
func DecodeEncryptionKeysCSV(raw string) ([][]byte, error) {
	parts := strings.Split(raw, ",")
	result := make([][]byte, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, err := DecodeEncryptionKey(part)
		if err != nil {
			return nil, err
		}
		result = append(result, key)
	}
	return result, nil
}

func validAESKeyLen(n int) bool {
	return n == 16 || n == 24 || n == 32
}

// KeyWrappingKeys returns the ordered set of 32-byte keys used to wrap
// per-conversation data keys at rest. A domain-specific key is derived from
// each EncryptionKey entry via HKDF-SHA256; the first is the primary (used to
// wrap new keys), the rest are legacy (unwrap-only). Returns an error when
// EncryptionKey is not set: conversation keys cannot be stored unwrapped.
func (c *Config) KeyWrappingKeys() ([][]byte, error) {
	if strings.TrimSpace(c.EncryptionKey) == "" {
		return nil, fmt.Errorf("CHAT_SERVICE_ENCRYPTION_KEY is required to wrap conversation keys")
	}
	raws, err := DecodeEncryptionKeysCSV(c.EncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("invalid encryption key list: %w", err)
	}
	keys := make([][]byte, 0, len(raws))
	for _, raw := range raws {
		derived, derivedErr := hkdf.Key(sha256.New, raw, nil, "conversation-key-wrapping", 32)
		if derivedErr != nil {
			return nil, fmt.Errorf("HKDF derivation failed: %w", derivedErr)
		}
		keys = append(keys, derived)
	}
	return keys, nil
}
