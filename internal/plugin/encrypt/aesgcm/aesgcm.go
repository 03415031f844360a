// Package aesgcm registers the "aesgcm" AES-256-GCM encryption provider.
// Ciphertext is wrapped in a CSEH envelope carrying the nonce, so every blob
// is self-contained for decryption.
package aesgcm

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/chirino/chat-service/internal/config"
	"github.com/chirino/chat-service/internal/dataencryption"
	"github.com/chirino/chat-service/internal/registry/encrypt"
	registrystore "github.com/chirino/chat-service/internal/registry/store"
)

// KeySize is the byte length of generated conversation keys (AES-256).
const KeySize = 32

func init() {
	encrypt.Register(encrypt.Plugin{
		Name: "aesgcm",
		Loader: func(_ context.Context, _ *config.Config) (encrypt.Provider, error) {
			return &gcmProvider{}, nil
		},
	})
}

type gcmProvider struct{}

func (p *gcmProvider) ID() string { return "aesgcm" }

// Encrypt seals plaintext with AES-GCM under key and wraps it in a CSEH envelope.
func (p *gcmProvider) Encrypt(key, plaintext []byte) ([]byte, error) {
	nonce, ciphertext, err := Seal(key, plaintext)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := dataencryption.WriteHeader(&buf, dataencryption.Header{
		Version:    1,
		ProviderID: "aesgcm",
		Nonce:      nonce,
	}); err != nil {
		return nil, err
	}
	buf.Write(ciphertext)
	return buf.Bytes(), nil
}

// Decrypt opens a CSEH-wrapped ciphertext produced by Encrypt. Authentication
// failure surfaces as IntegrityError; there is no fallback output.
func (p *gcmProvider) Decrypt(key, ciphertext []byte) ([]byte, error) {
	if !dataencryption.HasMagic(ciphertext) {
		return nil, fmt.Errorf("aesgcm: expected CSEH envelope")
	}
	r := bytes.NewReader(ciphertext)
	h, _, err := dataencryption.ReadHeader(r)
	if err != nil {
		return nil, err
	}
	payload := make([]byte, r.Len())
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("aesgcm: reading ciphertext payload: %w", err)
	}
	return Open(key, h.Nonce, payload)
}

// GenerateKey returns a fresh 32-byte key from the crypto/rand source.
// Conversation keys are always generated here, never derived from passwords.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("aesgcm: generating key: %w", err)
	}
	return key, nil
}

// Seal encrypts plaintext with AES-GCM under key and a random nonce.
// Returns (nonce, ciphertext, error). Exported for the key manager, which
// wraps conversation keys with the same primitive.
func Seal(key, plaintext []byte) (nonce, ciphertext []byte, err error) {
	nonce, err = randomNonce()
	if err != nil {
		return nil, nil, err
	}
	gcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}
	return nonce, gcm.Seal(nil, nonce, plaintext, nil), nil
}

// Open decrypts ciphertext (with appended GCM tag) using key and nonce.
// Exported for the key manager.
func Open(key, nonce, ciphertext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, &registrystore.IntegrityError{Cause: err}
	}
	return plain, nil
}

func randomNonce() ([]byte, error) {
	nonce := make([]byte, 12)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("aesgcm: generating nonce: %w", err)
	}
	return nonce, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aesgcm: AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("aesgcm: GCM: %w", err)
	}
	return gcm, nil
}
