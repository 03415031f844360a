// Package plain registers the "plain" no-op encryption provider.
// It passes all data through unchanged and does not write CSEH headers.
// Registering it after a real provider lets rows written before encryption
// was enabled keep decrypting during a migration.
package plain

import (
	"context"

	"github.com/chirino/chat-service/internal/config"
	"github.com/chirino/chat-service/internal/registry/encrypt"
)

func init() {
	encrypt.Register(encrypt.Plugin{
		Name: "plain",
		Loader: func(_ context.Context, _ *config.Config) (encrypt.Provider, error) {
			return &plainProvider{}, nil
		},
	})
}

type plainProvider struct{}

func (p *plainProvider) ID() string { return "plain" }

func (p *plainProvider) Encrypt(_, plaintext []byte) ([]byte, error) { return plaintext, nil }

func (p *plainProvider) Decrypt(_, ciphertext []byte) ([]byte, error) { return ciphertext, nil }
