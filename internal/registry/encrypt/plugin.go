package encrypt

import (
	"context"
	"fmt"

	"github.com/chirino/chat-service/internal/config"
)

// Provider is the SPI for pluggable encryption providers.
//
// Unlike a fixed-key provider, every call takes the symmetric key to use:
// each conversation owns its own key, so the provider is a pure function of
// (key, bytes) and holds no key state of its own.
type Provider interface {
	// ID returns the provider identifier written into the CSEH header (e.g. "plain", "aesgcm").
	ID() string

	// Encrypt returns CSEH-wrapped ciphertext (or plaintext for the plain provider).
	Encrypt(key, plaintext []byte) ([]byte, error)

	// Decrypt accepts CSEH-wrapped ciphertext produced by Encrypt. It must fail
	// when the ciphertext was tampered with or key is wrong; it never returns
	// partially decrypted output.
	Decrypt(key, ciphertext []byte) ([]byte, error)
}

// Header is the parsed CSEH envelope header, re-declared here so providers do
// not import dataencryption (which imports this package for routing).
type Header struct {
	Version    uint32
	ProviderID string
	Nonce      []byte
}

// Plugin bundles a provider name with its loader function.
type Plugin struct {
	Name   string
	Loader func(ctx context.Context, cfg *config.Config) (Provider, error)
}

var plugins []Plugin

// Register adds an encryption provider plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered provider names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the Plugin for the given name.
func Select(name string) (Plugin, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p, nil
		}
	}
	return Plugin{}, fmt.Errorf("unknown encryption provider %q; registered: %v", name, Names())
}
