// Package keys manages per-conversation data encryption keys.
//
// Each conversation owns exactly one DEK, generated at conversation creation
// and immutable for the conversation's lifetime. DEKs are wrapped at rest with
// a key-wrapping key derived from the configured encryption key (AES-GCM over
// nonce||ciphertext), so the database never holds a usable key. Creation is
// create-if-absent: concurrent creators race on a conflict-free insert and
// both converge on the single winning key.
package keys

import (
	"context"
	"errors"
	"fmt"

	"github.com/chirino/chat-service/internal/config"
	"github.com/chirino/chat-service/internal/plugin/encrypt/aesgcm"
	registrystore "github.com/chirino/chat-service/internal/registry/store"
	"github.com/google/uuid"
)

// Manager is the key lifecycle contract consumed by the stores.
type Manager interface {
	// CreateIfAbsent generates and persists a DEK for the conversation unless
	// one already exists. It never overwrites: losing the insert race leaves
	// the winner's key in place.
	CreateIfAbsent(ctx context.Context, conversationID uuid.UUID) error

	// Get returns the unwrapped DEK. A missing key is an invariant violation
	// (every conversation is created with one) and surfaces as KeyNotFoundError.
	Get(ctx context.Context, conversationID uuid.UUID) ([]byte, error)

	// Delete removes the conversation's key row as part of conversation
	// deletion. It is not a rotation path; nothing re-creates a deleted key.
	Delete(ctx context.Context, conversationID uuid.UUID) error

	// Close releases the underlying connection.
	Close()
}

// wrapper wraps and unwraps DEKs under the configured key-wrapping keys.
// Index 0 is the primary (used for new wraps); the rest are legacy keys kept
// for unwrap-only rotation of the wrapping key. Rotation of conversation DEKs
// themselves is out of scope.
type wrapper struct {
	kwks [][]byte
}

func newWrapper(cfg *config.Config) (*wrapper, error) {
	kwks, err := cfg.KeyWrappingKeys()
	if err != nil {
		return nil, err
	}
	return &wrapper{kwks: kwks}, nil
}

func (w *wrapper) wrap(dek []byte) ([]byte, error) {
	nonce, sealed, err := aesgcm.Seal(w.kwks[0], dek)
	if err != nil {
		return nil, fmt.Errorf("keys: wrapping DEK: %w", err)
	}
	return append(nonce, sealed...), nil
}

func (w *wrapper) unwrap(wrapped []byte) ([]byte, error) {
	if len(wrapped) < 12 {
		return nil, fmt.Errorf("keys: wrapped DEK too short")
	}
	nonce, sealed := wrapped[:12], wrapped[12:]
	var lastErr error
	for _, kwk := range w.kwks {
		dek, err := aesgcm.Open(kwk, nonce, sealed)
		if err == nil {
			return dek, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("keys: unwrapping DEK failed with all keys: %w", lastErr)
}

// notFound builds the typed invariant-violation error for a missing key.
func notFound(conversationID uuid.UUID) error {
	return &registrystore.KeyNotFoundError{ConversationID: conversationID.String()}
}

// IsKeyNotFound reports whether err is a KeyNotFoundError.
func IsKeyNotFound(err error) bool {
	var knf *registrystore.KeyNotFoundError
	return errors.As(err, &knf)
}
