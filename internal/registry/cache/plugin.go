package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type snapshotCacheKey struct{}

// WithSnapshotCacheContext returns a new context carrying the given ConversationSnapshotCache.
func WithSnapshotCacheContext(ctx context.Context, c ConversationSnapshotCache) context.Context {
	return context.WithValue(ctx, snapshotCacheKey{}, c)
}

// SnapshotCacheFromContext retrieves the ConversationSnapshotCache from the context.
// Returns nil if none was set.
func SnapshotCacheFromContext(ctx context.Context) ConversationSnapshotCache {
	c, _ := ctx.Value(snapshotCacheKey{}).(ConversationSnapshotCache)
	return c
}

// ConversationSnapshot holds the membership facts needed to authorize a message
// send without touching the database. Encryption keys and message plaintext are
// never cached.
type ConversationSnapshot struct {
	Name           string      `json:"name"`
	ParticipantIDs []uuid.UUID `json:"participantIds"`
}

// HasParticipant reports whether userID is in the snapshot's participant set.
func (s *ConversationSnapshot) HasParticipant(userID uuid.UUID) bool {
	for _, id := range s.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// ConversationSnapshotCache caches conversation membership snapshots for the
// message send hot path. Entries are invalidated on every membership mutation
// and on conversation delete.
type ConversationSnapshotCache interface {
	Available() bool
	Get(ctx context.Context, conversationID uuid.UUID) (*ConversationSnapshot, error)
	Set(ctx context.Context, conversationID uuid.UUID, snapshot ConversationSnapshot, ttl time.Duration) error
	Remove(ctx context.Context, conversationID uuid.UUID) error
}

// Loader creates a cache from config.
type Loader func(ctx context.Context) (ConversationSnapshotCache, error)

// Plugin represents a cache plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a cache plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered cache plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named cache plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown cache %q; valid: %v", name, Names())
}
