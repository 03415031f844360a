package noop

import (
	"context"
	"time"

	"github.com/chirino/chat-service/internal/registry/cache"
	"github.com/google/uuid"
)

func init() {
	cache.Register(cache.Plugin{
		Name: "none",
		Loader: func(ctx context.Context) (cache.ConversationSnapshotCache, error) {
			return &noopSnapshotCache{}, nil
		},
	})
}

type noopSnapshotCache struct{}

func (n *noopSnapshotCache) Available() bool { return false }
func (n *noopSnapshotCache) Get(_ context.Context, _ uuid.UUID) (*cache.ConversationSnapshot, error) {
	return nil, nil
}
func (n *noopSnapshotCache) Set(_ context.Context, _ uuid.UUID, _ cache.ConversationSnapshot, _ time.Duration) error {
	return nil
}
func (n *noopSnapshotCache) Remove(_ context.Context, _ uuid.UUID) error { return nil }

var _ cache.ConversationSnapshotCache = (*noopSnapshotCache)(nil)
