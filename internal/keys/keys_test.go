package keys_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chirino/chat-service/internal/config"
	"github.com/chirino/chat-service/internal/keys"
	"github.com/chirino/chat-service/internal/model"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "keys.db")), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.ConversationKey{}))
	return db
}

func newManager(t *testing.T, db *gorm.DB, encryptionKey string) keys.Manager {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.EncryptionKey = encryptionKey
	m, err := keys.NewGorm(db, &cfg)
	require.NoError(t, err)
	return m
}

func TestManagerLifecycle(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	m := newManager(t, db, strings.Repeat("aa", 32))
	convID := uuid.New()

	// A conversation without a key is an invariant violation.
	_, err := m.Get(ctx, convID)
	require.True(t, keys.IsKeyNotFound(err))

	require.NoError(t, m.CreateIfAbsent(ctx, convID))
	dek, err := m.Get(ctx, convID)
	require.NoError(t, err)
	require.Len(t, dek, 32)

	// Losing the insert race must not replace the winner's key.
	require.NoError(t, m.CreateIfAbsent(ctx, convID))
	again, err := m.Get(ctx, convID)
	require.NoError(t, err)
	require.Equal(t, dek, again)

	require.NoError(t, m.Delete(ctx, convID))
	_, err = m.Get(ctx, convID)
	require.True(t, keys.IsKeyNotFound(err))
}

func TestManagerKeysAreUniquePerConversation(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	m := newManager(t, db, strings.Repeat("aa", 32))

	a, b := uuid.New(), uuid.New()
	require.NoError(t, m.CreateIfAbsent(ctx, a))
	require.NoError(t, m.CreateIfAbsent(ctx, b))

	dekA, err := m.Get(ctx, a)
	require.NoError(t, err)
	dekB, err := m.Get(ctx, b)
	require.NoError(t, err)
	require.NotEqual(t, dekA, dekB)
}

func TestManagerLegacyKeyUnwrap(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	oldKey := strings.Repeat("aa", 32)
	newKey := strings.Repeat("bb", 32)
	convID := uuid.New()

	// Wrap under the old key.
	oldManager := newManager(t, db, oldKey)
	require.NoError(t, oldManager.CreateIfAbsent(ctx, convID))
	dek, err := oldManager.Get(ctx, convID)
	require.NoError(t, err)

	// After rotating the wrapping key, the old one stays unwrap-only.
	rotated := newManager(t, db, newKey+","+oldKey)
	got, err := rotated.Get(ctx, convID)
	require.NoError(t, err)
	require.Equal(t, dek, got)

	// Without the legacy key, the wrapped DEK is unreadable.
	newOnly := newManager(t, db, newKey)
	_, err = newOnly.Get(ctx, convID)
	require.Error(t, err)
}
