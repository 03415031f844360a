// Package sqlite registers the "sqlite" chat store plugin. It is intended for
// development and tests; production deployments should use postgres.
package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/chirino/chat-service/internal/config"
	"github.com/chirino/chat-service/internal/dataencryption"
	"github.com/chirino/chat-service/internal/keys"
	"github.com/chirino/chat-service/internal/model"
	"github.com/chirino/chat-service/internal/plugin/store/gormstore"
	registrycache "github.com/chirino/chat-service/internal/registry/cache"
	registrystore "github.com/chirino/chat-service/internal/registry/store"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// ForceImport gives tests a symbol to reference so the init() registration runs.
var ForceImport = struct{}{}

func init() {
	registrystore.Register(registrystore.Plugin{
		Name: "sqlite",
		Loader: func(ctx context.Context) (registrystore.ChatStore, error) {
			cfg := config.FromContext(ctx)
			db, err := gorm.Open(sqlite.Open(cfg.DBURL), &gorm.Config{})
			if err != nil {
				return nil, fmt.Errorf("failed to open sqlite database: %w", err)
			}

			// An in-memory sqlite database only exists on this handle, so the
			// schema is migrated here rather than by a separate migrator that
			// would open its own connection.
			if cfg.DatastoreMigrateAtStart {
				err = db.AutoMigrate(
					&model.User{},
					&model.Conversation{},
					&model.ConversationParticipant{},
					&model.ConversationKey{},
					&model.Message{},
				)
				if err != nil {
					return nil, fmt.Errorf("failed to migrate sqlite schema: %w", err)
				}
			}

			crypto := dataencryption.FromContext(ctx)
			if crypto == nil {
				crypto, err = dataencryption.New(ctx, cfg)
				if err != nil {
					return nil, err
				}
			}
			keyManager, err := keys.NewGorm(db, cfg)
			if err != nil {
				return nil, err
			}

			return gormstore.New(gormstore.Options{
				DB:                db,
				Config:            cfg,
				Crypto:            crypto,
				Keys:              keyManager,
				Cache:             registrycache.SnapshotCacheFromContext(ctx),
				IsUniqueViolation: isUniqueViolation,
			}), nil
		},
	})
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
