package keys

import (
	"context"
	"errors"
	"fmt"

	"github.com/chirino/chat-service/internal/config"
	"github.com/chirino/chat-service/internal/model"
	"github.com/chirino/chat-service/internal/plugin/encrypt/aesgcm"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// gormManager is the Manager used by the sqlite store, sharing the store's
// gorm handle instead of opening a second connection.
type gormManager struct {
	db *gorm.DB
	w  *wrapper
}

// NewGorm returns a Manager over an existing gorm DB.
func NewGorm(db *gorm.DB, cfg *config.Config) (Manager, error) {
	w, err := newWrapper(cfg)
	if err != nil {
		return nil, err
	}
	return &gormManager{db: db, w: w}, nil
}

func (m *gormManager) Close() {}

func (m *gormManager) CreateIfAbsent(ctx context.Context, conversationID uuid.UUID) error {
	dek, err := aesgcm.GenerateKey()
	if err != nil {
		return err
	}
	wrapped, err := m.w.wrap(dek)
	if err != nil {
		return err
	}
	err = m.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.ConversationKey{
			ConversationID: conversationID,
			WrappedDEK:     wrapped,
		}).Error
	if err != nil {
		return fmt.Errorf("keys: create: %w", err)
	}
	return nil
}

func (m *gormManager) Get(ctx context.Context, conversationID uuid.UUID) ([]byte, error) {
	var row model.ConversationKey
	err := m.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, notFound(conversationID)
	}
	if err != nil {
		return nil, fmt.Errorf("keys: load: %w", err)
	}
	return m.w.unwrap(row.WrappedDEK)
}

func (m *gormManager) Delete(ctx context.Context, conversationID uuid.UUID) error {
	err := m.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Delete(&model.ConversationKey{}).Error
	if err != nil {
		return fmt.Errorf("keys: delete: %w", err)
	}
	return nil
}
