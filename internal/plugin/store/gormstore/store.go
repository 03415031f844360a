// Package gormstore implements ChatStore over a gorm database handle. The
// postgres and sqlite store plugins both construct a Store here, differing
// only in dialector, key manager, and unique-violation detection.
package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/chirino/chat-service/internal/config"
	"github.com/chirino/chat-service/internal/dataencryption"
	"github.com/chirino/chat-service/internal/keys"
	"github.com/chirino/chat-service/internal/model"
	registrycache "github.com/chirino/chat-service/internal/registry/cache"
	registrystore "github.com/chirino/chat-service/internal/registry/store"
	"github.com/chirino/chat-service/internal/security"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store implements registrystore.ChatStore.
type Store struct {
	db     *gorm.DB
	cfg    *config.Config
	crypto *dataencryption.Service
	keys   keys.Manager
	cache  registrycache.ConversationSnapshotCache

	// isUniqueViolation reports whether err is the backend's duplicate-key error.
	isUniqueViolation func(err error) bool
}

var _ registrystore.ChatStore = (*Store)(nil)

// Options bundles the backend-specific pieces of a Store.
type Options struct {
	DB                *gorm.DB
	Config            *config.Config
	Crypto            *dataencryption.Service
	Keys              keys.Manager
	Cache             registrycache.ConversationSnapshotCache
	IsUniqueViolation func(err error) bool
}

// New builds a Store from the given options.
func New(opts Options) *Store {
	isUnique := opts.IsUniqueViolation
	if isUnique == nil {
		isUnique = func(error) bool { return false }
	}
	return &Store{
		db:                opts.DB,
		cfg:               opts.Config,
		crypto:            opts.Crypto,
		keys:              opts.Keys,
		cache:             opts.Cache,
		isUniqueViolation: isUnique,
	}
}

// Keys exposes the key manager for shutdown.
func (s *Store) Keys() keys.Manager { return s.keys }

func notFound(resource, id string) error {
	return &registrystore.NotFoundError{Resource: resource, ID: id}
}

func normalizePage(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

func pageOffset(page int) int {
	return (normalizePage(page) - 1) * registrystore.PageSize
}

// loadParticipants returns a conversation's participant rows in insertion order.
func (s *Store) loadParticipants(ctx context.Context, conversationID uuid.UUID) ([]model.ConversationParticipant, error) {
	var rows []model.ConversationParticipant
	err := s.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("position ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// loadUsers returns the users for the given IDs keyed by ID. Inactive users
// are included: historical participants and senders stay resolvable.
func (s *Store) loadUsers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]model.User, error) {
	users := make(map[uuid.UUID]model.User, len(ids))
	if len(ids) == 0 {
		return users, nil
	}
	var rows []model.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, u := range rows {
		users[u.ID] = u
	}
	return users, nil
}

// snapshot returns the conversation's membership snapshot, preferring the
// cache. The snapshot never contains keys or message content.
func (s *Store) snapshot(ctx context.Context, conv *model.Conversation) (*registrycache.ConversationSnapshot, error) {
	if s.cache != nil && s.cache.Available() {
		if snap, err := s.cache.Get(ctx, conv.ID); err == nil && snap != nil {
			if security.CacheHitsTotal != nil {
				security.CacheHitsTotal.Inc()
			}
			return snap, nil
		}
		if security.CacheMissesTotal != nil {
			security.CacheMissesTotal.Inc()
		}
	}
	participants, err := s.loadParticipants(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	snap := registrycache.ConversationSnapshot{Name: conv.Name}
	for _, p := range participants {
		snap.ParticipantIDs = append(snap.ParticipantIDs, p.UserID)
	}
	if s.cache != nil && s.cache.Available() {
		_ = s.cache.Set(ctx, conv.ID, snap, s.cfg.CacheSnapshotTTL)
	}
	return &snap, nil
}

func (s *Store) invalidateSnapshot(ctx context.Context, conversationID uuid.UUID) {
	if s.cache != nil && s.cache.Available() {
		_ = s.cache.Remove(ctx, conversationID)
	}
}

// isParticipant reports whether userID belongs to the conversation.
func (s *Store) isParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&model.ConversationParticipant{}).
		Where("conversation_id = ? AND user_id = ?", conversationID, userID).
		Count(&count).Error
	return count > 0, err
}

// decryptContent unwraps a message's ciphertext with the conversation key.
// Integrity failures propagate untouched; there is no fallback plaintext.
func (s *Store) decryptContent(ctx context.Context, conversationID uuid.UUID, content []byte) (string, error) {
	key, err := s.keys.Get(ctx, conversationID)
	if err != nil {
		return "", err
	}
	plain, err := s.crypto.Decrypt(key, content)
	if err != nil {
		return "", err
	}
	if security.EncryptOpsTotal != nil {
		security.EncryptOpsTotal.WithLabelValues("decrypt").Inc()
	}
	return string(plain), nil
}

// touch updates a conversation's updated_at after a membership mutation.
func (s *Store) touch(tx *gorm.DB, conversationID uuid.UUID) error {
	return tx.Model(&model.Conversation{}).
		Where("id = ?", conversationID).
		Update("updated_at", time.Now().UTC()).Error
}

func translateNotFound(err error, resource, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(resource, id)
	}
	return err
}
