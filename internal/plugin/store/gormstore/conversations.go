package gormstore

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/chirino/chat-service/internal/model"
	registrystore "github.com/chirino/chat-service/internal/registry/store"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func (s *Store) CreateConversation(ctx context.Context, creatorID uuid.UUID, participantIDs []uuid.UUID) (*model.ConversationView, error) {
	// Requested participants keep their request order; the creator is appended
	// when absent. Position drives the two-participant naming rule.
	ordered := make([]uuid.UUID, 0, len(participantIDs)+1)
	seen := make(map[uuid.UUID]bool, len(participantIDs)+1)
	for _, id := range participantIDs {
		if !seen[id] {
			ordered = append(ordered, id)
			seen[id] = true
		}
	}
	if !seen[creatorID] {
		ordered = append(ordered, creatorID)
	}

	users, err := s.loadUsers(ctx, ordered)
	if err != nil {
		return nil, err
	}
	usernames := make([]string, 0, len(ordered))
	for _, id := range ordered {
		u, ok := users[id]
		if !ok || !u.IsActive {
			return nil, &registrystore.ValidationError{Field: "participants", Message: fmt.Sprintf("unknown or inactive user %s", id)}
		}
		usernames = append(usernames, u.Username)
	}

	conv := model.Conversation{
		ID:   uuid.New(),
		Name: model.DeriveName(usernames),
	}

	// Two-step creation: the key exists before the conversation row does, so
	// no read path can ever observe a conversation without a key.
	if err := s.keys.CreateIfAbsent(ctx, conv.ID); err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&conv).Error; err != nil {
			return err
		}
		for i, id := range ordered {
			p := model.ConversationParticipant{
				ConversationID: conv.ID,
				UserID:         id,
				Position:       i,
			}
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		// The key row is orphaned if the transaction failed; clean it up so a
		// retried create starts fresh.
		if delErr := s.keys.Delete(ctx, conv.ID); delErr != nil {
			log.Error("Failed to remove key after create rollback", "conversation", conv.ID, "err", delErr)
		}
		return nil, err
	}

	return s.conversationView(ctx, conv)
}

func (s *Store) ListConversations(ctx context.Context, userID uuid.UUID, page int) (*registrystore.PagedConversations, error) {
	base := s.db.WithContext(ctx).
		Model(&model.Conversation{}).
		Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id").
		Where("cp.user_id = ?", userID)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, err
	}

	var rows []model.Conversation
	err := base.Order("conversations.created_at DESC").
		Offset(pageOffset(page)).
		Limit(registrystore.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	views := make([]model.ConversationView, 0, len(rows))
	for _, conv := range rows {
		view, err := s.conversationView(ctx, conv)
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return &registrystore.PagedConversations{Data: views, Total: total, Page: normalizePage(page)}, nil
}

func (s *Store) GetConversationsByName(ctx context.Context, userID uuid.UUID, name string) ([]model.ConversationView, error) {
	// Derived names are not unique (every group conversation shares the
	// sentinel), so this is a multi-match lookup: return every conversation
	// with that name the caller belongs to.
	var all []model.Conversation
	err := s.db.WithContext(ctx).
		Where("name = ?", name).
		Order("created_at DESC").
		Find(&all).Error
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, notFound("conversation", name)
	}

	var views []model.ConversationView
	for _, conv := range all {
		member, err := s.isParticipant(ctx, conv.ID, userID)
		if err != nil {
			return nil, err
		}
		if !member {
			continue
		}
		view, err := s.conversationView(ctx, conv)
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	if len(views) == 0 {
		// Conversations with this name exist, the caller just isn't in any.
		return nil, &registrystore.ForbiddenError{}
	}
	return views, nil
}

func (s *Store) AddParticipants(ctx context.Context, userID uuid.UUID, conversationID uuid.UUID, participantIDs []uuid.UUID) (*model.ConversationView, error) {
	var conv model.Conversation
	err := s.db.WithContext(ctx).Where("id = ?", conversationID).First(&conv).Error
	if err != nil {
		return nil, translateNotFound(err, "conversation", conversationID.String())
	}
	member, err := s.isParticipant(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, &registrystore.ForbiddenError{}
	}

	users, err := s.loadUsers(ctx, participantIDs)
	if err != nil {
		return nil, err
	}
	for _, id := range participantIDs {
		u, ok := users[id]
		if !ok || !u.IsActive {
			return nil, &registrystore.ValidationError{Field: "participants", Message: fmt.Sprintf("unknown or inactive user %s", id)}
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.loadParticipants(ctx, conversationID)
		if err != nil {
			return err
		}
		present := make(map[uuid.UUID]bool, len(existing))
		position := 0
		for _, p := range existing {
			present[p.UserID] = true
			if p.Position >= position {
				position = p.Position + 1
			}
		}
		for _, id := range participantIDs {
			if present[id] {
				continue
			}
			p := model.ConversationParticipant{
				ConversationID: conversationID,
				UserID:         id,
				Position:       position,
			}
			if err := tx.Create(&p).Error; err != nil {
				return err
			}
			present[id] = true
			position++
		}
		// The name is derived data: recompute it after every membership change.
		name, err := s.deriveNameTx(tx, conversationID)
		if err != nil {
			return err
		}
		if err := tx.Model(&model.Conversation{}).
			Where("id = ?", conversationID).
			Update("name", name).Error; err != nil {
			return err
		}
		return s.touch(tx, conversationID)
	})
	if err != nil {
		return nil, err
	}
	s.invalidateSnapshot(ctx, conversationID)

	err = s.db.WithContext(ctx).Where("id = ?", conversationID).First(&conv).Error
	if err != nil {
		return nil, err
	}
	return s.conversationView(ctx, conv)
}

func (s *Store) DeleteConversationByName(ctx context.Context, userID uuid.UUID, name string) error {
	// Only conversations the caller participates in are candidates; absence
	// and lack of membership both read as NotFound.
	var rows []model.Conversation
	err := s.db.WithContext(ctx).
		Model(&model.Conversation{}).
		Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id").
		Where("conversations.name = ? AND cp.user_id = ?", name, userID).
		Find(&rows).Error
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return notFound("conversation", name)
	}

	for _, conv := range rows {
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("conversation_id = ?", conv.ID).Delete(&model.Message{}).Error; err != nil {
				return err
			}
			if err := tx.Where("conversation_id = ?", conv.ID).Delete(&model.ConversationParticipant{}).Error; err != nil {
				return err
			}
			return tx.Where("id = ?", conv.ID).Delete(&model.Conversation{}).Error
		})
		if err != nil {
			return err
		}
		if err := s.keys.Delete(ctx, conv.ID); err != nil {
			log.Error("Failed to remove key for deleted conversation", "conversation", conv.ID, "err", err)
		}
		s.invalidateSnapshot(ctx, conv.ID)
	}
	return nil
}

// deriveNameTx recomputes the derived name from the participant set inside tx.
func (s *Store) deriveNameTx(tx *gorm.DB, conversationID uuid.UUID) (string, error) {
	var usernames []string
	err := tx.Model(&model.ConversationParticipant{}).
		Select("users.username").
		Joins("JOIN users ON users.id = conversation_participants.user_id").
		Where("conversation_participants.conversation_id = ?", conversationID).
		Order("conversation_participants.position ASC").
		Pluck("users.username", &usernames).Error
	if err != nil {
		return "", err
	}
	return model.DeriveName(usernames), nil
}

// conversationView expands a conversation row to its wire view: participants
// in insertion order and all messages decrypted, timestamp ascending.
func (s *Store) conversationView(ctx context.Context, conv model.Conversation) (*model.ConversationView, error) {
	participants, err := s.loadParticipants(ctx, conv.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.UserID)
	}

	var messages []model.Message
	err = s.db.WithContext(ctx).
		Where("conversation_id = ?", conv.ID).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	for _, m := range messages {
		if !seenID(ids, m.SenderID) {
			ids = append(ids, m.SenderID)
		}
	}

	users, err := s.loadUsers(ctx, ids)
	if err != nil {
		return nil, err
	}

	participantViews := make([]model.UserView, 0, len(participants))
	for _, p := range participants {
		if u, ok := users[p.UserID]; ok {
			participantViews = append(participantViews, model.ToUserView(u))
		}
	}

	messageViews := make([]model.MessageView, 0, len(messages))
	for _, m := range messages {
		plaintext, err := s.decryptContent(ctx, conv.ID, m.Content)
		if err != nil {
			return nil, err
		}
		messageViews = append(messageViews, model.ToMessageView(m, conv.Name, users[m.SenderID].Username, plaintext))
	}

	view := model.ToConversationView(conv, participantViews, messageViews)
	return &view, nil
}

func seenID(ids []uuid.UUID, id uuid.UUID) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}
