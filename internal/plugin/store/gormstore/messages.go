package gormstore

import (
	"context"
	"strings"
	"time"

	"github.com/chirino/chat-service/internal/model"
	registrystore "github.com/chirino/chat-service/internal/registry/store"
	"github.com/chirino/chat-service/internal/security"
	"github.com/google/uuid"
)

func (s *Store) SendMessage(ctx context.Context, senderID uuid.UUID, conversationID uuid.UUID, content string) (*model.MessageView, error) {
	if strings.TrimSpace(content) == "" {
		return nil, &registrystore.ValidationError{Field: "content", Message: "content is required"}
	}

	var conv model.Conversation
	err := s.db.WithContext(ctx).Where("id = ?", conversationID).First(&conv).Error
	if err != nil {
		return nil, translateNotFound(err, "conversation", conversationID.String())
	}

	var sender model.User
	err = s.db.WithContext(ctx).Where("id = ? AND is_active = ?", senderID, true).First(&sender).Error
	if err != nil {
		return nil, translateNotFound(err, "user", senderID.String())
	}

	// Membership gate, with one deliberate exception: a conversation that has
	// no participants yet accepts a send from any authenticated user.
	snap, err := s.snapshot(ctx, &conv)
	if err != nil {
		return nil, err
	}
	if len(snap.ParticipantIDs) > 0 && !snap.HasParticipant(senderID) {
		return nil, &registrystore.ForbiddenError{}
	}

	// A missing key here is an invariant violation (KeyNotFoundError), not a
	// client error; it propagates as a hard failure.
	key, err := s.keys.Get(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	ciphertext, err := s.crypto.Encrypt(key, []byte(content))
	if err != nil {
		return nil, err
	}
	if security.EncryptOpsTotal != nil {
		security.EncryptOpsTotal.WithLabelValues("encrypt").Inc()
	}

	msg := model.Message{
		ID:             uuid.New(),
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        ciphertext,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(&msg).Error; err != nil {
		return nil, err
	}

	// Re-attach the submitted plaintext for the response instead of running
	// the ciphertext straight back through decryption.
	view := model.ToMessageView(msg, conv.Name, sender.Username, content)
	return &view, nil
}

func (s *Store) GetMessage(ctx context.Context, requesterID uuid.UUID, messageID uuid.UUID) (*model.MessageView, error) {
	// Read scope is sender-only: a message is visible to the user who sent it
	// and nobody else, and a foreign message reads as absent.
	var msg model.Message
	err := s.db.WithContext(ctx).
		Where("id = ? AND sender_id = ?", messageID, requesterID).
		First(&msg).Error
	if err != nil {
		return nil, translateNotFound(err, "message", messageID.String())
	}
	return s.messageView(ctx, msg)
}

func (s *Store) ListMessages(ctx context.Context, requesterID uuid.UUID, page int) (*registrystore.PagedMessages, error) {
	q := s.db.WithContext(ctx).Model(&model.Message{}).Where("sender_id = ?", requesterID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}

	var rows []model.Message
	err := q.Order("created_at ASC").
		Offset(pageOffset(page)).
		Limit(registrystore.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	views := make([]model.MessageView, 0, len(rows))
	for _, msg := range rows {
		view, err := s.messageView(ctx, msg)
		if err != nil {
			return nil, err
		}
		views = append(views, *view)
	}
	return &registrystore.PagedMessages{Data: views, Total: total, Page: normalizePage(page)}, nil
}

func (s *Store) UpdateMessage(ctx context.Context, requesterID uuid.UUID, messageID uuid.UUID, content string) (*model.MessageView, error) {
	if strings.TrimSpace(content) == "" {
		return nil, &registrystore.ValidationError{Field: "content", Message: "content is required"}
	}

	var msg model.Message
	err := s.db.WithContext(ctx).
		Where("id = ? AND sender_id = ?", messageID, requesterID).
		First(&msg).Error
	if err != nil {
		return nil, translateNotFound(err, "message", messageID.String())
	}

	key, err := s.keys.Get(ctx, msg.ConversationID)
	if err != nil {
		return nil, err
	}
	// Encrypt is idempotent: content already carrying the envelope magic is
	// stored as-is, so an update path can never stack a second layer.
	ciphertext, err := s.crypto.Encrypt(key, []byte(content))
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).
		Model(&model.Message{}).
		Where("id = ?", msg.ID).
		Update("content", ciphertext).Error
	if err != nil {
		return nil, err
	}
	msg.Content = ciphertext

	var conv model.Conversation
	if err := s.db.WithContext(ctx).Where("id = ?", msg.ConversationID).First(&conv).Error; err != nil {
		return nil, err
	}
	var sender model.User
	if err := s.db.WithContext(ctx).Where("id = ?", msg.SenderID).First(&sender).Error; err != nil {
		return nil, err
	}
	plaintext, err := s.decryptContent(ctx, msg.ConversationID, msg.Content)
	if err != nil {
		return nil, err
	}
	view := model.ToMessageView(msg, conv.Name, sender.Username, plaintext)
	return &view, nil
}

// messageView expands a message row to its wire view, decrypting the content.
func (s *Store) messageView(ctx context.Context, msg model.Message) (*model.MessageView, error) {
	var conv model.Conversation
	if err := s.db.WithContext(ctx).Where("id = ?", msg.ConversationID).First(&conv).Error; err != nil {
		return nil, translateNotFound(err, "conversation", msg.ConversationID.String())
	}
	var sender model.User
	if err := s.db.WithContext(ctx).Where("id = ?", msg.SenderID).First(&sender).Error; err != nil {
		return nil, translateNotFound(err, "user", msg.SenderID.String())
	}
	plaintext, err := s.decryptContent(ctx, msg.ConversationID, msg.Content)
	if err != nil {
		return nil, err
	}
	view := model.ToMessageView(msg, conv.Name, sender.Username, plaintext)
	return &view, nil
}
