package metrics

import (
	"context"
	"time"

	"github.com/chirino/chat-service/internal/model"
	"github.com/chirino/chat-service/internal/registry/store"
	"github.com/chirino/chat-service/internal/security"
	"github.com/google/uuid"
)

// Wrap returns a ChatStore that records StoreLatency for every operation.
func Wrap(inner store.ChatStore) store.ChatStore {
	return &metricsStore{inner: inner}
}

type metricsStore struct {
	inner store.ChatStore
}

func observe(op string, start time.Time) {
	security.StoreLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *metricsStore) CreateUser(ctx context.Context, req store.CreateUserRequest) (*model.UserView, error) {
	defer observe("create_user", time.Now())
	return m.inner.CreateUser(ctx, req)
}

func (m *metricsStore) ListUsers(ctx context.Context, page int) (*store.PagedUsers, error) {
	defer observe("list_users", time.Now())
	return m.inner.ListUsers(ctx, page)
}

func (m *metricsStore) GetUser(ctx context.Context, userID uuid.UUID) (*model.UserView, error) {
	defer observe("get_user", time.Now())
	return m.inner.GetUser(ctx, userID)
}

func (m *metricsStore) UpdateUser(ctx context.Context, userID uuid.UUID, update store.UserUpdate) (*model.UserView, error) {
	defer observe("update_user", time.Now())
	return m.inner.UpdateUser(ctx, userID, update)
}

func (m *metricsStore) DeactivateUser(ctx context.Context, userID uuid.UUID) error {
	defer observe("deactivate_user", time.Now())
	return m.inner.DeactivateUser(ctx, userID)
}

func (m *metricsStore) CreateConversation(ctx context.Context, creatorID uuid.UUID, participantIDs []uuid.UUID) (*model.ConversationView, error) {
	defer observe("create_conversation", time.Now())
	return m.inner.CreateConversation(ctx, creatorID, participantIDs)
}

func (m *metricsStore) ListConversations(ctx context.Context, userID uuid.UUID, page int) (*store.PagedConversations, error) {
	defer observe("list_conversations", time.Now())
	return m.inner.ListConversations(ctx, userID, page)
}

func (m *metricsStore) GetConversationsByName(ctx context.Context, userID uuid.UUID, name string) ([]model.ConversationView, error) {
	defer observe("get_conversations_by_name", time.Now())
	return m.inner.GetConversationsByName(ctx, userID, name)
}

func (m *metricsStore) AddParticipants(ctx context.Context, userID uuid.UUID, conversationID uuid.UUID, participantIDs []uuid.UUID) (*model.ConversationView, error) {
	defer observe("add_participants", time.Now())
	return m.inner.AddParticipants(ctx, userID, conversationID, participantIDs)
}

func (m *metricsStore) DeleteConversationByName(ctx context.Context, userID uuid.UUID, name string) error {
	defer observe("delete_conversation_by_name", time.Now())
	return m.inner.DeleteConversationByName(ctx, userID, name)
}

func (m *metricsStore) SendMessage(ctx context.Context, senderID uuid.UUID, conversationID uuid.UUID, content string) (*model.MessageView, error) {
	defer observe("send_message", time.Now())
	return m.inner.SendMessage(ctx, senderID, conversationID, content)
}

func (m *metricsStore) GetMessage(ctx context.Context, requesterID uuid.UUID, messageID uuid.UUID) (*model.MessageView, error) {
	defer observe("get_message", time.Now())
	return m.inner.GetMessage(ctx, requesterID, messageID)
}

func (m *metricsStore) ListMessages(ctx context.Context, requesterID uuid.UUID, page int) (*store.PagedMessages, error) {
	defer observe("list_messages", time.Now())
	return m.inner.ListMessages(ctx, requesterID, page)
}

func (m *metricsStore) UpdateMessage(ctx context.Context, requesterID uuid.UUID, messageID uuid.UUID, content string) (*model.MessageView, error) {
	defer observe("update_message", time.Now())
	return m.inner.UpdateMessage(ctx, requesterID, messageID, content)
}

var _ store.ChatStore = (*metricsStore)(nil)
