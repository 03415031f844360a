package store

import (
	"context"
	"fmt"

	"github.com/chirino/chat-service/internal/model"
	"github.com/google/uuid"
)

// PageSize is the fixed page size for every paginated listing.
const PageSize = 5

// PagedUsers is a page of user views.
type PagedUsers struct {
	Data  []model.UserView `json:"data"`
	Total int64            `json:"total"`
	Page  int              `json:"page"`
}

// PagedConversations is a page of conversation views.
type PagedConversations struct {
	Data  []model.ConversationView `json:"data"`
	Total int64                    `json:"total"`
	Page  int                      `json:"page"`
}

// PagedMessages is a page of message views.
type PagedMessages struct {
	Data  []model.MessageView `json:"data"`
	Total int64               `json:"total"`
	Page  int                 `json:"page"`
}

// CreateUserRequest is the input for creating a user.
type CreateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Bio      string `json:"bio"`
}

// UserUpdate defines the mutable user fields. Nil fields are left unchanged.
type UserUpdate struct {
	Email *string `json:"email"`
	Bio   *string `json:"bio"`
}

// ChatStore is the primary data access interface for the chat service.
//
// Every method takes the authenticated principal's user ID and enforces the
// access rules itself: conversation reads and deletes require participant
// membership, message reads and updates are sender-scoped, and sends require
// membership unless the conversation has no participants yet.
type ChatStore interface {
	// Users
	CreateUser(ctx context.Context, req CreateUserRequest) (*model.UserView, error)
	ListUsers(ctx context.Context, page int) (*PagedUsers, error)
	GetUser(ctx context.Context, userID uuid.UUID) (*model.UserView, error)
	UpdateUser(ctx context.Context, userID uuid.UUID, update UserUpdate) (*model.UserView, error)
	// DeactivateUser soft-deletes: it clears is_active and never removes the
	// row, so historical messages keep a valid sender reference.
	DeactivateUser(ctx context.Context, userID uuid.UUID) error

	// Conversations
	CreateConversation(ctx context.Context, creatorID uuid.UUID, participantIDs []uuid.UUID) (*model.ConversationView, error)
	ListConversations(ctx context.Context, userID uuid.UUID, page int) (*PagedConversations, error)
	// GetConversationsByName returns every conversation with the given derived
	// name that the caller participates in. Derived names are not unique (all
	// group conversations share one sentinel name), so this is a multi-match
	// lookup by contract.
	GetConversationsByName(ctx context.Context, userID uuid.UUID, name string) ([]model.ConversationView, error)
	AddParticipants(ctx context.Context, userID uuid.UUID, conversationID uuid.UUID, participantIDs []uuid.UUID) (*model.ConversationView, error)
	DeleteConversationByName(ctx context.Context, userID uuid.UUID, name string) error

	// Messages
	SendMessage(ctx context.Context, senderID uuid.UUID, conversationID uuid.UUID, content string) (*model.MessageView, error)
	GetMessage(ctx context.Context, requesterID uuid.UUID, messageID uuid.UUID) (*model.MessageView, error)
	ListMessages(ctx context.Context, requesterID uuid.UUID, page int) (*PagedMessages, error)
	UpdateMessage(ctx context.Context, requesterID uuid.UUID, messageID uuid.UUID, content string) (*model.MessageView, error)
}

// Loader creates a ChatStore from config.
type Loader func(ctx context.Context) (ChatStore, error)

// Plugin represents a store plugin.
type Plugin struct {
	Name   string
	Loader Loader
}

var plugins []Plugin

// Register adds a store plugin.
func Register(p Plugin) {
	plugins = append(plugins, p)
}

// Names returns all registered store plugin names.
func Names() []string {
	names := make([]string, len(plugins))
	for i, p := range plugins {
		names[i] = p.Name
	}
	return names
}

// Select returns the loader for the named store plugin.
func Select(name string) (Loader, error) {
	for _, p := range plugins {
		if p.Name == name {
			return p.Loader, nil
		}
	}
	return nil, fmt.Errorf("unknown store %q; valid: %v", name, Names())
}
