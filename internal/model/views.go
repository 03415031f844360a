package model

import (
	"time"

	"github.com/google/uuid"
)

// Wire representations. Each entity has an explicit view struct and a mapping
// function; nothing is serialized straight off a stored entity, which keeps
// key material and ciphertext out of responses by construction.

// UserView is the wire representation of a User.
type UserView struct {
	ID         uuid.UUID `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Bio        string    `json:"bio"`
	IsStaff    bool      `json:"isStaff"`
	IsActive   bool      `json:"isActive"`
	DateJoined time.Time `json:"dateJoined"`
}

// ToUserView maps a stored User to its wire representation.
func ToUserView(u User) UserView {
	return UserView{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		Bio:        u.Bio,
		IsStaff:    u.IsStaff,
		IsActive:   u.IsActive,
		DateJoined: u.DateJoined,
	}
}

// MessageView is the wire representation of a Message. Content carries the
// decrypted plaintext; Conversation carries the owning conversation's derived
// name and Username the sender's username, matching the flattened shape
// clients consume.
type MessageView struct {
	ID           uuid.UUID `json:"id"`
	Conversation string    `json:"conversation"`
	Username     string    `json:"username"`
	Content      string    `json:"content"`
	Timestamp    time.Time `json:"timestamp"`
}

// ToMessageView maps a stored Message plus its decrypted plaintext to the wire
// representation. The caller supplies plaintext; Message.Content itself stays
// ciphertext end to end.
func ToMessageView(m Message, conversationName, senderUsername, plaintext string) MessageView {
	return MessageView{
		ID:           m.ID,
		Conversation: conversationName,
		Username:     senderUsername,
		Content:      plaintext,
		Timestamp:    m.CreatedAt,
	}
}

// ConversationView is the wire representation of a Conversation: participants
// expanded to user views and all messages decrypted, timestamp ascending. The
// encryption key has no field here and never will.
type ConversationView struct {
	ID           uuid.UUID     `json:"id"`
	Name         string        `json:"name"`
	CreatedAt    time.Time     `json:"createdAt"`
	Participants []UserView    `json:"participants"`
	AllMessages  []MessageView `json:"allMessages"`
}

// ToConversationView maps a stored Conversation with its expanded participants
// and decrypted messages to the wire representation.
func ToConversationView(c Conversation, participants []UserView, messages []MessageView) ConversationView {
	if participants == nil {
		participants = []UserView{}
	}
	if messages == nil {
		messages = []MessageView{}
	}
	return ConversationView{
		ID:           c.ID,
		Name:         c.Name,
		CreatedAt:    c.CreatedAt,
		Participants: participants,
		AllMessages:  messages,
	}
}
