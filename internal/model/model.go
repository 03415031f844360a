package model

import (
	"time"

	"github.com/google/uuid"
)

// User is a principal in the user directory.
// Users are never hard-deleted; deactivation clears IsActive so historical
// messages keep a valid sender reference.
type User struct {
	ID         uuid.UUID `json:"id"         gorm:"primaryKey;type:uuid"`
	Username   string    `json:"username"   gorm:"uniqueIndex;not null"`
	Email      string    `json:"email"      gorm:"uniqueIndex;not null"`
	Bio        string    `json:"bio"        gorm:"not null;default:''"`
	IsStaff    bool      `json:"isStaff"    gorm:"not null;default:false"`
	IsActive   bool      `json:"isActive"   gorm:"not null;default:true"`
	DateJoined time.Time `json:"dateJoined" gorm:"not null;autoCreateTime"`
}

func (User) TableName() string { return "users" }

// Conversation is a named thread of messages between a set of participants.
// Its encryption key lives in conversation_keys and is written exactly once,
// before the conversation row itself; no read path ever exposes it.
type Conversation struct {
	ID        uuid.UUID `json:"id"        gorm:"primaryKey;type:uuid"`
	Name      string    `json:"name"      gorm:"not null;index"`
	CreatedAt time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"not null;autoUpdateTime"`
}

func (Conversation) TableName() string { return "conversations" }

// ConversationParticipant is one user's membership in a conversation.
// Position records insertion order; the two-participant naming rule
// concatenates usernames in this order.
type ConversationParticipant struct {
	ConversationID uuid.UUID `json:"-"         gorm:"primaryKey;type:uuid"`
	UserID         uuid.UUID `json:"userId"    gorm:"primaryKey;type:uuid"`
	Position       int       `json:"-"         gorm:"not null"`
	CreatedAt      time.Time `json:"createdAt" gorm:"not null;autoCreateTime"`
}

func (ConversationParticipant) TableName() string { return "conversation_participants" }

// ConversationKey is the wrapped per-conversation data key.
// One row per conversation, inserted create-if-absent so concurrent creators
// converge on a single key; no code path updates wrapped_dek after insert.
type ConversationKey struct {
	ConversationID uuid.UUID `gorm:"primaryKey;type:uuid;column:conversation_id"`
	WrappedDEK     []byte    `gorm:"type:bytea;not null;column:wrapped_dek"`
	Revision       int64     `gorm:"not null;default:0"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime"`
}

func (ConversationKey) TableName() string { return "conversation_keys" }

// Message is a single message in a conversation. Content holds ciphertext at
// rest (a CSEH envelope); json:"-" keeps the raw bytes out of any response.
type Message struct {
	ID             uuid.UUID `json:"id"        gorm:"primaryKey;type:uuid"`
	ConversationID uuid.UUID `json:"-"         gorm:"not null;type:uuid;index"`
	SenderID       uuid.UUID `json:"-"         gorm:"not null;type:uuid;index"`
	Content        []byte    `json:"-"         gorm:"type:bytea;not null"` // encrypted
	CreatedAt      time.Time `json:"timestamp" gorm:"not null;autoCreateTime"`
}

func (Message) TableName() string { return "messages" }
