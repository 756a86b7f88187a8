package domain

import (
	"time"

	"github.com/google/uuid"
)

type ConversationType string

const (
	ConversationDirect         ConversationType = "DIRECT"
	ConversationSystem         ConversationType = "SYSTEM"
	ConversationBusiness       ConversationType = "BUSINESS"
	ConversationAdminBroadcast ConversationType = "ADMIN_BROADCAST"
)

func (t ConversationType) Valid() bool {
	switch t {
	case ConversationDirect, ConversationSystem, ConversationBusiness, ConversationAdminBroadcast:
		return true
	}
	return false
}

// Conversation is a thread of messages among a fixed set of participants.
// Type is immutable after creation. UpdatedAt is bumped on every new message
// and drives inbox ordering.
type Conversation struct {
	ID                uuid.UUID        `json:"id"`
	Subject           *string          `json:"subject,omitempty"`
	Type              ConversationType `json:"type"`
	BusinessListingID *uuid.UUID       `json:"business_listing_id,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// ConversationParticipant is a user's membership record in a conversation,
// carrying their personal read/archive/delete state. One row per
// (conversation, user); never hard-deleted.
type ConversationParticipant struct {
	ID             uuid.UUID  `json:"id"`
	ConversationID uuid.UUID  `json:"conversation_id"`
	UserID         uuid.UUID  `json:"user_id"`
	LastReadAt     *time.Time `json:"last_read_at,omitempty"`
	IsArchived     bool       `json:"is_archived"`
	IsDeleted      bool       `json:"is_deleted"`
}

// InboxMessage is immutable once created. A nil SenderID marks a
// system-authored message. Metadata is schema-less context attached by
// notification producers, stored opaquely as JSONB.
type InboxMessage struct {
	ID             uuid.UUID         `json:"id"`
	ConversationID uuid.UUID         `json:"conversation_id"`
	SenderID       *uuid.UUID        `json:"sender_id,omitempty"`
	Body           string            `json:"body"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}
