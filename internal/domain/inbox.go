package domain

import (
	"time"

	"github.com/google/uuid"
)

// ConversationSummary is one row of a user's inbox listing.
type ConversationSummary struct {
	ID                    uuid.UUID        `json:"id"`
	Subject               *string          `json:"subject,omitempty"`
	Type                  ConversationType `json:"type"`
	LastMessageBody       *string          `json:"last_message_body,omitempty"`
	LastMessageAt         time.Time        `json:"last_message_at"`
	LastMessageSenderName *string          `json:"last_message_sender_name,omitempty"`
	Unread                bool             `json:"unread"`
	BusinessListingName   *string          `json:"business_listing_name,omitempty"`
	ParticipantNames      []string         `json:"participant_names"`
}

// ThreadMessage is a message as rendered inside a thread, annotated with
// whether the viewing user authored it so the UI can align bubbles.
type ThreadMessage struct {
	ID            uuid.UUID         `json:"id"`
	Body          string            `json:"body"`
	SenderID      *uuid.UUID        `json:"sender_id,omitempty"`
	SenderName    string            `json:"sender_name"`
	IsCurrentUser bool              `json:"is_current_user"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

type ConversationDetail struct {
	ID                  uuid.UUID        `json:"id"`
	Subject             *string          `json:"subject,omitempty"`
	Type                ConversationType `json:"type"`
	BusinessListingID   *uuid.UUID       `json:"business_listing_id,omitempty"`
	BusinessListingName *string          `json:"business_listing_name,omitempty"`
	ParticipantNames    []string         `json:"participant_names"`
	Messages            []ThreadMessage  `json:"messages"`
}

type BroadcastResult struct {
	ConversationID uuid.UUID `json:"conversation_id"`
	RecipientCount int       `json:"recipient_count"`
}
