package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	ListingStatusPending  = "PENDING"
	ListingStatusApproved = "APPROVED"
	ListingStatusRejected = "REJECTED"
)

// BusinessListing is owned by the directory subsystem; the inbox only reads
// it to resolve the owner of a business conversation.
type BusinessListing struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	CreatedByID *uuid.UUID `json:"created_by_id,omitempty"`
}

// BusinessMessage is the legacy flat message log kept alongside business
// conversations for older screens that still read it.
type BusinessMessage struct {
	ID        uuid.UUID `json:"id"`
	ListingID uuid.UUID `json:"listing_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
