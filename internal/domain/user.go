package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID         uuid.UUID  `json:"id"`
	AuthID     string     `json:"-"`
	Email      string     `json:"email"`
	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	Role       string     `json:"role"`
	IsApproved bool       `json:"is_approved"`
	ZoneID     *uuid.UUID `json:"zone_id,omitempty"`
	Section    *string    `json:"section,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

const (
	RoleMember = "MEMBER"
	RoleAdmin  = "ADMIN"
)

// DisplayName joins first and last name, falling back to the email address
// when both are blank.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name == "" {
		return u.Email
	}
	return name
}

type UserSearchResult struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}

// BroadcastTarget selects the recipient set for an admin broadcast.
// Exactly one predicate applies: every approved user, approved users in one
// zone, or approved users in one geographic section.
type BroadcastTarget struct {
	Type    string
	ZoneID  *uuid.UUID
	Section *string
}

const (
	BroadcastTargetAll     = "all"
	BroadcastTargetZone    = "zone"
	BroadcastTargetSection = "section"
)
