package domain

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleStandard Role = "standard"
	RoleVIP      Role = "VIP"
	RoleAdmin    Role = "admin"
)

const (
	StandardLifetime   = time.Hour
	PrivilegedLifetime = 8 * time.Hour
)

// ParseRole maps a stored role to a known Role, falling back to standard.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleVIP:
		return RoleVIP
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleStandard
	}
}

// MessageLifetime is how long a message sent by a user with this role stays readable.
func (r Role) MessageLifetime() time.Duration {
	if r == RoleVIP || r == RoleAdmin {
		return PrivilegedLifetime
	}
	return StandardLifetime
}

type Message struct {
	ID         uuid.UUID `json:"id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
	Role       Role      `json:"role"`
	Read       bool      `json:"read"`
}

// Involves reports whether userID is the sender or the receiver.
func (m Message) Involves(userID string) bool {
	return m.SenderID == userID || m.ReceiverID == userID
}

func (m Message) Expired(now time.Time) bool {
	return !m.ExpiresAt.After(now)
}
